// Package cli is the vigilo command tree. The bare binary is the MCP
// server; every named subcommand is a read-side or maintenance surface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ppiankov/vigilo/internal/dashboard"
	"github.com/ppiankov/vigilo/internal/ledger"
	"github.com/ppiankov/vigilo/internal/mcpserver"
	"github.com/ppiankov/vigilo/internal/model"
	"github.com/ppiankov/vigilo/internal/view"
)

// Exit codes.
const (
	exitOK        = 0
	exitError     = 1
	exitUsage     = 2
	exitPortInUse = 3
	exitBadLedger = 4
)

var noColor bool

// usageError marks argument problems so Execute can map them to exit 2.
type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }
func (u usageError) Unwrap() error { return u.err }

var rootCmd = &cobra.Command{
	Use:   "vigilo",
	Short: "Observe what AI agents do — every tool call logged, nothing sent anywhere",
	Long: "vigilo is a local-only observability sidecar for AI coding agents.\n" +
		"Run with no arguments it serves the MCP tool catalog on stdio and\n" +
		"captures every call into an append-only ledger; the subcommands read\n" +
		"that ledger back.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			view.DisableColor()
		}
	},
	RunE: runServer,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output (also respects NO_COLOR)")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})
}

// Execute runs the command tree and exits with the documented code.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		os.Exit(exitOK)
	}
	fmt.Fprintf(os.Stderr, "vigilo: %v\n", err)

	var usage usageError
	switch {
	case errors.As(err, &usage):
		os.Exit(exitUsage)
	case errors.Is(err, dashboard.ErrPortInUse):
		os.Exit(exitPortInUse)
	case model.KindOf(err) == model.KindLedger:
		os.Exit(exitBadLedger)
	}
	os.Exit(exitError)
}

// runServer is the default mode: MCP over stdio.
func runServer(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usageError{fmt.Errorf("unknown command %q — run 'vigilo help' for usage", args[0])}
	}
	if isatty.IsTerminal(os.Stdin.Fd()) {
		fmt.Fprintln(os.Stderr, "vigilo: running as MCP server, but stdin is a terminal.")
		fmt.Fprintln(os.Stderr, "Did you mean 'vigilo help'?")
		return errors.New("refusing to serve MCP on a terminal")
	}

	srv, err := mcpserver.New(mcpserver.Config{LedgerPath: model.LedgerPath()})
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// reader builds the shared ledger reader over the resolved path.
func reader() *ledger.Reader {
	return ledger.NewReader(model.LedgerPath())
}
