package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/vigilo/internal/hook"
	"github.com/ppiankov/vigilo/internal/model"
)

func init() {
	rootCmd.AddCommand(hookCmd)
}

var hookCmd = &cobra.Command{
	Use:    "hook",
	Short:  "Process a post-tool hook event from stdin (used by editors)",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return hook.Run(os.Stdin, model.LedgerPath())
	},
}
