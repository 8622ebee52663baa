package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/vigilo/internal/dashboard"
	"github.com/ppiankov/vigilo/internal/model"
)

var dashboardPort int

func init() {
	rootCmd.AddCommand(dashboardCmd)
	dashboardCmd.Flags().IntVar(&dashboardPort, "port", dashboard.DefaultPort, "Port to listen on")
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Launch the web dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return dashboard.New(model.LedgerPath(), dashboardPort).Run(ctx)
	},
}
