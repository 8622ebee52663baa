package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/vigilo/internal/ledger"
	"github.com/ppiankov/vigilo/internal/view"
)

var tailCount int

func init() {
	rootCmd.AddCommand(tailCmd)
	tailCmd.Flags().IntVarP(&tailCount, "last", "n", 20, "Number of events to show")
}

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show the last N events, flat",
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := reader().Read(ledger.Filter{})
		if err != nil {
			return err
		}
		view.Tail(os.Stdout, events, tailCount)
		return nil
	},
}
