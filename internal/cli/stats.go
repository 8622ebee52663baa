package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/vigilo/internal/stats"
	"github.com/ppiankov/vigilo/internal/view"
)

var statsFlags filterFlags

func init() {
	rootCmd.AddCommand(statsCmd)
	statsFlags.register(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregate stats across all sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := statsFlags.ledgerFilter()
		if err != nil {
			return err
		}
		sessions, err := reader().ReadSessions(filter)
		if err != nil {
			return err
		}
		view.Stats(os.Stdout, stats.Compute(sessions, nil))
		return nil
	},
}
