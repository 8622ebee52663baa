package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/vigilo/internal/ledger"
	"github.com/ppiankov/vigilo/internal/view"
)

func init() {
	rootCmd.AddCommand(summaryCmd)
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Today at a glance",
	RunE: func(cmd *cobra.Command, args []string) error {
		today := view.TodayDate()
		sessions, err := reader().ReadSessions(ledger.Filter{Since: today, Until: today})
		if err != nil {
			return err
		}
		view.Summary(os.Stdout, sessions)
		return nil
	},
}
