package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/vigilo/internal/view"
)

var sessionsFlags filterFlags

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsFlags.register(sessionsCmd)
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List logical sessions, one line each",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := sessionsFlags.ledgerFilter()
		if err != nil {
			return err
		}
		sessions, err := reader().ReadSessions(filter)
		if err != nil {
			return err
		}
		merged := view.MergeSessions(sessions)
		if sessionsFlags.last > 0 && len(merged) > sessionsFlags.last {
			merged = merged[len(merged)-sessionsFlags.last:]
		}
		view.Sessions(os.Stdout, merged)
		return nil
	},
}
