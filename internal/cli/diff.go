package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/vigilo/internal/view"
)

var diffFlags filterFlags

func init() {
	rootCmd.AddCommand(diffCmd)
	diffFlags.register(diffCmd)
}

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show file diffs grouped by session",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := diffFlags.ledgerFilter()
		if err != nil {
			return err
		}
		sessions, err := reader().ReadSessions(filter)
		if err != nil {
			return err
		}
		view.Diffs(os.Stdout, sessions)
		return nil
	},
}
