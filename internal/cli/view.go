package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/vigilo/internal/view"
)

var viewFlags filterFlags

func init() {
	rootCmd.AddCommand(viewCmd)
	viewFlags.register(viewCmd)
}

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "View the ledger grouped by session",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := viewFlags.ledgerFilter()
		if err != nil {
			return err
		}
		sessions, err := reader().ReadSessions(filter)
		if err != nil {
			return err
		}
		if viewFlags.last > 0 && len(sessions) > viewFlags.last {
			sessions = sessions[len(sessions)-viewFlags.last:]
		}
		view.Grouped(os.Stdout, sessions, viewFlags.expand)
		return nil
	},
}
