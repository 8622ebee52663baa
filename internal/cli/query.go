package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/vigilo/internal/view"
)

var queryFlags filterFlags

func init() {
	rootCmd.AddCommand(queryCmd)
	queryFlags.register(queryCmd)
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Filter events across all sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := queryFlags.ledgerFilter()
		if err != nil {
			return err
		}
		events, err := reader().Read(filter)
		if err != nil {
			return err
		}
		if queryFlags.last > 0 && len(events) > queryFlags.last {
			events = events[len(events)-queryFlags.last:]
		}
		view.Query(os.Stdout, events)
		return nil
	},
}
