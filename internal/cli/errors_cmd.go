package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/vigilo/internal/view"
)

var errorsFlags filterFlags

func init() {
	rootCmd.AddCommand(errorsCmd)
	errorsFlags.register(errorsCmd)
}

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Show errors (--expand for full details)",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := errorsFlags.ledgerFilter()
		if err != nil {
			return err
		}
		events, err := reader().Read(filter)
		if err != nil {
			return err
		}
		view.Errors(os.Stdout, events, errorsFlags.expand)
		return nil
	},
}
