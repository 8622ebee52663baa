package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/vigilo/internal/ledger"
	"github.com/ppiankov/vigilo/internal/model"
)

var pruneOlderThan int

func init() {
	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().IntVar(&pruneOlderThan, "older-than", 30, "Days threshold")
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old rotated ledger files",
	RunE: func(cmd *cobra.Command, args []string) error {
		if pruneOlderThan < 0 {
			return usageError{fmt.Errorf("--older-than must be non-negative")}
		}
		removed, err := ledger.Prune(model.LedgerPath(), pruneOlderThan)
		if err != nil {
			return err
		}
		if removed > 0 {
			fmt.Printf("pruned %d rotated ledger file(s) older than %d days\n", removed, pruneOlderThan)
		} else {
			fmt.Printf("no rotated ledger files older than %d days\n", pruneOlderThan)
		}
		return nil
	},
}
