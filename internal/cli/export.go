package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/vigilo/internal/model"
	"github.com/ppiankov/vigilo/internal/view"
)

var (
	exportFlags  filterFlags
	exportFormat string
	exportOutput string
)

func init() {
	rootCmd.AddCommand(exportCmd)
	exportFlags.register(exportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv | json")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "Write to file (default: ~/.vigilo/export.<ext>)")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export events as CSV or JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportFormat != "csv" && exportFormat != "json" {
			return usageError{fmt.Errorf("invalid format %q (csv or json)", exportFormat)}
		}
		filter, err := exportFlags.ledgerFilter()
		if err != nil {
			return err
		}
		events, err := reader().Read(filter)
		if err != nil {
			return err
		}

		out := exportOutput
		if out == "" {
			out = model.Path("export." + exportFormat)
		}
		f, err := os.Create(out)
		if err != nil {
			return model.E(model.KindIO, err)
		}
		defer f.Close()
		if err := view.Export(f, events, exportFormat); err != nil {
			return err
		}
		fmt.Printf("exported %d events to %s\n", len(events), model.ShortenHome(out))
		return nil
	},
}
