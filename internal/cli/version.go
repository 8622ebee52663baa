package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/vigilo/internal/mcpserver"
)

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = mcpserver.Version
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vigilo %s\n", mcpserver.Version)
	},
}
