package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/vigilo/internal/crypto"
)

func init() {
	rootCmd.AddCommand(generateKeyCmd)
}

var generateKeyCmd = &cobra.Command{
	Use:   "generate-key",
	Short: "Generate a base64 AES-256 encryption key",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(crypto.GenerateKeyB64())
		return nil
	},
}
