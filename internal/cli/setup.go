package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/vigilo/internal/crypto"
	"github.com/ppiankov/vigilo/internal/model"
)

var setupEncrypt bool

func init() {
	rootCmd.AddCommand(setupCmd)
	setupCmd.Flags().BoolVar(&setupEncrypt, "encrypt", false, "Generate and persist an encryption key")
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Initialize the vigilo config directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := model.Dir()
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return model.E(model.KindConfig, err)
		}
		fmt.Printf("config dir: %s\n", model.ShortenHome(dir))

		cfgPath := model.Path("config")
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			defaults := "# vigilo config\n" +
				"# LEDGER=" + model.DefaultLedgerPath() + "\n" +
				"# TAG=\n" +
				"# TIMEOUT_SECS=30\n" +
				"# CURSOR_DB=\n" +
				"# HOOK_STORE_RESPONSE=false\n"
			if err := os.WriteFile(cfgPath, []byte(defaults), 0o600); err != nil {
				return model.E(model.KindConfig, err)
			}
			fmt.Printf("wrote %s\n", model.ShortenHome(cfgPath))
		} else {
			fmt.Printf("config exists: %s\n", model.ShortenHome(cfgPath))
		}

		if setupEncrypt {
			key, err := crypto.Ensure()
			if err != nil {
				return err
			}
			key.Zeroize()
			fmt.Println("encryption key ready (mode 0600)")
		}

		fmt.Println("\nregister the MCP server with your agent, e.g. for Claude Code:")
		fmt.Println(`  claude mcp add vigilo -- vigilo`)
		fmt.Println("and point the PostToolUse hook at:")
		fmt.Println(`  vigilo hook`)
		return nil
	},
}
