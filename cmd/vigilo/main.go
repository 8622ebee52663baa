// vigilo — local-only observability sidecar for AI coding agents.
// The bare binary is an MCP tool server over stdio; subcommands read the
// captured event ledger back.
package main

import "github.com/ppiankov/vigilo/internal/cli"

func main() {
	cli.Execute()
}
