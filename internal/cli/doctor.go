package cli

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ppiankov/vigilo/internal/crypto"
	"github.com/ppiankov/vigilo/internal/cursor"
	"github.com/ppiankov/vigilo/internal/ledger"
	"github.com/ppiankov/vigilo/internal/model"
	"github.com/ppiankov/vigilo/internal/session"
)

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and dependencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		check := func(ok bool, label, detail string) {
			mark := "ok  "
			if !ok {
				mark = "MISS"
			}
			if detail != "" {
				fmt.Printf("  [%s] %-22s %s\n", mark, label, detail)
			} else {
				fmt.Printf("  [%s] %s\n", mark, label)
			}
		}

		fmt.Printf("vigilo doctor\n\n")

		dir := model.Dir()
		_, dirErr := os.Stat(dir)
		check(dirErr == nil, "config dir", model.ShortenHome(dir))

		ledgerPath := model.LedgerPath()
		if info, err := os.Stat(ledgerPath); err == nil {
			check(true, "ledger", fmt.Sprintf("%s (%s, modified %s)",
				model.ShortenHome(ledgerPath), humanize.Bytes(uint64(info.Size())),
				humanize.Time(info.ModTime())))
		} else {
			check(false, "ledger", model.ShortenHome(ledgerPath)+" (no events yet)")
		}

		rotated, _ := ledger.RotatedFiles(ledgerPath)
		check(true, "rotated siblings", fmt.Sprintf("%d (max %d kept)", len(rotated), ledger.MaxRotated))

		key, keyErr := crypto.LoadConfigured()
		switch {
		case keyErr != nil:
			check(false, "encryption", keyErr.Error())
		case key != nil:
			check(true, "encryption", "AES-256-GCM key configured")
			key.Zeroize()
		default:
			check(true, "encryption", "disabled (run 'vigilo generate-key' to enable)")
		}

		if id, ok := session.Adopt(); ok {
			check(true, "mcp server", "running, session "+id[:8])
		} else {
			check(true, "mcp server", "not running")
		}

		_, gitErr := exec.LookPath("git")
		check(gitErr == nil, "git", "")

		if cursor.HasStateDB() {
			detail := model.ShortenHome(cursor.StateDBPath())
			if email := cursor.AccountEmail(); email != "" {
				detail += " (" + email + ")"
			}
			check(true, "cursor db", detail)
		} else {
			check(true, "cursor db", "not found (set CURSOR_DB in config to enable)")
		}

		if info, err := os.Stat(model.Path("errors.log")); err == nil {
			check(true, "error sidelog", fmt.Sprintf("%s, last write %s",
				humanize.Bytes(uint64(info.Size())),
				info.ModTime().Format(time.RFC3339)))
		} else {
			check(true, "error sidelog", "empty")
		}
		return nil
	},
}
