package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"

	"github.com/ppiankov/vigilo/internal/model"
	"github.com/ppiankov/vigilo/internal/view"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live tail of incoming events",
	RunE: func(cmd *cobra.Command, args []string) error {
		ledgerPath := model.LedgerPath()
		r := reader()

		t, err := tail.TailFile(ledgerPath, tail.Config{
			Follow:    true,
			ReOpen:    true,
			MustExist: false,
			Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
			Logger:    tail.DiscardingLogger,
		})
		if err != nil {
			return model.E(model.KindLedger, err)
		}
		defer t.Stop()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(os.Stderr, "[vigilo] watching %s (ctrl-c to stop)\n", model.ShortenHome(ledgerPath))
		for {
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-t.Lines:
				if !ok {
					return nil
				}
				if line.Err != nil {
					continue
				}
				text := strings.TrimSpace(line.Text)
				if text == "" {
					continue
				}
				var ev model.Event
				if json.Unmarshal([]byte(text), &ev) != nil {
					continue
				}
				r.Decrypt(&ev)
				view.Query(os.Stdout, []model.Event{ev})
			}
		}
	},
}
