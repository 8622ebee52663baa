package cli

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/vigilo/internal/ledger"
)

var dateExprRe = regexp.MustCompile(`^(\d+)([dwm])$`)

// parseDateExpr resolves a date expression to YYYY-MM-DD:
// today, yesterday, Nd, Nw, Nm, or a literal YYYY-MM-DD.
func parseDateExpr(expr string) (string, error) {
	today := time.Now()
	switch expr {
	case "":
		return "", nil
	case "today":
		return today.Format("2006-01-02"), nil
	case "yesterday":
		return today.AddDate(0, 0, -1).Format("2006-01-02"), nil
	}
	if m := dateExprRe.FindStringSubmatch(expr); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "d":
			return today.AddDate(0, 0, -n).Format("2006-01-02"), nil
		case "w":
			return today.AddDate(0, 0, -7*n).Format("2006-01-02"), nil
		case "m":
			return today.AddDate(0, -n, 0).Format("2006-01-02"), nil
		}
	}
	if _, err := time.Parse("2006-01-02", expr); err == nil {
		return expr, nil
	}
	return "", usageError{fmt.Errorf("invalid date expression %q (use today, yesterday, Nd, Nw, Nm, or YYYY-MM-DD)", expr)}
}

// filterFlags are the shared read-subcommand options.
type filterFlags struct {
	since   string
	until   string
	session string
	tool    string
	risk    string
	last    int
	expand  bool
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.since, "since", "", "From date (today, yesterday, 7d, 2w, 1m, YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.until, "until", "", "To date (same formats as --since)")
	cmd.Flags().StringVar(&f.session, "session", "", "Filter by session id prefix")
	cmd.Flags().StringVar(&f.tool, "tool", "", "Filter by tool name")
	cmd.Flags().StringVar(&f.risk, "risk", "", "Filter by risk level: read | write | exec")
	cmd.Flags().IntVar(&f.last, "last", 0, "Show only the last N entries")
	cmd.Flags().BoolVar(&f.expand, "expand", false, "Show all events / full details")
}

func (f *filterFlags) ledgerFilter() (ledger.Filter, error) {
	since, err := parseDateExpr(f.since)
	if err != nil {
		return ledger.Filter{}, err
	}
	until, err := parseDateExpr(f.until)
	if err != nil {
		return ledger.Filter{}, err
	}
	if f.risk != "" && f.risk != "read" && f.risk != "write" && f.risk != "exec" && f.risk != "unknown" {
		return ledger.Filter{}, usageError{fmt.Errorf("invalid risk %q", f.risk)}
	}
	return ledger.Filter{
		Since:   since,
		Until:   until,
		Session: f.session,
		Tool:    f.tool,
		Risk:    f.risk,
	}, nil
}
