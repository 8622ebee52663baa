// Package view renders ledger data for the terminal subcommands.
package view

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"github.com/ppiankov/vigilo/internal/crypto"
	"github.com/ppiankov/vigilo/internal/model"
)

var output = termenv.NewOutput(os.Stdout)

var colorEnabled = isatty.IsTerminal(os.Stdout.Fd()) &&
	os.Getenv("NO_COLOR") == "" &&
	!termenv.EnvNoColor()

// DisableColor turns off ANSI styling (--no-color).
func DisableColor() {
	colorEnabled = false
}

func paint(s string, color termenv.ANSIColor) string {
	if !colorEnabled {
		return s
	}
	return output.String(s).Foreground(color).String()
}

func dim(s string) string {
	if !colorEnabled {
		return s
	}
	return output.String(s).Faint().String()
}

func bold(s string) string {
	if !colorEnabled {
		return s
	}
	return output.String(s).Bold().String()
}

func green(s string) string { return paint(s, termenv.ANSIGreen) }
func red(s string) string   { return paint(s, termenv.ANSIRed) }
func cyan(s string) string  { return paint(s, termenv.ANSICyan) }

func riskBadge(r model.Risk) string {
	switch r {
	case model.RiskRead:
		return cyan("r read ")
	case model.RiskWrite:
		return paint("w write", termenv.ANSIYellow)
	case model.RiskExec:
		return red("x exec ")
	}
	return dim("? ???  ")
}

func fmtCost(usd float64) string {
	switch {
	case usd < 0.001:
		return fmt.Sprintf("$%.5f", usd)
	case usd < 1.0:
		return fmt.Sprintf("$%.4f", usd)
	default:
		return fmt.Sprintf("$%.2f", usd)
	}
}

func fmtTokens(n uint64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

func fmtDuration(us uint64) string {
	switch {
	case us >= 1_000_000:
		return fmt.Sprintf("%.1fs", float64(us)/1_000_000)
	case us >= 1_000:
		return fmt.Sprintf("%.0fms", float64(us)/1_000)
	default:
		return fmt.Sprintf("%dµs", us)
	}
}

// diffSummary counts added and removed lines.
func diffSummary(diff string) (added, removed int) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return
}

func diffBadge(diff string) string {
	switch {
	case diff == "", diff == crypto.Encrypted, diff == crypto.Undecryptable:
		return ""
	case diff == "new file":
		return "  " + green("new")
	}
	a, r := diffSummary(diff)
	if a == 0 && r == 0 {
		return ""
	}
	return fmt.Sprintf("  %s%s", green(fmt.Sprintf("+%d", a)), red(fmt.Sprintf("-%d", r)))
}

// argLabel compresses event arguments for one-line rows.
func argLabel(ev *model.Event) string {
	if crypto.IsEnvelope(ev.Arguments) {
		return crypto.Encrypted
	}
	var pa struct {
		FilePath string `json:"file_path"`
		Path     string `json:"path"`
		Command  string `json:"command"`
		Pattern  string `json:"pattern"`
		From     string `json:"from"`
		To       string `json:"to"`
	}
	if err := jsonUnmarshal(ev.Arguments, &pa); err != nil {
		return ""
	}
	switch {
	case pa.Command != "":
		return pa.Command
	case pa.From != "":
		return model.ShortenHome(pa.From) + " -> " + model.ShortenHome(pa.To)
	case pa.FilePath != "":
		return model.ShortenHome(pa.FilePath)
	case pa.Path != "":
		return model.ShortenHome(pa.Path)
	case pa.Pattern != "":
		return pa.Pattern
	}
	return ""
}
