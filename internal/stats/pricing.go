// Package stats folds event streams into the aggregates the dashboard and
// read subcommands serve: global counts, per-model/tool/file/project rows,
// and the per-day timeline, with model cost estimation.
package stats

import (
	_ "embed"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/vigilo/internal/model"
)

//go:embed pricing.yaml
var pricingYAML []byte

// cacheWriteFactor bills cache writes relative to input tokens.
const cacheWriteFactor = 1.25

// Pricing is one model's rates in USD per 1k tokens.
type Pricing struct {
	Match          string  `yaml:"match"`
	InputPer1K     float64 `yaml:"input_per_1k"`
	OutputPer1K    float64 `yaml:"output_per_1k"`
	CacheReadPer1K float64 `yaml:"cache_read_per_1k"`
}

type pricingFile struct {
	Models []Pricing `yaml:"models"`
}

var (
	pricingOnce  sync.Once
	pricingTable []Pricing
)

// priceTable returns the pricing rows: the user override at
// ~/.vigilo/pricing.yaml when present, else the embedded table.
func priceTable() []Pricing {
	pricingOnce.Do(func() {
		var pf pricingFile
		if data, err := os.ReadFile(model.Path("pricing.yaml")); err == nil {
			if yaml.Unmarshal(data, &pf) == nil && len(pf.Models) > 0 {
				pricingTable = pf.Models
				return
			}
		}
		if err := yaml.Unmarshal(pricingYAML, &pf); err == nil {
			pricingTable = pf.Models
		}
	})
	return pricingTable
}

// PricingFor finds rates for a model name by substring match, first hit
// wins. Unknown models have no pricing.
func PricingFor(modelName string) (Pricing, bool) {
	m := strings.ToLower(modelName)
	for _, p := range priceTable() {
		if strings.Contains(m, p.Match) {
			return p, true
		}
	}
	return Pricing{}, false
}

// EventCost estimates one event's USD cost from its token counters.
// Events without a model or input count contribute nothing.
func EventCost(ev *model.Event) float64 {
	if ev.Model == "" || ev.InputTokens == 0 {
		return 0
	}
	p, ok := PricingFor(ev.Model)
	if !ok {
		return 0
	}
	cost := float64(ev.InputTokens) / 1000 * p.InputPer1K
	cost += float64(ev.OutputTokens) / 1000 * p.OutputPer1K
	cost += float64(ev.CacheReadTokens) / 1000 * p.CacheReadPer1K
	cost += float64(ev.CacheWriteTokens) / 1000 * p.InputPer1K * cacheWriteFactor
	return cost
}

// NormalizeModel collapses Cursor's auto-mode aliases for display grouping.
func NormalizeModel(m string) string {
	if m == "default" || m == "auto" {
		return "Auto"
	}
	return m
}
