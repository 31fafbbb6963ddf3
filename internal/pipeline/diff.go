package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/quantfold/quantfold/internal/domain"
)

// diffEpsilon separates real divergence from float noise. Identical inputs
// produce bit-identical outcomes, so any nonzero difference is a real one;
// the epsilon only absorbs formatting round-trips.
const diffEpsilon = 1e-12

// Divergence is one field where a shadow run departed from the base run.
type Divergence struct {
	Field string `json:"field"`
	Base  string `json:"base"`
	Other string `json:"other"`
}

// Diff compares two outcomes field by field for the what-if flow. Run IDs
// are operational identity, not output, and are ignored. An empty slice
// means the runs agree.
func Diff(base, other *Outcome) []Divergence {
	var out []Divergence
	if base == nil || other == nil {
		if base != other {
			out = append(out, Divergence{Field: "outcome", Base: presence(base), Other: presence(other)})
		}
		return out
	}

	for _, symbol := range targetUnion(base.Targets, other.Targets) {
		bv, bok := base.Targets[symbol]
		ov, ook := other.Targets[symbol]
		switch {
		case !bok:
			out = append(out, Divergence{Field: "target." + symbol, Base: "absent", Other: formatFloat(ov)})
		case !ook:
			out = append(out, Divergence{Field: "target." + symbol, Base: formatFloat(bv), Other: "absent"})
		case math.Abs(bv-ov) > diffEpsilon:
			out = append(out, Divergence{Field: "target." + symbol, Base: formatFloat(bv), Other: formatFloat(ov)})
		}
	}

	if base.Result.Converged != other.Result.Converged {
		out = append(out, Divergence{
			Field: "converged",
			Base:  strconv.FormatBool(base.Result.Converged),
			Other: strconv.FormatBool(other.Result.Converged),
		})
	}

	out = append(out, diffBudget(base.Budget, other.Budget)...)
	out = append(out, diffTrades(base.Trades, other.Trades)...)
	return out
}

func diffBudget(base, other *domain.RiskBudgetReport) []Divergence {
	var out []Divergence
	if base == nil || other == nil {
		if base != other {
			out = append(out, Divergence{Field: "budget", Base: presence(base), Other: presence(other)})
		}
		return out
	}
	if math.Abs(base.Global.MaxLimit-other.Global.MaxLimit) > diffEpsilon {
		out = append(out, Divergence{
			Field: "budget.global.max_limit",
			Base:  formatFloat(base.Global.MaxLimit),
			Other: formatFloat(other.Global.MaxLimit),
		})
	}
	if math.Abs(base.Global.Remaining-other.Global.Remaining) > diffEpsilon {
		out = append(out, Divergence{
			Field: "budget.global.remaining",
			Base:  formatFloat(base.Global.Remaining),
			Other: formatFloat(other.Global.Remaining),
		})
	}
	if math.Abs(base.MaxRiskPerTrade-other.MaxRiskPerTrade) > diffEpsilon {
		out = append(out, Divergence{
			Field: "budget.max_risk_per_trade",
			Base:  formatFloat(base.MaxRiskPerTrade),
			Other: formatFloat(other.MaxRiskPerTrade),
		})
	}
	return out
}

func diffTrades(base, other []domain.TradeInstruction) []Divergence {
	if len(base) != len(other) {
		return []Divergence{{
			Field: "trades.count",
			Base:  strconv.Itoa(len(base)),
			Other: strconv.Itoa(len(other)),
		}}
	}
	var out []Divergence
	for i := range base {
		b, o := base[i], other[i]
		if b.Symbol != o.Symbol || b.Action != o.Action || b.Quantity != o.Quantity ||
			math.Abs(b.UnitPrice-o.UnitPrice) > diffEpsilon ||
			math.Abs(b.ValueDelta-o.ValueDelta) > diffEpsilon || b.Reason != o.Reason {
			out = append(out, Divergence{
				Field: fmt.Sprintf("trades[%d]", i),
				Base:  formatTrade(b),
				Other: formatTrade(o),
			})
		}
	}
	return out
}

func targetUnion(a, b map[string]float64) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for s := range a {
		seen[s] = struct{}{}
	}
	for s := range b {
		seen[s] = struct{}{}
	}
	symbols := make([]string, 0, len(seen))
	for s := range seen {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatTrade(t domain.TradeInstruction) string {
	s := fmt.Sprintf("%s %d %s @ %s", t.Action, t.Quantity, t.Symbol, formatFloat(t.UnitPrice))
	if t.Reason != "" {
		s += " (" + t.Reason + ")"
	}
	return s
}

func presence[T any](v *T) string {
	if v == nil {
		return "nil"
	}
	return "present"
}
