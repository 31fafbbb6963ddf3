package rebalance

import (
	"math"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantfold/quantfold/internal/domain"
)

// ReasonBudgetClamped tags a buy that was cut down to fit the remaining
// global risk budget.
const ReasonBudgetClamped = "budget_clamped"

// Generator reconciles target weights against current holdings and emits an
// ordered, budget-clamped trade list. It is pure: output ordering depends
// only on the inputs, never on map iteration order.
type Generator struct {
	log zerolog.Logger
}

// NewGenerator constructs a Generator.
func NewGenerator() *Generator {
	return &Generator{log: log.With().Str("component", "rebalance").Logger()}
}

// Generate computes the trades that move the book from its current holdings
// to the target weights. Buys draw down the report's remaining global
// budget as they are emitted, in symbol order; when the report is nil the
// deployable capital acts as the spending ceiling instead. The returned
// list is sorted by absolute value delta, largest first, ties by symbol.
func (g *Generator) Generate(
	holdings []domain.Holding,
	targetWeights map[string]float64,
	totalEquity float64,
	deployableCapital float64,
	pricing map[string]float64,
	report *domain.RiskBudgetReport,
) []domain.TradeInstruction {
	current := make(map[string]domain.Holding, len(holdings))
	for _, h := range holdings {
		current[h.Symbol] = h
	}

	remaining := deployableCapital
	if report != nil {
		remaining = report.Global.Remaining
	}
	if remaining < 0 {
		remaining = 0
	}

	trades := make([]domain.TradeInstruction, 0, len(targetWeights)+len(current))
	for _, symbol := range symbolUnion(targetWeights, current) {
		holding := current[symbol]
		targetValue := targetWeights[symbol] * totalEquity
		diff := targetValue - holding.CurrentValue

		price := resolvePrice(symbol, pricing, holding)
		if price <= 0 {
			g.log.Debug().Str("symbol", symbol).Msg("no usable price, skipping symbol")
			continue
		}

		qty := int(math.Floor(math.Abs(diff) / price))
		if qty == 0 {
			continue
		}

		trade := domain.TradeInstruction{Symbol: symbol, UnitPrice: price}
		if diff > 0 {
			trade.Action = domain.ActionBuy
			value := float64(qty) * price
			if value > remaining {
				qty = int(math.Floor(remaining / price))
				if qty == 0 {
					g.log.Debug().Str("symbol", symbol).Float64("remaining", remaining).
						Msg("buy dropped, no budget left")
					continue
				}
				value = float64(qty) * price
				trade.Reason = ReasonBudgetClamped
			}
			trade.Quantity = qty
			trade.ValueDelta = value
			remaining -= value
		} else {
			trade.Action = domain.ActionSell
			trade.Quantity = qty
			trade.ValueDelta = -float64(qty) * price
		}
		trades = append(trades, trade)
	}

	sort.SliceStable(trades, func(i, j int) bool {
		a, b := math.Abs(trades[i].ValueDelta), math.Abs(trades[j].ValueDelta)
		if a != b {
			return a > b
		}
		return trades[i].Symbol < trades[j].Symbol
	})
	return trades
}

// symbolUnion returns the sorted union of target and holding symbols.
// Sorting pins the iteration order so emitted trades are deterministic.
func symbolUnion(targets map[string]float64, holdings map[string]domain.Holding) []string {
	seen := make(map[string]struct{}, len(targets)+len(holdings))
	symbols := make([]string, 0, len(targets)+len(holdings))
	for s := range targets {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			symbols = append(symbols, s)
		}
	}
	for s := range holdings {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			symbols = append(symbols, s)
		}
	}
	sort.Strings(symbols)
	return symbols
}

// resolvePrice takes the quoted price when available and positive, else
// derives one from the holding's value per unit.
func resolvePrice(symbol string, pricing map[string]float64, holding domain.Holding) float64 {
	if p, ok := pricing[symbol]; ok && p > 0 {
		return p
	}
	if holding.Quantity != 0 {
		derived := math.Abs(holding.CurrentValue) / math.Abs(holding.Quantity)
		if derived > 0 {
			return derived
		}
	}
	return 0
}
