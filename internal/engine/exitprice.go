package engine

import (
	"math"

	"github.com/optlens/optlens/internal/util"
)

// Config carries the tunables for exit price suggestions.
type Config struct {
	// ProfitTargets are the profit percentages offered when constructing
	// a new exit order.
	ProfitTargets []float64
	// PriceTick is the limit price increment, 0.05 for options.
	PriceTick float64
}

// DefaultConfig is the default exit suggestion configuration.
var DefaultConfig = Config{
	ProfitTargets: []float64{30, 40, 50, 60},
	PriceTick:     0.05,
}

// Suggestion is one suggested exit limit price at a target profit.
type Suggestion struct {
	ProfitPct  float64 `json:"profitPct"`
	LimitPrice float64 `json:"limitPrice"`
}

// ExitLimitPrice returns the per-contract limit price that exits an option
// position at the given profit percentage, rounded to the nearest tick.
// Debit positions (totalCost >= 0) must be sold for more than paid; credit
// positions must be bought back for less than received. Quantity 0 yields 0.
func ExitLimitPrice(totalCost float64, quantity int, profitPct, tick float64) float64 {
	if quantity == 0 {
		return 0
	}
	absQty := math.Abs(float64(quantity))
	absCost := math.Abs(totalCost)

	var exitValue float64
	if totalCost >= 0 {
		exitValue = absCost * (1 + profitPct/100)
	} else {
		exitValue = absCost * (1 - profitPct/100)
	}

	raw := exitValue / (absQty * 100)
	return util.RoundToTick(raw, tick)
}

// ExitSuggestions computes a limit price for every configured profit target.
func (c Config) ExitSuggestions(totalCost float64, quantity int) []Suggestion {
	suggestions := make([]Suggestion, 0, len(c.ProfitTargets))
	for _, target := range c.ProfitTargets {
		suggestions = append(suggestions, Suggestion{
			ProfitPct:  target,
			LimitPrice: ExitLimitPrice(totalCost, quantity, target, c.PriceTick),
		})
	}
	return suggestions
}
