package engine

import (
	"fmt"

	"github.com/optlens/optlens/internal/models"
)

// optPos builds an option leg suitable for grouping: symbol derived from
// the contract, shared DTE and acquisition date so legs land in one bucket
// unless overridden.
func optPos(base, callPut string, strike float64, qty int, totalCost float64) models.Position {
	dte := 30
	acquired := int64(1755000000000)
	return models.Position{
		Symbol:       fmt.Sprintf("%s Aug 26 '26 $%g %s", base, strike, callPut),
		BaseSymbol:   base,
		SecurityType: models.SecurityOption,
		CallPut:      callPut,
		StrikePrice:  &strike,
		Quantity:     qty,
		TotalCost:    totalCost,
		DTE:          &dte,
		DateAcquired: &acquired,
	}
}

func eqPos(symbol string, qty int, totalCost float64) models.Position {
	return models.Position{
		Symbol:       symbol,
		BaseSymbol:   symbol,
		SecurityType: models.SecurityEquity,
		Quantity:     qty,
		TotalCost:    totalCost,
	}
}

func f64(v float64) *float64 { return &v }

func intp(v int) *int { return &v }
