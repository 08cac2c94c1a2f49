package engine

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/optlens/optlens/internal/models"
)

// BuildRows runs grouping and projects every resulting row into its flat
// display form, in row order. The partition invariant holds: summing
// LegCount across the output equals len(positions).
func BuildRows(positions []models.Position) []models.DisplayRow {
	grouped := Group(positions)
	rows := make([]models.DisplayRow, 0, len(grouped))
	for _, row := range grouped {
		if row.Strategy != nil {
			rows = append(rows, buildStrategyRow(row.Strategy))
		} else {
			rows = append(rows, buildSingleRow(row.Single))
		}
	}
	return rows
}

// buildStrategyRow aggregates a classified group into one display row.
// Per-leg fields that have no meaning at the aggregate (IV, per-leg Greeks,
// prices) are left cleared; the constituent legs stay reachable through
// OptionLegs.
func buildStrategyRow(g *models.StrategyGroup) models.DisplayRow {
	first := g.Legs[0]

	row := models.DisplayRow{
		Symbol:       first.BaseSymbol,
		BaseSymbol:   first.BaseSymbol,
		Description:  string(g.Name),
		SecurityType: models.SecurityOption,
		StrategyName: g.Name,
		LegCount:     len(g.Legs),
		DTE:          first.DTE,
		OptionLegs:   g.Legs,
	}

	for _, leg := range g.Legs {
		row.MarketValue += leg.MarketValue
		row.DaysGain += leg.DaysGain
		row.TotalGain += leg.TotalGain
		row.TotalCost += leg.TotalCost
	}

	row.Quantity = first.AbsQuantity()
	if directional(g.Name) && row.TotalCost < 0 {
		// Vertical and box quantity direction follows the aggregate
		// cost: a net credit means the position is effectively short.
		row.Quantity = -row.Quantity
	}

	row.DayGainPct = pct(row.DaysGain, math.Abs(row.MarketValue-row.DaysGain))
	row.TotalGainPct = pct(row.TotalGain, math.Abs(row.TotalCost))

	row.Delta = aggregateGreek(g.Legs, func(p *models.Position) *float64 { return p.Delta })
	row.Gamma = aggregateGreek(g.Legs, func(p *models.Position) *float64 { return p.Gamma })
	row.Theta = aggregateGreek(g.Legs, func(p *models.Position) *float64 { return p.Theta })
	row.Vega = aggregateGreek(g.Legs, func(p *models.Position) *float64 { return p.Vega })
	row.Rho = aggregateGreek(g.Legs, func(p *models.Position) *float64 { return p.Rho })

	strikes := make([]float64, 0, len(g.Legs))
	for _, leg := range g.Legs {
		strikes = append(strikes, leg.Strike())
	}
	sort.Float64s(strikes)
	row.HighStrike = strikes[len(strikes)-1]
	row.StrikeWidth = strikes[len(strikes)-1] - strikes[0]
	row.Spec = specString(g.Name, row.HighStrike, row.StrikeWidth)

	return row
}

// directional names re-derive quantity sign from aggregate cost.
func directional(name models.StrategyName) bool {
	switch name {
	case models.StrategyPutVertical, models.StrategyCallVertical, models.StrategyBoxSpread:
		return true
	}
	return false
}

func specString(name models.StrategyName, highStrike, width float64) string {
	switch name {
	case models.StrategyBoxSpread:
		return fmt.Sprintf("$%dk", int(math.Round(width*100/1000)))
	case models.StrategyPutVertical, models.StrategyCallVertical:
		return formatStrike(highStrike) + "/" + formatStrike(width)
	}
	return ""
}

func formatStrike(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// pct guards the zero denominator: percentages degrade to 0, never NaN.
func pct(num, denom float64) float64 {
	if denom == 0 {
		return 0
	}
	return num / denom * 100
}

// aggregateGreek sums a per-contract greek scaled to position level
// (value x signed quantity x contract multiplier). Legs without a reading
// are skipped; the result is nil only when no leg had one.
func aggregateGreek(legs []*models.Position, get func(*models.Position) *float64) *float64 {
	var sum float64
	any := false
	for _, leg := range legs {
		v := get(leg)
		if v == nil {
			continue
		}
		sum += *v * float64(leg.Quantity) * leg.Multiplier()
		any = true
	}
	if !any {
		return nil
	}
	return &sum
}

// buildSingleRow carries a lone position through unchanged.
func buildSingleRow(p *models.Position) models.DisplayRow {
	row := models.DisplayRow{
		Symbol:         p.Symbol,
		BaseSymbol:     p.BaseSymbol,
		Description:    p.Description,
		SecurityType:   p.SecurityType,
		CallPut:        p.CallPut,
		StrategyName:   SingleLegName(p),
		LegCount:       1,
		Quantity:       p.Quantity,
		StrikePrice:    p.StrikePrice,
		MarketValue:    p.MarketValue,
		DaysGain:       p.DaysGain,
		DayGainPct:     p.DayGainPct,
		TotalGain:      p.TotalGain,
		TotalGainPct:   p.TotalGainPct,
		TotalCost:      p.TotalCost,
		LastPrice:      p.LastPrice,
		PricePaid:      p.PricePaid,
		CostPerShare:   p.CostPerShare,
		PctOfPortfolio: p.PctOfPortfolio,
		DTE:            p.DTE,
		Delta:          p.Delta,
		Gamma:          p.Gamma,
		Theta:          p.Theta,
		Vega:           p.Vega,
		Rho:            p.Rho,
		IV:             p.IV,
	}
	if p.IsOption() {
		row.Spec = formatStrike(p.Strike())
		row.OptionLegs = []*models.Position{p}
	}
	return row
}
