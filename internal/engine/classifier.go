// Package engine groups raw brokerage positions into multi-leg option
// strategies, aggregates each group into a display row, and reconciles open
// orders against those rows. Everything here is a pure, synchronous
// transform over in-memory snapshots: no I/O, no shared state, and inputs
// are never mutated.
package engine

import (
	"sort"
	"strings"

	"github.com/optlens/optlens/internal/models"
)

// Classify examines a candidate leg set and returns the strategy it forms,
// if any. Only 2-leg and 4-leg shapes are ever recognized.
func Classify(legs []*models.Position) (models.StrategyName, bool) {
	switch len(legs) {
	case 2:
		return classifyPair(legs[0], legs[1])
	case 4:
		return classifyQuad(legs)
	}
	return "", false
}

func classifyPair(a, b *models.Position) (models.StrategyName, bool) {
	oppositeSigns := (a.Quantity > 0 && b.Quantity < 0) || (a.Quantity < 0 && b.Quantity > 0)
	sameSigns := (a.Quantity > 0 && b.Quantity > 0) || (a.Quantity < 0 && b.Quantity < 0)

	switch {
	case a.CallPut == models.Put && b.CallPut == models.Put && oppositeSigns:
		return models.StrategyPutVertical, true
	case a.CallPut == models.Call && b.CallPut == models.Call && oppositeSigns:
		return models.StrategyCallVertical, true
	case a.CallPut != b.CallPut && a.CallPut != "" && b.CallPut != "" && sameSigns:
		if a.Strike() == b.Strike() {
			return models.StrategyStraddle, true
		}
		return models.StrategyStrangle, true
	}
	return "", false
}

func classifyQuad(legs []*models.Position) (models.StrategyName, bool) {
	var calls, puts []float64
	for _, leg := range legs {
		switch leg.CallPut {
		case models.Call:
			calls = append(calls, leg.Strike())
		case models.Put:
			puts = append(puts, leg.Strike())
		}
	}
	if len(calls) != 2 || len(puts) != 2 {
		return "", false
	}

	// Numeric ascending sort. A lexicographic sort here would misorder
	// multi-digit strikes.
	sort.Float64s(calls)
	sort.Float64s(puts)

	if calls[0] == puts[0] && calls[1] == puts[1] {
		return models.StrategyBoxSpread, true
	}
	// A shared interior strike (the call wing starts where the put wing
	// ends, or vice versa) makes it a butterfly rather than a condor.
	if calls[0] == puts[1] || puts[0] == calls[1] {
		return models.StrategyIronButterfly, true
	}
	return models.StrategyIronCondor, true
}

// SingleLegName returns the row name for a position that stands alone.
func SingleLegName(p *models.Position) models.StrategyName {
	switch {
	case p.SecurityType == models.SecurityOption && p.CallPut == models.Put:
		return models.StrategyPut
	case p.SecurityType == models.SecurityOption && p.CallPut == models.Call:
		return models.StrategyCall
	case p.SecurityType == models.SecurityEquity:
		return models.StrategyEquity
	}
	return models.StrategyName(titlecase(p.SecurityType))
}

func titlecase(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
