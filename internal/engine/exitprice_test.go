package engine

import (
	"math"
	"testing"
)

func TestExitLimitPrice(t *testing.T) {
	tests := []struct {
		name      string
		totalCost float64
		quantity  int
		profitPct float64
		expected  float64
	}{
		{
			name:      "debit position sells above cost",
			totalCost: 200,
			quantity:  1,
			profitPct: 30,
			expected:  2.60,
		},
		{
			name:      "credit position buys back below credit",
			totalCost: -450,
			quantity:  -1,
			profitPct: 50,
			expected:  2.25,
		},
		{
			name:      "rounds to nearest nickel",
			totalCost: 333,
			quantity:  1,
			profitPct: 30,
			// 432.9 / 100 = 4.329 -> 4.35
			expected: 4.35,
		},
		{
			name:      "multi-contract divides by quantity",
			totalCost: 600,
			quantity:  3,
			profitPct: 50,
			expected:  3.00,
		},
		{
			name:      "negative quantity uses magnitude",
			totalCost: -600,
			quantity:  -3,
			profitPct: 40,
			expected:  1.20,
		},
		{
			name:      "zero quantity yields zero",
			totalCost: 200,
			quantity:  0,
			profitPct: 30,
			expected:  0,
		},
		{
			name:      "zero cost yields zero",
			totalCost: 0,
			quantity:  1,
			profitPct: 30,
			expected:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExitLimitPrice(tt.totalCost, tt.quantity, tt.profitPct, 0.05)
			if math.Abs(got-tt.expected) > 1e-10 {
				t.Errorf("ExitLimitPrice(%v, %d, %v) = %v, expected %v",
					tt.totalCost, tt.quantity, tt.profitPct, got, tt.expected)
			}
		})
	}
}

func TestExitSuggestions(t *testing.T) {
	suggestions := DefaultConfig.ExitSuggestions(200, 1)

	if len(suggestions) != 4 {
		t.Fatalf("expected 4 suggestions, got %d", len(suggestions))
	}

	wantPcts := []float64{30, 40, 50, 60}
	wantPrices := []float64{2.60, 2.80, 3.00, 3.20}
	for i, s := range suggestions {
		if s.ProfitPct != wantPcts[i] {
			t.Errorf("suggestion %d pct = %v, expected %v", i, s.ProfitPct, wantPcts[i])
		}
		if math.Abs(s.LimitPrice-wantPrices[i]) > 1e-10 {
			t.Errorf("suggestion %d price = %v, expected %v", i, s.LimitPrice, wantPrices[i])
		}
	}
}

func TestExitSuggestionsCustomTargets(t *testing.T) {
	cfg := Config{ProfitTargets: []float64{25}, PriceTick: 0.05}
	suggestions := cfg.ExitSuggestions(-400, -2)

	if len(suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(suggestions))
	}
	// credit 400 at 25%: buy back at 300 total -> 1.50/contract
	if math.Abs(suggestions[0].LimitPrice-1.50) > 1e-10 {
		t.Errorf("price = %v, expected 1.50", suggestions[0].LimitPrice)
	}
}
