package mock

import (
	"fmt"
	"time"

	"github.com/optlens/optlens/internal/models"
)

// legSpec is the shorthand sampleData builds option positions from.
type legSpec struct {
	base      string
	callPut   string
	strike    float64
	quantity  int
	dte       int
	totalCost float64
	gain      float64
	delta     float64
	theta     float64
	iv        float64
}

func sampleData(now time.Time) ([]models.Position, []models.Order) {
	acquired := now.AddDate(0, 0, -14).UnixMilli()

	var positions []models.Position

	// SPY put vertical, short the 440 against the 430. The open order below
	// is its exit.
	positions = append(positions,
		optionPosition(now, legSpec{"SPY", models.Put, 440, -1, 45, -620, 180, 0.32, 0.045, 18.4}, acquired),
		optionPosition(now, legSpec{"SPY", models.Put, 430, 1, 45, 420, -110, -0.24, -0.038, 19.1}, acquired),
	)

	// SPY box spread at 190/210.
	boxAcquired := now.AddDate(0, 0, -30).UnixMilli()
	positions = append(positions,
		optionPosition(now, legSpec{"SPY", models.Call, 190, 1, 30, 2105, 12, 0.99, -0.002, 31.0}, boxAcquired),
		optionPosition(now, legSpec{"SPY", models.Call, 210, -1, 30, -655, -8, -0.97, 0.003, 29.5}, boxAcquired),
		optionPosition(now, legSpec{"SPY", models.Put, 190, -1, 30, -930, 5, 0.01, 0.001, 30.2}, boxAcquired),
		optionPosition(now, legSpec{"SPY", models.Put, 210, 1, 30, 970, -3, -0.03, -0.001, 29.8}, boxAcquired),
	)

	// QQQ iron condor.
	positions = append(positions,
		optionPosition(now, legSpec{"QQQ", models.Put, 390, 2, 30, 310, -60, -0.10, -0.020, 22.3}, acquired),
		optionPosition(now, legSpec{"QQQ", models.Put, 400, -2, 30, -540, 130, 0.15, 0.031, 21.8}, acquired),
		optionPosition(now, legSpec{"QQQ", models.Call, 470, -2, 30, -480, 95, -0.14, 0.028, 19.6}, acquired),
		optionPosition(now, legSpec{"QQQ", models.Call, 480, 2, 30, 260, -50, 0.09, -0.018, 20.1}, acquired),
	)

	// NVDA short strangle.
	positions = append(positions,
		optionPosition(now, legSpec{"NVDA", models.Call, 140, -1, 21, -385, 70, -0.22, 0.052, 44.7}, acquired),
		optionPosition(now, legSpec{"NVDA", models.Put, 110, -1, 21, -410, 95, 0.19, 0.048, 46.2}, acquired),
	)

	// Equity holdings.
	positions = append(positions,
		equityPosition("AAPL", "APPLE INC", 100, 182.50, 231.40),
		equityPosition("VTI", "VANGUARD TOTAL STOCK MARKET ETF", 50, 241.10, 302.75),
	)

	// Open exit order for the SPY put vertical: buy back the short 440,
	// sell the long 430, for a net debit.
	expiry45 := now.AddDate(0, 0, 45)
	orders := []models.Order{{
		OrderID:       8001,
		OrderType:     "SPREADS",
		LimitPrice:    1.00,
		PriceType:     models.PriceTypeNetDebit,
		OrderTerm:     "GOOD_UNTIL_CANCEL",
		MarketSession: "REGULAR",
		Status:        "OPEN",
		BaseSymbol:    "SPY",
		Legs: []models.OrderLeg{
			orderLeg("SPY", models.Put, 440, 1, models.ActionBuyClose, expiry45),
			orderLeg("SPY", models.Put, 430, 1, models.ActionSellClose, expiry45),
		},
	}}

	return positions, orders
}

func optionPosition(now time.Time, spec legSpec, acquired int64) models.Position {
	expiry := now.AddDate(0, 0, spec.dte)
	year, month, day := expiry.Year(), int(expiry.Month()), expiry.Day()
	strike := spec.strike
	dte := spec.dte
	delta := spec.delta
	theta := spec.theta
	iv := spec.iv

	marketValue := spec.totalCost + spec.gain
	absQty := spec.quantity
	if absQty < 0 {
		absQty = -absQty
	}
	pricePaid := spec.totalCost / (float64(spec.quantity) * models.SharesPerContract)

	return models.Position{
		Symbol:       optionSymbol(spec.base, spec.callPut, spec.strike, expiry),
		BaseSymbol:   spec.base,
		Description:  optionSymbol(spec.base, spec.callPut, spec.strike, expiry),
		SecurityType: models.SecurityOption,
		CallPut:      spec.callPut,
		StrikePrice:  &strike,

		Quantity:     spec.quantity,
		PricePaid:    pricePaid,
		MarketValue:  marketValue,
		TotalCost:    spec.totalCost,
		DaysGain:     spec.gain / 4,
		DayGainPct:   1.2,
		TotalGain:    spec.gain,
		TotalGainPct: pctOf(spec.gain, spec.totalCost),
		LastPrice:    marketValue / (float64(spec.quantity) * models.SharesPerContract),
		CostPerShare: pricePaid,

		DTE:   &dte,
		Delta: &delta,
		Theta: &theta,
		IV:    &iv,

		DateAcquired: &acquired,
		ExpiryYear:   &year,
		ExpiryMonth:  &month,
		ExpiryDay:    &day,
	}
}

func equityPosition(symbol, description string, quantity int, costPerShare, lastPrice float64) models.Position {
	totalCost := float64(quantity) * costPerShare
	marketValue := float64(quantity) * lastPrice
	return models.Position{
		Symbol:       symbol,
		BaseSymbol:   symbol,
		Description:  description,
		SecurityType: models.SecurityEquity,
		Quantity:     quantity,
		PricePaid:    costPerShare,
		MarketValue:  marketValue,
		TotalCost:    totalCost,
		DaysGain:     marketValue * 0.004,
		DayGainPct:   0.4,
		TotalGain:    marketValue - totalCost,
		TotalGainPct: pctOf(marketValue-totalCost, totalCost),
		LastPrice:    lastPrice,
		CostPerShare: costPerShare,
	}
}

func orderLeg(base, callPut string, strike float64, quantity int, action string, expiry time.Time) models.OrderLeg {
	year, month, day := expiry.Year(), int(expiry.Month()), expiry.Day()
	s := strike
	return models.OrderLeg{
		Symbol:          optionSymbol(base, callPut, strike, expiry),
		BaseSymbol:      base,
		OrderedQuantity: quantity,
		OrderAction:     action,
		StrikePrice:     &s,
		CallPut:         callPut,
		ExpiryYear:      &year,
		ExpiryMonth:     &month,
		ExpiryDay:       &day,
	}
}

func optionSymbol(base, callPut string, strike float64, expiry time.Time) string {
	side := "Call"
	if callPut == models.Put {
		side = "Put"
	}
	return fmt.Sprintf("%s %s $%g %s", base, expiry.Format("Jan 2 '06"), strike, side)
}

func pctOf(gain, cost float64) float64 {
	if cost == 0 {
		return 0
	}
	if cost < 0 {
		cost = -cost
	}
	return gain / cost * 100
}
