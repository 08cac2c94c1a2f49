package models

// StrategyName identifies a recognized leg combination.
type StrategyName string

// Multi-leg strategy names.
const (
	StrategyPutVertical   StrategyName = "Put Vertical"
	StrategyCallVertical  StrategyName = "Call Vertical"
	StrategyStraddle      StrategyName = "Straddle"
	StrategyStrangle      StrategyName = "Strangle"
	StrategyIronCondor    StrategyName = "Iron Condor"
	StrategyIronButterfly StrategyName = "Iron Butterfly"
	StrategyBoxSpread     StrategyName = "Box Spread"
)

// Single-leg row names.
const (
	StrategyPut    StrategyName = "Put"
	StrategyCall   StrategyName = "Call"
	StrategyEquity StrategyName = "Equity"
)

// Row is the tagged result of grouping: either one position that stands
// alone, or a recognized strategy over 2 or 4 legs. Exactly one of the two
// fields is set. Leg slices reference the grouped positions, they do not
// copy them.
type Row struct {
	Single   *Position
	Strategy *StrategyGroup
}

// StrategyGroup is a classified multi-leg strategy.
type StrategyGroup struct {
	Name StrategyName
	Legs []*Position
}

// LegCount returns the number of positions the row accounts for.
func (r Row) LegCount() int {
	if r.Strategy != nil {
		return len(r.Strategy.Legs)
	}
	return 1
}

// DisplayRow is the flat projection of a Row consumed by the grid: either a
// single-leg position carried through unchanged, or a synthesized strategy
// aggregate. OptionLegs references the constituent option legs for order
// reconciliation and is empty for equity rows.
type DisplayRow struct {
	Symbol       string       `json:"symbol"`
	BaseSymbol   string       `json:"baseSymbol"`
	Description  string       `json:"description"`
	SecurityType string       `json:"type"`
	CallPut      string       `json:"callPut,omitempty"`
	StrategyName StrategyName `json:"strategyName"`
	Spec         string       `json:"spec"`
	LegCount     int          `json:"legCount"`

	Quantity    int      `json:"quantity"`
	StrikePrice *float64 `json:"strikePrice,omitempty"`
	HighStrike  float64  `json:"highStrike,omitempty"`
	StrikeWidth float64  `json:"strikeWidth,omitempty"`

	MarketValue    float64 `json:"marketValue"`
	DaysGain       float64 `json:"daysGain"`
	DayGainPct     float64 `json:"dayGainPct"`
	TotalGain      float64 `json:"totalGain"`
	TotalGainPct   float64 `json:"totalGainPct"`
	TotalCost      float64 `json:"totalCost"`
	LastPrice      float64 `json:"lastPrice,omitempty"`
	PricePaid      float64 `json:"pricePaid,omitempty"`
	CostPerShare   float64 `json:"costPerShare,omitempty"`
	PctOfPortfolio float64 `json:"pctOfPortfolio,omitempty"`

	DTE   *int     `json:"dte,omitempty"`
	Delta *float64 `json:"delta,omitempty"`
	Gamma *float64 `json:"gamma,omitempty"`
	Theta *float64 `json:"theta,omitempty"`
	Vega  *float64 `json:"vega,omitempty"`
	Rho   *float64 `json:"rho,omitempty"`
	IV    *float64 `json:"iv,omitempty"`

	// Set by order reconciliation when an open order already exits this row.
	ExitLabel   string `json:"exitLabel,omitempty"`
	ExitOrderID int64  `json:"exitOrderId,omitempty"`

	OptionLegs []*Position `json:"-"`
}

// HasOptionLegs reports whether the row can be the target of an option exit
// order.
func (d *DisplayRow) HasOptionLegs() bool {
	return len(d.OptionLegs) > 0
}

// AbsQuantity returns the unsigned row quantity.
func (d *DisplayRow) AbsQuantity() int {
	if d.Quantity < 0 {
		return -d.Quantity
	}
	return d.Quantity
}

// Multiplier returns the contract size scalar for exit value math.
func (d *DisplayRow) Multiplier() float64 {
	if d.SecurityType == SecurityOption {
		return SharesPerContract
	}
	return 1
}
