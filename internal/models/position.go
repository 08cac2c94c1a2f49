// Package models defines the account data records the engine operates on:
// positions (equity and option legs), open orders, and the display rows
// produced by strategy grouping.
package models

import (
	"math"
	"time"
)

// SharesPerContract is the option contract multiplier.
const SharesPerContract = 100.0

// Security types as reported by the brokerage.
const (
	SecurityOption = "OPTN"
	SecurityEquity = "EQ"
)

// Option sides.
const (
	Call = "CALL"
	Put  = "PUT"
)

// Position represents a single position line from the brokerage portfolio:
// one equity holding or one option leg. Quantity is signed, positive for
// long and negative for short. Nullable numeric fields from the API are
// pointers; nil means the brokerage did not report a value.
type Position struct {
	Symbol       string  `json:"symbol"`
	BaseSymbol   string  `json:"baseSymbol"`
	Description  string  `json:"description"`
	SecurityType string  `json:"type"`
	CallPut      string  `json:"callPut,omitempty"`
	StrikePrice  *float64 `json:"strikePrice,omitempty"`

	Quantity       int     `json:"quantity"`
	PricePaid      float64 `json:"pricePaid"`
	MarketValue    float64 `json:"marketValue"`
	TotalCost      float64 `json:"totalCost"`
	DaysGain       float64 `json:"daysGain"`
	DayGainPct     float64 `json:"dayGainPct"`
	TotalGain      float64 `json:"totalGain"`
	TotalGainPct   float64 `json:"totalGainPct"`
	LastPrice      float64 `json:"lastPrice"`
	PctOfPortfolio float64 `json:"pctOfPortfolio"`
	CostPerShare   float64 `json:"costPerShare"`

	DTE   *int     `json:"dte,omitempty"`
	Delta *float64 `json:"delta,omitempty"`
	Gamma *float64 `json:"gamma,omitempty"`
	Theta *float64 `json:"theta,omitempty"`
	Vega  *float64 `json:"vega,omitempty"`
	Rho   *float64 `json:"rho,omitempty"`
	IV    *float64 `json:"iv,omitempty"`

	IntrinsicValue *float64 `json:"intrinsicValue,omitempty"`
	Premium        *float64 `json:"premium,omitempty"`
	OpenInterest   *float64 `json:"openInterest,omitempty"`

	DateAcquired *int64 `json:"dateAcquired,omitempty"` // epoch millis
	ExpiryYear   *int   `json:"expiryYear,omitempty"`
	ExpiryMonth  *int   `json:"expiryMonth,omitempty"`
	ExpiryDay    *int   `json:"expiryDay,omitempty"`
}

// IsOption reports whether the position is an option leg.
func (p *Position) IsOption() bool {
	return p.SecurityType == SecurityOption
}

// Multiplier returns the contract size scalar: 100 for options, 1 otherwise.
func (p *Position) Multiplier() float64 {
	if p.IsOption() {
		return SharesPerContract
	}
	return 1
}

// AbsQuantity returns the unsigned contract/share count.
func (p *Position) AbsQuantity() int {
	if p.Quantity < 0 {
		return -p.Quantity
	}
	return p.Quantity
}

// Strike returns the strike price, treating a missing strike as 0.
func (p *Position) Strike() float64 {
	if p.StrikePrice == nil {
		return 0
	}
	return *p.StrikePrice
}

// GroupKey identifies the bucket an option leg belongs to when searching for
// multi-leg strategies. Legs group together only when they share underlying,
// expiry distance, acquisition date, and unsigned quantity. A struct key
// compared field-by-field avoids the collision risk of delimiter-joined
// string keys.
type GroupKey struct {
	BaseSymbol   string
	DTE          int
	HasDTE       bool
	DateAcquired int64
	AbsQuantity  int
}

// Key returns the grouping key for an option leg. Missing DTE and
// DateAcquired are keyed as absent/zero so legs with unknown values still
// group deterministically.
func (p *Position) Key() GroupKey {
	k := GroupKey{
		BaseSymbol:  p.BaseSymbol,
		AbsQuantity: p.AbsQuantity(),
	}
	if p.DTE != nil {
		k.DTE = *p.DTE
		k.HasDTE = true
	}
	if p.DateAcquired != nil {
		k.DateAcquired = *p.DateAcquired
	}
	return k
}

// CalcDTE computes whole days from today until the expiry date given by its
// calendar parts. Returns nil when any part is missing or zero, or when the
// parts do not form a real date.
func CalcDTE(year, month, day *int, now time.Time) *int {
	if year == nil || month == nil || day == nil {
		return nil
	}
	if *year == 0 || *month == 0 || *day == 0 {
		return nil
	}
	expiry := time.Date(*year, time.Month(*month), *day, 0, 0, 0, 0, time.UTC)
	if expiry.Year() != *year || expiry.Month() != time.Month(*month) || expiry.Day() != *day {
		return nil // parts overflowed into a different date, e.g. Feb 30
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dte := int(math.Round(expiry.Sub(today).Hours() / 24))
	return &dte
}
