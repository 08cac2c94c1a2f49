package models

import "time"

// Order actions as reported by the brokerage.
const (
	ActionBuy        = "BUY"
	ActionSell       = "SELL"
	ActionBuyClose   = "BUY_CLOSE"
	ActionSellClose  = "SELL_CLOSE"
	ActionBuyToCover = "BUY_TO_COVER"
)

// Price types for multi-leg orders.
const (
	PriceTypeLimit     = "LIMIT"
	PriceTypeNetDebit  = "NET_DEBIT"
	PriceTypeNetCredit = "NET_CREDIT"
)

// OrderLeg is one instrument of an open order.
type OrderLeg struct {
	Symbol            string   `json:"symbol"`
	BaseSymbol        string   `json:"baseSymbol"`
	SymbolDescription string   `json:"symbolDescription"`
	OrderedQuantity   int      `json:"orderedQuantity"`
	FilledQuantity    int      `json:"filledQuantity"`
	OrderAction       string   `json:"orderAction"`
	StrikePrice       *float64 `json:"strikePrice,omitempty"`
	CallPut           string   `json:"callPut,omitempty"`
	ExpiryYear        *int     `json:"expiryYear,omitempty"`
	ExpiryMonth       *int     `json:"expiryMonth,omitempty"`
	ExpiryDay         *int     `json:"expiryDay,omitempty"`

	Bid                 *float64 `json:"bid,omitempty"`
	Ask                 *float64 `json:"ask,omitempty"`
	LastPrice           *float64 `json:"lastPrice,omitempty"`
	EstimatedCommission *float64 `json:"estimatedCommission,omitempty"`
}

// Strike returns the leg strike, treating a missing strike as 0.
func (l *OrderLeg) Strike() float64 {
	if l.StrikePrice == nil {
		return 0
	}
	return *l.StrikePrice
}

// DTE computes the leg's days to expiry relative to now from its expiry
// parts. Unlike positions, order legs never carry a stored DTE.
func (l *OrderLeg) DTE(now time.Time) *int {
	return CalcDTE(l.ExpiryYear, l.ExpiryMonth, l.ExpiryDay, now)
}

// ClosesLong reports whether the action would reduce a long position.
func (l *OrderLeg) ClosesLong() bool {
	return l.OrderAction == ActionSell || l.OrderAction == ActionSellClose
}

// ClosesShort reports whether the action would reduce a short position.
func (l *OrderLeg) ClosesShort() bool {
	switch l.OrderAction {
	case ActionBuy, ActionBuyClose, ActionBuyToCover:
		return true
	}
	return false
}

// Order is one open order with its leg sequence preserved in broker order.
type Order struct {
	OrderID       int64      `json:"orderId"`
	OrderType     string     `json:"orderType"`
	LimitPrice    float64    `json:"limitPrice"`
	StopPrice     *float64   `json:"stopPrice,omitempty"`
	PriceType     string     `json:"priceType"`
	OrderTerm     string     `json:"orderTerm"`
	MarketSession string     `json:"marketSession"`
	PlacedTime    *int64     `json:"placedTime,omitempty"`
	NetPrice      *float64   `json:"netPrice,omitempty"`
	NetBid        *float64   `json:"netBid,omitempty"`
	NetAsk        *float64   `json:"netAsk,omitempty"`
	Status        string     `json:"status"`
	AllOrNone     bool       `json:"allOrNone"`
	BaseSymbol    string     `json:"baseSymbol"`
	Legs          []OrderLeg `json:"legs"`
}

// OrderRow is one flattened leg of an unmatched open order, carrying the
// order-level pricing fields alongside the leg so the grid can render it
// without a join.
type OrderRow struct {
	OrderID       int64    `json:"orderId"`
	LimitPrice    float64  `json:"limitPrice"`
	PriceType     string   `json:"priceType"`
	OrderTerm     string   `json:"orderTerm"`
	Status        string   `json:"status"`
	BaseSymbol    string   `json:"baseSymbol"`
	NetPrice      *float64 `json:"netPrice,omitempty"`
	NetBid        *float64 `json:"netBid,omitempty"`
	NetAsk        *float64 `json:"netAsk,omitempty"`

	Symbol            string   `json:"symbol"`
	SymbolDescription string   `json:"symbolDescription"`
	OrderAction       string   `json:"orderAction"`
	OrderedQuantity   int      `json:"orderedQuantity"`
	FilledQuantity    int      `json:"filledQuantity"`
	StrikePrice       *float64 `json:"strikePrice,omitempty"`
	CallPut           string   `json:"callPut,omitempty"`
	Bid               *float64 `json:"bid,omitempty"`
	Ask               *float64 `json:"ask,omitempty"`
}
