// Package mock provides a deterministic in-memory Broker for paper mode, so
// the dashboard and grouping pipeline can be exercised end to end without
// brokerage credentials.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/optlens/optlens/internal/broker"
	"github.com/optlens/optlens/internal/models"
)

const accountIDKey = "paper-1"

// Broker serves a fixed sample portfolio: option spreads across several
// underlyings, two equity holdings, and one open exit order that matches the
// SPY put vertical. Placed orders are appended to the open order list and
// cancellable, so the exit workflow round-trips.
type Broker struct {
	mu          sync.Mutex
	positions   []models.Position
	orders      []models.Order
	nextOrderID int64
}

// Ensure Broker implements the brokerage interface at compile time.
var _ broker.Broker = (*Broker)(nil)

// NewBroker builds the sample portfolio with expiries relative to now.
func NewBroker(now time.Time) *Broker {
	b := &Broker{nextOrderID: 9000}
	b.positions, b.orders = sampleData(now)
	return b
}

// ListAccounts returns the single paper account.
func (b *Broker) ListAccounts(_ context.Context) ([]broker.Account, error) {
	return []broker.Account{{
		AccountID:       "840246801",
		AccountIDKey:    accountIDKey,
		AccountName:     "Paper Trading",
		AccountDesc:     "INDIVIDUAL",
		AccountType:     "INDIVIDUAL",
		AccountMode:     "MARGIN",
		AccountStatus:   "ACTIVE",
		InstitutionType: "BROKERAGE",
	}}, nil
}

// GetPositions returns the sample portfolio.
func (b *Broker) GetPositions(_ context.Context, key string) ([]models.Position, error) {
	if key != accountIDKey {
		return nil, fmt.Errorf("unknown account: %s", key)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Position, len(b.positions))
	copy(out, b.positions)
	return out, nil
}

// GetOpenOrders returns the open orders, including any placed this session.
func (b *Broker) GetOpenOrders(_ context.Context, key string) ([]models.Order, error) {
	if key != accountIDKey {
		return nil, fmt.Errorf("unknown account: %s", key)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Order, len(b.orders))
	copy(out, b.orders)
	return out, nil
}

// GetBalance returns a fixed balance snapshot.
func (b *Broker) GetBalance(_ context.Context, key string) (*broker.Balance, error) {
	if key != accountIDKey {
		return nil, fmt.Errorf("unknown account: %s", key)
	}
	bal := &broker.Balance{
		AccountID:   "840246801",
		AccountType: "MARGIN",
	}
	bal.Computed.CashBuyingPower = 25000
	bal.Computed.MarginBuyingPower = 50000
	bal.Computed.CashBalance = 12500.55
	bal.Computed.RealTimeValues.TotalAccountValue = 87432.10
	bal.Computed.RealTimeValues.NetMv = 74931.55
	bal.Computed.RealTimeValues.NetMvLong = 81210.00
	bal.Computed.RealTimeValues.NetMvShort = -6278.45
	return bal, nil
}

// PlaceExitOrder records a single-leg exit order and returns its id.
func (b *Broker) PlaceExitOrder(_ context.Context, key string, req broker.ExitOrderRequest) (*broker.OrderConfirmation, error) {
	if key != accountIDKey {
		return nil, fmt.Errorf("unknown account: %s", key)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("invalid quantity for order: %d", req.Quantity)
	}

	leg := models.OrderLeg{
		Symbol:          req.Symbol,
		BaseSymbol:      req.Symbol,
		OrderedQuantity: req.Quantity,
		OrderAction:     req.OrderAction,
		CallPut:         req.CallPut,
	}
	if req.SecurityType == models.SecurityOption {
		expiry, err := time.Parse("2006-01-02", req.ExpiryDate)
		if err != nil {
			return nil, fmt.Errorf("invalid expiry date %q: %w", req.ExpiryDate, err)
		}
		strike := req.StrikePrice
		year, month, day := expiry.Year(), int(expiry.Month()), expiry.Day()
		leg.StrikePrice = &strike
		leg.ExpiryYear = &year
		leg.ExpiryMonth = &month
		leg.ExpiryDay = &day
	}

	return b.appendOrder(req.SecurityType, models.PriceTypeLimit, req.LimitPrice, []models.OrderLeg{leg})
}

// PlaceSpreadExitOrder records a multi-leg exit order and returns its id.
func (b *Broker) PlaceSpreadExitOrder(_ context.Context, key string, req broker.SpreadOrderRequest) (*broker.OrderConfirmation, error) {
	if key != accountIDKey {
		return nil, fmt.Errorf("unknown account: %s", key)
	}
	if len(req.Legs) == 0 {
		return nil, fmt.Errorf("spread order requires at least one leg")
	}

	legs := make([]models.OrderLeg, 0, len(req.Legs))
	for _, l := range req.Legs {
		expiry, err := time.Parse("2006-01-02", l.ExpiryDate)
		if err != nil {
			return nil, fmt.Errorf("invalid expiry date %q for leg %s: %w", l.ExpiryDate, l.Symbol, err)
		}
		strike := l.StrikePrice
		year, month, day := expiry.Year(), int(expiry.Month()), expiry.Day()
		legs = append(legs, models.OrderLeg{
			Symbol:          l.Symbol,
			BaseSymbol:      baseOf(l.Symbol),
			OrderedQuantity: l.Quantity,
			OrderAction:     l.OrderAction,
			CallPut:         l.CallPut,
			StrikePrice:     &strike,
			ExpiryYear:      &year,
			ExpiryMonth:     &month,
			ExpiryDay:       &day,
		})
	}

	return b.appendOrder("SPREADS", req.PriceType, req.LimitPrice, legs)
}

// CancelOrder removes an open order.
func (b *Broker) CancelOrder(_ context.Context, key string, orderID int64) error {
	if key != accountIDKey {
		return fmt.Errorf("unknown account: %s", key)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, order := range b.orders {
		if order.OrderID == orderID {
			b.orders = append(b.orders[:i], b.orders[i+1:]...)
			return nil
		}
	}
	return &broker.APIError{Status: 404, Body: fmt.Sprintf("order %d not found", orderID)}
}

func (b *Broker) appendOrder(orderType, priceType string, limitPrice float64, legs []models.OrderLeg) (*broker.OrderConfirmation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextOrderID++
	order := models.Order{
		OrderID:       b.nextOrderID,
		OrderType:     orderType,
		LimitPrice:    limitPrice,
		PriceType:     priceType,
		OrderTerm:     "GOOD_UNTIL_CANCEL",
		MarketSession: "REGULAR",
		Status:        "OPEN",
		BaseSymbol:    legs[0].BaseSymbol,
		Legs:          legs,
	}
	b.orders = append(b.orders, order)
	return &broker.OrderConfirmation{OrderID: order.OrderID, ClientOrderID: fmt.Sprintf("paper-%d", order.OrderID)}, nil
}

func baseOf(symbol string) string {
	for i := 0; i < len(symbol); i++ {
		c := symbol[i]
		if !((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')) {
			return symbol[:i]
		}
	}
	return symbol
}
