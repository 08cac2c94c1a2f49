package broker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sony/gobreaker"

	"github.com/optlens/optlens/internal/models"
)

// Broker defines the interface for interacting with a brokerage
type Broker interface {
	// Account operations
	ListAccounts(ctx context.Context) ([]Account, error)
	GetPositions(ctx context.Context, accountIDKey string) ([]models.Position, error)
	GetOpenOrders(ctx context.Context, accountIDKey string) ([]models.Order, error)
	GetBalance(ctx context.Context, accountIDKey string) (*Balance, error)

	// Order placement and cancellation
	PlaceExitOrder(ctx context.Context, accountIDKey string, req ExitOrderRequest) (*OrderConfirmation, error)
	PlaceSpreadExitOrder(ctx context.Context, accountIDKey string, req SpreadOrderRequest) (*OrderConfirmation, error)
	CancelOrder(ctx context.Context, accountIDKey string, orderID int64) error
}

// Ensure EtradeAPI implements Broker at compile time.
var _ Broker = (*EtradeAPI)(nil)

// IsPermanentAPIError checks if an error is a permanent API error that
// retrying cannot fix. 429 Too Many Requests stays retryable.
func IsPermanentAPIError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != 429
	}
	return false
}

// CircuitBreakerBroker wraps a Broker with circuit breaker functionality
type CircuitBreakerBroker struct {
	broker  Broker
	breaker *gobreaker.CircuitBreaker
}

// Ensure CircuitBreakerBroker implements Broker at compile time.
var _ Broker = (*CircuitBreakerBroker)(nil)

// exec is a generic helper for circuit breaker wrapper methods
func execCircuitBreaker[T any](
	breaker *gobreaker.CircuitBreaker,
	broker Broker,
	fn func(Broker) (T, error),
) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn(broker) })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// CircuitBreakerSettings configures circuit breaker behavior
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// NewCircuitBreakerBroker creates a new CircuitBreakerBroker with sensible defaults
func NewCircuitBreakerBroker(broker Broker) *CircuitBreakerBroker {
	return NewCircuitBreakerBrokerWithSettings(broker, CircuitBreakerSettings{
		MaxRequests:  3,                // Allow 3 requests when half-open
		Interval:     60 * time.Second, // Reset counts every minute
		Timeout:      30 * time.Second, // Open circuit for 30 seconds
		MinRequests:  5,                // Minimum requests before tripping
		FailureRatio: 0.6,              // Trip if 60% failure rate
	})
}

// NewCircuitBreakerBrokerWithSettings creates a CircuitBreakerBroker with custom settings
func NewCircuitBreakerBrokerWithSettings(broker Broker, settings CircuitBreakerSettings) *CircuitBreakerBroker {
	gbSettings := gobreaker.Settings{
		Name:        "BrokerCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s state changed from %s to %s", name, from, to)
		},
	}

	return &CircuitBreakerBroker{
		broker:  broker,
		breaker: gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// ListAccounts wraps the underlying broker call with circuit breaker
func (c *CircuitBreakerBroker) ListAccounts(ctx context.Context) ([]Account, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) ([]Account, error) {
		return b.ListAccounts(ctx)
	})
}

// GetPositions wraps the underlying broker call with circuit breaker
func (c *CircuitBreakerBroker) GetPositions(ctx context.Context, accountIDKey string) ([]models.Position, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) ([]models.Position, error) {
		return b.GetPositions(ctx, accountIDKey)
	})
}

// GetOpenOrders wraps the underlying broker call with circuit breaker
func (c *CircuitBreakerBroker) GetOpenOrders(ctx context.Context, accountIDKey string) ([]models.Order, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) ([]models.Order, error) {
		return b.GetOpenOrders(ctx, accountIDKey)
	})
}

// GetBalance wraps the underlying broker call with circuit breaker
func (c *CircuitBreakerBroker) GetBalance(ctx context.Context, accountIDKey string) (*Balance, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) (*Balance, error) {
		return b.GetBalance(ctx, accountIDKey)
	})
}

// PlaceExitOrder wraps the underlying broker call with circuit breaker
func (c *CircuitBreakerBroker) PlaceExitOrder(ctx context.Context, accountIDKey string, req ExitOrderRequest) (*OrderConfirmation, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) (*OrderConfirmation, error) {
		return b.PlaceExitOrder(ctx, accountIDKey, req)
	})
}

// PlaceSpreadExitOrder wraps the underlying broker call with circuit breaker
func (c *CircuitBreakerBroker) PlaceSpreadExitOrder(ctx context.Context, accountIDKey string, req SpreadOrderRequest) (*OrderConfirmation, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) (*OrderConfirmation, error) {
		return b.PlaceSpreadExitOrder(ctx, accountIDKey, req)
	})
}

// CancelOrder wraps the underlying broker call with circuit breaker
func (c *CircuitBreakerBroker) CancelOrder(ctx context.Context, accountIDKey string, orderID int64) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.broker.CancelOrder(ctx, accountIDKey, orderID)
	})
	return err
}
