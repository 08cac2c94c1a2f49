// Package retry wraps a brokerage client with bounded exponential backoff
// for the read paths. Order placement and cancellation are never retried:
// a timed-out request may still have reached the exchange.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/optlens/optlens/internal/broker"
	"github.com/optlens/optlens/internal/models"
)

// Config controls the retry schedule.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration
}

// DefaultConfig retries three times over at most two minutes.
var DefaultConfig = Config{
	MaxRetries:     3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
	Timeout:        2 * time.Minute,
}

// Broker decorates another broker with retries on transient failures.
type Broker struct {
	inner  broker.Broker
	logger *logrus.Logger
	config Config
}

var _ broker.Broker = (*Broker)(nil)

// NewBroker wraps the given broker. A nil logger falls back to the logrus
// standard logger.
func NewBroker(inner broker.Broker, logger *logrus.Logger, config ...Config) *Broker {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Broker{
		inner:  inner,
		logger: logger,
		config: cfg,
	}
}

func execRetry[T any](ctx context.Context, b *Broker, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	opCtx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	var lastErr error
	backoff := b.config.InitialBackoff

	for attempt := 0; attempt <= b.config.MaxRetries; attempt++ {
		if err := opCtx.Err(); err != nil {
			return zero, fmt.Errorf("%s canceled: %w", op, err)
		}

		result, err := fn(opCtx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isTransientError(err) || attempt == b.config.MaxRetries {
			break
		}

		b.logger.WithError(err).Warnf("%s attempt %d/%d failed, retrying in %v",
			op, attempt+1, b.config.MaxRetries+1, backoff)
		select {
		case <-time.After(backoff):
			backoff = nextBackoff(backoff, b.config.MaxBackoff)
		case <-opCtx.Done():
			return zero, fmt.Errorf("%s canceled during backoff: %w", op, opCtx.Err())
		}
	}

	return zero, lastErr
}

// nextBackoff grows the delay by half and adds up to 25% jitter.
func nextBackoff(current, max time.Duration) time.Duration {
	backoff := time.Duration(float64(current) * 1.5)
	if backoff > max {
		backoff = max
	}

	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		if jitter, err := rand.Int(rand.Reader, big.NewInt(maxJitter)); err == nil {
			backoff += time.Duration(jitter.Int64())
		}
	}
	return backoff
}

// isTransientError reports whether another attempt could succeed. Context
// errors, an open circuit breaker, and permanent API failures are final.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if broker.IsPermanentAPIError(err) {
		return false
	}
	return true
}

func (b *Broker) ListAccounts(ctx context.Context) ([]broker.Account, error) {
	return execRetry(ctx, b, "list accounts", func(ctx context.Context) ([]broker.Account, error) {
		return b.inner.ListAccounts(ctx)
	})
}

func (b *Broker) GetPositions(ctx context.Context, accountIDKey string) ([]models.Position, error) {
	return execRetry(ctx, b, "get positions", func(ctx context.Context) ([]models.Position, error) {
		return b.inner.GetPositions(ctx, accountIDKey)
	})
}

func (b *Broker) GetOpenOrders(ctx context.Context, accountIDKey string) ([]models.Order, error) {
	return execRetry(ctx, b, "get open orders", func(ctx context.Context) ([]models.Order, error) {
		return b.inner.GetOpenOrders(ctx, accountIDKey)
	})
}

func (b *Broker) GetBalance(ctx context.Context, accountIDKey string) (*broker.Balance, error) {
	return execRetry(ctx, b, "get balance", func(ctx context.Context) (*broker.Balance, error) {
		return b.inner.GetBalance(ctx, accountIDKey)
	})
}

func (b *Broker) PlaceExitOrder(ctx context.Context, accountIDKey string, req broker.ExitOrderRequest) (*broker.OrderConfirmation, error) {
	return b.inner.PlaceExitOrder(ctx, accountIDKey, req)
}

func (b *Broker) PlaceSpreadExitOrder(ctx context.Context, accountIDKey string, req broker.SpreadOrderRequest) (*broker.OrderConfirmation, error) {
	return b.inner.PlaceSpreadExitOrder(ctx, accountIDKey, req)
}

func (b *Broker) CancelOrder(ctx context.Context, accountIDKey string, orderID int64) error {
	return b.inner.CancelOrder(ctx, accountIDKey, orderID)
}
