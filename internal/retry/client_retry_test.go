package retry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/optlens/optlens/internal/broker"
	"github.com/optlens/optlens/internal/models"
)

// countingBroker fails every call with err until failures runs out.
type countingBroker struct {
	err      error
	failures int
	calls    int
}

func (c *countingBroker) result() error {
	c.calls++
	if c.failures != 0 {
		c.failures--
		return c.err
	}
	return nil
}

func (c *countingBroker) ListAccounts(context.Context) ([]broker.Account, error) {
	if err := c.result(); err != nil {
		return nil, err
	}
	return []broker.Account{{AccountID: "1"}}, nil
}

func (c *countingBroker) GetPositions(context.Context, string) ([]models.Position, error) {
	return nil, c.result()
}

func (c *countingBroker) GetOpenOrders(context.Context, string) ([]models.Order, error) {
	return nil, c.result()
}

func (c *countingBroker) GetBalance(context.Context, string) (*broker.Balance, error) {
	return nil, c.result()
}

func (c *countingBroker) PlaceExitOrder(context.Context, string, broker.ExitOrderRequest) (*broker.OrderConfirmation, error) {
	return nil, c.result()
}

func (c *countingBroker) PlaceSpreadExitOrder(context.Context, string, broker.SpreadOrderRequest) (*broker.OrderConfirmation, error) {
	return nil, c.result()
}

func (c *countingBroker) CancelOrder(context.Context, string, int64) error {
	return c.result()
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func fastConfig() Config {
	return Config{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Timeout:        time.Second,
	}
}

func TestRetriesTransientFailures(t *testing.T) {
	stub := &countingBroker{
		err:      &broker.APIError{Status: http.StatusServiceUnavailable, Body: "maintenance"},
		failures: 2,
	}
	b := NewBroker(stub, quietLogger(), fastConfig())

	accounts, err := b.ListAccounts(context.Background())
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("accounts = %v, want one", accounts)
	}
	if stub.calls != 3 {
		t.Errorf("calls = %d, want 3", stub.calls)
	}
}

func TestPermanentFailureNotRetried(t *testing.T) {
	stub := &countingBroker{
		err:      &broker.APIError{Status: http.StatusNotFound, Body: "no such account"},
		failures: -1,
	}
	b := NewBroker(stub, quietLogger(), fastConfig())

	_, err := b.GetPositions(context.Background(), "acct")
	var apiErr *broker.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("err = %v, want 404 APIError", err)
	}
	if stub.calls != 1 {
		t.Errorf("calls = %d, want 1", stub.calls)
	}
}

func TestRetriesExhausted(t *testing.T) {
	stub := &countingBroker{
		err:      &broker.APIError{Status: http.StatusBadGateway, Body: "upstream"},
		failures: -1,
	}
	b := NewBroker(stub, quietLogger(), fastConfig())

	_, err := b.GetBalance(context.Background(), "acct")
	var apiErr *broker.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("err = %v, want 502 APIError", err)
	}
	if stub.calls != 3 {
		t.Errorf("calls = %d, want 3", stub.calls)
	}
}

func TestOrderPathsNotRetried(t *testing.T) {
	stub := &countingBroker{
		err:      &broker.APIError{Status: http.StatusServiceUnavailable, Body: "maintenance"},
		failures: -1,
	}
	b := NewBroker(stub, quietLogger(), fastConfig())

	if _, err := b.PlaceExitOrder(context.Background(), "acct", broker.ExitOrderRequest{}); err == nil {
		t.Fatal("PlaceExitOrder: expected error")
	}
	if err := b.CancelOrder(context.Background(), "acct", 1); err == nil {
		t.Fatal("CancelOrder: expected error")
	}
	if stub.calls != 2 {
		t.Errorf("calls = %d, want 2 (one per operation)", stub.calls)
	}
}

func TestCanceledContext(t *testing.T) {
	stub := &countingBroker{failures: -1, err: errors.New("unreachable")}
	b := NewBroker(stub, quietLogger(), fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.GetOpenOrders(ctx, "acct")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if stub.calls != 0 {
		t.Errorf("calls = %d, want 0", stub.calls)
	}
}

func TestNextBackoffCapped(t *testing.T) {
	max := 10 * time.Millisecond
	got := nextBackoff(time.Minute, max)
	// cap plus at most 25% jitter
	if got < max || got > max+max/4 {
		t.Errorf("nextBackoff = %v, want within [%v, %v]", got, max, max+max/4)
	}
}
