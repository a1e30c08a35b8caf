package payment

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"
)

var (
	ErrCardDeclined      = errors.New("card declined")
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrStatusUnavailable = errors.New("status endpoint unavailable")
)

// MockGateway is an in-memory payment gateway used by the simulator and tests.
// Charges are remembered per transaction id so CheckStatus answers consistently.
type MockGateway struct {
	mu            sync.RWMutex
	charged       map[string]bool
	statusErr     error
	statusFailing int
	latency       time.Duration
	rng           func(n int) int
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		charged: make(map[string]bool),
		rng:     rand.IntN,
	}
}

// WithLatency delays every Charge, the way a slow gateway would.
func (g *MockGateway) WithLatency(d time.Duration) *MockGateway {
	g.latency = d
	return g
}

// SetPaid records a transaction outcome directly.
func (g *MockGateway) SetPaid(transactionID string, paid bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charged[transactionID] = paid
}

// FailStatus makes the next n CheckStatus calls return err. n < 0 fails forever.
func (g *MockGateway) FailStatus(n int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		err = ErrStatusUnavailable
	}
	g.statusFailing = n
	g.statusErr = err
}

// Charge simulates the customer paying on the hosted page: 70% succeed, 20% are
// declined and 10% take the money but report a timeout to the caller.
// Repeated charges for the same transaction return the first result.
func (g *MockGateway) Charge(ctx context.Context, transactionID string) (bool, error) {
	g.mu.RLock()
	if paid, ok := g.charged[transactionID]; ok {
		g.mu.RUnlock()
		return paid, nil
	}
	g.mu.RUnlock()

	if g.latency > 0 {
		select {
		case <-time.After(g.latency):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	chance := g.rng(100)
	switch {
	case chance < 70:
		g.SetPaid(transactionID, true)
		return true, nil
	case chance < 90:
		g.SetPaid(transactionID, false)
		return false, ErrCardDeclined
	default:
		// phantom charge: money moved, caller sees an error
		g.SetPaid(transactionID, true)
		return false, ErrConnectionTimeout
	}
}

func (g *MockGateway) CheckStatus(ctx context.Context, transactionID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusFailing != 0 {
		if g.statusFailing > 0 {
			g.statusFailing--
		}
		return false, g.statusErr
	}
	// unknown transactions were never paid
	return g.charged[transactionID], nil
}
