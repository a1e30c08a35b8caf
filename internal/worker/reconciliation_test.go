package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/infrastructure/payment"
)

type memoryPayments struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*domain.PaymentAttempt
	findErr  error
}

func newMemoryPayments(attempts ...*domain.PaymentAttempt) *memoryPayments {
	m := &memoryPayments{attempts: make(map[uuid.UUID]*domain.PaymentAttempt)}
	for _, a := range attempts {
		m.attempts[a.ID] = a
	}
	return m
}

func (m *memoryPayments) CreateAttempt(_ context.Context, a *domain.PaymentAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[a.ID] = a
	return nil
}

func (m *memoryPayments) FindUnconfirmedBefore(_ context.Context, before time.Time, limit int) ([]domain.PaymentAttempt, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PaymentAttempt
	for _, a := range m.attempts {
		if a.Status == domain.PaymentUnconfirmed && a.CreatedAt.Before(before) && len(out) < limit {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memoryPayments) UpdateStatus(_ context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.attempts[id]; ok && a.Status == domain.PaymentUnconfirmed {
		a.Status = status
	}
	return nil
}

func (m *memoryPayments) status(id uuid.UUID) domain.PaymentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[id].Status
}

func unconfirmed(txn string, age time.Duration) *domain.PaymentAttempt {
	created := time.Now().UTC().Add(-age)
	return &domain.PaymentAttempt{
		ID:            uuid.New(),
		Gateway:       domain.PaymentFastPay,
		TransactionID: txn,
		CorrelationID: "corr-" + txn,
		CustomerID:    "sess-1",
		Status:        domain.PaymentUnconfirmed,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func TestProcess_ResolvesAttempts(t *testing.T) {
	paid := unconfirmed("tx-paid", 10*time.Minute)
	unpaid := unconfirmed("tx-unpaid", 10*time.Minute)
	fresh := unconfirmed("tx-fresh", time.Minute)
	repo := newMemoryPayments(paid, unpaid, fresh)

	gateway := payment.NewMockGateway()
	gateway.SetPaid("tx-paid", true)
	gateway.SetPaid("tx-fresh", true)

	w := NewReconciliationWorker(repo, gateway, time.Minute, 5*time.Minute, 50, zaptest.NewLogger(t))
	n, err := w.Process(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, domain.PaymentPaidNoOrder, repo.status(paid.ID))
	assert.Equal(t, domain.PaymentUnpaid, repo.status(unpaid.ID))
	assert.Equal(t, domain.PaymentUnconfirmed, repo.status(fresh.ID), "inside the grace period")
}

func TestProcess_GatewayStillDown(t *testing.T) {
	a := unconfirmed("tx-1", 10*time.Minute)
	repo := newMemoryPayments(a)
	gateway := payment.NewMockGateway()
	gateway.FailStatus(1, nil)

	w := NewReconciliationWorker(repo, gateway, time.Minute, 5*time.Minute, 50, zaptest.NewLogger(t))

	n, err := w.Process(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, domain.PaymentUnconfirmed, repo.status(a.ID))

	// next sweep succeeds
	n, err = w.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.PaymentUnpaid, repo.status(a.ID))
}

func TestProcess_SkipsAttemptsWithoutTransaction(t *testing.T) {
	a := unconfirmed("", 10*time.Minute)
	repo := newMemoryPayments(a)

	w := NewReconciliationWorker(repo, payment.NewMockGateway(), time.Minute, 5*time.Minute, 50, zaptest.NewLogger(t))
	n, err := w.Process(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, domain.PaymentUnconfirmed, repo.status(a.ID))
}

func TestProcess_RepoError(t *testing.T) {
	repo := newMemoryPayments()
	repo.findErr = errors.New("db down")

	w := NewReconciliationWorker(repo, payment.NewMockGateway(), time.Minute, 5*time.Minute, 50, zaptest.NewLogger(t))
	_, err := w.Process(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestRun_StopsOnCancel(t *testing.T) {
	a := unconfirmed("tx-1", 10*time.Minute)
	repo := newMemoryPayments(a)
	gateway := payment.NewMockGateway()
	gateway.SetPaid("tx-1", true)

	w := NewReconciliationWorker(repo, gateway, 10*time.Millisecond, 5*time.Minute, 50, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return repo.status(a.ID) == domain.PaymentPaidNoOrder
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
