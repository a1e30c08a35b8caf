package reconcile

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/store"
)

const session = "sess-1"

type mockCommitter struct {
	mock.Mock
}

func (m *mockCommitter) CreateOrder(ctx context.Context, customerID string, draft *domain.OrderDraft) (*domain.CommitResult, error) {
	args := m.Called(ctx, customerID, draft)
	res, _ := args.Get(0).(*domain.CommitResult)
	return res, args.Error(1)
}

type stubGateway struct {
	paid  bool
	err   error
	calls atomic.Int32
}

func (g *stubGateway) CheckStatus(_ context.Context, _ string) (bool, error) {
	g.calls.Add(1)
	return g.paid, g.err
}

// countingStore wraps a store and counts every call that reaches it.
type countingStore struct {
	store.PendingOrderStore
	calls atomic.Int32
	err   error
}

func (s *countingStore) Stage(ctx context.Context, id string, d *domain.OrderDraft) error {
	s.calls.Add(1)
	return s.PendingOrderStore.Stage(ctx, id, d)
}

func (s *countingStore) Read(ctx context.Context, id string) (*domain.OrderDraft, error) {
	s.calls.Add(1)
	return s.PendingOrderStore.Read(ctx, id)
}

func (s *countingStore) Clear(ctx context.Context, id string) error {
	s.calls.Add(1)
	return s.PendingOrderStore.Clear(ctx, id)
}

func (s *countingStore) Take(ctx context.Context, id string) (*domain.OrderDraft, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.PendingOrderStore.Take(ctx, id)
}

type fakeRecorder struct {
	mu       sync.Mutex
	attempts []*domain.PaymentAttempt
}

func (r *fakeRecorder) CreateAttempt(_ context.Context, a *domain.PaymentAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	outcomes []domain.Outcome
	err      error
}

func (p *fakePublisher) PublishOutcome(_ context.Context, _, _ string, o domain.Outcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes = append(p.outcomes, o)
	return p.err
}

type fixture struct {
	store     *countingStore
	gateway   *stubGateway
	committer *mockCommitter
	recorder  *fakeRecorder
	publisher *fakePublisher
	rec       *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     &countingStore{PendingOrderStore: store.NewMemoryStore()},
		gateway:   &stubGateway{},
		committer: &mockCommitter{},
		recorder:  &fakeRecorder{},
		publisher: &fakePublisher{},
	}
	f.rec = NewReconciler(f.store, f.gateway, f.committer, zaptest.NewLogger(t)).
		WithRecorder(f.recorder).
		WithPublisher(f.publisher)
	return f
}

func (f *fixture) stage(t *testing.T, method domain.PaymentMethod, orderID string) *domain.OrderDraft {
	t.Helper()
	d := &domain.OrderDraft{
		Items:         []domain.LineItem{{ProductID: "prod-1", Quantity: 2, Price: 15000}},
		ShippingInfo:  domain.ShippingInfo{Name: "An", Phone: "0900000000", Address: "1 Main St"},
		PaymentMethod: method,
		OrderID:       orderID,
	}
	require.NoError(t, f.store.PendingOrderStore.Stage(context.Background(), session, d))
	return d
}

func (f *fixture) remaining(t *testing.T) *domain.OrderDraft {
	t.Helper()
	d, err := f.store.PendingOrderStore.Read(context.Background(), session)
	require.NoError(t, err)
	return d
}

func query(t *testing.T, raw string) url.Values {
	t.Helper()
	q, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return q
}

func TestReconcile_ConventionASuccess(t *testing.T) {
	f := newFixture(t)
	f.stage(t, domain.PaymentPaylink, "123")
	f.committer.On("CreateOrder", mock.Anything, session, mock.MatchedBy(func(d *domain.OrderDraft) bool {
		return d.OrderID == "123"
	})).Return(&domain.CommitResult{Success: true, OrderID: "o1"}, nil).Once()

	out, err := f.rec.Reconcile(context.Background(), session, query(t, "success=true&orderId=123"))

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCommitted, out.Kind)
	assert.Equal(t, "o1", out.OrderID)
	assert.Equal(t, domain.ViewOrderHistory, out.Redirect)
	assert.Nil(t, f.remaining(t))
	assert.Zero(t, f.gateway.calls.Load())
	f.committer.AssertExpectations(t)
	assert.Len(t, f.publisher.outcomes, 1)
	assert.Empty(t, f.recorder.attempts)
}

func TestReconcile_AtMostOnceAcrossReloads(t *testing.T) {
	f := newFixture(t)
	f.stage(t, domain.PaymentPaylink, "123")
	f.committer.On("CreateOrder", mock.Anything, session, mock.Anything).
		Return(&domain.CommitResult{Success: true, OrderID: "o1"}, nil).Once()

	q := query(t, "success=true&orderId=123")
	first, err := f.rec.Reconcile(context.Background(), session, q)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCommitted, first.Kind)

	for i := 0; i < 3; i++ {
		again, err := f.rec.Reconcile(context.Background(), session, q)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeGatewayDeclined, again.Kind)
	}

	f.committer.AssertNumberOfCalls(t, "CreateOrder", 1)
}

func TestReconcile_ConcurrentLoadsCommitOnce(t *testing.T) {
	f := newFixture(t)
	f.stage(t, domain.PaymentFastPay, "corr-1")
	f.gateway.paid = true
	f.committer.On("CreateOrder", mock.Anything, session, mock.Anything).
		Return(&domain.CommitResult{Success: true, OrderID: "o1"}, nil)

	q := query(t, "apptransid=tx-1")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.rec.Reconcile(context.Background(), session, q)
		}()
	}
	wg.Wait()

	f.committer.AssertNumberOfCalls(t, "CreateOrder", 1)
	assert.Equal(t, int32(1), f.gateway.calls.Load())
}

func TestReconcile_NoOpTouchesNothing(t *testing.T) {
	f := newFixture(t)
	staged := f.stage(t, domain.PaymentPaylink, "123")

	for _, raw := range []string{"", "utm_source=mail", "orderId=123", "apptransid="} {
		out, err := f.rec.Reconcile(context.Background(), session, query(t, raw))
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeNoOp, out.Kind, "query %q", raw)
	}

	assert.Zero(t, f.store.calls.Load())
	assert.Zero(t, f.gateway.calls.Load())
	f.committer.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.publisher.outcomes)
	assert.Equal(t, staged, f.remaining(t))
}

func TestReconcile_ConventionAMismatch(t *testing.T) {
	f := newFixture(t)
	f.stage(t, domain.PaymentPaylink, "123")

	out, err := f.rec.Reconcile(context.Background(), session, query(t, "success=true&orderId=999"))

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeGatewayDeclined, out.Kind)
	assert.Nil(t, f.remaining(t))
	f.committer.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_ConventionADeclined(t *testing.T) {
	f := newFixture(t)
	f.stage(t, domain.PaymentPaylink, "123")

	out, err := f.rec.Reconcile(context.Background(), session, query(t, "success=false&orderId=123"))

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeGatewayDeclined, out.Kind)
	assert.Equal(t, domain.NoticeError, out.Notice.Level)
	assert.Nil(t, f.remaining(t))
}

func TestReconcile_ConventionBPaid(t *testing.T) {
	f := newFixture(t)
	f.stage(t, domain.PaymentFastPay, "corr-1")
	f.gateway.paid = true
	f.committer.On("CreateOrder", mock.Anything, session, mock.Anything).
		Return(&domain.CommitResult{Success: true, OrderID: "o7"}, nil).Once()

	out, err := f.rec.Reconcile(context.Background(), session, query(t, "apptransid=tx-1"))

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCommitted, out.Kind)
	assert.Equal(t, "o7", out.OrderID)
	assert.Equal(t, int32(1), f.gateway.calls.Load())
	assert.Nil(t, f.remaining(t))
}

func TestReconcile_ConventionBUnpaid(t *testing.T) {
	f := newFixture(t)
	f.stage(t, domain.PaymentFastPay, "corr-1")

	out, err := f.rec.Reconcile(context.Background(), session, query(t, "transId=tx-1"))

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeGatewayDeclined, out.Kind)
	assert.Nil(t, f.remaining(t))
	f.committer.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.recorder.attempts)
}

func TestReconcile_ConventionBStatusQueryFails(t *testing.T) {
	f := newFixture(t)
	f.stage(t, domain.PaymentFastPay, "corr-1")
	f.gateway.err = errors.New("connection reset")

	out, err := f.rec.Reconcile(context.Background(), session, query(t, "apptransid=tx-1"))

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeStatusUnknown, out.Kind)
	assert.Equal(t, domain.NoticeWarning, out.Notice.Level)
	assert.Nil(t, f.remaining(t))
	assert.Equal(t, int32(1), f.gateway.calls.Load())
	f.committer.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)

	require.Len(t, f.recorder.attempts, 1)
	attempt := f.recorder.attempts[0]
	assert.Equal(t, domain.PaymentUnconfirmed, attempt.Status)
	assert.Equal(t, "tx-1", attempt.TransactionID)
	assert.Equal(t, "corr-1", attempt.CorrelationID)
	assert.Equal(t, domain.PaymentFastPay, attempt.Gateway)
}

func TestReconcile_ConventionBWithoutDraftIsCancellation(t *testing.T) {
	f := newFixture(t)

	out, err := f.rec.Reconcile(context.Background(), session, query(t, "apptransid=tx-1"))

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeGatewayDeclined, out.Kind)
	assert.Equal(t, domain.ViewCheckout, out.Redirect)
	assert.Zero(t, f.gateway.calls.Load())
}

func TestReconcile_CommitFailure(t *testing.T) {
	t.Run("service rejects", func(t *testing.T) {
		f := newFixture(t)
		f.stage(t, domain.PaymentPaylink, "123")
		f.committer.On("CreateOrder", mock.Anything, session, mock.Anything).
			Return(&domain.CommitResult{Success: false, Message: "out of stock"}, nil).Once()

		out, err := f.rec.Reconcile(context.Background(), session, query(t, "success=true&orderId=123"))

		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeCommitFailed, out.Kind)
		assert.Equal(t, "out of stock", out.Notice.Message)
		assert.Nil(t, f.remaining(t))
		require.Len(t, f.recorder.attempts, 1)
		assert.Equal(t, domain.PaymentPaidNoOrder, f.recorder.attempts[0].Status)
	})

	t.Run("transport error", func(t *testing.T) {
		f := newFixture(t)
		f.stage(t, domain.PaymentPaylink, "123")
		f.committer.On("CreateOrder", mock.Anything, session, mock.Anything).
			Return(nil, errors.New("dial tcp: refused")).Once()

		out, err := f.rec.Reconcile(context.Background(), session, query(t, "success=true&orderId=123"))

		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeCommitFailed, out.Kind)
		assert.Contains(t, out.Notice.Message, "contact support")
		assert.Nil(t, f.remaining(t))

		// a reload after a failed commit must not retry
		_, err = f.rec.Reconcile(context.Background(), session, query(t, "success=true&orderId=123"))
		require.NoError(t, err)
		f.committer.AssertNumberOfCalls(t, "CreateOrder", 1)
	})
}

func TestReconcile_StoreUnavailable(t *testing.T) {
	f := newFixture(t)
	f.stage(t, domain.PaymentPaylink, "123")
	f.store.err = errors.New("redis: connection refused")

	_, err := f.rec.Reconcile(context.Background(), session, query(t, "success=true&orderId=123"))

	require.Error(t, err)
	f.committer.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
	assert.Zero(t, f.gateway.calls.Load())
	assert.NotNil(t, f.remaining(t))
	assert.Empty(t, f.publisher.outcomes)
}

func TestReconcile_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.stage(t, domain.PaymentPaylink, "123")
	f.publisher.err = errors.New("broker down")

	out, err := f.rec.Reconcile(context.Background(), session, query(t, "success=false&orderId=123"))

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeGatewayDeclined, out.Kind)
	assert.Len(t, f.publisher.outcomes, 1)
}

func TestReconcile_CorruptDraftIsTreatedAsAbsent(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		query string
	}{
		{"unparseable, convention A", "{not json", "success=true&orderId=123"},
		{"null, convention A", "null", "success=true&orderId=123"},
		{"unparseable, convention B", "{not json", "apptransid=tx-1"},
		{"null, convention B", "null", "apptransid=tx-1"},
		{"empty object, convention B", "{}", "apptransid=tx-1"},
		{"unknown fields, convention B", `{"foo":1}`, "apptransid=tx-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := store.NewMemoryStore()
			mem.Put(session, []byte(tt.raw))
			committer := &mockCommitter{}
			gateway := &stubGateway{paid: true}
			rec := NewReconciler(mem, gateway, committer, zaptest.NewLogger(t))

			out, err := rec.Reconcile(context.Background(), session, query(t, tt.query))

			require.NoError(t, err)
			assert.Equal(t, domain.OutcomeGatewayDeclined, out.Kind)
			committer.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
			assert.Zero(t, gateway.calls.Load())

			left, err := mem.Read(context.Background(), session)
			require.NoError(t, err)
			assert.Nil(t, left)
		})
	}
}
