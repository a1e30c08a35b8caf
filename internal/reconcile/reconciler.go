package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/metrics"
	"storefront-checkout/internal/store"
)

// StatusChecker asks a gateway whether a transaction was paid.
type StatusChecker interface {
	CheckStatus(ctx context.Context, transactionID string) (bool, error)
}

// OrderCommitter creates the order. The reconciler calls it at most once per draft.
type OrderCommitter interface {
	CreateOrder(ctx context.Context, customerID string, draft *domain.OrderDraft) (*domain.CommitResult, error)
}

// AttemptRecorder keeps a trail of payments that ended without an order.
type AttemptRecorder interface {
	CreateAttempt(ctx context.Context, attempt *domain.PaymentAttempt) error
}

// Publisher announces terminal outcomes to the rest of the platform.
type Publisher interface {
	PublishOutcome(ctx context.Context, sessionID, correlationID string, outcome domain.Outcome) error
}

const (
	defaultStatusTimeout = 10 * time.Second
	defaultCommitTimeout = 15 * time.Second
)

var tracer = otel.Tracer("storefront-checkout/reconcile")

type Reconciler struct {
	store         store.PendingOrderStore
	gateway       StatusChecker
	orders        OrderCommitter
	recorder      AttemptRecorder
	publisher     Publisher
	logger        *zap.Logger
	statusTimeout time.Duration
	commitTimeout time.Duration
}

func NewReconciler(
	pending store.PendingOrderStore,
	gateway StatusChecker,
	orders OrderCommitter,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		store:         pending,
		gateway:       gateway,
		orders:        orders,
		logger:        logger,
		statusTimeout: defaultStatusTimeout,
		commitTimeout: defaultCommitTimeout,
	}
}

func (r *Reconciler) WithRecorder(recorder AttemptRecorder) *Reconciler {
	r.recorder = recorder
	return r
}

func (r *Reconciler) WithPublisher(publisher Publisher) *Reconciler {
	r.publisher = publisher
	return r
}

func (r *Reconciler) WithTimeouts(status, commit time.Duration) *Reconciler {
	if status > 0 {
		r.statusTimeout = status
	}
	if commit > 0 {
		r.commitTimeout = commit
	}
	return r
}

// Reconcile handles one load of the checkout-return page for a session.
//
// The staged draft is taken (read and cleared) before anything else happens, so
// every terminal path leaves the slot empty and a reload with the same query
// string can never reach CreateOrder a second time. A returned error means the
// store could not be reached; nothing was decided or committed.
func (r *Reconciler) Reconcile(ctx context.Context, sessionID string, query url.Values) (domain.Outcome, error) {
	c := Classify(query)
	if c.Convention == ConventionNone {
		return Decide(c, nil, StatusNotQueried).Outcome, nil
	}

	ctx, span := tracer.Start(ctx, "reconcile.payment_return")
	defer span.End()
	span.SetAttributes(attribute.String("checkout.convention", c.Convention.String()))

	draft, err := r.store.Take(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pending order store unavailable")
		return domain.Outcome{}, fmt.Errorf("take pending order: %w", err)
	}

	d := Decide(c, draft, StatusNotQueried)
	if d.Action == ActionQueryStatus {
		d = Decide(c, draft, r.queryStatus(ctx, c.TransactionID))
	}

	var outcome domain.Outcome
	switch d.Action {
	case ActionCommit:
		outcome = r.commit(ctx, sessionID, c, draft)
	default:
		outcome = d.Outcome
	}

	if outcome.Kind == domain.OutcomeStatusUnknown {
		r.recordAttempt(ctx, sessionID, c, draft, domain.PaymentUnconfirmed)
	}

	span.SetAttributes(attribute.String("checkout.outcome", string(outcome.Kind)))
	r.finish(ctx, sessionID, c, draft, outcome)
	return outcome, nil
}

func (r *Reconciler) queryStatus(ctx context.Context, transactionID string) StatusResult {
	ctx, cancel := context.WithTimeout(ctx, r.statusTimeout)
	defer cancel()

	start := time.Now()
	paid, err := r.gateway.CheckStatus(ctx, transactionID)
	if err != nil {
		metrics.RecordStatusQuery("error", time.Since(start))
		r.logger.Warn("gateway status query failed",
			zap.String("transaction_id", transactionID),
			zap.Error(err),
		)
		return StatusQueryFailed
	}

	if paid {
		metrics.RecordStatusQuery("paid", time.Since(start))
		return StatusPaid
	}
	metrics.RecordStatusQuery("unpaid", time.Since(start))
	return StatusUnpaid
}

func (r *Reconciler) commit(ctx context.Context, sessionID string, c Classification, draft *domain.OrderDraft) domain.Outcome {
	ctx, cancel := context.WithTimeout(ctx, r.commitTimeout)
	defer cancel()

	res, err := r.orders.CreateOrder(ctx, sessionID, draft)
	if err != nil || res == nil || !res.Success {
		metrics.RecordCommit(false)
		message := ""
		if res != nil {
			message = res.Message
		}
		r.logger.Error("order commit failed after payment return",
			zap.String("session_id", sessionID),
			zap.String("correlation_id", draft.OrderID),
			zap.String("transaction_id", c.TransactionID),
			zap.String("message", message),
			zap.Error(err),
		)
		r.recordAttempt(ctx, sessionID, c, draft, domain.PaymentPaidNoOrder)
		return commitFailed(message)
	}

	metrics.RecordCommit(true)
	return committed(res.OrderID)
}

func (r *Reconciler) recordAttempt(ctx context.Context, sessionID string, c Classification, draft *domain.OrderDraft, status domain.PaymentStatus) {
	if r.recorder == nil || draft == nil {
		return
	}

	raw, err := json.Marshal(draft)
	if err != nil {
		r.logger.Error("marshal draft for payment attempt", zap.Error(err))
		return
	}

	now := time.Now().UTC()
	attempt := &domain.PaymentAttempt{
		ID:            uuid.New(),
		Gateway:       draft.PaymentMethod,
		TransactionID: c.TransactionID,
		CorrelationID: draft.OrderID,
		CustomerID:    sessionID,
		Draft:         raw,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	// The request context may already be cancelled; the trail must still be written.
	if err := r.recorder.CreateAttempt(context.WithoutCancel(ctx), attempt); err != nil {
		r.logger.Error("failed to record payment attempt",
			zap.String("session_id", sessionID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

func (r *Reconciler) finish(ctx context.Context, sessionID string, c Classification, draft *domain.OrderDraft, outcome domain.Outcome) {
	metrics.RecordOutcome(string(outcome.Kind))

	correlationID := c.CorrelationID
	if draft != nil && draft.OrderID != "" {
		correlationID = draft.OrderID
	}

	r.logger.Info("payment return reconciled",
		zap.String("session_id", sessionID),
		zap.String("convention", c.Convention.String()),
		zap.String("correlation_id", correlationID),
		zap.String("transaction_id", c.TransactionID),
		zap.Bool("draft_found", draft != nil),
		zap.String("outcome", string(outcome.Kind)),
		zap.String("order_id", outcome.OrderID),
	)

	if r.publisher == nil || !outcome.Terminal() {
		return
	}
	if err := r.publisher.PublishOutcome(ctx, sessionID, correlationID, outcome); err != nil {
		r.logger.Error("failed to publish reconcile outcome",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}
