package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/metrics"
	"storefront-checkout/internal/reconcile"
	"storefront-checkout/internal/repo"
)

// ReconciliationWorker asks the gateway again about payments whose status could
// not be confirmed when the customer came back. It only labels attempts; it
// never creates orders.
type ReconciliationWorker struct {
	paymentRepo repo.PaymentRepo
	gateway     reconcile.StatusChecker
	interval    time.Duration
	grace       time.Duration
	batchSize   int
	logger      *zap.Logger
}

func NewReconciliationWorker(
	paymentRepo repo.PaymentRepo,
	gateway reconcile.StatusChecker,
	interval time.Duration,
	grace time.Duration,
	batchSize int,
	logger *zap.Logger,
) *ReconciliationWorker {
	return &ReconciliationWorker{
		paymentRepo: paymentRepo,
		gateway:     gateway,
		interval:    interval,
		grace:       grace,
		batchSize:   batchSize,
		logger:      logger,
	}
}

func (rw *ReconciliationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.logger.Info("reconciliation worker started",
		zap.Duration("interval", rw.interval),
		zap.Duration("grace", rw.grace),
	)

	for {
		select {
		case <-ctx.Done():
			rw.logger.Info("reconciliation worker stopped")
			return
		case <-ticker.C:
			if _, err := rw.Process(ctx); err != nil {
				rw.logger.Error("reconciliation sweep failed", zap.Error(err))
			}
		}
	}
}

// Process runs one sweep and returns how many attempts it resolved. Attempts
// the gateway still cannot answer for are left for the next sweep.
func (rw *ReconciliationWorker) Process(ctx context.Context) (int, error) {
	attempts, err := rw.paymentRepo.FindUnconfirmedBefore(ctx, time.Now().UTC().Add(-rw.grace), rw.batchSize)
	if err != nil {
		return 0, fmt.Errorf("load unconfirmed attempts: %w", err)
	}
	if len(attempts) == 0 {
		return 0, nil
	}

	rw.logger.Info("found unconfirmed payment attempts", zap.Int("count", len(attempts)))

	resolved := 0
	for _, attempt := range attempts {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}

		log := rw.logger.With(
			zap.String("attempt_id", attempt.ID.String()),
			zap.String("transaction_id", attempt.TransactionID),
			zap.String("correlation_id", attempt.CorrelationID),
			zap.String("customer_id", attempt.CustomerID),
		)

		if attempt.TransactionID == "" {
			log.Warn("unconfirmed attempt has no transaction id, leaving for support")
			continue
		}

		paid, err := rw.gateway.CheckStatus(ctx, attempt.TransactionID)
		if err != nil {
			log.Warn("gateway status still unavailable", zap.Error(err))
			continue
		}

		status := domain.PaymentUnpaid
		if paid {
			status = domain.PaymentPaidNoOrder
			log.Warn("phantom charge: customer paid but no order was created")
		} else {
			log.Info("unconfirmed attempt was never paid")
		}

		if err := rw.paymentRepo.UpdateStatus(ctx, attempt.ID, status); err != nil {
			log.Error("failed to update attempt status", zap.Error(err))
			continue
		}
		metrics.RecordAttemptResolved(string(status))
		resolved++
	}
	return resolved, nil
}
