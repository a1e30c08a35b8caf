package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"storefront-checkout/internal/domain"
)

type PaymentRepo interface {
	CreateAttempt(ctx context.Context, attempt *domain.PaymentAttempt) error
	// FindUnconfirmedBefore returns the oldest UNCONFIRMED attempts created before the cutoff.
	FindUnconfirmedBefore(ctx context.Context, before time.Time, limit int) ([]domain.PaymentAttempt, error)
	// UpdateStatus only moves attempts that are still UNCONFIRMED.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error
}

type paymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) PaymentRepo {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) CreateAttempt(ctx context.Context, a *domain.PaymentAttempt) error {
	query := `INSERT INTO payment_attempts
		(id, gateway, transaction_id, correlation_id, customer_id, draft, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Gateway, a.TransactionID, a.CorrelationID, a.CustomerID, []byte(a.Draft), a.Status, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment attempt: %w", err)
	}
	return nil
}

func (r *paymentRepo) FindUnconfirmedBefore(ctx context.Context, before time.Time, limit int) ([]domain.PaymentAttempt, error) {
	query := `
		SELECT id, gateway, transaction_id, correlation_id, customer_id, draft, status, created_at, updated_at
		FROM payment_attempts
		WHERE status = $1
		AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, domain.PaymentUnconfirmed, before, limit)
	if err != nil {
		return nil, fmt.Errorf("find unconfirmed attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.PaymentAttempt
	for rows.Next() {
		var (
			a     domain.PaymentAttempt
			draft []byte
		)
		if err := rows.Scan(
			&a.ID,
			&a.Gateway,
			&a.TransactionID,
			&a.CorrelationID,
			&a.CustomerID,
			&draft,
			&a.Status,
			&a.CreatedAt,
			&a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan payment attempt: %w", err)
		}
		a.Draft = draft
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find unconfirmed attempts: %w", err)
	}
	return attempts, nil
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	query := `
		UPDATE payment_attempts
		SET status = $2,
		    updated_at = now()
		WHERE id = $1 AND status = $3
	`
	if _, err := r.db.ExecContext(ctx, query, id, status, domain.PaymentUnconfirmed); err != nil {
		return fmt.Errorf("update payment attempt %s: %w", id, err)
	}
	return nil
}
