package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"storefront-checkout/internal/domain"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type OrderRepo interface {
	// CreateOrder inserts the order unless one with the same correlation id exists.
	// It reports whether a row was inserted.
	CreateOrder(ctx context.Context, tx DBTX, order *domain.Order) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindByCorrelationID(ctx context.Context, tx DBTX, correlationID string) (*domain.Order, error)
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Order, error)
}

type orderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{db: db}
}

const orderColumns = `id, correlation_id, customer_id, items, shipping_info, payment_method, voucher_codes,
	subtotal, discount, freeship, total, status, created_at, updated_at`

func (r *orderRepo) CreateOrder(ctx context.Context, tx DBTX, order *domain.Order) (bool, error) {
	if tx == nil {
		tx = r.db
	}

	items, err := json.Marshal(order.Items)
	if err != nil {
		return false, fmt.Errorf("marshal items: %w", err)
	}
	shipping, err := json.Marshal(order.ShippingInfo)
	if err != nil {
		return false, fmt.Errorf("marshal shipping info: %w", err)
	}
	vouchers, err := json.Marshal(order.VoucherCodes)
	if err != nil {
		return false, fmt.Errorf("marshal voucher codes: %w", err)
	}

	query := `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT DO NOTHING`

	res, err := tx.ExecContext(ctx, query,
		order.ID,
		nullString(order.CorrelationID),
		order.CustomerID,
		items,
		shipping,
		order.PaymentMethod,
		vouchers,
		order.Subtotal,
		order.Discount,
		order.Freeship,
		order.Total,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert order: %w", err)
	}
	return n == 1, nil
}

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (r *orderRepo) FindByCorrelationID(ctx context.Context, tx DBTX, correlationID string) (*domain.Order, error) {
	if tx == nil {
		tx = r.db
	}
	row := tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE correlation_id = $1`, correlationID)
	return scanOrder(row)
}

func (r *orderRepo) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2`,
		customerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanOrder returns nil, nil when the row does not exist.
func scanOrder(s scanner) (*domain.Order, error) {
	var (
		order         domain.Order
		correlationID sql.NullString
		items         []byte
		shipping      []byte
		vouchers      []byte
	)
	err := s.Scan(
		&order.ID,
		&correlationID,
		&order.CustomerID,
		&items,
		&shipping,
		&order.PaymentMethod,
		&vouchers,
		&order.Subtotal,
		&order.Discount,
		&order.Freeship,
		&order.Total,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}

	order.CorrelationID = correlationID.String
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	if err := json.Unmarshal(shipping, &order.ShippingInfo); err != nil {
		return nil, fmt.Errorf("decode shipping info: %w", err)
	}
	if len(vouchers) > 0 {
		if err := json.Unmarshal(vouchers, &order.VoucherCodes); err != nil {
			return nil, fmt.Errorf("decode voucher codes: %w", err)
		}
	}
	return &order, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
