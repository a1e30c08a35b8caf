package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront-checkout/internal/apperror"
	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/repo"
)

const historyLimit = 50

// OrderService is the local order backend. It can stand in for a remote order
// service as the reconciler's committer.
type OrderService interface {
	// CreateOrder is idempotent by draft correlation id: a repeated call returns
	// the order created the first time.
	CreateOrder(ctx context.Context, customerID string, draft *domain.OrderDraft) (*domain.CommitResult, error)
	GetOrder(ctx context.Context, customerID string, id uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, customerID string) ([]domain.Order, error)
}

type orderService struct {
	db        *sql.DB
	orderRepo repo.OrderRepo
	logger    *zap.Logger
}

func NewOrderService(db *sql.DB, orderRepo repo.OrderRepo, logger *zap.Logger) OrderService {
	return &orderService{
		db:        db,
		orderRepo: orderRepo,
		logger:    logger,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, customerID string, draft *domain.OrderDraft) (*domain.CommitResult, error) {
	if err := draft.Validate(); err != nil {
		return &domain.CommitResult{Success: false, Message: fmt.Sprintf("invalid order: %v", err)}, nil
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:            uuid.New(),
		CorrelationID: draft.OrderID,
		CustomerID:    customerID,
		Items:         draft.Items,
		ShippingInfo:  draft.ShippingInfo,
		PaymentMethod: draft.PaymentMethod,
		VoucherCodes:  draft.VoucherCodes,
		Subtotal:      draft.Subtotal(),
		Discount:      draft.DiscountValue,
		Freeship:      draft.FreeshipValue,
		Total:         draft.Total(),
		Status:        domain.OrderPlaced,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if order.CorrelationID != "" {
		existing, err := s.orderRepo.FindByCorrelationID(ctx, tx, order.CorrelationID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			s.logger.Info("order already exists for correlation id",
				zap.String("correlation_id", order.CorrelationID),
				zap.String("order_id", existing.ID.String()),
			)
			return &domain.CommitResult{Success: true, OrderID: existing.ID.String()}, nil
		}
	}

	inserted, err := s.orderRepo.CreateOrder(ctx, tx, order)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// lost a race with a concurrent insert of the same correlation id
		existing, err := s.orderRepo.FindByCorrelationID(ctx, tx, order.CorrelationID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("order %s neither inserted nor found", order.CorrelationID)
		}
		order = existing
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.logger.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("customer_id", customerID),
		zap.String("payment_method", string(order.PaymentMethod)),
		zap.Int64("total", order.Total),
	)
	return &domain.CommitResult{Success: true, OrderID: order.ID.String()}, nil
}

func (s *orderService) GetOrder(ctx context.Context, customerID string, id uuid.UUID) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// another session's order is reported as missing
	if order == nil || order.CustomerID != customerID {
		return nil, apperror.NotFound("order", id.String())
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, customerID string) ([]domain.Order, error) {
	return s.orderRepo.ListByCustomer(ctx, customerID, historyLimit)
}
