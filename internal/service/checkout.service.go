package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront-checkout/internal/apperror"
	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/reconcile"
	"storefront-checkout/internal/store"
)

// PlaceResult tells the storefront what to do next: show the order (cash on
// delivery) or send the customer to PaymentURL.
type PlaceResult struct {
	OrderID       string `json:"order_id,omitempty"`
	PaymentURL    string `json:"payment_url,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

type CheckoutService struct {
	pending   store.PendingOrderStore
	orders    reconcile.OrderCommitter
	checkout  map[domain.PaymentMethod]string
	returnURL string
	logger    *zap.Logger
}

// NewCheckoutService takes the hosted payment page URL of each gateway method.
func NewCheckoutService(
	pending store.PendingOrderStore,
	orders reconcile.OrderCommitter,
	checkoutURLs map[domain.PaymentMethod]string,
	returnURL string,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		pending:   pending,
		orders:    orders,
		checkout:  checkoutURLs,
		returnURL: returnURL,
		logger:    logger,
	}
}

func (s *CheckoutService) PlaceOrder(ctx context.Context, sessionID string, draft *domain.OrderDraft) (*PlaceResult, error) {
	if err := draft.Validate(); err != nil {
		return nil, apperror.InvalidInput(err.Error())
	}

	if !draft.PaymentMethod.IsGateway() {
		// cash on delivery never leaves the storefront, so nothing is staged
		draft.OrderID = ""
		res, err := s.orders.CreateOrder(ctx, sessionID, draft)
		if err != nil {
			return nil, fmt.Errorf("create order: %w", err)
		}
		if !res.Success {
			return nil, apperror.Rejected(res.Message)
		}
		return &PlaceResult{OrderID: res.OrderID}, nil
	}

	base, ok := s.checkout[draft.PaymentMethod]
	if !ok {
		return nil, apperror.InvalidInput(fmt.Sprintf("payment method %s is not available", draft.PaymentMethod))
	}
	paymentURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse %s checkout url: %w", draft.PaymentMethod, err)
	}

	draft.OrderID = uuid.NewString()
	if err := s.pending.Stage(ctx, sessionID, draft); err != nil {
		return nil, apperror.Unavailable("could not save the pending order", err)
	}

	q := paymentURL.Query()
	q.Set("orderId", draft.OrderID)
	q.Set("amount", strconv.FormatInt(draft.Total(), 10))
	q.Set("returnUrl", s.returnURL)
	paymentURL.RawQuery = q.Encode()

	s.logger.Info("order staged for payment",
		zap.String("session_id", sessionID),
		zap.String("correlation_id", draft.OrderID),
		zap.String("payment_method", string(draft.PaymentMethod)),
		zap.Int64("amount", draft.Total()),
	)
	return &PlaceResult{PaymentURL: paymentURL.String(), CorrelationID: draft.OrderID}, nil
}

func (s *CheckoutService) PendingOrder(ctx context.Context, sessionID string) (*domain.OrderDraft, error) {
	draft, err := s.pending.Read(ctx, sessionID)
	if err != nil {
		return nil, apperror.Unavailable("could not read the pending order", err)
	}
	if draft == nil {
		return nil, apperror.NotFound("pending order for session", sessionID)
	}
	return draft, nil
}

func (s *CheckoutService) ClearPending(ctx context.Context, sessionID string) error {
	if err := s.pending.Clear(ctx, sessionID); err != nil {
		return apperror.Unavailable("could not clear the pending order", err)
	}
	return nil
}
