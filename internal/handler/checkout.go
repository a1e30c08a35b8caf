package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-checkout/internal/apperror"
	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/service"
)

type CheckoutService interface {
	PlaceOrder(ctx context.Context, sessionID string, draft *domain.OrderDraft) (*service.PlaceResult, error)
	PendingOrder(ctx context.Context, sessionID string) (*domain.OrderDraft, error)
	ClearPending(ctx context.Context, sessionID string) error
}

type PaymentReconciler interface {
	Reconcile(ctx context.Context, sessionID string, query url.Values) (domain.Outcome, error)
}

type CheckoutHandler struct {
	checkout   CheckoutService
	reconciler PaymentReconciler
	logger     *zap.Logger
}

func NewCheckoutHandler(checkout CheckoutService, reconciler PaymentReconciler, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, reconciler: reconciler, logger: logger}
}

// PlaceOrder handles POST /api/checkout.
func (h *CheckoutHandler) PlaceOrder(c *gin.Context) {
	var draft domain.OrderDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		writeError(c, h.logger, apperror.InvalidInput(err.Error()))
		return
	}

	res, err := h.checkout.PlaceOrder(c.Request.Context(), sessionID(c), &draft)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, res)
}

// Pending handles GET /api/checkout/pending.
func (h *CheckoutHandler) Pending(c *gin.Context) {
	draft, err := h.checkout.PendingOrder(c.Request.Context(), sessionID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, draft)
}

// ClearPending handles DELETE /api/checkout/pending.
func (h *CheckoutHandler) ClearPending(c *gin.Context) {
	if err := h.checkout.ClearPending(c.Request.Context(), sessionID(c)); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Return handles GET /api/checkout/return, the page the gateways redirect to.
func (h *CheckoutHandler) Return(c *gin.Context) {
	outcome, err := h.reconciler.Reconcile(c.Request.Context(), sessionID(c), c.Request.URL.Query())
	if err != nil {
		writeError(c, h.logger, apperror.Unavailable("could not load the pending order, please reload the page", err))
		return
	}
	respond(c, http.StatusOK, outcome)
}
