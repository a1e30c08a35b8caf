package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront-checkout/internal/apperror"
	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/service"
)

type OrderHandler struct {
	orders service.OrderService
	logger *zap.Logger
}

func NewOrderHandler(orders service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

// CreateOrder handles POST /api/orders. A rejected order is answered with 422.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var draft domain.OrderDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		writeError(c, h.logger, apperror.InvalidInput(err.Error()))
		return
	}

	res, err := h.orders.CreateOrder(c.Request.Context(), sessionID(c), &draft)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if !res.Success {
		writeError(c, h.logger, apperror.Rejected(res.Message))
		return
	}
	respond(c, http.StatusCreated, res)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), sessionID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, h.logger, apperror.InvalidInput("invalid order id"))
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), sessionID(c), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, order)
}
