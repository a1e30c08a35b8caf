package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const OrderPlaced OrderStatus = "PLACED"

// Order is a committed order as persisted by the order backend.
type Order struct {
	ID            uuid.UUID     `json:"id"`
	CorrelationID string        `json:"correlation_id,omitempty"`
	CustomerID    string        `json:"customer_id"`
	Items         []LineItem    `json:"items"`
	ShippingInfo  ShippingInfo  `json:"shipping_info"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	VoucherCodes  VoucherCodes  `json:"voucher_codes"`
	Subtotal      int64         `json:"subtotal"`
	Discount      int64         `json:"discount"`
	Freeship      int64         `json:"freeship"`
	Total         int64         `json:"total"`
	Status        OrderStatus   `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// CommitResult is the order backend's answer to a create-order call.
type CommitResult struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId,omitempty"`
	Message string `json:"message,omitempty"`
}
