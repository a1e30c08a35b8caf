package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type PaymentMethod string

const (
	PaymentCOD     PaymentMethod = "cod"
	PaymentPaylink PaymentMethod = "paylink"
	PaymentFastPay PaymentMethod = "fastpay"
)

// IsGateway reports whether the method sends the customer to an external payment page.
func (m PaymentMethod) IsGateway() bool {
	return m == PaymentPaylink || m == PaymentFastPay
}

type LineItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
	Price     int64  `json:"price,omitempty" validate:"gte=0"`
}

type ShippingInfo struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type VoucherCodes struct {
	Freeship string `json:"freeship,omitempty"`
	Discount string `json:"discount,omitempty"`
}

// OrderDraft is an order the customer intends to place but that is not persisted yet.
// OrderID is the correlation id matched against the gateway redirect; it is only
// set for gateway payment methods.
type OrderDraft struct {
	Items         []LineItem    `json:"items" validate:"required,min=1,dive"`
	ShippingInfo  ShippingInfo  `json:"shipping_info"`
	PaymentMethod PaymentMethod `json:"payment_method" validate:"required,oneof=cod paylink fastpay"`
	VoucherCodes  VoucherCodes  `json:"voucherCodes"`
	FreeshipValue int64         `json:"freeship_value"`
	DiscountValue int64         `json:"discount_value"`
	OrderID       string        `json:"orderId,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the minimum a draft needs to be staged or committed.
func (d *OrderDraft) Validate() error {
	if d == nil {
		return fmt.Errorf("order draft is nil")
	}
	return validate.Struct(d)
}

func (d *OrderDraft) Subtotal() int64 {
	var subtotal int64
	for _, item := range d.Items {
		subtotal += item.Price * int64(item.Quantity)
	}
	return subtotal
}

// Total is the subtotal minus vouchers, never below zero.
func (d *OrderDraft) Total() int64 {
	total := d.Subtotal() - d.DiscountValue - d.FreeshipValue
	if total < 0 {
		return 0
	}
	return total
}
