package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	// PaymentUnconfirmed: the gateway could not be asked whether the customer paid.
	PaymentUnconfirmed PaymentStatus = "UNCONFIRMED"
	// PaymentPaidNoOrder: money was taken but no order exists. Needs support follow-up.
	PaymentPaidNoOrder PaymentStatus = "PAID_NO_ORDER"
	PaymentUnpaid      PaymentStatus = "UNPAID"
)

// PaymentAttempt records a gateway payment whose order was never committed.
type PaymentAttempt struct {
	ID            uuid.UUID
	Gateway       PaymentMethod
	TransactionID string
	CorrelationID string
	CustomerID    string
	Draft         json.RawMessage
	Status        PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
