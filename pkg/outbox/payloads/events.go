package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderCreatedEvent is emitted inside the settlement transaction once the
// order rows are committed.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	UserID      uuid.UUID       `json:"userId"`
	Total       decimal.Decimal `json:"total"`
}

// PaymentCompletedEvent is emitted when a provider callback or verification
// confirms a payment.
type PaymentCompletedEvent struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	PaymentID   uuid.UUID `json:"paymentId"`
	TxReference string    `json:"txReference"`
}

// OrderCancelledEvent is emitted when an order is cancelled and its stock
// released.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	UserID      uuid.UUID `json:"userId"`
}
