package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/universepro/estore-backend/pkg/enums"
)

// Payment is one provider transaction for an order. A failed payment is
// terminal; retries create a new row so the audit trail stays intact.
type Payment struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Method        enums.PaymentMethod `gorm:"column:method;not null"`
	Status        enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	TransactionID *string             `gorm:"column:transaction_id;uniqueIndex"`
	Details       json.RawMessage     `gorm:"column:details;type:jsonb;serializer:json"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// PaymentAttempt is the append-only audit of every provider exchange,
// including the ones that never produced a Payment row.
type PaymentAttempt struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	RequestData  json.RawMessage `gorm:"column:request_data;type:jsonb;serializer:json"`
	ResponseData json.RawMessage `gorm:"column:response_data;type:jsonb;serializer:json"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}
