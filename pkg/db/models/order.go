package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/universepro/estore-backend/pkg/enums"
)

// Order is the immutable settlement output; totals are copied from the cart
// at settlement time and never recomputed.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber       string              `gorm:"column:order_number;not null;uniqueIndex"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	ShippingAddressID uuid.UUID           `gorm:"column:shipping_address_id;type:uuid;not null"`
	BillingAddressID  uuid.UUID           `gorm:"column:billing_address_id;type:uuid;not null"`
	Subtotal          decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	CouponDiscount    decimal.Decimal     `gorm:"column:coupon_discount;type:numeric(12,2);not null;default:0"`
	ShippingCost      decimal.Decimal     `gorm:"column:shipping_cost;type:numeric(12,2);not null;default:0"`
	Total             decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	Status            enums.OrderStatus   `gorm:"column:status;not null;default:'pending'"`
	PaymentMethod     enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PaymentStatus     bool                `gorm:"column:payment_status;not null;default:false"`
	Note              *string             `gorm:"column:note"`
	TrackingNumber    *string             `gorm:"column:tracking_number"`
	ShippedAt         *time.Time          `gorm:"column:shipped_at"`
	DeliveredAt       *time.Time          `gorm:"column:delivered_at"`
	CancelledAt       *time.Time          `gorm:"column:cancelled_at"`
	Items             []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ShippingAddress   *Address            `gorm:"foreignKey:ShippingAddressID"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is a frozen copy of a cart line at settlement time.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName string          `gorm:"column:product_name;not null"`
	SKU         string          `gorm:"column:sku;not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	TotalPrice  decimal.Decimal `gorm:"column:total_price;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// OrderSequence is the single-row counter used to mint CMD-format order
// numbers inside the settlement transaction.
type OrderSequence struct {
	ID        int       `gorm:"column:id;primaryKey"`
	LastValue int64     `gorm:"column:last_value;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
