package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/universepro/estore-backend/pkg/enums"
)

// Coupon is a redeemable discount code. Product/category scoping restricts
// which cart lines count toward the discountable amount; empty scope applies
// to the whole cart.
type Coupon struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code              string             `gorm:"column:code;not null;uniqueIndex"`
	Description       *string            `gorm:"column:description"`
	DiscountType      enums.DiscountType `gorm:"column:discount_type;not null"`
	DiscountValue     decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	MinOrderAmount    decimal.Decimal    `gorm:"column:min_order_amount;type:numeric(12,2);not null;default:0"`
	MaxDiscountAmount *decimal.Decimal   `gorm:"column:max_discount_amount;type:numeric(12,2)"`
	ValidFrom         time.Time          `gorm:"column:valid_from;not null"`
	ValidTo           time.Time          `gorm:"column:valid_to;not null"`
	MaxUses           int                `gorm:"column:max_uses;not null;default:0"`
	CurrentUses       int                `gorm:"column:current_uses;not null;default:0"`
	IsActive          bool               `gorm:"column:is_active;not null;default:true"`
	Products          []Product          `gorm:"many2many:coupon_products"`
	Categories        []Category         `gorm:"many2many:coupon_categories"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// Exhausted reports whether the coupon hit its redemption cap. MaxUses of
// zero means unlimited.
func (c Coupon) Exhausted() bool {
	return c.MaxUses > 0 && c.CurrentUses >= c.MaxUses
}

// CouponRedemption records one consumption of a coupon, keyed by order so a
// replayed settlement cannot double-count a use.
type CouponRedemption struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CouponID  uuid.UUID  `gorm:"column:coupon_id;type:uuid;not null"`
	OrderID   uuid.UUID  `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_coupon_redemptions_order"`
	UserID    *uuid.UUID `gorm:"column:user_id;type:uuid"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}
