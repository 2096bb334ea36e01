package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is the pending-purchase aggregate. Exactly one of UserID or SessionKey
// identifies the owner; the service layer enforces the exclusivity.
type Cart struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         *uuid.UUID      `gorm:"column:user_id;type:uuid;uniqueIndex"`
	SessionKey     *string         `gorm:"column:session_key;uniqueIndex"`
	CouponID       *uuid.UUID      `gorm:"column:coupon_id;type:uuid"`
	CouponDiscount decimal.Decimal `gorm:"column:coupon_discount;type:numeric(12,2);not null;default:0"`
	ShippingCost   decimal.Decimal `gorm:"column:shipping_cost;type:numeric(12,2);not null;default:0"`
	Note           *string         `gorm:"column:note"`
	Items          []CartItem      `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	Coupon         *Coupon         `gorm:"foreignKey:CouponID"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Subtotal sums every line at its snapshot price.
func (c Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Total applies the coupon discount and shipping, floored at zero.
func (c Cart) Total() decimal.Decimal {
	total := c.Subtotal().Sub(c.CouponDiscount).Add(c.ShippingCost)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// CartItem is one product line within a cart. Price is snapshotted when the
// line is first created and not refreshed on later quantity changes.
type CartItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID    uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_product"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_product"`
	Quantity  int             `gorm:"column:quantity;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Product   *Product        `gorm:"foreignKey:ProductID"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// LineTotal is the snapshot price times the quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
