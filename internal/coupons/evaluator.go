// Package coupons evaluates discount codes against a cart and records their
// consumption at settlement time.
package coupons

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/universepro/estore-backend/pkg/db/models"
	"github.com/universepro/estore-backend/pkg/enums"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
)

var percentBase = decimal.NewFromInt(100)

// Evaluation is the outcome of applying a coupon to a cart.
type Evaluation struct {
	Discount     decimal.Decimal
	FreeShipping bool
}

// Evaluate validates the coupon against the cart at the given instant and
// computes the discount. Product and category scoping is a validity gate:
// at least one line must match, and the discount then applies to the full
// cart subtotal. An empty scope matches every cart.
func Evaluate(coupon *models.Coupon, cart *models.Cart, now time.Time) (Evaluation, error) {
	if coupon == nil {
		return Evaluation{}, pkgerrors.New(pkgerrors.CodeInvalidCoupon, "coupon not found")
	}
	if !coupon.IsActive {
		return Evaluation{}, pkgerrors.New(pkgerrors.CodeInvalidCoupon, "coupon is not active")
	}
	if now.Before(coupon.ValidFrom) || now.After(coupon.ValidTo) {
		return Evaluation{}, pkgerrors.New(pkgerrors.CodeInvalidCoupon, "coupon is outside its validity window")
	}
	if coupon.Exhausted() {
		return Evaluation{}, pkgerrors.New(pkgerrors.CodeInvalidCoupon, "coupon has no remaining uses")
	}
	if cart == nil || len(cart.Items) == 0 {
		return Evaluation{}, pkgerrors.New(pkgerrors.CodeInvalidCoupon, "cart is empty")
	}

	subtotal := cart.Subtotal()
	if subtotal.LessThan(coupon.MinOrderAmount) {
		return Evaluation{}, pkgerrors.New(pkgerrors.CodeInvalidCoupon, "cart total is below the coupon minimum")
	}

	if !scopeCovered(coupon, cart) {
		return Evaluation{}, pkgerrors.New(pkgerrors.CodeInvalidCoupon, "no cart item is covered by this coupon")
	}

	switch coupon.DiscountType {
	case enums.DiscountTypePercentage:
		discount := subtotal.Mul(coupon.DiscountValue).Div(percentBase).Round(2)
		if coupon.MaxDiscountAmount != nil && discount.GreaterThan(*coupon.MaxDiscountAmount) {
			discount = *coupon.MaxDiscountAmount
		}
		return Evaluation{Discount: discount}, nil

	case enums.DiscountTypeFixed:
		discount := coupon.DiscountValue
		if discount.GreaterThan(subtotal) {
			discount = subtotal
		}
		return Evaluation{Discount: discount}, nil

	case enums.DiscountTypeFreeShipping:
		return Evaluation{Discount: decimal.Zero, FreeShipping: true}, nil

	default:
		return Evaluation{}, pkgerrors.New(pkgerrors.CodeInvalidCoupon, "unknown discount type")
	}
}

// scopeCovered reports whether the cart holds at least one line the coupon's
// product or category scope applies to.
func scopeCovered(coupon *models.Coupon, cart *models.Cart) bool {
	if len(coupon.Products) == 0 && len(coupon.Categories) == 0 {
		return true
	}

	productScope := make(map[uuid.UUID]struct{}, len(coupon.Products))
	for _, p := range coupon.Products {
		productScope[p.ID] = struct{}{}
	}
	categoryScope := make(map[uuid.UUID]struct{}, len(coupon.Categories))
	for _, c := range coupon.Categories {
		categoryScope[c.ID] = struct{}{}
	}

	for _, item := range cart.Items {
		if _, ok := productScope[item.ProductID]; ok {
			return true
		}
		if item.Product != nil {
			if _, ok := categoryScope[item.Product.CategoryID]; ok {
				return true
			}
		}
	}
	return false
}
