package coupons

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/universepro/estore-backend/pkg/db/models"
	"github.com/universepro/estore-backend/pkg/enums"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
)

func cartWithLine(price int64, qty int) *models.Cart {
	return &models.Cart{
		ID: uuid.New(),
		Items: []models.CartItem{
			{
				ID:        uuid.New(),
				ProductID: uuid.New(),
				Quantity:  qty,
				Price:     decimal.NewFromInt(price),
			},
		},
	}
}

func activeCoupon(dtype enums.DiscountType, value int64) *models.Coupon {
	return &models.Coupon{
		ID:            uuid.New(),
		Code:          "SAVE10",
		DiscountType:  dtype,
		DiscountValue: decimal.NewFromInt(value),
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidTo:       time.Now().Add(time.Hour),
		IsActive:      true,
	}
}

func TestEvaluatePercentage(t *testing.T) {
	t.Parallel()

	coupon := activeCoupon(enums.DiscountTypePercentage, 10)
	cart := cartWithLine(50000, 1)

	eval, err := Evaluate(coupon, cart, time.Now())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !eval.Discount.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("expected 5000 discount, got %s", eval.Discount)
	}
	if eval.FreeShipping {
		t.Fatal("percentage coupon must not grant free shipping")
	}
}

func TestEvaluatePercentageCap(t *testing.T) {
	t.Parallel()

	cap := decimal.NewFromInt(2000)
	coupon := activeCoupon(enums.DiscountTypePercentage, 10)
	coupon.MaxDiscountAmount = &cap
	cart := cartWithLine(50000, 1)

	eval, err := Evaluate(coupon, cart, time.Now())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !eval.Discount.Equal(cap) {
		t.Fatalf("expected capped discount 2000, got %s", eval.Discount)
	}
}

func TestEvaluateFixedNeverExceedsSubtotal(t *testing.T) {
	t.Parallel()

	coupon := activeCoupon(enums.DiscountTypeFixed, 8000)
	cart := cartWithLine(3000, 1)

	eval, err := Evaluate(coupon, cart, time.Now())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !eval.Discount.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("expected discount clamped to 3000, got %s", eval.Discount)
	}
}

func TestEvaluateFreeShipping(t *testing.T) {
	t.Parallel()

	coupon := activeCoupon(enums.DiscountTypeFreeShipping, 0)
	cart := cartWithLine(20000, 1)

	eval, err := Evaluate(coupon, cart, time.Now())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !eval.FreeShipping || !eval.Discount.IsZero() {
		t.Fatalf("unexpected evaluation %+v", eval)
	}
}

func TestEvaluateRejections(t *testing.T) {
	t.Parallel()

	now := time.Now()
	minOrder := activeCoupon(enums.DiscountTypePercentage, 10)
	minOrder.MinOrderAmount = decimal.NewFromInt(100000)

	expired := activeCoupon(enums.DiscountTypePercentage, 10)
	expired.ValidTo = now.Add(-time.Minute)

	exhausted := activeCoupon(enums.DiscountTypePercentage, 10)
	exhausted.MaxUses = 5
	exhausted.CurrentUses = 5

	inactive := activeCoupon(enums.DiscountTypePercentage, 10)
	inactive.IsActive = false

	cases := []struct {
		name   string
		coupon *models.Coupon
	}{
		{"below minimum order", minOrder},
		{"expired", expired},
		{"exhausted", exhausted},
		{"inactive", inactive},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Evaluate(tc.coupon, cartWithLine(50000, 1), now)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeInvalidCoupon {
				t.Fatalf("expected invalid coupon error, got %v", err)
			}
		})
	}
}

func TestEvaluateScopedDiscountUsesFullSubtotal(t *testing.T) {
	t.Parallel()

	inScope := uuid.New()
	outOfScope := uuid.New()
	coupon := activeCoupon(enums.DiscountTypePercentage, 10)
	coupon.Products = []models.Product{{ID: inScope}}

	cart := &models.Cart{
		ID: uuid.New(),
		Items: []models.CartItem{
			{ID: uuid.New(), ProductID: inScope, Quantity: 1, Price: decimal.NewFromInt(10000)},
			{ID: uuid.New(), ProductID: outOfScope, Quantity: 1, Price: decimal.NewFromInt(40000)},
		},
	}

	eval, err := Evaluate(coupon, cart, time.Now())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	// one matching line unlocks the coupon for the whole 50000 subtotal
	if !eval.Discount.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("expected 5000 discount, got %s", eval.Discount)
	}
}

func TestEvaluateCategoryScopeUnlocksCoupon(t *testing.T) {
	t.Parallel()

	categoryID := uuid.New()
	coupon := activeCoupon(enums.DiscountTypeFixed, 2000)
	coupon.Categories = []models.Category{{ID: categoryID}}

	cart := &models.Cart{
		ID: uuid.New(),
		Items: []models.CartItem{
			{
				ID:        uuid.New(),
				ProductID: uuid.New(),
				Quantity:  1,
				Price:     decimal.NewFromInt(15000),
				Product:   &models.Product{ID: uuid.New(), CategoryID: categoryID},
			},
		},
	}

	eval, err := Evaluate(coupon, cart, time.Now())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !eval.Discount.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("expected 2000 discount, got %s", eval.Discount)
	}
}

func TestEvaluateScopeMismatch(t *testing.T) {
	t.Parallel()

	coupon := activeCoupon(enums.DiscountTypePercentage, 50)
	coupon.Products = []models.Product{{ID: uuid.New()}}

	_, err := Evaluate(coupon, cartWithLine(50000, 1), time.Now())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInvalidCoupon {
		t.Fatalf("expected invalid coupon error, got %v", err)
	}
}
