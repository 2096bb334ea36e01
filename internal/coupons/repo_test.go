package coupons

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/universepro/estore-backend/pkg/db/dbtest"
	"github.com/universepro/estore-backend/pkg/db/models"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
)

func seedCoupon(t *testing.T, db *gorm.DB, maxUses, currentUses int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	coupon := models.Coupon{
		ID:            id,
		Code:          "SAVE10-" + id.String()[:8],
		DiscountType:  "percentage",
		DiscountValue: decimal.NewFromInt(10),
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidTo:       time.Now().Add(time.Hour),
		MaxUses:       maxUses,
		CurrentUses:   currentUses,
		IsActive:      true,
	}
	if err := db.Create(&coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
	return id
}

func TestRedeemIncrementsOnce(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	ctx := context.Background()
	repo := NewRepository(db)
	couponID := seedCoupon(t, db, 10, 0)
	orderID := uuid.New()

	if err := repo.Redeem(ctx, couponID, orderID, nil); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	// replayed settlement for the same order must not burn a second use
	if err := repo.Redeem(ctx, couponID, orderID, nil); err != nil {
		t.Fatalf("replayed redeem: %v", err)
	}

	var coupon models.Coupon
	if err := db.First(&coupon, "id = ?", couponID).Error; err != nil {
		t.Fatalf("load coupon: %v", err)
	}
	if coupon.CurrentUses != 1 {
		t.Fatalf("expected exactly one use, got %d", coupon.CurrentUses)
	}
}

func TestRedeemFinalUseDeactivatesCoupon(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	ctx := context.Background()
	repo := NewRepository(db)
	couponID := seedCoupon(t, db, 2, 1)

	if err := repo.Redeem(ctx, couponID, uuid.New(), nil); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	var coupon models.Coupon
	if err := db.First(&coupon, "id = ?", couponID).Error; err != nil {
		t.Fatalf("load coupon: %v", err)
	}
	if coupon.CurrentUses != 2 {
		t.Fatalf("expected 2 uses, got %d", coupon.CurrentUses)
	}
	if coupon.IsActive {
		t.Fatal("coupon must deactivate when the last use is consumed")
	}
}

func TestRedeemBelowCapStaysActive(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	ctx := context.Background()
	repo := NewRepository(db)
	couponID := seedCoupon(t, db, 5, 0)

	if err := repo.Redeem(ctx, couponID, uuid.New(), nil); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	var coupon models.Coupon
	if err := db.First(&coupon, "id = ?", couponID).Error; err != nil {
		t.Fatalf("load coupon: %v", err)
	}
	if !coupon.IsActive {
		t.Fatal("coupon must stay active while uses remain")
	}
}

func TestRedeemExhausted(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	repo := NewRepository(db)
	couponID := seedCoupon(t, db, 2, 2)

	err := repo.Redeem(context.Background(), couponID, uuid.New(), nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInvalidCoupon {
		t.Fatalf("expected invalid coupon error, got %v", err)
	}
}

func TestReleaseRedemption(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	ctx := context.Background()
	repo := NewRepository(db)
	couponID := seedCoupon(t, db, 10, 0)
	orderID := uuid.New()

	if err := repo.Redeem(ctx, couponID, orderID, nil); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if err := repo.ReleaseRedemption(ctx, orderID); err != nil {
		t.Fatalf("release: %v", err)
	}

	var coupon models.Coupon
	if err := db.First(&coupon, "id = ?", couponID).Error; err != nil {
		t.Fatalf("load coupon: %v", err)
	}
	if coupon.CurrentUses != 0 {
		t.Fatalf("expected use returned, got %d", coupon.CurrentUses)
	}

	// releasing an order with no redemption is a no-op
	if err := repo.ReleaseRedemption(ctx, uuid.New()); err != nil {
		t.Fatalf("release without redemption: %v", err)
	}
}

func TestFindByCodeIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	repo := NewRepository(db)
	coupon := models.Coupon{
		ID:            uuid.New(),
		Code:          "WELCOME5",
		DiscountType:  "fixed",
		DiscountValue: decimal.NewFromInt(5000),
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidTo:       time.Now().Add(time.Hour),
		IsActive:      true,
	}
	if err := db.Create(&coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	found, err := repo.FindByCode(context.Background(), " welcome5 ")
	if err != nil {
		t.Fatalf("find by code: %v", err)
	}
	if found.ID != coupon.ID {
		t.Fatalf("unexpected coupon %s", found.ID)
	}
}
