package coupons

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/universepro/estore-backend/pkg/db"
	"github.com/universepro/estore-backend/pkg/db/models"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
)

// CouponRepository defines the persistence surface required by cart and
// checkout.
type CouponRepository interface {
	WithTx(tx *gorm.DB) CouponRepository
	Create(ctx context.Context, coupon *models.Coupon) error
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	Redeem(ctx context.Context, couponID, orderID uuid.UUID, userID *uuid.UUID) error
	ReleaseRedemption(ctx context.Context, orderID uuid.UUID) error
}

// Repository is the gorm-backed coupon store.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a coupon repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CouponRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create saves a new coupon. Codes are stored uppercased so lookups stay
// case-insensitive; a duplicate code is a conflict.
func (r *Repository) Create(ctx context.Context, coupon *models.Coupon) error {
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	if err := r.db.WithContext(ctx).Create(coupon).Error; err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeConflict, "coupon code already exists")
		}
		return err
	}
	return nil
}

// FindByCode loads an active-or-not coupon by its case-insensitive code with
// scope associations preloaded. Validity is the evaluator's concern.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).
		Preload("Products").
		Preload("Categories").
		Where("UPPER(code) = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// FindByID loads a coupon with its scope associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).
		Preload("Products").
		Preload("Categories").
		Where("id = ?", id).
		First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// Redeem consumes one use of the coupon for the given order. The redemption
// row is keyed by order id, so settling the same order twice burns a single
// use; the replayed call is a no-op.
func (r *Repository) Redeem(ctx context.Context, couponID, orderID uuid.UUID, userID *uuid.UUID) error {
	redemption := models.CouponRedemption{
		ID:       uuid.New(),
		CouponID: couponID,
		OrderID:  orderID,
		UserID:   userID,
	}
	if err := r.db.WithContext(ctx).Create(&redemption).Error; err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_coupon_redemptions_order") {
			return nil
		}
		return err
	}

	// consuming the final use also retires the coupon
	result := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ? AND (max_uses = 0 OR current_uses < max_uses)", couponID).
		Updates(map[string]any{
			"current_uses": gorm.Expr("current_uses + 1"),
			"is_active":    gorm.Expr("CASE WHEN max_uses > 0 AND current_uses + 1 >= max_uses THEN ? ELSE is_active END", false),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidCoupon, "coupon has no remaining uses")
	}
	return nil
}

// ReleaseRedemption gives the use back when an order is cancelled.
func (r *Repository) ReleaseRedemption(ctx context.Context, orderID uuid.UUID) error {
	var redemption models.CouponRedemption
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&redemption).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if err := r.db.WithContext(ctx).Delete(&redemption).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ? AND current_uses > 0", redemption.CouponID).
		Update("current_uses", gorm.Expr("current_uses - 1")).Error
}
