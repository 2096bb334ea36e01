package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/universepro/estore-backend/pkg/db/models"
)

// Repository is the gorm-backed cart store.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) ownerQuery(ctx context.Context, owner Owner) *gorm.DB {
	query := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Items.Product").
		Preload("Coupon").
		Preload("Coupon.Products").
		Preload("Coupon.Categories")
	if owner.IsUser() {
		return query.Where("user_id = ?", owner.UserID())
	}
	return query.Where("session_key = ?", owner.SessionKey())
}

// FindByOwner loads the owner's cart with items, products, and coupon scope.
func (r *Repository) FindByOwner(ctx context.Context, owner Owner) (*models.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	var cart models.Cart
	if err := r.ownerQuery(ctx, owner).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindOrCreateByOwner returns the owner's cart, creating an empty one on
// first use.
func (r *Repository) FindOrCreateByOwner(ctx context.Context, owner Owner) (*models.Cart, error) {
	cart, err := r.FindByOwner(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := models.Cart{ID: uuid.New()}
	if owner.IsUser() {
		id := owner.UserID()
		fresh.UserID = &id
	} else {
		key := owner.SessionKey()
		fresh.SessionKey = &key
	}
	if err := r.db.WithContext(ctx).Create(&fresh).Error; err != nil {
		return nil, err
	}
	return &fresh, nil
}

// Save persists cart header changes (coupon, discount, shipping).
func (r *Repository) Save(ctx context.Context, cart *models.Cart) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cart.ID).
		Updates(map[string]any{
			"coupon_id":       cart.CouponID,
			"coupon_discount": cart.CouponDiscount,
			"shipping_cost":   cart.ShippingCost,
			"note":            cart.Note,
		}).Error
}

// FindItem loads one line scoped to the cart.
func (r *Repository) FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItemByProduct loads the line for a product if the cart already has one.
func (r *Repository) FindItemByProduct(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// SaveItem creates or updates a cart line.
func (r *Repository) SaveItem(ctx context.Context, item *models.CartItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
		return r.db.WithContext(ctx).Create(item).Error
	}
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", item.ID).
		Update("quantity", item.Quantity).Error
}

// DeleteItem removes one line scoped to the cart.
func (r *Repository) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Delete(&models.CartItem{}).Error
}

// DeleteItems removes every line in the cart.
func (r *Repository) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error
}

// Delete removes the cart row and cascades its lines.
func (r *Repository) Delete(ctx context.Context, cartID uuid.UUID) error {
	if err := r.DeleteItems(ctx, cartID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("id = ?", cartID).
		Delete(&models.Cart{}).Error
}
