// Package wishlist keeps the products a user saved for later.
package wishlist

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/universepro/estore-backend/pkg/db"
	"github.com/universepro/estore-backend/pkg/db/models"
)

// WishlistRepository defines the persistence surface of the wishlist.
type WishlistRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.WishlistItem, error)
	Add(ctx context.Context, userID, productID uuid.UUID) (*models.WishlistItem, error)
	Remove(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}

// Repository is the gorm-backed wishlist store.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a wishlist repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListByUser returns the user's saved products, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.WishlistItem, error) {
	var items []models.WishlistItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Add saves the product for the user. Saving the same product twice keeps a
// single row; the unique pair absorbs the duplicate.
func (r *Repository) Add(ctx context.Context, userID, productID uuid.UUID) (*models.WishlistItem, error) {
	item := models.WishlistItem{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
	}
	err := r.db.WithContext(ctx).Create(&item).Error
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_wishlist_user_product") {
			var existing models.WishlistItem
			loadErr := r.db.WithContext(ctx).
				Where("user_id = ? AND product_id = ?", userID, productID).
				First(&existing).Error
			if loadErr != nil {
				return nil, loadErr
			}
			return &existing, nil
		}
		return nil, err
	}
	return &item, nil
}

// Remove drops the saved product, reporting whether a row was removed.
func (r *Repository) Remove(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.WishlistItem{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
