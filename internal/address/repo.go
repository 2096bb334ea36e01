// Package address manages a user's shipping and billing destinations.
package address

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/universepro/estore-backend/pkg/db/models"
)

// AddressRepository defines the persistence surface shared by the CRUD
// service and checkout.
type AddressRepository interface {
	WithTx(tx *gorm.DB) AddressRepository
	FindForUser(ctx context.Context, id, userID uuid.UUID) (*models.Address, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	Create(ctx context.Context, addr *models.Address) error
	Update(ctx context.Context, addr *models.Address) error
	Delete(ctx context.Context, id, userID uuid.UUID) (bool, error)
	ClearDefault(ctx context.Context, userID uuid.UUID) error
}

// Repository is the gorm-backed address store.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an address repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) AddressRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindForUser loads one address, scoped to its owner.
func (r *Repository) FindForUser(ctx context.Context, id, userID uuid.UUID) (*models.Address, error) {
	var addr models.Address
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&addr).Error
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

// ListByUser returns every address the user owns, default first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var addrs []models.Address
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, created_at DESC").
		Find(&addrs).Error
	if err != nil {
		return nil, err
	}
	return addrs, nil
}

// Create inserts a new address row.
func (r *Repository) Create(ctx context.Context, addr *models.Address) error {
	if addr.ID == uuid.Nil {
		addr.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(addr).Error
}

// Update saves the mutable fields of an existing address.
func (r *Repository) Update(ctx context.Context, addr *models.Address) error {
	return r.db.WithContext(ctx).
		Model(&models.Address{}).
		Where("id = ? AND user_id = ?", addr.ID, addr.UserID).
		Updates(map[string]any{
			"first_name":  addr.FirstName,
			"last_name":   addr.LastName,
			"phone":       addr.Phone,
			"line1":       addr.Line1,
			"line2":       addr.Line2,
			"city":        addr.City,
			"state":       addr.State,
			"postal_code": addr.PostalCode,
			"country":     addr.Country,
			"is_default":  addr.IsDefault,
		}).Error
}

// Delete removes the address when the user owns it, reporting whether a row
// was removed.
func (r *Repository) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Address{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ClearDefault unsets the default flag on every address the user owns. Run
// before saving a new default so at most one row carries the flag.
func (r *Repository) ClearDefault(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Address{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Update("is_default", false).Error
}
