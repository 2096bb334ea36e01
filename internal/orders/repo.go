// Package orders reads and transitions settled orders. Creation lives in
// checkout; this package only moves orders forward through their lifecycle.
package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/universepro/estore-backend/pkg/db/models"
	"github.com/universepro/estore-backend/pkg/enums"
	"github.com/universepro/estore-backend/pkg/pagination"
)

// ListParams filters order history. A Nil UserID lists across all users,
// which only the admin surface does.
type ListParams struct {
	UserID uuid.UUID
	Status *enums.OrderStatus
	Limit  int
	Cursor *pagination.Cursor
}

// OrderRepository defines the persistence surface of the order lifecycle.
type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository
	FindByNumber(ctx context.Context, number string) (*models.Order, error)
	FindByNumberForUser(ctx context.Context, number string, userID uuid.UUID) (*models.Order, error)
	FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params ListParams) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, stamp map[string]any) (bool, error)
}

// Repository is the gorm-backed order store.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an order repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) OrderRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByNumber loads one order with its lines and destination, regardless of
// owner. Used by the provider callback path and the receipt consumer, where
// the only key is the order number.
func (r *Repository) FindByNumber(ctx context.Context, number string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("ShippingAddress").
		Where("order_number = ?", number).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByNumberForUser loads one order scoped to its owner, with lines and the
// shipping address for the detail view.
func (r *Repository) FindByNumberForUser(ctx context.Context, number string, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("ShippingAddress").
		Where("order_number = ? AND user_id = ?", number, userID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUser loads one order scoped to its owner, without relations. The
// payment polling endpoint uses it to check that the caller owns the order a
// payment belongs to.
func (r *Repository) FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// List pages through orders newest first.
func (r *Repository) List(ctx context.Context, params ListParams) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	if params.UserID != uuid.Nil {
		query = query.Where("user_id = ?", params.UserID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus moves an order between statuses with a conditional UPDATE so
// concurrent transitions cannot skip or repeat a step. Extra columns in stamp
// are written alongside the status (timestamps, tracking numbers).
func (r *Repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, stamp map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for column, value := range stamp {
		updates[column] = value
	}
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
