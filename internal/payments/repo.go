// Package payments owns the provider transaction lifecycle: initiation,
// polling, and the unauthenticated provider callback.
package payments

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/universepro/estore-backend/pkg/db/models"
	"github.com/universepro/estore-backend/pkg/enums"
)

// PaymentRepository defines the persistence surface of the payment lifecycle.
type PaymentRepository interface {
	WithTx(tx *gorm.DB) PaymentRepository
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByTransactionID(ctx context.Context, txRef string) (*models.Payment, error)
	FindLatestByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	TransitionStatus(ctx context.Context, paymentID uuid.UUID, from, to enums.PaymentStatus) (bool, error)
	MarkOrderPaid(ctx context.Context, orderID uuid.UUID) error
	RecordAttempt(ctx context.Context, orderID uuid.UUID, request, response json.RawMessage) error
}

// Repository is the gorm-backed payment store.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a payment repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) PaymentRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new payment row.
func (r *Repository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(payment).Error
}

// FindByID loads one payment.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByTransactionID loads the payment carrying the provider reference.
func (r *Repository) FindByTransactionID(ctx context.Context, txRef string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("transaction_id = ?", txRef).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindLatestByOrder returns the most recent payment for the order.
func (r *Repository) FindLatestByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC, id DESC").
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// TransitionStatus moves a payment from one status to another atomically.
// It reports false when the row was not in the expected source status, which
// is how replayed callbacks become no-ops.
func (r *Repository) TransitionStatus(ctx context.Context, paymentID uuid.UUID, from, to enums.PaymentStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", paymentID, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkOrderPaid flips the order's payment flag.
func (r *Repository) MarkOrderPaid(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("payment_status", true).Error
}

// RecordAttempt appends one raw provider exchange for audit. Attempts are
// written even when no payment row is created.
func (r *Repository) RecordAttempt(ctx context.Context, orderID uuid.UUID, request, response json.RawMessage) error {
	attempt := models.PaymentAttempt{
		ID:           uuid.New(),
		OrderID:      orderID,
		RequestData:  request,
		ResponseData: response,
	}
	return r.db.WithContext(ctx).Create(&attempt).Error
}
