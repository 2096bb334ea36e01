// Package stock guards product quantities with conditional updates so two
// concurrent settlements can never oversell the same unit.
package stock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/universepro/estore-backend/pkg/db/models"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
)

// LineRequest asks for a quantity of one product.
type LineRequest struct {
	ProductID uuid.UUID
	Quantity  int
}

// Commit decrements stock for every line inside the caller's transaction.
// The decrement only applies when enough stock remains; a failed line aborts
// with INSUFFICIENT_STOCK so the transaction rolls back as a whole.
func Commit(ctx context.Context, tx *gorm.DB, requests []LineRequest) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "stock commit requires a transaction")
	}
	for _, req := range requests {
		if req.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if req.Quantity < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
		}

		result := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND stock_quantity >= ?", req.ProductID, req.Quantity).
			Updates(map[string]any{
				"stock_quantity": gorm.Expr("stock_quantity - ?", req.Quantity),
				"in_stock":       gorm.Expr("stock_quantity - ? > 0", req.Quantity),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.WithContext(ctx).
				Model(&models.Product{}).
				Where("id = ?", req.ProductID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", req.ProductID))
			}
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("insufficient stock for product %s", req.ProductID))
		}
	}
	return nil
}

// Release returns previously committed quantities, used when an order is
// cancelled. Restocked products become orderable again.
func Release(ctx context.Context, tx *gorm.DB, requests []LineRequest) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "stock release requires a transaction")
	}
	for _, req := range requests {
		if req.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if req.Quantity < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
		}

		err := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ?", req.ProductID).
			Updates(map[string]any{
				"stock_quantity": gorm.Expr("stock_quantity + ?", req.Quantity),
				"in_stock":       true,
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}
