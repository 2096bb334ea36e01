package checkout

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/universepro/estore-backend/pkg/db/models"
)

const orderNumberFormat = "CMD-%06d"

// nextOrderNumber mints the next order number inside the settlement
// transaction. The single counter row is incremented with a conditional
// UPDATE so concurrent settlements serialize on it and numbers stay unique
// and strictly increasing.
func nextOrderNumber(ctx context.Context, tx *gorm.DB) (string, error) {
	result := tx.WithContext(ctx).
		Model(&models.OrderSequence{}).
		Where("id = ?", 1).
		Update("last_value", gorm.Expr("last_value + 1"))
	if result.Error != nil {
		return "", result.Error
	}
	if result.RowsAffected == 0 {
		seed := models.OrderSequence{ID: 1, LastValue: 1}
		if err := tx.WithContext(ctx).Create(&seed).Error; err != nil {
			return "", err
		}
		return fmt.Sprintf(orderNumberFormat, seed.LastValue), nil
	}

	var seq models.OrderSequence
	if err := tx.WithContext(ctx).Where("id = ?", 1).First(&seq).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf(orderNumberFormat, seq.LastValue), nil
}
