package stock

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/universepro/estore-backend/pkg/db/dbtest"
	"github.com/universepro/estore-backend/pkg/db/models"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
)

func seedProduct(t *testing.T, db *gorm.DB, qty int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	product := models.Product{
		ID:            id,
		Name:          "Amplifier",
		Slug:          "amplifier-" + id.String(),
		SKU:           "AMP-" + id.String(),
		Price:         decimal.NewFromInt(45000),
		CategoryID:    uuid.New(),
		StockQuantity: qty,
		InStock:       qty > 0,
		IsActive:      true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return id
}

func TestCommitDecrementsAndFlipsInStock(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	ctx := context.Background()
	productID := seedProduct(t, db, 3)

	err := db.Transaction(func(tx *gorm.DB) error {
		return Commit(ctx, tx, []LineRequest{{ProductID: productID, Quantity: 3}})
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	var product models.Product
	if err := db.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if product.StockQuantity != 0 {
		t.Fatalf("expected zero stock, got %d", product.StockQuantity)
	}
	if product.InStock {
		t.Fatal("expected in_stock to flip false at zero")
	}
}

func TestCommitInsufficientStockRollsBack(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	ctx := context.Background()
	healthy := seedProduct(t, db, 10)
	scarce := seedProduct(t, db, 1)

	err := db.Transaction(func(tx *gorm.DB) error {
		return Commit(ctx, tx, []LineRequest{
			{ProductID: healthy, Quantity: 2},
			{ProductID: scarce, Quantity: 2},
		})
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}

	// the healthy decrement must have rolled back with the failed line
	var product models.Product
	if err := db.First(&product, "id = ?", healthy).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if product.StockQuantity != 10 {
		t.Fatalf("expected untouched stock, got %d", product.StockQuantity)
	}
}

func TestCommitUnknownProduct(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	err := db.Transaction(func(tx *gorm.DB) error {
		return Commit(context.Background(), tx, []LineRequest{{ProductID: uuid.New(), Quantity: 1}})
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestCommitRejectsInvalidQuantity(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	productID := seedProduct(t, db, 5)

	err := db.Transaction(func(tx *gorm.DB) error {
		return Commit(context.Background(), tx, []LineRequest{{ProductID: productID, Quantity: 0}})
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReleaseRestocks(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	ctx := context.Background()
	productID := seedProduct(t, db, 0)

	err := db.Transaction(func(tx *gorm.DB) error {
		return Release(ctx, tx, []LineRequest{{ProductID: productID, Quantity: 4}})
	})
	if err != nil {
		t.Fatalf("release: %v", err)
	}

	var product models.Product
	if err := db.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if product.StockQuantity != 4 || !product.InStock {
		t.Fatalf("unexpected product state after release: qty=%d in_stock=%v", product.StockQuantity, product.InStock)
	}
}
