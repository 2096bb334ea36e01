package wishlist

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/universepro/estore-backend/internal/catalog"
	"github.com/universepro/estore-backend/pkg/db/dbtest"
	"github.com/universepro/estore-backend/pkg/db/models"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
)

func newService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), catalog.NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedProduct(t *testing.T, db *gorm.DB) *models.Product {
	t.Helper()
	id := uuid.New()
	product := models.Product{
		ID:            id,
		Name:          "Headphone amp",
		Slug:          "headphone-amp-" + id.String()[:8],
		SKU:           "HA-" + id.String()[:8],
		Price:         decimal.NewFromInt(25000),
		CategoryID:    uuid.New(),
		StockQuantity: 4,
		InStock:       true,
		IsActive:      true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return &product
}

func TestAddIsIdempotentPerProduct(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	ctx := context.Background()
	svc := newService(t, db)
	userID := uuid.New()
	product := seedProduct(t, db)

	first, err := svc.Add(ctx, userID, product.ID)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	second, err := svc.Add(ctx, userID, product.ID)
	if err != nil {
		t.Fatalf("duplicate add: %v", err)
	}
	if first.ID != second.ID {
		t.Fatal("duplicate add must reuse the existing row")
	}

	items, err := svc.List(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one saved product, got %d", len(items))
	}
	if items[0].Product == nil || items[0].Product.ID != product.ID {
		t.Fatalf("expected preloaded product, got %+v", items[0].Product)
	}
}

func TestAddUnknownProduct(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	svc := newService(t, db)

	_, err := svc.Add(context.Background(), uuid.New(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	ctx := context.Background()
	svc := newService(t, db)
	userID := uuid.New()
	product := seedProduct(t, db)

	if _, err := svc.Add(ctx, userID, product.ID); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Remove(ctx, userID, product.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	err := svc.Remove(ctx, userID, product.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found on second remove, got %v", err)
	}

	items, err := svc.List(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty wishlist, got %d", len(items))
	}
}
