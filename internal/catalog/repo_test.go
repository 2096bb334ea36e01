package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/universepro/estore-backend/pkg/db/dbtest"
	"github.com/universepro/estore-backend/pkg/db/models"
)

func seedCategory(t *testing.T, db *gorm.DB, slug string, position int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	category := models.Category{
		ID:       id,
		Name:     slug,
		Slug:     slug,
		Position: position,
		IsActive: true,
	}
	if err := db.Create(&category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	return id
}

func seedProduct(t *testing.T, db *gorm.DB, categoryID uuid.UUID, name string, active bool, createdAt time.Time) models.Product {
	t.Helper()
	id := uuid.New()
	product := models.Product{
		ID:         id,
		Name:       name,
		Slug:       name + "-" + id.String()[:8],
		SKU:        "SKU-" + id.String()[:8],
		Price:      decimal.NewFromInt(10000),
		CategoryID: categoryID,
		IsActive:   active,
		InStock:    true,
		CreatedAt:  createdAt,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func TestListFiltersInactiveAndCategory(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	ctx := context.Background()
	repo := NewRepository(db)

	audio := seedCategory(t, db, "audio", 1)
	video := seedCategory(t, db, "video", 2)
	now := time.Now()
	seedProduct(t, db, audio, "speaker", true, now.Add(-3*time.Minute))
	seedProduct(t, db, audio, "hidden", false, now.Add(-2*time.Minute))
	seedProduct(t, db, video, "projector", true, now.Add(-1*time.Minute))

	products, _, err := repo.List(ctx, ListProductsParams{CategorySlug: "audio"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(products) != 1 || products[0].Name != "speaker" {
		t.Fatalf("unexpected listing %+v", products)
	}

	all, _, err := repo.List(ctx, ListProductsParams{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected inactive products excluded, got %d rows", len(all))
	}
}

func TestListPaginates(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	ctx := context.Background()
	repo := NewRepository(db)
	category := seedCategory(t, db, "gear", 1)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		seedProduct(t, db, category, "item", true, base.Add(time.Duration(i)*time.Minute))
	}

	first, cursor, err := repo.List(ctx, ListProductsParams{Limit: 3})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first) != 3 || cursor == nil {
		t.Fatalf("expected full first page with cursor, got %d rows", len(first))
	}

	second, last, err := repo.List(ctx, ListProductsParams{Limit: 3, Cursor: cursor})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second) != 2 || last != nil {
		t.Fatalf("expected final page of 2, got %d rows (cursor %v)", len(second), last)
	}
}

func TestFindBySlugSkipsInactive(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	ctx := context.Background()
	repo := NewRepository(db)
	category := seedCategory(t, db, "misc", 1)
	hidden := seedProduct(t, db, category, "ghost", false, time.Now())

	if _, err := repo.FindBySlug(ctx, hidden.Slug); err == nil {
		t.Fatal("expected inactive product to be invisible by slug")
	}

	visible := seedProduct(t, db, category, "lamp", true, time.Now())
	found, err := repo.FindBySlug(ctx, visible.Slug)
	if err != nil {
		t.Fatalf("find by slug: %v", err)
	}
	if found.ID != visible.ID {
		t.Fatalf("unexpected product %s", found.ID)
	}
}

func TestListCategoriesOrdered(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	repo := NewRepository(db)
	seedCategory(t, db, "second", 2)
	seedCategory(t, db, "first", 1)

	categories, err := repo.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(categories) != 2 || categories[0].Slug != "first" {
		t.Fatalf("unexpected category order %+v", categories)
	}
}
