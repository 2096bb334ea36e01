package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a sellable catalog listing.
//
// StockQuantity is only ever decremented through the conditional UPDATE in the
// stock ledger, so it can never go below zero.
type Product struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name          string          `gorm:"column:name;not null"`
	Slug          string          `gorm:"column:slug;not null;uniqueIndex"`
	SKU           string          `gorm:"column:sku;not null;uniqueIndex"`
	Description   *string         `gorm:"column:description"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	OriginalPrice *decimal.Decimal `gorm:"column:original_price;type:numeric(12,2)"`
	CategoryID    uuid.UUID       `gorm:"column:category_id;type:uuid;not null"`
	StockQuantity int             `gorm:"column:stock_quantity;not null;default:0"`
	InStock       bool            `gorm:"column:in_stock;not null;default:true"`
	IsFeatured    bool            `gorm:"column:is_featured;not null;default:false"`
	IsActive      bool            `gorm:"column:is_active;not null;default:true"`
	Rating        float64         `gorm:"column:rating;type:numeric(3,2);not null;default:0"`
	ReviewsCount  int             `gorm:"column:reviews_count;not null;default:0"`
	Images        []ProductImage  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Available reports whether the product can be added to a cart.
func (p Product) Available() bool {
	return p.IsActive && p.InStock && p.StockQuantity > 0
}

// ProductImage stores gallery entries attached to a product.
type ProductImage struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	URL        string    `gorm:"column:url;not null"`
	AltText    *string   `gorm:"column:alt_text"`
	IsFeatured bool      `gorm:"column:is_featured;not null;default:false"`
	Position   int       `gorm:"column:position;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
