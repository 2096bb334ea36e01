package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/universepro/estore-backend/api/responses"
	"github.com/universepro/estore-backend/api/validators"
	"github.com/universepro/estore-backend/internal/catalog"
	"github.com/universepro/estore-backend/pkg/db/models"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
	"github.com/universepro/estore-backend/pkg/logger"
	"github.com/universepro/estore-backend/pkg/pagination"
)

type productImageResponse struct {
	URL        string  `json:"url"`
	AltText    *string `json:"alt_text,omitempty"`
	IsFeatured bool    `json:"is_featured"`
	Position   int     `json:"position"`
}

type productResponse struct {
	ID            uuid.UUID              `json:"id"`
	Name          string                 `json:"name"`
	Slug          string                 `json:"slug"`
	SKU           string                 `json:"sku"`
	Description   *string                `json:"description,omitempty"`
	Price         decimal.Decimal        `json:"price"`
	OriginalPrice *decimal.Decimal       `json:"original_price,omitempty"`
	CategoryID    uuid.UUID              `json:"category_id"`
	InStock       bool                   `json:"in_stock"`
	StockQuantity int                    `json:"stock_quantity"`
	IsFeatured    bool                   `json:"is_featured"`
	Rating        float64                `json:"rating"`
	ReviewsCount  int                    `json:"reviews_count"`
	Images        []productImageResponse `json:"images"`
}

type productListResponse struct {
	Items  []productResponse `json:"items"`
	Cursor string            `json:"cursor,omitempty"`
}

type categoryResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Description *string    `json:"description,omitempty"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	ImageURL    *string    `json:"image_url,omitempty"`
	Position    int        `json:"position"`
}

func newProductResponse(product models.Product) productResponse {
	images := make([]productImageResponse, 0, len(product.Images))
	for _, image := range product.Images {
		images = append(images, productImageResponse{
			URL:        image.URL,
			AltText:    image.AltText,
			IsFeatured: image.IsFeatured,
			Position:   image.Position,
		})
	}
	return productResponse{
		ID:            product.ID,
		Name:          product.Name,
		Slug:          product.Slug,
		SKU:           product.SKU,
		Description:   product.Description,
		Price:         product.Price,
		OriginalPrice: product.OriginalPrice,
		CategoryID:    product.CategoryID,
		InStock:       product.InStock,
		StockQuantity: product.StockQuantity,
		IsFeatured:    product.IsFeatured,
		Rating:        product.Rating,
		ReviewsCount:  product.ReviewsCount,
		Images:        images,
	}
}

func newCategoryResponse(category models.Category) categoryResponse {
	return categoryResponse{
		ID:          category.ID,
		Name:        category.Name,
		Slug:        category.Slug,
		Description: category.Description,
		ParentID:    category.ParentID,
		ImageURL:    category.ImageURL,
		Position:    category.Position,
	}
}

// ListProducts serves the storefront catalog page.
func ListProducts(repo catalog.ProductRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		featured, err := validators.ParseQueryBool(r, "featured")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := catalog.ListProductsParams{
			CategorySlug: validators.SanitizeString(r.URL.Query().Get("category"), 128),
			Search:       validators.SanitizeString(r.URL.Query().Get("q"), 128),
			FeaturedOnly: featured,
			Limit:        limit,
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("cursor")); raw != "" {
			cursor, err := pagination.ParseCursor(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
				return
			}
			params.Cursor = cursor
		}

		items, next, err := repo.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products"))
			return
		}

		resp := productListResponse{Items: make([]productResponse, 0, len(items))}
		for _, item := range items {
			resp.Items = append(resp.Items, newProductResponse(item))
		}
		if next != nil {
			resp.Cursor = pagination.EncodeCursor(*next)
		}
		responses.WriteSuccess(w, resp)
	}
}

// GetProduct serves one product detail page by slug.
func GetProduct(repo catalog.ProductRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}

		slug := strings.TrimSpace(chi.URLParam(r, "slug"))
		if slug == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "slug is required"))
			return
		}

		product, err := repo.FindBySlug(r.Context(), slug)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch product"))
			return
		}
		responses.WriteSuccess(w, newProductResponse(*product))
	}
}

// ListCategories serves the category tree.
func ListCategories(repo catalog.ProductRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}

		categories, err := repo.ListCategories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories"))
			return
		}

		resp := make([]categoryResponse, 0, len(categories))
		for _, category := range categories {
			resp = append(resp, newCategoryResponse(category))
		}
		responses.WriteSuccess(w, resp)
	}
}
