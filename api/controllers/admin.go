package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/universepro/estore-backend/api/responses"
	"github.com/universepro/estore-backend/api/validators"
	"github.com/universepro/estore-backend/internal/coupons"
	ordersvc "github.com/universepro/estore-backend/internal/orders"
	"github.com/universepro/estore-backend/pkg/db/models"
	"github.com/universepro/estore-backend/pkg/enums"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
	"github.com/universepro/estore-backend/pkg/logger"
)

// AdminListOrders pages through all orders regardless of owner.
func AdminListOrders(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		opts, err := listOptionsFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.AdminList(r.Context(), opts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderListResponse(page))
	}
}

type adminOrderStatusRequest struct {
	Status         string  `json:"status" validate:"required"`
	TrackingNumber *string `json:"tracking_number"`
}

// AdminUpdateOrderStatus moves an order one step forward in its lifecycle.
func AdminUpdateOrderStatus(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		number, err := orderNumberParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adminOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		next, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		order, err := svc.AdminUpdateStatus(r.Context(), number, next, payload.TrackingNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(*order))
	}
}

type adminCreateCouponRequest struct {
	Code              string      `json:"code" validate:"required,max=64"`
	Description       *string     `json:"description"`
	DiscountType      string      `json:"discount_type" validate:"required"`
	DiscountValue     string      `json:"discount_value" validate:"required"`
	MinOrderAmount    string      `json:"min_order_amount"`
	MaxDiscountAmount *string     `json:"max_discount_amount"`
	ValidFrom         time.Time   `json:"valid_from" validate:"required"`
	ValidTo           time.Time   `json:"valid_to" validate:"required"`
	MaxUses           int         `json:"max_uses" validate:"min=0"`
	IsActive          *bool       `json:"is_active"`
	ProductIDs        []uuid.UUID `json:"product_ids"`
	CategoryIDs       []uuid.UUID `json:"category_ids"`
}

type adminCouponResponse struct {
	ID            uuid.UUID       `json:"id"`
	Code          string          `json:"code"`
	DiscountType  string          `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	ValidFrom     time.Time       `json:"valid_from"`
	ValidTo       time.Time       `json:"valid_to"`
	MaxUses       int             `json:"max_uses"`
	IsActive      bool            `json:"is_active"`
}

// AdminCreateCoupon registers a new discount code, optionally scoped to a set
// of products or categories.
func AdminCreateCoupon(repo *coupons.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon store unavailable"))
			return
		}

		var payload adminCreateCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		discountType, err := enums.ParseDiscountType(payload.DiscountType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount_type"))
			return
		}
		value, err := decimal.NewFromString(payload.DiscountValue)
		if err != nil || value.LessThanOrEqual(decimal.Zero) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "discount_value must be a positive decimal"))
			return
		}
		if discountType == enums.DiscountTypePercentage && value.GreaterThan(decimal.NewFromInt(100)) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "a percentage discount cannot exceed 100"))
			return
		}
		minOrder := decimal.Zero
		if payload.MinOrderAmount != "" {
			minOrder, err = decimal.NewFromString(payload.MinOrderAmount)
			if err != nil || minOrder.IsNegative() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "min_order_amount must be a non-negative decimal"))
				return
			}
		}
		var maxDiscount *decimal.Decimal
		if payload.MaxDiscountAmount != nil {
			parsed, err := decimal.NewFromString(*payload.MaxDiscountAmount)
			if err != nil || parsed.LessThanOrEqual(decimal.Zero) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "max_discount_amount must be a positive decimal"))
				return
			}
			maxDiscount = &parsed
		}
		if !payload.ValidTo.After(payload.ValidFrom) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "valid_to must be after valid_from"))
			return
		}

		coupon := models.Coupon{
			Code:              payload.Code,
			Description:       payload.Description,
			DiscountType:      discountType,
			DiscountValue:     value,
			MinOrderAmount:    minOrder,
			MaxDiscountAmount: maxDiscount,
			ValidFrom:         payload.ValidFrom,
			ValidTo:           payload.ValidTo,
			MaxUses:           payload.MaxUses,
			IsActive:          true,
		}
		if payload.IsActive != nil {
			coupon.IsActive = *payload.IsActive
		}
		for _, id := range payload.ProductIDs {
			coupon.Products = append(coupon.Products, models.Product{ID: id})
		}
		for _, id := range payload.CategoryIDs {
			coupon.Categories = append(coupon.Categories, models.Category{ID: id})
		}

		if err := repo.Create(r.Context(), &coupon); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, adminCouponResponse{
			ID:            coupon.ID,
			Code:          coupon.Code,
			DiscountType:  string(coupon.DiscountType),
			DiscountValue: coupon.DiscountValue,
			ValidFrom:     coupon.ValidFrom,
			ValidTo:       coupon.ValidTo,
			MaxUses:       coupon.MaxUses,
			IsActive:      coupon.IsActive,
		})
	}
}
