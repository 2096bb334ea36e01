package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/universepro/estore-backend/api/responses"
	"github.com/universepro/estore-backend/api/validators"
	ordersvc "github.com/universepro/estore-backend/internal/orders"
	paymentsvc "github.com/universepro/estore-backend/internal/payments"
	"github.com/universepro/estore-backend/pkg/db/models"
	"github.com/universepro/estore-backend/pkg/enums"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
	"github.com/universepro/estore-backend/pkg/logger"
	"github.com/universepro/estore-backend/pkg/pagination"
)

type orderItemResponse struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

type orderAddressResponse struct {
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	Phone      string  `json:"phone"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      *string `json:"state,omitempty"`
	PostalCode *string `json:"postal_code,omitempty"`
	Country    string  `json:"country"`
}

type orderResponse struct {
	OrderNumber     string                `json:"order_number"`
	Status          string                `json:"status"`
	PaymentMethod   string                `json:"payment_method"`
	Paid            bool                  `json:"paid"`
	Subtotal        decimal.Decimal       `json:"subtotal"`
	CouponDiscount  decimal.Decimal       `json:"coupon_discount"`
	ShippingCost    decimal.Decimal       `json:"shipping_cost"`
	Total           decimal.Decimal       `json:"total"`
	Note            *string               `json:"note,omitempty"`
	TrackingNumber  *string               `json:"tracking_number,omitempty"`
	Items           []orderItemResponse   `json:"items"`
	ShippingAddress *orderAddressResponse `json:"shipping_address,omitempty"`
	ShippedAt       *time.Time            `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time            `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time            `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

type orderListResponse struct {
	Items  []orderResponse `json:"items"`
	Cursor string          `json:"cursor,omitempty"`
}

func newOrderResponse(order models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			SKU:         item.SKU,
			Quantity:    item.Quantity,
			Price:       item.Price,
			TotalPrice:  item.TotalPrice,
		})
	}
	resp := orderResponse{
		OrderNumber:    order.OrderNumber,
		Status:         string(order.Status),
		PaymentMethod:  string(order.PaymentMethod),
		Paid:           order.PaymentStatus,
		Subtotal:       order.Subtotal,
		CouponDiscount: order.CouponDiscount,
		ShippingCost:   order.ShippingCost,
		Total:          order.Total,
		Note:           order.Note,
		TrackingNumber: order.TrackingNumber,
		Items:          items,
		ShippedAt:      order.ShippedAt,
		DeliveredAt:    order.DeliveredAt,
		CancelledAt:    order.CancelledAt,
		CreatedAt:      order.CreatedAt,
	}
	if addr := order.ShippingAddress; addr != nil {
		resp.ShippingAddress = &orderAddressResponse{
			FirstName:  addr.FirstName,
			LastName:   addr.LastName,
			Phone:      addr.Phone,
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
		}
	}
	return resp
}

func newOrderListResponse(page *ordersvc.Page) orderListResponse {
	resp := orderListResponse{
		Items:  make([]orderResponse, 0, len(page.Orders)),
		Cursor: page.NextCursor,
	}
	for _, order := range page.Orders {
		resp.Items = append(resp.Items, newOrderResponse(order))
	}
	return resp
}

func listOptionsFromQuery(r *http.Request) (ordersvc.ListOptions, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return ordersvc.ListOptions{}, err
	}
	return ordersvc.ListOptions{
		Status: validators.SanitizeString(r.URL.Query().Get("status"), 32),
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}

// ListOrders pages through the caller's order history.
func ListOrders(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		opts, err := listOptionsFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), userID, opts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderListResponse(page))
	}
}

// GetOrder returns one order with its lines and destination.
func GetOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		number, err := orderNumberParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), userID, number)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(*order))
	}
}

// CancelOrder cancels an unshipped order and returns its lines to stock.
func CancelOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		number, err := orderNumberParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Cancel(r.Context(), userID, number)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(*order))
	}
}

type payOrderRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
	Network     string `json:"network" validate:"required"`
}

type payOrderResponse struct {
	Payment paymentSummary `json:"payment"`
}

// PayOrder starts a mobile-money charge for an unpaid order. Retrying after a
// failed attempt creates a fresh payment; an already-paid order is rejected.
func PayOrder(orders ordersvc.Service, payments paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if orders == nil || payments == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		number, err := orderNumberParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload payOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		network, err := enums.ParseMobileNetwork(payload.Network)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid network"))
			return
		}

		order, err := orders.Get(r.Context(), userID, number)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := payments.Initiate(r.Context(), order, strings.TrimSpace(payload.PhoneNumber), network)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, payOrderResponse{
			Payment: *newPaymentSummary(payment),
		})
	}
}
