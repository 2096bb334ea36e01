package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/universepro/estore-backend/api/responses"
	"github.com/universepro/estore-backend/api/validators"
	"github.com/universepro/estore-backend/internal/address"
	checkoutsvc "github.com/universepro/estore-backend/internal/checkout"
	"github.com/universepro/estore-backend/pkg/db/models"
	"github.com/universepro/estore-backend/pkg/enums"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
	"github.com/universepro/estore-backend/pkg/logger"
)

type checkoutRequest struct {
	AddressID     *uuid.UUID     `json:"address_id"`
	Address       *address.Input `json:"address"`
	PaymentMethod string         `json:"payment_method" validate:"required"`
	PhoneNumber   string         `json:"phone_number"`
	Network       string         `json:"network"`
	Note          *string        `json:"note"`
}

type checkoutResponse struct {
	Order          orderSummary    `json:"order"`
	Payment        *paymentSummary `json:"payment,omitempty"`
	Redirect       string          `json:"redirect"`
	PaymentMessage string          `json:"payment_message,omitempty"`
}

type orderSummary struct {
	OrderNumber    string          `json:"order_number"`
	Status         string          `json:"status"`
	PaymentMethod  string          `json:"payment_method"`
	Paid           bool            `json:"paid"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	CouponDiscount decimal.Decimal `json:"coupon_discount"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	Total          decimal.Decimal `json:"total"`
}

type paymentSummary struct {
	ID            uuid.UUID       `json:"id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transaction_id,omitempty"`
}

func newOrderSummary(order *models.Order) orderSummary {
	return orderSummary{
		OrderNumber:    order.OrderNumber,
		Status:         string(order.Status),
		PaymentMethod:  string(order.PaymentMethod),
		Paid:           order.PaymentStatus,
		Subtotal:       order.Subtotal,
		CouponDiscount: order.CouponDiscount,
		ShippingCost:   order.ShippingCost,
		Total:          order.Total,
	}
}

func newPaymentSummary(payment *models.Payment) *paymentSummary {
	if payment == nil {
		return nil
	}
	summary := &paymentSummary{
		ID:     payment.ID,
		Status: string(payment.Status),
		Amount: payment.Amount,
	}
	if payment.TransactionID != nil {
		summary.TransactionID = *payment.TransactionID
	}
	return summary
}

// Checkout settles the authenticated user's cart into an order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_method"))
			return
		}

		input := checkoutsvc.SettleInput{
			AddressID:     payload.AddressID,
			NewAddress:    payload.Address,
			PaymentMethod: method,
			PhoneNumber:   strings.TrimSpace(payload.PhoneNumber),
			Note:          payload.Note,
		}
		if raw := strings.TrimSpace(payload.Network); raw != "" {
			network, err := enums.ParseMobileNetwork(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid network"))
				return
			}
			input.Network = network
		}

		result, err := svc.Settle(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			Order:          newOrderSummary(result.Order),
			Payment:        newPaymentSummary(result.Payment),
			Redirect:       result.Redirect,
			PaymentMessage: result.PaymentMessage,
		})
	}
}
