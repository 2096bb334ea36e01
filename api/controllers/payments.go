package controllers

import (
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/universepro/estore-backend/api/responses"
	ordersvc "github.com/universepro/estore-backend/internal/orders"
	paymentsvc "github.com/universepro/estore-backend/internal/payments"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
	"github.com/universepro/estore-backend/pkg/logger"
)

// PaymentStatus polls the provider for one payment's outcome. The order the
// payment belongs to must be owned by the caller; anything else reads as a
// missing payment so ownership is never probeable.
func PaymentStatus(payments paymentsvc.Service, orders ordersvc.OrderRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if payments == nil || orders == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		paymentID, err := uuidParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := payments.GetPayment(r.Context(), paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := orders.FindByIDForUser(r.Context(), payment.OrderID, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order"))
			return
		}

		result, err := payments.VerifyTransaction(r.Context(), payment.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
