package controllers

import (
	"net/http"

	"github.com/universepro/estore-backend/api/responses"
	"github.com/universepro/estore-backend/api/validators"
	paymentsvc "github.com/universepro/estore-backend/internal/payments"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
	"github.com/universepro/estore-backend/pkg/logger"
	"github.com/universepro/estore-backend/pkg/metrics"
)

// PayGateCallback receives the provider's unauthenticated payment
// confirmation POST. The body is decoded leniently because the provider sends
// fields we do not model, and authenticity comes from matching both the
// transaction reference and the order identifier against our own records.
func PayGateCallback(svc paymentsvc.Service, checkoutMetrics *metrics.CheckoutMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload paymentsvc.CallbackInput
		if err := validators.DecodeJSONBodyLenient(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.ApplyCallback(r.Context(), payload); err != nil {
			checkoutMetrics.IncPaymentCallback("rejected")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		checkoutMetrics.IncPaymentCallback("applied")
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}
