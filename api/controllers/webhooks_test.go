package controllers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	paymentsvc "github.com/universepro/estore-backend/internal/payments"
	"github.com/universepro/estore-backend/pkg/db/models"
	"github.com/universepro/estore-backend/pkg/enums"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
	"github.com/universepro/estore-backend/pkg/logger"
	"github.com/universepro/estore-backend/pkg/metrics"
)

type stubPaymentService struct {
	callback    paymentsvc.CallbackInput
	callbackErr error
}

func (s *stubPaymentService) Initiate(context.Context, *models.Order, string, enums.MobileNetwork) (*models.Payment, error) {
	return nil, nil
}

func (s *stubPaymentService) VerifyTransaction(context.Context, uuid.UUID) (*paymentsvc.VerifyResult, error) {
	return nil, nil
}

func (s *stubPaymentService) ApplyCallback(_ context.Context, input paymentsvc.CallbackInput) error {
	s.callback = input
	return s.callbackErr
}

func (s *stubPaymentService) GetPayment(context.Context, uuid.UUID) (*models.Payment, error) {
	return nil, nil
}

func controllerTestLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "controllers-test",
		Level:       zerolog.Disabled,
		Output:      io.Discard,
	})
}

func TestPayGateCallbackAppliesPayload(t *testing.T) {
	svc := &stubPaymentService{}
	handler := PayGateCallback(svc, metrics.NewCheckoutMetrics(nil), controllerTestLogger())

	// The provider posts fields we do not model alongside the ones we do.
	body := `{"tx_reference":"tx-123","identifier":"CMD-000042","status":0,"message":"ok","payment_reference":"ignored"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paygate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if svc.callback.TxReference != "tx-123" {
		t.Fatalf("tx_reference = %q, want tx-123", svc.callback.TxReference)
	}
	if svc.callback.Identifier != "CMD-000042" {
		t.Fatalf("identifier = %q, want CMD-000042", svc.callback.Identifier)
	}
}

func TestPayGateCallbackRejectsDeclinedDebit(t *testing.T) {
	svc := &stubPaymentService{
		callbackErr: pkgerrors.New(pkgerrors.CodeValidation, "insufficient balance"),
	}
	handler := PayGateCallback(svc, metrics.NewCheckoutMetrics(nil), controllerTestLogger())

	body := `{"tx_reference":"tx-9","identifier":"CMD-000007","status":6,"message":"insufficient balance"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paygate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "insufficient balance") {
		t.Fatalf("body %q missing the provider message", rec.Body.String())
	}
}

func TestPayGateCallbackPropagatesUnknownReference(t *testing.T) {
	svc := &stubPaymentService{
		callbackErr: pkgerrors.New(pkgerrors.CodeNotFound, "unknown transaction reference"),
	}
	handler := PayGateCallback(svc, metrics.NewCheckoutMetrics(nil), controllerTestLogger())

	body := `{"tx_reference":"tx-missing","identifier":"CMD-000001","status":0}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paygate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
