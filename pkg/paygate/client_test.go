package paygate

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/universepro/estore-backend/pkg/config"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
	"github.com/universepro/estore-backend/pkg/enums"
	"github.com/universepro/estore-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "paygate-test",
		Level:       zerolog.Disabled,
		Output:      io.Discard,
	})
}

func newTestClient(t *testing.T, payURL, statusURL string) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), config.PayGateConfig{
		APIKey:      "test-token",
		PayURL:      payURL,
		StatusURL:   statusURL,
		CallbackURL: "https://shop.example/webhooks/paygate",
		Timeout:     5 * time.Second,
	}, testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestInitiatePaymentAccepted(t *testing.T) {
	var captured initiateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":0,"tx_reference":"TX1","message":"accepted"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, srv.URL)
	res, err := c.InitiatePayment(context.Background(), InitiatePaymentParams{
		PhoneNumber: "+22890112233",
		Amount:      decimal.NewFromInt(15000),
		Identifier:  "CMD-000042",
		Network:     enums.MobileNetworkFlooz,
		Description: "order CMD-000042",
	})
	if err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}
	if !res.Accepted() {
		t.Fatalf("expected accepted result, got status %d", res.Status)
	}
	if res.TxReference != "TX1" {
		t.Fatalf("unexpected tx reference %q", res.TxReference)
	}

	if captured.AuthToken != "test-token" {
		t.Fatalf("auth token not injected, got %q", captured.AuthToken)
	}
	if captured.Identifier != "CMD-000042" {
		t.Fatalf("unexpected identifier %q", captured.Identifier)
	}
	if captured.Network != "FLOOZ" {
		t.Fatalf("unexpected network %q", captured.Network)
	}
	if captured.CallbackURL != "https://shop.example/webhooks/paygate" {
		t.Fatalf("callback url not injected, got %q", captured.CallbackURL)
	}
	if captured.Amount.String() != "15000" {
		t.Fatalf("unexpected amount %q", captured.Amount.String())
	}
}

func TestInitiatePaymentProviderFailureIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":7,"message":"insufficient balance"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, srv.URL)
	res, err := c.InitiatePayment(context.Background(), InitiatePaymentParams{
		PhoneNumber: "+22890112233",
		Amount:      decimal.NewFromInt(5000),
		Identifier:  "CMD-000043",
		Network:     enums.MobileNetworkTMoney,
	})
	if err != nil {
		t.Fatalf("provider-declared failure should not be a transport error: %v", err)
	}
	if res.Accepted() {
		t.Fatal("expected rejected result")
	}
	if res.Status != 7 || res.Message != "insufficient balance" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestInitiatePaymentRejectsUnknownNetwork(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:0", "http://127.0.0.1:0")
	_, err := c.InitiatePayment(context.Background(), InitiatePaymentParams{
		PhoneNumber: "+22890112233",
		Amount:      decimal.NewFromInt(5000),
		Identifier:  "CMD-000044",
		Network:     enums.MobileNetwork("MPESA"),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestInitiatePaymentTransportErrorMapsToDependency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, srv.URL)
	_, err := c.InitiatePayment(context.Background(), InitiatePaymentParams{
		PhoneNumber: "+22890112233",
		Amount:      decimal.NewFromInt(5000),
		Identifier:  "CMD-000045",
		Network:     enums.MobileNetworkFlooz,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestCheckStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req statusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.TxReference != "TX9" {
			t.Fatalf("unexpected tx reference %q", req.TxReference)
		}
		_, _ = w.Write([]byte(`{"status":0,"message":"paid"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, srv.URL)
	res, err := c.CheckStatus(context.Background(), "TX9")
	if err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
}

func TestCheckStatusPendingIsNotSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":2,"message":"in progress"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, srv.URL)
	res, err := c.CheckStatus(context.Background(), "TX10")
	if err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if res.Success {
		t.Fatal("in-progress poll must not be success")
	}
	if res.Status != 2 {
		t.Fatalf("unexpected status %d", res.Status)
	}
}

func TestRedact(t *testing.T) {
	c := &Client{}
	if out := c.redact("phone_number", "+22890112233"); out != "[REDACTED]" {
		t.Fatalf("expected redacted value, got %v", out)
	}
	if v := c.redact("status", "ok"); v != "ok" {
		t.Fatalf("unexpected redaction for safe key")
	}
}
