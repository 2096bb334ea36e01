package paygate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/universepro/estore-backend/pkg/config"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
	"github.com/universepro/estore-backend/pkg/logger"
)

const maxResponseBytes = 1 << 20

var (
	errAPIKeyRequired = errors.New("paygate api key is required")
	errPayURLRequired = errors.New("paygate pay url is required")
	errLoggerRequired = errors.New("paygate logger is required")
)

// Client exposes the PayGateGlobal endpoints with centralized auth, logging,
// and error mapping.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	payURL      string
	statusURL   string
	callbackURL string
	logger      *logger.Logger
}

// NewClient initializes the PayGate wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.PayGateConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if strings.TrimSpace(cfg.PayURL) == "" {
		return nil, errPayURLRequired
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		apiKey:      apiKey,
		payURL:      cfg.PayURL,
		statusURL:   cfg.StatusURL,
		callbackURL: cfg.CallbackURL,
		logger:      logg,
	}

	logg.Info(ctx, "paygate client initialized")
	return c, nil
}

// InitiatePayment asks the provider to debit the subscriber's wallet. A
// provider-declared failure code is returned in the result, not as an error;
// only transport and decoding problems produce an error.
func (c *Client) InitiatePayment(ctx context.Context, params InitiatePaymentParams) (*InitiateResult, error) {
	if !params.Network.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported mobile network %q", params.Network))
	}
	req := initiateRequest{
		AuthToken:   c.apiKey,
		PhoneNumber: params.PhoneNumber,
		Amount:      json.Number(params.Amount.String()),
		Identifier:  params.Identifier,
		Network:     params.Network.String(),
		Description: params.Description,
		CallbackURL: c.callbackURL,
	}
	c.log(ctx, "request", "initiate_payment", map[string]any{
		"identifier":   params.Identifier,
		"network":      params.Network.String(),
		"amount":       params.Amount.String(),
		"phone_number": params.PhoneNumber,
	})

	raw, err := c.post(ctx, c.payURL, req)
	if err != nil {
		c.log(ctx, "error", "initiate_payment", map[string]any{"error": err.Error()})
		return nil, c.mapTransportError(err, "initiate payment")
	}

	var resp initiateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.log(ctx, "error", "initiate_payment", map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paygate initiate payment returned malformed body")
	}

	c.log(ctx, "response", "initiate_payment", map[string]any{
		"status":       resp.Status,
		"tx_reference": resp.TxReference,
	})
	return &InitiateResult{
		Status:      resp.Status,
		TxReference: resp.TxReference,
		Message:     resp.Message,
		Raw:         raw,
	}, nil
}

// CheckStatus polls the provider for the current state of a transaction.
func (c *Client) CheckStatus(ctx context.Context, txReference string) (*StatusResult, error) {
	if strings.TrimSpace(txReference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction reference is required")
	}
	req := statusRequest{
		AuthToken:   c.apiKey,
		TxReference: txReference,
	}
	c.log(ctx, "request", "check_status", map[string]any{"tx_reference": txReference})

	raw, err := c.post(ctx, c.statusURL, req)
	if err != nil {
		c.log(ctx, "error", "check_status", map[string]any{"error": err.Error()})
		return nil, c.mapTransportError(err, "check status")
	}

	var resp statusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.log(ctx, "error", "check_status", map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paygate check status returned malformed body")
	}

	c.log(ctx, "response", "check_status", map[string]any{
		"status":       resp.Status,
		"tx_reference": txReference,
	})
	return &StatusResult{
		Success: resp.Status == StatusAccepted,
		Status:  resp.Status,
		Message: resp.Message,
		Raw:     raw,
	}, nil
}

// CallbackURL returns the configured provider callback target.
func (c *Client) CallbackURL() string {
	if c == nil {
		return ""
	}
	return c.callbackURL
}

func (c *Client) post(ctx context.Context, url string, body any) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("paygate returned HTTP %d: %s", httpResp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

func (c *Client) mapTransportError(err error, op string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("paygate %s failed", op))
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("paygate %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("paygate %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "secret", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
