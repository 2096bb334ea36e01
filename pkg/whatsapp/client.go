// Package whatsapp wraps the outbound WhatsApp gateway used for order
// receipts. The gateway is optional: an unconfigured client reports itself
// disabled and sends nothing.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/universepro/estore-backend/pkg/config"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
	"github.com/universepro/estore-backend/pkg/logger"
)

const maxResponseBytes = 64 << 10

// Sender is the outbound message surface consumers depend on.
type Sender interface {
	Enabled() bool
	Send(ctx context.Context, to, message string) error
}

// Client posts plain-text messages to the gateway.
type Client struct {
	httpClient *http.Client
	gatewayURL string
	token      string
	sender     string
	logger     *logger.Logger
}

type sendRequest struct {
	Token   string `json:"token"`
	Sender  string `json:"sender"`
	To      string `json:"to"`
	Message string `json:"message"`
}

// NewClient initializes the gateway wrapper. An empty gateway URL yields a
// disabled client, not an error, so receipts degrade to log lines in
// environments without the gateway.
func NewClient(ctx context.Context, cfg config.WhatsAppConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, fmt.Errorf("whatsapp logger is required")
	}
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		gatewayURL: strings.TrimSpace(cfg.GatewayURL),
		token:      strings.TrimSpace(cfg.GatewayToken),
		sender:     strings.TrimSpace(cfg.SenderNumber),
		logger:     logg,
	}
	if c.Enabled() {
		logg.Info(ctx, "whatsapp gateway client initialized")
	} else {
		logg.Warn(ctx, "whatsapp gateway not configured, receipts will not be sent")
	}
	return c, nil
}

// Enabled reports whether the gateway is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.gatewayURL != ""
}

// Send posts one message. Transport and gateway failures map to
// DEPENDENCY_ERROR; callers treat delivery as best-effort.
func (c *Client) Send(ctx context.Context, to, message string) error {
	if !c.Enabled() {
		return pkgerrors.New(pkgerrors.CodeDependency, "whatsapp gateway not configured")
	}
	if strings.TrimSpace(to) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient phone number required")
	}
	if strings.TrimSpace(message) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "message body required")
	}

	payload, err := json.Marshal(sendRequest{
		Token:   c.token,
		Sender:  c.sender,
		To:      to,
		Message: message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log(ctx, "error", map[string]any{"error": err.Error()})
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "whatsapp send failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "whatsapp send failed")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		c.log(ctx, "error", map[string]any{
			"error":  fmt.Sprintf("HTTP %d", resp.StatusCode),
			"body":   strings.TrimSpace(string(raw)),
			"status": resp.StatusCode,
		})
		return pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("whatsapp gateway returned HTTP %d", resp.StatusCode))
	}

	c.log(ctx, "sent", map[string]any{"to": to})
	return nil
}

func (c *Client) log(ctx context.Context, phase string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{"phase": phase}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	if phase == "error" {
		c.logger.Warn(ctx, "whatsapp send")
		return
	}
	c.logger.Info(ctx, "whatsapp send")
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "to", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
