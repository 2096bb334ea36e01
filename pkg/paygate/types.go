package paygate

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/universepro/estore-backend/pkg/enums"
)

// StatusAccepted is the provider code for an accepted initiation and for a
// completed payment on the status endpoint. Any other integer is a
// provider-defined failure code.
const StatusAccepted = 0

// InitiatePaymentParams carries the fields needed to start a mobile-money
// debit. The auth token and callback URL come from configuration.
type InitiatePaymentParams struct {
	PhoneNumber string
	Amount      decimal.Decimal
	Identifier  string
	Network     enums.MobileNetwork
	Description string
}

// InitiateResult is the normalized initiation outcome.
type InitiateResult struct {
	Status      int             `json:"status"`
	TxReference string          `json:"txReference"`
	Message     string          `json:"message"`
	Raw         json.RawMessage `json:"-"`
}

// Accepted reports whether the provider accepted the initiation.
func (r *InitiateResult) Accepted() bool {
	return r != nil && r.Status == StatusAccepted
}

// StatusResult is the normalized outcome of a status poll.
type StatusResult struct {
	Success bool            `json:"success"`
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Raw     json.RawMessage `json:"-"`
}

type initiateRequest struct {
	AuthToken   string      `json:"auth_token"`
	PhoneNumber string      `json:"phone_number"`
	Amount      json.Number `json:"amount"`
	Identifier  string      `json:"identifier"`
	Network     string      `json:"network"`
	Description string      `json:"description,omitempty"`
	CallbackURL string      `json:"callback_url,omitempty"`
}

type initiateResponse struct {
	Status      int    `json:"status"`
	TxReference string `json:"tx_reference"`
	Message     string `json:"message"`
}

type statusRequest struct {
	AuthToken   string `json:"auth_token"`
	TxReference string `json:"tx_reference"`
}

type statusResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}
