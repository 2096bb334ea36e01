package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/universepro/estore-backend/pkg/db/models"
	"github.com/universepro/estore-backend/pkg/enums"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
	"github.com/universepro/estore-backend/pkg/logger"
	"github.com/universepro/estore-backend/pkg/outbox"
	"github.com/universepro/estore-backend/pkg/outbox/payloads"
	"github.com/universepro/estore-backend/pkg/paygate"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gatewayClient interface {
	InitiatePayment(ctx context.Context, params paygate.InitiatePaymentParams) (*paygate.InitiateResult, error)
	CheckStatus(ctx context.Context, txReference string) (*paygate.StatusResult, error)
}

type orderLoader interface {
	FindByNumber(ctx context.Context, number string) (*models.Order, error)
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CallbackInput is the unauthenticated provider POST body.
type CallbackInput struct {
	TxReference string `json:"tx_reference" validate:"required"`
	Identifier  string `json:"identifier" validate:"required"`
	Status      int    `json:"status"`
	Message     string `json:"message"`
}

// VerifyResult reports the outcome of a status poll for client polling views.
type VerifyResult struct {
	Paid    bool   `json:"paid"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Service drives provider payments for settled orders.
type Service interface {
	Initiate(ctx context.Context, order *models.Order, phoneNumber string, network enums.MobileNetwork) (*models.Payment, error)
	VerifyTransaction(ctx context.Context, orderID uuid.UUID) (*VerifyResult, error)
	ApplyCallback(ctx context.Context, input CallbackInput) error
	GetPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
}

type service struct {
	tx      txRunner
	repo    PaymentRepository
	orders  orderLoader
	gateway gatewayClient
	outbox  outboxPublisher
	logg    *logger.Logger
}

// NewService builds the payments service.
func NewService(tx txRunner, repo PaymentRepository, orders orderLoader, gateway gatewayClient, publisher outboxPublisher, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order loader required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:      tx,
		repo:    repo,
		orders:  orders,
		gateway: gateway,
		outbox:  publisher,
		logg:    logg,
	}, nil
}

// Initiate asks the provider to debit the customer's wallet for the order
// total. Every exchange is recorded as a PaymentAttempt; a Payment row only
// exists once the provider accepts.
func (s *service) Initiate(ctx context.Context, order *models.Order, phoneNumber string, network enums.MobileNetwork) (*models.Payment, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if order.PaymentStatus {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}
	if strings.TrimSpace(phoneNumber) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone number required")
	}
	if !network.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported mobile network")
	}

	params := paygate.InitiatePaymentParams{
		PhoneNumber: phoneNumber,
		Amount:      order.Total,
		Identifier:  order.OrderNumber,
		Network:     network,
		Description: fmt.Sprintf("order %s", order.OrderNumber),
	}
	requestAudit, _ := json.Marshal(map[string]any{
		"identifier": order.OrderNumber,
		"amount":     order.Total.String(),
		"network":    network.String(),
	})

	result, err := s.gateway.InitiatePayment(ctx, params)
	if err != nil {
		failureAudit, _ := json.Marshal(map[string]any{"error": err.Error()})
		if auditErr := s.repo.RecordAttempt(ctx, order.ID, requestAudit, failureAudit); auditErr != nil && s.logg != nil {
			s.logg.Error(ctx, "recording payment attempt", auditErr)
		}
		return nil, err
	}

	if auditErr := s.repo.RecordAttempt(ctx, order.ID, requestAudit, result.Raw); auditErr != nil && s.logg != nil {
		s.logg.Error(ctx, "recording payment attempt", auditErr)
	}

	if !result.Accepted() {
		message := result.Message
		if message == "" {
			message = fmt.Sprintf("provider rejected payment with code %d", result.Status)
		}
		return nil, pkgerrors.New(pkgerrors.CodePaymentProvider, message)
	}

	txRef := result.TxReference
	payment := models.Payment{
		OrderID:       order.ID,
		Amount:        order.Total,
		Method:        enums.PaymentMethodMobileMoney,
		Status:        enums.PaymentStatusPending,
		TransactionID: &txRef,
		Details:       result.Raw,
	}
	if err := s.repo.Create(ctx, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// VerifyTransaction polls the provider for the order's latest payment and
// marks it completed on success. Completion is idempotent.
func (s *service) VerifyTransaction(ctx context.Context, orderID uuid.UUID) (*VerifyResult, error) {
	payment, err := s.repo.FindLatestByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order has no payment")
		}
		return nil, err
	}
	if payment.TransactionID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment has no transaction reference")
	}
	if payment.Status == enums.PaymentStatusCompleted {
		return &VerifyResult{Paid: true, Status: payment.Status.String()}, nil
	}

	status, err := s.gateway.CheckStatus(ctx, *payment.TransactionID)
	if err != nil {
		return nil, err
	}
	if !status.Success {
		return &VerifyResult{Paid: false, Status: payment.Status.String(), Message: status.Message}, nil
	}

	if err := s.complete(ctx, payment); err != nil {
		return nil, err
	}
	return &VerifyResult{Paid: true, Status: enums.PaymentStatusCompleted.String()}, nil
}

// ApplyCallback handles the provider-initiated POST. Unknown identifiers and
// references map to NOT_FOUND; a replay for an already-completed payment is a
// safe no-op. A failure status marks the payment failed and still returns an
// error so the provider sees a 4xx acknowledgement of the declined debit.
func (s *service) ApplyCallback(ctx context.Context, input CallbackInput) error {
	if strings.TrimSpace(input.TxReference) == "" || strings.TrimSpace(input.Identifier) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "callback body is missing required fields")
	}

	order, err := s.orders.FindByNumber(ctx, input.Identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "unknown order identifier")
		}
		return err
	}
	payment, err := s.repo.FindByTransactionID(ctx, input.TxReference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "unknown transaction reference")
		}
		return err
	}
	if payment.OrderID != order.ID {
		return pkgerrors.New(pkgerrors.CodeNotFound, "transaction does not belong to this order")
	}

	if payment.Status.IsTerminal() {
		// replayed delivery; the first one already applied the change
		return nil
	}

	if input.Status == paygate.StatusAccepted {
		return s.complete(ctx, payment)
	}

	moved, err := s.repo.TransitionStatus(ctx, payment.ID, enums.PaymentStatusPending, enums.PaymentStatusFailed)
	if err != nil {
		return err
	}
	if !moved && s.logg != nil {
		s.logg.Warn(ctx, "failure callback for payment no longer pending")
	}
	message := strings.TrimSpace(input.Message)
	if message == "" {
		message = "payment was not successful"
	}
	return pkgerrors.New(pkgerrors.CodeValidation, message)
}

// GetPayment loads one payment for the polling endpoint.
func (s *service) GetPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, err
	}
	return payment, nil
}

// complete moves a payment to completed, marks the order paid, and queues the
// receipt event, all in one transaction. The conditional transition makes a
// second completion a no-op without a second receipt.
func (s *service) complete(ctx context.Context, payment *models.Payment) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		moved, err := repo.TransitionStatus(ctx, payment.ID, enums.PaymentStatusPending, enums.PaymentStatusCompleted)
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}
		if err := repo.MarkOrderPaid(ctx, payment.OrderID); err != nil {
			return err
		}

		order, err := loadOrderByID(ctx, tx, payment.OrderID)
		if err != nil {
			return err
		}
		txRef := ""
		if payment.TransactionID != nil {
			txRef = *payment.TransactionID
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentCompleted,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data: payloads.PaymentCompletedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				PaymentID:   payment.ID,
				TxReference: txRef,
			},
			Version: 1,
		}
		return s.outbox.EmitIfNotExists(ctx, tx, event)
	})
}

func loadOrderByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}
