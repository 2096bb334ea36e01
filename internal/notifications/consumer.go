package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/universepro/estore-backend/pkg/db/models"
	"github.com/universepro/estore-backend/pkg/enums"
	"github.com/universepro/estore-backend/pkg/logger"
	"github.com/universepro/estore-backend/pkg/outbox"
	"github.com/universepro/estore-backend/pkg/outbox/idempotency"
	"github.com/universepro/estore-backend/pkg/outbox/payloads"
	"github.com/universepro/estore-backend/pkg/whatsapp"
)

const receiptConsumer = "order-receipts"

type orderLoader interface {
	FindByNumber(ctx context.Context, number string) (*models.Order, error)
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Consumer watches domain events and turns settlements and payments into
// in-app notifications plus a WhatsApp receipt. Delivery over WhatsApp is
// best-effort; the notification row is the source of truth.
type Consumer struct {
	repo         NotificationRepository
	orders       orderLoader
	users        userLoader
	sender       whatsapp.Sender
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the receipt consumer.
func NewConsumer(
	repo NotificationRepository,
	orders orderLoader,
	users userLoader,
	sender whatsapp.Sender,
	subscription *pubsub.Subscriber,
	manager *idempotency.Manager,
	logg *logger.Logger,
) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notification repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order loader required")
	}
	if users == nil {
		return nil, fmt.Errorf("user loader required")
	}
	if sender == nil {
		return nil, fmt.Errorf("whatsapp sender required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		orders:       orders,
		users:        users,
		sender:       sender,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.subscription == nil {
		return fmt.Errorf("domain subscription required")
	}
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg.ID, msg.Attributes["event_type"], msg.Data)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msgID, eventType string, data []byte) processResult {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msgID,
		"event_type": eventType,
	})

	var handle func(ctx context.Context, envelope outbox.PayloadEnvelope) error
	switch eventType {
	case string(enums.EventOrderCreated):
		handle = c.handleOrderCreated
	case string(enums.EventPaymentCompleted):
		handle = c.handlePaymentCompleted
	default:
		c.logg.Info(logCtx, "skipping event without a receipt")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, receiptConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := handle(ctx, envelope); err != nil {
		c.logg.Error(logCtx, "receipt handling failed", err)
		_ = c.idempotency.Delete(ctx, receiptConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handleOrderCreated(ctx context.Context, envelope outbox.PayloadEnvelope) error {
	var payload payloads.OrderCreatedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return err
	}

	order, err := c.orders.FindByNumber(ctx, payload.OrderNumber)
	if err != nil {
		return err
	}

	notification := &models.Notification{
		UserID:  order.UserID,
		Type:    enums.NotificationTypeOrder,
		Title:   fmt.Sprintf("Order %s received", order.OrderNumber),
		Message: fmt.Sprintf("We received your order of %s FCFA. You will be notified as it progresses.", order.Total),
		Link:    stringPtr(fmt.Sprintf("/orders/%s", order.OrderNumber)),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}

	c.sendReceipt(ctx, order, receiptText(order))
	return nil
}

func (c *Consumer) handlePaymentCompleted(ctx context.Context, envelope outbox.PayloadEnvelope) error {
	var payload payloads.PaymentCompletedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return err
	}

	order, err := c.orders.FindByNumber(ctx, payload.OrderNumber)
	if err != nil {
		return err
	}

	notification := &models.Notification{
		UserID:  order.UserID,
		Type:    enums.NotificationTypePayment,
		Title:   fmt.Sprintf("Payment received for %s", order.OrderNumber),
		Message: fmt.Sprintf("Your payment of %s FCFA was confirmed. Reference: %s.", order.Total, payload.TxReference),
		Link:    stringPtr(fmt.Sprintf("/orders/%s", order.OrderNumber)),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}

	c.sendReceipt(ctx, order, fmt.Sprintf(
		"Payment confirmed for order %s.\nAmount: %s FCFA\nReference: %s\nThank you for your purchase.",
		order.OrderNumber, order.Total, payload.TxReference))
	return nil
}

// sendReceipt delivers the text over WhatsApp when the gateway and a phone
// number are available. Failures are logged, never retried.
func (c *Consumer) sendReceipt(ctx context.Context, order *models.Order, text string) {
	if !c.sender.Enabled() {
		return
	}
	phone := c.recipientPhone(ctx, order)
	if phone == "" {
		c.logg.Warn(ctx, fmt.Sprintf("no phone number for order %s, skipping receipt", order.OrderNumber))
		return
	}
	if err := c.sender.Send(ctx, phone, text); err != nil {
		c.logg.Warn(ctx, fmt.Sprintf("whatsapp receipt for order %s failed: %v", order.OrderNumber, err))
	}
}

// recipientPhone prefers the shipping address phone, falling back to the
// account phone.
func (c *Consumer) recipientPhone(ctx context.Context, order *models.Order) string {
	if order.ShippingAddress != nil && strings.TrimSpace(order.ShippingAddress.Phone) != "" {
		return order.ShippingAddress.Phone
	}
	user, err := c.users.FindByID(ctx, order.UserID)
	if err != nil || user.Phone == nil {
		return ""
	}
	return *user.Phone
}

// receiptText renders the plain-text order summary with the destination
// block at the end.
func receiptText(order *models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s\n", order.OrderNumber)
	for _, item := range order.Items {
		fmt.Fprintf(&b, "%d x %s - %s FCFA\n", item.Quantity, item.ProductName, item.TotalPrice)
	}
	fmt.Fprintf(&b, "Subtotal: %s FCFA\n", order.Subtotal)
	if order.CouponDiscount.IsPositive() {
		fmt.Fprintf(&b, "Discount: -%s FCFA\n", order.CouponDiscount)
	}
	fmt.Fprintf(&b, "Shipping: %s FCFA\n", order.ShippingCost)
	fmt.Fprintf(&b, "Total: %s FCFA\n", order.Total)
	if addr := order.ShippingAddress; addr != nil {
		fmt.Fprintf(&b, "Deliver to: %s, %s, %s", addr.Recipient(), addr.Line1, addr.City)
	}
	return strings.TrimSpace(b.String())
}

func stringPtr(value string) *string {
	return &value
}
