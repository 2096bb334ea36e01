package notifications

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/universepro/estore-backend/internal/orders"
	"github.com/universepro/estore-backend/internal/users"
	"github.com/universepro/estore-backend/pkg/db/dbtest"
	"github.com/universepro/estore-backend/pkg/db/models"
	"github.com/universepro/estore-backend/pkg/enums"
	"github.com/universepro/estore-backend/pkg/logger"
	"github.com/universepro/estore-backend/pkg/outbox"
	"github.com/universepro/estore-backend/pkg/outbox/idempotency"
	"github.com/universepro/estore-backend/pkg/outbox/payloads"
)

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]string{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = "1"
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "estore:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

type recordingSender struct {
	enabled  bool
	failWith error
	sent     []string
}

func (r *recordingSender) Enabled() bool {
	return r.enabled
}

func (r *recordingSender) Send(_ context.Context, _, message string) error {
	if r.failWith != nil {
		return r.failWith
	}
	r.sent = append(r.sent, message)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "notifications-test",
		Level:       zerolog.Disabled,
		Output:      io.Discard,
	})
}

func newConsumer(t *testing.T, db *gorm.DB, sender *recordingSender) *Consumer {
	t.Helper()
	manager, err := idempotency.NewManager(newMemoryStore(), time.Hour)
	if err != nil {
		t.Fatalf("idempotency manager: %v", err)
	}
	consumer, err := NewConsumer(
		NewRepository(db),
		orders.NewRepository(db),
		users.NewRepository(db),
		sender,
		nil,
		manager,
		testLogger(),
	)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	return consumer
}

func seedSettledOrder(t *testing.T, db *gorm.DB) *models.Order {
	t.Helper()
	addr := models.Address{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		FirstName: "Afi",
		LastName:  "Mensah",
		Phone:     "+22890112233",
		Line1:     "Rue des Cocotiers 12",
		City:      "Lomé",
		Country:   "Togo",
	}
	if err := db.Create(&addr).Error; err != nil {
		t.Fatalf("seed address: %v", err)
	}
	order := models.Order{
		ID:                uuid.New(),
		OrderNumber:       "CMD-000042",
		UserID:            addr.UserID,
		ShippingAddressID: addr.ID,
		BillingAddressID:  addr.ID,
		Subtotal:          decimal.NewFromInt(40000),
		ShippingCost:      decimal.NewFromInt(5000),
		Total:             decimal.NewFromInt(45000),
		Status:            enums.OrderStatusPending,
		PaymentMethod:     enums.PaymentMethodMobileMoney,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	item := models.OrderItem{
		ID:          uuid.New(),
		OrderID:     order.ID,
		ProductID:   uuid.New(),
		ProductName: "Field recorder",
		SKU:         "FR-1",
		Quantity:    2,
		Price:       decimal.NewFromInt(20000),
		TotalPrice:  decimal.NewFromInt(40000),
	}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("seed order item: %v", err)
	}
	return &order
}

func envelopeBytes(t *testing.T, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       data,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return raw
}

func TestOrderCreatedProducesNotificationAndReceipt(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	ctx := context.Background()
	sender := &recordingSender{enabled: true}
	consumer := newConsumer(t, db, sender)
	order := seedSettledOrder(t, db)

	raw := envelopeBytes(t, payloads.OrderCreatedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Total:       order.Total,
	})

	result := consumer.process(ctx, "m1", string(enums.EventOrderCreated), raw)
	if !result.ack || result.nack {
		t.Fatalf("expected ack, got %+v", result)
	}

	var notification models.Notification
	if err := db.Where("user_id = ?", order.UserID).First(&notification).Error; err != nil {
		t.Fatalf("load notification: %v", err)
	}
	if notification.Type != enums.NotificationTypeOrder {
		t.Fatalf("unexpected type %s", notification.Type)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("expected one receipt, got %d", len(sender.sent))
	}
	receipt := sender.sent[0]
	for _, want := range []string{"CMD-000042", "2 x Field recorder", "Total: 45000 FCFA", "Afi Mensah"} {
		if !strings.Contains(receipt, want) {
			t.Fatalf("receipt missing %q:\n%s", want, receipt)
		}
	}
}

func TestReplayedEventIsAckedOnce(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	ctx := context.Background()
	sender := &recordingSender{enabled: true}
	consumer := newConsumer(t, db, sender)
	order := seedSettledOrder(t, db)

	raw := envelopeBytes(t, payloads.OrderCreatedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Total:       order.Total,
	})

	first := consumer.process(ctx, "m1", string(enums.EventOrderCreated), raw)
	second := consumer.process(ctx, "m1-redelivery", string(enums.EventOrderCreated), raw)
	if !first.ack || !second.ack {
		t.Fatalf("expected both deliveries acked, got %+v then %+v", first, second)
	}

	var count int64
	if err := db.Model(&models.Notification{}).Count(&count).Error; err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	if count != 1 {
		t.Fatalf("replay must not duplicate the notification, got %d", count)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("replay must not resend the receipt, got %d", len(sender.sent))
	}
}

func TestUnknownEventTypeIsSkipped(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	sender := &recordingSender{enabled: true}
	consumer := newConsumer(t, db, sender)

	result := consumer.process(context.Background(), "m1", "inventory.synced", []byte(`{}`))
	if !result.ack {
		t.Fatalf("unknown events must be acked, got %+v", result)
	}
}

func TestUnknownOrderNacksForRetry(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	sender := &recordingSender{enabled: true}
	consumer := newConsumer(t, db, sender)

	raw := envelopeBytes(t, payloads.OrderCreatedEvent{
		OrderID:     uuid.New(),
		OrderNumber: "CMD-999999",
		UserID:      uuid.New(),
		Total:       decimal.NewFromInt(1000),
	})

	result := consumer.process(context.Background(), "m1", string(enums.EventOrderCreated), raw)
	if !result.nack {
		t.Fatalf("missing order must nack for redelivery, got %+v", result)
	}
}

func TestSenderFailureStillStoresNotification(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	ctx := context.Background()
	sender := &recordingSender{enabled: true, failWith: context.DeadlineExceeded}
	consumer := newConsumer(t, db, sender)
	order := seedSettledOrder(t, db)

	raw := envelopeBytes(t, payloads.PaymentCompletedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		PaymentID:   uuid.New(),
		TxReference: "TX42",
	})

	result := consumer.process(ctx, "m1", string(enums.EventPaymentCompleted), raw)
	if !result.ack {
		t.Fatalf("best-effort delivery must still ack, got %+v", result)
	}

	var count int64
	if err := db.Model(&models.Notification{}).Where("type = ?", enums.NotificationTypePayment).Count(&count).Error; err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected the payment notification despite send failure, got %d", count)
	}
}
