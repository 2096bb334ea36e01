package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/universepro/estore-backend/pkg/config"
	"github.com/universepro/estore-backend/pkg/db/dbtest"
	"github.com/universepro/estore-backend/pkg/db/models"
	"github.com/universepro/estore-backend/pkg/logger"
	"github.com/universepro/estore-backend/pkg/metrics"
	"github.com/universepro/estore-backend/pkg/outbox"
)

type testRunner struct {
	db *gorm.DB
}

func (r testRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r testRunner) Ping(context.Context) error { return nil }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "publisher-test",
		Level:       zerolog.Disabled,
		Output:      io.Discard,
	})
}

type capturedMessage struct {
	data       []byte
	attributes map[string]string
}

func newTestService(t *testing.T, db *gorm.DB, publish publishFunc, maxAttempts int) *Service {
	t.Helper()
	svc, err := NewService(
		testRunner{db: db},
		outbox.NewRepository(db),
		nil,
		publish,
		metrics.NewPublisherMetrics(nil),
		config.OutboxConfig{BatchSize: 10, PollIntervalMS: 10, MaxAttempts: maxAttempts},
		"orders",
		testLogger(),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedEvent(t *testing.T, db *gorm.DB, attempts int) models.OutboxEvent {
	t.Helper()
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     "order.created",
		AggregateType: "order",
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1}`),
		AttemptCount:  attempts,
		CreatedAt:     time.Now(),
	}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return event
}

func loadEvent(t *testing.T, db *gorm.DB, id uuid.UUID) models.OutboxEvent {
	t.Helper()
	var event models.OutboxEvent
	if err := db.Where("id = ?", id).First(&event).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	return event
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	db := dbtest.Open(t)
	seeded := seedEvent(t, db, 0)

	var captured []capturedMessage
	publish := func(_ context.Context, data []byte, attributes map[string]string) (string, error) {
		captured = append(captured, capturedMessage{data: data, attributes: attributes})
		return "server-id", nil
	}
	svc := newTestService(t, db, publish, 5)

	published, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if published != 1 {
		t.Fatalf("published = %d, want 1", published)
	}
	if len(captured) != 1 {
		t.Fatalf("captured %d messages, want 1", len(captured))
	}
	if got := captured[0].attributes["event_id"]; got != seeded.ID.String() {
		t.Fatalf("event_id attribute = %q, want %q", got, seeded.ID)
	}
	if got := captured[0].attributes["event_type"]; got != "order.created" {
		t.Fatalf("event_type attribute = %q", got)
	}

	stored := loadEvent(t, db, seeded.ID)
	if stored.PublishedAt == nil {
		t.Fatal("event not marked published")
	}
}

func TestProcessBatchRecordsFailureAndRetries(t *testing.T) {
	db := dbtest.Open(t)
	seeded := seedEvent(t, db, 0)

	publish := func(context.Context, []byte, map[string]string) (string, error) {
		return "", errors.New("broker down")
	}
	svc := newTestService(t, db, publish, 5)

	published, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if published != 0 {
		t.Fatalf("published = %d, want 0", published)
	}

	stored := loadEvent(t, db, seeded.ID)
	if stored.PublishedAt != nil {
		t.Fatal("failed event must stay unpublished")
	}
	if stored.AttemptCount != 1 {
		t.Fatalf("attempt_count = %d, want 1", stored.AttemptCount)
	}
	if stored.LastError == nil || *stored.LastError != "broker down" {
		t.Fatalf("last_error = %v", stored.LastError)
	}
}

func TestProcessBatchParksExhaustedEvent(t *testing.T) {
	db := dbtest.Open(t)
	seeded := seedEvent(t, db, 4)

	publish := func(context.Context, []byte, map[string]string) (string, error) {
		return "", errors.New("still down")
	}
	svc := newTestService(t, db, publish, 5)

	if _, err := svc.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}

	stored := loadEvent(t, db, seeded.ID)
	if stored.AttemptCount != 5 {
		t.Fatalf("attempt_count = %d, want saturated 5", stored.AttemptCount)
	}

	// A parked event never comes back in later batches.
	published, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if published != 0 {
		t.Fatalf("published = %d, want 0", published)
	}
}

func TestProcessBatchSkipsPublishedEvents(t *testing.T) {
	db := dbtest.Open(t)
	seeded := seedEvent(t, db, 0)
	now := time.Now()
	if err := db.Model(&models.OutboxEvent{}).Where("id = ?", seeded.ID).
		Update("published_at", now).Error; err != nil {
		t.Fatalf("mark published: %v", err)
	}

	calls := 0
	publish := func(context.Context, []byte, map[string]string) (string, error) {
		calls++
		return "server-id", nil
	}
	svc := newTestService(t, db, publish, 5)

	published, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if published != 0 || calls != 0 {
		t.Fatalf("published = %d, calls = %d, want 0 and 0", published, calls)
	}
}
