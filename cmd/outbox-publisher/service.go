package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"gorm.io/gorm"

	"github.com/universepro/estore-backend/pkg/config"
	"github.com/universepro/estore-backend/pkg/db/models"
	"github.com/universepro/estore-backend/pkg/logger"
	"github.com/universepro/estore-backend/pkg/metrics"
	"github.com/universepro/estore-backend/pkg/outbox"
)

const (
	maxBackoff     = 10 * time.Second
	backoffJitter  = 250 * time.Millisecond
	publishTimeout = 15 * time.Second
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	Ping(ctx context.Context) error
}

type brokerPinger interface {
	Ping(ctx context.Context) error
}

// publishFunc delivers one event payload to the broker and returns the
// server-assigned message id.
type publishFunc func(ctx context.Context, data []byte, attributes map[string]string) (string, error)

// Service drains the outbox table into the order events topic. Each batch is
// claimed and marked inside one transaction, so a crashed worker leaves
// nothing half-done; at-least-once delivery is the contract, consumers
// deduplicate by event id.
type Service struct {
	db      txRunner
	repo    *outbox.Repository
	broker  brokerPinger
	publish publishFunc
	metrics *metrics.PublisherMetrics
	cfg     config.OutboxConfig
	topic   string
	logg    *logger.Logger
}

// NewService wires the publisher loop.
func NewService(
	db txRunner,
	repo *outbox.Repository,
	broker brokerPinger,
	publish publishFunc,
	publisherMetrics *metrics.PublisherMetrics,
	cfg config.OutboxConfig,
	topic string,
	logg *logger.Logger,
) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if publish == nil {
		return nil, fmt.Errorf("publish function required")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("max attempts must be positive")
	}
	return &Service{
		db:      db,
		repo:    repo,
		broker:  broker,
		publish: publish,
		metrics: publisherMetrics,
		cfg:     cfg,
		topic:   topic,
		logg:    logg,
	}, nil
}

// Run polls until the context is canceled. Poll pauses double after a failed
// or empty pass, capped at maxBackoff, and snap back to the configured
// interval once events flow again.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.PollIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	wait := interval

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(withJitter(wait)):
		}

		if err := s.ensureReadiness(ctx); err != nil {
			s.logg.Warn(ctx, fmt.Sprintf("dependencies not ready: %v", err))
			wait = nextBackoff(wait)
			continue
		}

		published, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
			wait = nextBackoff(wait)
		case published == 0:
			wait = nextBackoff(wait)
		default:
			wait = interval
		}
	}
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if s.broker != nil {
		if err := s.broker.Ping(ctx); err != nil {
			return fmt.Errorf("pubsub: %w", err)
		}
	}
	return nil
}

// processBatch claims up to BatchSize unpublished events and pushes them out.
// Publish failures are recorded per event and do not abort the batch.
func (s *Service) processBatch(ctx context.Context) (int, error) {
	started := time.Now()
	published := 0

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.cfg.BatchSize, s.cfg.MaxAttempts)
		if err != nil {
			return err
		}

		for _, event := range events {
			if err := s.publishEvent(ctx, event); err != nil {
				s.metrics.IncFailed(string(event.EventType))
				if event.AttemptCount+1 >= s.cfg.MaxAttempts {
					logCtx := s.logg.WithFields(ctx, map[string]any{"event_id": event.ID.String()})
					s.logg.Warn(logCtx, "outbox event exhausted its attempts, parking it")
					if markErr := s.repo.MarkTerminalTx(tx, event.ID, err, s.cfg.MaxAttempts); markErr != nil {
						return markErr
					}
					continue
				}
				if markErr := s.repo.MarkFailedTx(tx, event.ID, err); markErr != nil {
					return markErr
				}
				continue
			}
			if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
				return err
			}
			s.metrics.IncPublished(string(event.EventType))
			published++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if published > 0 {
		s.metrics.ObserveBatchDuration(s.topic, time.Since(started))
		logCtx := s.logg.WithFields(ctx, map[string]any{"published": published})
		s.logg.Info(logCtx, "outbox batch published")
	}
	return published, nil
}

func (s *Service) publishEvent(ctx context.Context, event models.OutboxEvent) error {
	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	attributes := map[string]string{
		"event_id":       event.ID.String(),
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.Format(time.RFC3339),
	}
	_, err := s.publish(publishCtx, event.Payload, attributes)
	return err
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func withJitter(wait time.Duration) time.Duration {
	return wait + time.Duration(rand.Int63n(int64(backoffJitter)))
}
