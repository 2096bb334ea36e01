// Command notification-worker consumes domain events and writes in-app
// notifications plus WhatsApp receipts.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/universepro/estore-backend/internal/notifications"
	"github.com/universepro/estore-backend/internal/orders"
	"github.com/universepro/estore-backend/internal/users"
	"github.com/universepro/estore-backend/pkg/config"
	"github.com/universepro/estore-backend/pkg/db"
	"github.com/universepro/estore-backend/pkg/logger"
	"github.com/universepro/estore-backend/pkg/outbox/idempotency"
	"github.com/universepro/estore-backend/pkg/pubsub"
	pkgredis "github.com/universepro/estore-backend/pkg/redis"
	"github.com/universepro/estore-backend/pkg/whatsapp"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "estore-notification-worker"})
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, "no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "loading configuration", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "estore-notification-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker terminated", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	redisClient, err := pkgredis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer pubsubClient.Close()

	sender, err := whatsapp.NewClient(ctx, cfg.WhatsApp, logg)
	if err != nil {
		return err
	}

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.ConsumerIdempotencyTTL)
	if err != nil {
		return err
	}

	gormDB := dbClient.DB()
	consumer, err := notifications.NewConsumer(
		notifications.NewRepository(gormDB),
		orders.NewRepository(gormDB),
		users.NewRepository(gormDB),
		sender,
		pubsubClient.NotificationSubscription(),
		manager,
		logg,
	)
	if err != nil {
		return err
	}

	logg.Info(ctx, "notification worker started")
	return consumer.Run(ctx)
}
