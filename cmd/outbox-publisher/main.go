// Command outbox-publisher drains queued domain events into Pub/Sub.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/universepro/estore-backend/pkg/config"
	"github.com/universepro/estore-backend/pkg/db"
	"github.com/universepro/estore-backend/pkg/logger"
	"github.com/universepro/estore-backend/pkg/metrics"
	"github.com/universepro/estore-backend/pkg/outbox"
	"github.com/universepro/estore-backend/pkg/pubsub"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "estore-outbox-publisher"})
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
		ServiceName: "estore-outbox-publisher",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "publisher terminated", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer pubsubClient.Close()

	publisher := pubsubClient.OrdersPublisher()
	if publisher == nil {
		return errors.New("orders topic not configured")
	}
	defer publisher.Stop()

	registry := prometheus.NewRegistry()
	publisherMetrics := metrics.NewPublisherMetrics(registry)

	publish := func(ctx context.Context, data []byte, attributes map[string]string) (string, error) {
		result := publisher.Publish(ctx, &gcppubsub.Message{Data: data, Attributes: attributes})
		return result.Get(ctx)
	}

	svc, err := NewService(
		dbClient,
		outbox.NewRepository(dbClient.DB()),
		pubsubClient,
		publish,
		publisherMetrics,
		cfg.Outbox,
		cfg.PubSub.OrdersTopic,
		logg,
	)
	if err != nil {
		return err
	}

	go serveMetrics(ctx, cfg.App.Port, registry, logg)

	logg.Info(ctx, "outbox publisher started")
	return svc.Run(ctx)
}

func serveMetrics(ctx context.Context, port string, registry *prometheus.Registry, logg *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Warn(ctx, "metrics server stopped: "+err.Error())
	}
}
