// Command api serves the storefront HTTP surface.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/universepro/estore-backend/api/controllers"
	"github.com/universepro/estore-backend/api/routes"
	"github.com/universepro/estore-backend/internal/address"
	"github.com/universepro/estore-backend/internal/cart"
	"github.com/universepro/estore-backend/internal/catalog"
	"github.com/universepro/estore-backend/internal/checkout"
	"github.com/universepro/estore-backend/internal/coupons"
	"github.com/universepro/estore-backend/internal/notifications"
	"github.com/universepro/estore-backend/internal/orders"
	"github.com/universepro/estore-backend/internal/payments"
	"github.com/universepro/estore-backend/internal/wishlist"
	"github.com/universepro/estore-backend/pkg/config"
	"github.com/universepro/estore-backend/pkg/db"
	"github.com/universepro/estore-backend/pkg/logger"
	"github.com/universepro/estore-backend/pkg/metrics"
	"github.com/universepro/estore-backend/pkg/migrate"
	"github.com/universepro/estore-backend/pkg/outbox"
	"github.com/universepro/estore-backend/pkg/paygate"
	pkgredis "github.com/universepro/estore-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "estore-api"})
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
		ServiceName: "estore-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
	})

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api terminated", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := pkgredis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	gateway, err := paygate.NewClient(ctx, cfg.PayGate, logg)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	gormDB := dbClient.DB()
	catalogRepo := catalog.NewRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)
	couponRepo := coupons.NewRepository(gormDB)
	addressRepo := address.NewRepository(gormDB)
	orderRepo := orders.NewRepository(gormDB)
	paymentRepo := payments.NewRepository(gormDB)
	wishlistRepo := wishlist.NewRepository(gormDB)
	notificationRepo := notifications.NewRepository(gormDB)
	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)

	cartSvc, err := cart.NewService(dbClient, cartRepo, catalogRepo, couponRepo, cart.ShippingPolicy{
		FreeThreshold: cfg.Shop.FreeShippingThresholdAmount(),
		FlatCost:      cfg.Shop.DefaultShippingCostAmount(),
	})
	if err != nil {
		return err
	}
	paymentSvc, err := payments.NewService(dbClient, paymentRepo, orderRepo, gateway, outboxSvc, logg)
	if err != nil {
		return err
	}
	checkoutSvc, err := checkout.NewService(dbClient, cartRepo, couponRepo, addressRepo, paymentSvc, outboxSvc, checkoutMetrics, logg)
	if err != nil {
		return err
	}
	orderSvc, err := orders.NewService(dbClient, orderRepo, couponRepo, paymentRepo, outboxSvc, logg)
	if err != nil {
		return err
	}
	addressSvc, err := address.NewService(dbClient, addressRepo)
	if err != nil {
		return err
	}
	wishlistSvc, err := wishlist.NewService(wishlistRepo, catalogRepo)
	if err != nil {
		return err
	}
	notificationSvc, err := notifications.NewService(notificationRepo)
	if err != nil {
		return err
	}

	router := routes.NewRouter(routes.Deps{
		Config: cfg,
		Logger: logg,
		Redis:  redisClient,
		Pingers: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		Registry:        registry,
		CheckoutMetrics: checkoutMetrics,
		Catalog:         catalogRepo,
		Cart:            cartSvc,
		Checkout:        checkoutSvc,
		Orders:          orderSvc,
		OrderStore:      orderRepo,
		Payments:        paymentSvc,
		Addresses:       addressSvc,
		Wishlist:        wishlistSvc,
		Notifications:   notificationSvc,
		Coupons:         couponRepo,
	})

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "listening on :"+cfg.App.Port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logg.Info(context.Background(), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
