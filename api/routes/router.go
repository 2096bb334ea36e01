// Package routes assembles the HTTP surface: public catalog reads, the
// session-or-user cart, the authenticated checkout and account routes, the
// unauthenticated provider callback, and the admin surface.
package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/universepro/estore-backend/api/controllers"
	"github.com/universepro/estore-backend/api/middleware"
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
	"github.com/universepro/estore-backend/pkg/logger"
	"github.com/universepro/estore-backend/pkg/metrics"
	pkgredis "github.com/universepro/estore-backend/pkg/redis"
)

// Deps carries everything the router mounts.
type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	Redis   *pkgredis.Client
	Pingers map[string]controllers.Pinger

	Registry        *prometheus.Registry
	CheckoutMetrics *metrics.CheckoutMetrics

	Catalog       catalog.ProductRepository
	Cart          cart.Service
	Checkout      checkout.Service
	Orders        orders.Service
	OrderStore    orders.OrderRepository
	Payments      payments.Service
	Addresses     address.Service
	Wishlist      wishlist.Service
	Notifications notifications.Service
	Coupons       *coupons.Repository
}

// NewRouter wires middleware and routes onto a chi mux.
func NewRouter(deps Deps) *chi.Mux {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(middleware.Recoverer(logg))
	r.Use(middleware.RequestID(logg))
	r.Use(middleware.Logging(logg))
	r.Use(middleware.CORS())

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.AuthRateLimit.CheckoutWindow,
		cfg.AuthRateLimit.CheckoutIPLimit,
		cfg.AuthRateLimit.CheckoutUserLimit,
	)
	callbackPolicy := middleware.NewRateLimitPolicy(
		"callback",
		cfg.AuthRateLimit.CallbackWindow,
		cfg.AuthRateLimit.CallbackIPLimit,
		0,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Catalog reads need no identity at all.
		r.Get("/products", controllers.ListProducts(deps.Catalog, logg))
		r.Get("/products/{slug}", controllers.GetProduct(deps.Catalog, logg))
		r.Get("/categories", controllers.ListCategories(deps.Catalog, logg))

		// The provider posts here without credentials; the handler proves
		// authenticity against our own records.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(callbackPolicy, deps.Redis, logg))
			r.Post("/webhooks/paygate", controllers.PayGateCallback(deps.Payments, deps.CheckoutMetrics, logg))
		})

		// The cart serves both anonymous sessions and signed-in users.
		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Use(middleware.SessionKey(logg))

			r.Get("/", controllers.GetCart(deps.Cart, logg))
			r.Delete("/", controllers.ClearCart(deps.Cart, logg))
			r.Post("/items", controllers.AddCartItem(deps.Cart, logg))
			r.Patch("/items/{itemId}", controllers.UpdateCartItem(deps.Cart, logg))
			r.Delete("/items/{itemId}", controllers.RemoveCartItem(deps.Cart, logg))
			r.Post("/coupon", controllers.ApplyCoupon(deps.Cart, logg))
			r.Post("/merge", controllers.MergeCart(deps.Cart, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(deps.Redis, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(checkoutPolicy, deps.Redis, logg))
				r.Post("/checkout", controllers.Checkout(deps.Checkout, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.ListOrders(deps.Orders, logg))
				r.Get("/{orderNumber}", controllers.GetOrder(deps.Orders, logg))
				r.Post("/{orderNumber}/pay", controllers.PayOrder(deps.Orders, deps.Payments, logg))
				r.Post("/{orderNumber}/cancel", controllers.CancelOrder(deps.Orders, logg))
			})

			r.Get("/payments/{paymentId}/status", controllers.PaymentStatus(deps.Payments, deps.OrderStore, logg))

			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", controllers.ListAddresses(deps.Addresses, logg))
				r.Post("/", controllers.CreateAddress(deps.Addresses, logg))
				r.Get("/{addressId}", controllers.GetAddress(deps.Addresses, logg))
				r.Put("/{addressId}", controllers.UpdateAddress(deps.Addresses, logg))
				r.Delete("/{addressId}", controllers.DeleteAddress(deps.Addresses, logg))
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", controllers.ListWishlist(deps.Wishlist, logg))
				r.Post("/", controllers.AddWishlistItem(deps.Wishlist, logg))
				r.Delete("/{productId}", controllers.RemoveWishlistItem(deps.Wishlist, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Get("/orders", controllers.AdminListOrders(deps.Orders, logg))
		r.Patch("/orders/{orderNumber}/status", controllers.AdminUpdateOrderStatus(deps.Orders, logg))
		r.Post("/coupons", controllers.AdminCreateCoupon(deps.Coupons, logg))
	})

	return r
}
