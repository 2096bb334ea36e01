package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records settlement and payment outcomes.
type CheckoutMetrics struct {
	settleDuration *prometheus.HistogramVec
	ordersSettled  *prometheus.CounterVec
	payInitiated   *prometheus.CounterVec
	payCallbacks   *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	settleDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_settle_duration_seconds",
		Help:    "Duration of order settlement transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"payment_method"})
	ordersSettled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_orders_settled_total",
		Help: "Orders settled, by payment method and result.",
	}, []string{"payment_method", "result"})
	payInitiated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_initiations_total",
		Help: "Mobile-money payment initiations, by network and result.",
	}, []string{"network", "result"})
	payCallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_callbacks_total",
		Help: "Provider callback deliveries, by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(settleDuration, ordersSettled, payInitiated, payCallbacks)
	return &CheckoutMetrics{
		settleDuration: settleDuration,
		ordersSettled:  ordersSettled,
		payInitiated:   payInitiated,
		payCallbacks:   payCallbacks,
	}
}

// ObserveSettleDuration records the duration of a settlement transaction.
func (c *CheckoutMetrics) ObserveSettleDuration(method string, duration time.Duration) {
	if c == nil || c.settleDuration == nil {
		return
	}
	c.settleDuration.WithLabelValues(normalizeLabel(method)).Observe(duration.Seconds())
}

// IncOrderSettled counts a settlement attempt outcome.
func (c *CheckoutMetrics) IncOrderSettled(method, result string) {
	if c == nil || c.ordersSettled == nil {
		return
	}
	c.ordersSettled.WithLabelValues(normalizeLabel(method), normalizeLabel(result)).Inc()
}

// IncPaymentInitiated counts a provider initiation outcome.
func (c *CheckoutMetrics) IncPaymentInitiated(network, result string) {
	if c == nil || c.payInitiated == nil {
		return
	}
	c.payInitiated.WithLabelValues(normalizeLabel(network), normalizeLabel(result)).Inc()
}

// IncPaymentCallback counts a callback delivery outcome.
func (c *CheckoutMetrics) IncPaymentCallback(outcome string) {
	if c == nil || c.payCallbacks == nil {
		return
	}
	c.payCallbacks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
