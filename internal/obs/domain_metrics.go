package obs

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutTotal counts checkout attempts by outcome code.
	CheckoutTotal *prometheus.CounterVec
	// CheckoutDuration records end-to-end checkout latency in milliseconds.
	CheckoutDuration *prometheus.HistogramVec
	// PaymentPreferenceTotal counts payment preference creation outcomes.
	PaymentPreferenceTotal *prometheus.CounterVec
	// PaymentWebhookTotal counts inbound payment notifications by outcome.
	PaymentWebhookTotal *prometheus.CounterVec
	// ShippingQuoteTotal counts carrier quote outcomes.
	ShippingQuoteTotal *prometheus.CounterVec
	// OrdersExpiredTotal counts unpaid orders released by the expiry job.
	OrdersExpiredTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout attempts by result code.",
		}, []string{"result"})
		CheckoutDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_ms",
			Help:      "Checkout latency in milliseconds, payment call included.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"result"})
		PaymentPreferenceTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_preference_total",
			Help:      "Count of payment preference creation outcomes.",
		}, []string{"provider", "result"})
		PaymentWebhookTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_total",
			Help:      "Count of processed payment webhooks by outcome.",
		}, []string{"provider", "result"})
		ShippingQuoteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipping_quote_total",
			Help:      "Count of shipping quote requests by outcome.",
		}, []string{"provider", "result"})
		OrdersExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_expired_total",
			Help:      "Number of unpaid orders expired and restocked.",
		})

		CheckoutTotal = register(reg, CheckoutTotal)
		CheckoutDuration = register(reg, CheckoutDuration)
		PaymentPreferenceTotal = register(reg, PaymentPreferenceTotal)
		PaymentWebhookTotal = register(reg, PaymentWebhookTotal)
		ShippingQuoteTotal = register(reg, ShippingQuoteTotal)
		OrdersExpiredTotal = register(reg, OrdersExpiredTotal)
	})
}

// ObserveCheckout records a checkout outcome. It is a no-op until metrics are registered.
func ObserveCheckout(result string, elapsed time.Duration) {
	if CheckoutTotal != nil {
		CheckoutTotal.WithLabelValues(result).Inc()
	}
	if CheckoutDuration != nil {
		CheckoutDuration.WithLabelValues(result).Observe(DurationMillis(elapsed))
	}
}

// ObservePaymentPreference records a preference creation outcome.
func ObservePaymentPreference(provider, result string) {
	if PaymentPreferenceTotal != nil {
		PaymentPreferenceTotal.WithLabelValues(provider, result).Inc()
	}
}

// ObservePaymentWebhook records a webhook processing outcome.
func ObservePaymentWebhook(provider, result string) {
	if PaymentWebhookTotal != nil {
		PaymentWebhookTotal.WithLabelValues(provider, result).Inc()
	}
}

// ObserveShippingQuote records a carrier quote outcome.
func ObserveShippingQuote(provider, result string) {
	if ShippingQuoteTotal != nil {
		ShippingQuoteTotal.WithLabelValues(provider, result).Inc()
	}
}

// ObserveOrderExpired counts one expired order.
func ObserveOrderExpired() {
	if OrdersExpiredTotal != nil {
		OrdersExpiredTotal.Inc()
	}
}
