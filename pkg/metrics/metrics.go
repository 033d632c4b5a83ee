package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Latency of every HTTP handler, by route template
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "garage_http_request_duration_seconds",
		Help:    "Latency of HTTP handlers",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// Checkout sessions opened with the payment provider
	PaymentInitiations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "garage_payment_initiations_total",
		Help: "Payment initiations by plan and result",
	}, []string{"plan", "result"})

	// Provider notifications by reconciliation outcome
	WebhookOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "garage_payment_webhooks_total",
		Help: "Payment webhooks by outcome and extraction strategy",
	}, []string{"outcome", "strategy"})

	StateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "garage_verification_transitions_total",
		Help: "Applied payment and verification transitions",
	}, []string{"action"})

	ExpiredPayments = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "garage_payment_expirations_total",
		Help: "Checkouts and subscriptions expired by the scheduler",
	})

	RatingRollups = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "garage_rating_rollups_total",
		Help: "Garage rating recomputations",
	})
)

var once sync.Once

func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequestDuration,
			PaymentInitiations,
			WebhookOutcomes,
			StateTransitions,
			ExpiredPayments,
			RatingRollups,
		)
	})
}
