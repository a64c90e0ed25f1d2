package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "busbook_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "busbook_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	SeatClaims = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "busbook_seat_claims_total",
			Help: "Seat claim attempts by outcome",
		},
		[]string{"outcome"},
	)

	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "busbook_booking_transitions_total",
			Help: "Booking state changes by target status",
		},
		[]string{"status"},
	)

	BookingsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "busbook_bookings_expired_total",
			Help: "Pending bookings cancelled by the expiry sweep",
		},
	)

	PaymentReconciliations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "busbook_payment_reconciliations_total",
			Help: "Paid callbacks that could not be applied",
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "busbook_outbox_lag_seconds",
			Help: "Lag of outbox publishing",
		},
	)

	RabbitPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "busbook_rabbit_publish_retries_total",
			Help: "Total rabbit publish retries",
		},
	)

	ReceiptsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "busbook_receipts_total",
			Help: "Receipt emails by outcome",
		},
		[]string{"outcome"},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "busbook_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
