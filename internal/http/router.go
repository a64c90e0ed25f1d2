package http

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/bus-seat-booking/internal/idempotency"
	"github.com/robertarktes/bus-seat-booking/internal/observability"
	"github.com/robertarktes/bus-seat-booking/internal/payment"
	"github.com/robertarktes/bus-seat-booking/internal/rateLimit"
)

type RouterOptions struct {
	Logger      observability.Logger
	RateLimiter *rateLimit.RateLimiter
	Rate        int
	RatePeriod  time.Duration
	Idempotency *idempotency.Idempotency
	CORSOrigins []string
}

func SetupRouter(h *Handlers, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(opts.Logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", payment.SignatureHeader},
		ExposedHeaders: []string{"X-Request-Id", "Idempotent-Replayed"},
		MaxAge:         300,
	}))

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	// Gateway callbacks are signed and must not be throttled per IP.
	r.Post("/v1/payments/callback", h.PaymentCallback)

	r.Group(func(r chi.Router) {
		if opts.RateLimiter != nil {
			r.Use(RateLimitMiddleware(opts.RateLimiter, opts.Rate, opts.RatePeriod))
		}

		r.Get("/v1/catalog/pickup-points", h.PickupPoints)
		r.Get("/v1/catalog/destinations", h.Destinations)
		r.Get("/v1/seats", h.ListSeats)
		r.Get("/v1/seats/{number}", h.GetSeat)
		r.Get("/v1/bookings/{id}", h.GetBooking)
		r.Post("/v1/payments/checkout", h.Checkout)
		r.Post("/v1/payments/outcome", h.PaymentOutcome)

		r.Group(func(r chi.Router) {
			r.Use(IdempotencyMiddleware(opts.Idempotency))
			r.Post("/v1/bookings", h.CreateBooking)
			r.Post("/v1/bookings/group", h.CreateGroupBooking)
		})
	})

	r.Route("/v1/admin", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if opts.RateLimiter != nil {
				r.Use(RateLimitMiddleware(opts.RateLimiter, opts.Rate, opts.RatePeriod))
			}
			r.Post("/login", h.AdminLogin)
		})
		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(h.auth))
			adminRoutes(r, h)
		})
	})

	return r
}

func adminRoutes(r chi.Router, h *Handlers) {
	r.Get("/bookings", h.AdminBookings)
	r.Post("/bookings/{id}/approve", h.AdminApprove)
	r.Post("/bookings/{id}/reject", h.AdminReject)
	r.Delete("/bookings/{id}", h.AdminDelete)

	r.Post("/seats/{number}/toggle", h.AdminToggleSeat)
	r.Post("/seats/{number}/release", h.AdminReleaseSeat)

	r.Get("/catalog/pickup-points", h.AdminPickupPoints)
	r.Post("/catalog/pickup-points", h.AdminCreatePickupPoint)
	r.Patch("/catalog/pickup-points/{id}", h.AdminUpdatePickupPoint)
	r.Delete("/catalog/pickup-points/{id}", h.AdminDeletePickupPoint)
	r.Get("/catalog/destinations", h.AdminDestinations)
	r.Post("/catalog/destinations", h.AdminCreateDestination)
	r.Patch("/catalog/destinations/{id}", h.AdminUpdateDestination)
	r.Delete("/catalog/destinations/{id}", h.AdminDeleteDestination)

	r.Get("/stats", h.AdminStats)
	r.Get("/activity", h.AdminActivity)
	r.Get("/export.csv", h.AdminExport)
	r.Get("/reconciliations", h.AdminReconciliations)
	r.Post("/reconciliations/{id}/resolve", h.AdminResolveReconciliation)
	r.Post("/expire", h.AdminExpire)
}
