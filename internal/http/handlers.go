package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/bus-seat-booking/internal/admin"
	"github.com/robertarktes/bus-seat-booking/internal/auth"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/robertarktes/bus-seat-booking/internal/payment"
)

const seatMapTTL = 10 * time.Second

type BookingEngine interface {
	CreateBooking(ctx context.Context, p domain.PassengerInfo, trip domain.TripInfo, seat int) (domain.Booking, error)
	CreateGroupBooking(ctx context.Context, trip domain.TripInfo, passengers []domain.PassengerInfo) ([]domain.Booking, error)
	HoldTTL() time.Duration
}

type BookingReader interface {
	GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error)
}

type Seats interface {
	List(ctx context.Context) ([]domain.Seat, error)
	Status(ctx context.Context, number int) (domain.Seat, error)
}

type Catalog interface {
	PickupPoints(ctx context.Context, activeOnly bool) ([]domain.PickupPoint, error)
	Destinations(ctx context.Context, activeOnly bool) ([]domain.Destination, error)
}

type SeatCache interface {
	SeatMap(ctx context.Context) ([]domain.Seat, bool, error)
	SetSeatMap(ctx context.Context, seats []domain.Seat, ttl time.Duration) error
	InvalidateSeatMap(ctx context.Context) error
}

// ReadinessCheck backs /v1/readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Deps struct {
	Engine     BookingEngine
	Bookings   BookingReader
	Seats      Seats
	Catalog    Catalog
	SeatCache  SeatCache
	Gateway    *payment.Gateway
	Dispatcher *payment.Dispatcher
	Auth       *auth.Service
	Admin      *admin.Service
	Ready      []ReadinessCheck
}

type Handlers struct {
	engine     BookingEngine
	bookings   BookingReader
	seats      Seats
	catalog    Catalog
	cache      SeatCache
	gateway    *payment.Gateway
	dispatcher *payment.Dispatcher
	auth       *auth.Service
	admin      *admin.Service
	ready      []ReadinessCheck
}

func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		engine:     d.Engine,
		bookings:   d.Bookings,
		seats:      d.Seats,
		catalog:    d.Catalog,
		cache:      d.SeatCache,
		gateway:    d.Gateway,
		dispatcher: d.Dispatcher,
		auth:       d.Auth,
		admin:      d.Admin,
		ready:      d.Ready,
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.NewValidationError("body", "must be valid JSON: "+err.Error())
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, domain.NewValidationError(name, "must be a UUID")
	}
	return id, nil
}

func seatParam(r *http.Request) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		return 0, domain.NewValidationError("seat_number", "must be a number")
	}
	return n, nil
}

func (h *Handlers) PickupPoints(w http.ResponseWriter, r *http.Request) {
	ps, err := h.catalog.PickupPoints(r.Context(), true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pickup_points": ps})
}

func (h *Handlers) Destinations(w http.ResponseWriter, r *http.Request) {
	ds, err := h.catalog.Destinations(r.Context(), true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"destinations": ds})
}

// ListSeats serves the seat map, from cache when fresh.
func (h *Handlers) ListSeats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.cache != nil {
		seats, ok, err := h.cache.SeatMap(ctx)
		if err != nil {
			LoggerFrom(ctx).WithError(err).Warn("seat map cache read failed")
		} else if ok {
			writeJSON(w, http.StatusOK, map[string]any{"seats": seats})
			return
		}
	}
	seats, err := h.seats.List(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.SetSeatMap(ctx, seats, seatMapTTL); err != nil {
			LoggerFrom(ctx).WithError(err).Warn("seat map cache write failed")
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"seats": seats})
}

func (h *Handlers) GetSeat(w http.ResponseWriter, r *http.Request) {
	n, err := seatParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	seat, err := h.seats.Status(r.Context(), n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, seat)
}

type bookingRequest struct {
	domain.PassengerInfo
	domain.TripInfo
}

type groupBookingRequest struct {
	domain.TripInfo
	Passengers []domain.PassengerInfo `json:"passengers"`
}

type bookingsResponse struct {
	Bookings  []domain.Booking `json:"bookings"`
	ExpiresAt time.Time        `json:"expires_at"`
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.engine.CreateBooking(r.Context(), req.PassengerInfo, req.TripInfo, req.SeatNumber)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.seatsChanged(r.Context())
	writeJSON(w, http.StatusCreated, bookingsResponse{
		Bookings:  []domain.Booking{b},
		ExpiresAt: b.CreatedAt.Add(h.engine.HoldTTL()),
	})
}

func (h *Handlers) CreateGroupBooking(w http.ResponseWriter, r *http.Request) {
	var req groupBookingRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	bs, err := h.engine.CreateGroupBooking(r.Context(), req.TripInfo, req.Passengers)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.seatsChanged(r.Context())
	writeJSON(w, http.StatusCreated, bookingsResponse{
		Bookings:  bs,
		ExpiresAt: bs[0].CreatedAt.Add(h.engine.HoldTTL()),
	})
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.bookings.GetBooking(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type checkoutRequest struct {
	BookingIDs []uuid.UUID `json:"booking_ids"`
}

// Checkout returns the payment descriptor for pending bookings. The first
// id is the primary passenger.
func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.BookingIDs) == 0 || len(req.BookingIDs) > domain.MaxGroupSize {
		writeError(w, r, domain.NewValidationError("booking_ids", "must list between 1 and 5 bookings"))
		return
	}
	bookings := make([]domain.Booking, 0, len(req.BookingIDs))
	for _, id := range req.BookingIDs {
		b, err := h.bookings.GetBooking(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		bookings = append(bookings, b)
	}
	co, err := h.gateway.Checkout(bookings)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, co)
}

// PaymentCallback receives the gateway webhook.
func (h *Handlers) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, r, domain.NewValidationError("body", "could not be read"))
		return
	}
	ev, err := h.gateway.ParseWebhook(body, r.Header.Get(payment.SignatureHeader))
	if err != nil {
		LoggerFrom(r.Context()).WithError(err).Warn("payment webhook rejected")
		writeError(w, r, err)
		return
	}
	if err := h.dispatcher.Handle(r.Context(), ev); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type outcomeRequest struct {
	Outcome    payment.Outcome `json:"outcome"`
	Reference  string          `json:"reference"`
	BookingIDs []uuid.UUID     `json:"booking_ids"`
}

// PaymentOutcome records what the checkout widget reported to the browser.
func (h *Handlers) PaymentOutcome(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.dispatcher.ClientOutcome(r.Context(), req.Outcome, req.Reference, req.BookingIDs); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	failed := map[string]string{}
	for _, c := range h.ready {
		if err := c.Check(ctx); err != nil {
			failed[c.Name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Ready"))
}

func (h *Handlers) seatsChanged(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.InvalidateSeatMap(ctx); err != nil {
		LoggerFrom(ctx).WithError(err).Warn("seat map cache invalidation failed")
	}
}
