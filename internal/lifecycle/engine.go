// Package lifecycle drives a booking from seat claim to approval or
// release. Every step that touches both seats and bookings runs inside one
// store transaction.
package lifecycle

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/robertarktes/bus-seat-booking/internal/ledger"
	"github.com/robertarktes/bus-seat-booking/internal/observability"
	"github.com/robertarktes/bus-seat-booking/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Catalog is the read side of the pickup point and destination store.
type Catalog interface {
	GetPickupPoint(ctx context.Context, id string) (domain.PickupPoint, error)
	GetDestination(ctx context.Context, id string) (domain.Destination, error)
}

type Engine struct {
	store   store.Store
	catalog Catalog
	logger  observability.Logger
	holdTTL time.Duration
	now     func() time.Time
	tracer  trace.Tracer
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(s store.Store, catalog Catalog, logger observability.Logger, holdTTL time.Duration, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		catalog: catalog,
		logger:  logger,
		holdTTL: holdTTL,
		now:     time.Now,
		tracer:  observability.Tracer("lifecycle"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) HoldTTL() time.Duration { return e.holdTTL }

// CreateBooking claims seat for the passenger and inserts a pending booking.
// The claim and the insert commit together or not at all.
func (e *Engine) CreateBooking(ctx context.Context, p domain.PassengerInfo, trip domain.TripInfo, seat int) (domain.Booking, error) {
	ctx, span := e.tracer.Start(ctx, "lifecycle.CreateBooking", trace.WithAttributes(attribute.Int("seat", seat)))
	defer span.End()

	p.SeatNumber = seat
	if err := domain.MergeValidation(domain.ValidatePassenger(p), domain.ValidateTrip(trip), domain.ValidateSeatNumber(seat)); err != nil {
		return domain.Booking{}, fail(span, err)
	}
	fare, err := e.fare(ctx, trip)
	if err != nil {
		return domain.Booking{}, fail(span, err)
	}

	b := domain.NewBooking(p, trip, fare, e.now())
	err = e.withTx(ctx, func(tx store.Tx) error {
		return e.claimAndInsert(ctx, tx, b)
	})
	if err != nil {
		if errors.Is(err, domain.ErrAmbiguousCommit) {
			e.compensate(ctx, []domain.Booking{b})
		}
		return domain.Booking{}, fail(span, storageErr("create booking", err))
	}

	observability.BookingTransitions.WithLabelValues(string(domain.StatusPending)).Inc()
	e.logger.WithField("booking_id", b.ID).WithField("seat", seat).Info("booking created")
	return b, nil
}

func (e *Engine) claimAndInsert(ctx context.Context, tx store.Tx, b domain.Booking) error {
	holder, err := tx.ActiveBookingForSeat(ctx, b.SeatNumber)
	switch {
	case err == nil:
		return errors.Wrapf(domain.ErrSeatUnavailable, "seat %d is held by booking %s", b.SeatNumber, holder.ID)
	case !errors.Is(err, domain.ErrNotFound):
		return &domain.StorageError{Op: "check seat holder", Err: err}
	}

	if _, err := ledger.ClaimIn(ctx, tx, b.SeatNumber, b.ID, b.FullName); err != nil {
		return err
	}
	if err := tx.InsertBooking(ctx, b); err != nil {
		return &domain.StorageError{Op: "insert booking", Err: err}
	}
	return nil
}

// fare resolves the flat price of the trip's destination. Both catalog
// entries must exist and be active.
func (e *Engine) fare(ctx context.Context, trip domain.TripInfo) (domain.Money, error) {
	pickup, err := e.catalog.GetPickupPoint(ctx, trip.PickupPointID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && !pickup.Active) {
		return 0, domain.NewValidationError("pickup_point_id", "unknown or inactive pickup point")
	}
	if err != nil {
		return 0, &domain.StorageError{Op: "get pickup point", Err: err}
	}
	dest, err := e.catalog.GetDestination(ctx, trip.DestinationID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && !dest.Active) {
		return 0, domain.NewValidationError("destination_id", "unknown or inactive destination")
	}
	if err != nil {
		return 0, &domain.StorageError{Op: "get destination", Err: err}
	}
	if dest.Price <= 0 {
		return 0, domain.NewValidationError("destination_id", "destination has no price")
	}
	return dest.Price, nil
}

// compensate undoes bookings whose commit outcome is unknown: it releases
// seats they still hold and removes their rows.
func (e *Engine) compensate(ctx context.Context, bookings []domain.Booking) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		for _, b := range bookings {
			if _, err := tx.ReleaseSeatHeldBy(ctx, b.SeatNumber, b.ID); err != nil {
				return err
			}
			if err := tx.DeleteBooking(ctx, b.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		e.logger.WithError(err).WithField("bookings", bookingIDs(bookings)).Error("compensation failed, seats may need manual release")
		return
	}
	e.logger.WithField("bookings", bookingIDs(bookings)).Warn("compensated bookings after ambiguous commit")
}

func (e *Engine) withTx(ctx context.Context, fn func(tx store.Tx) error) error {
	start := time.Now()
	defer func() { observability.DBTxDuration.Observe(time.Since(start).Seconds()) }()
	return e.store.WithTx(ctx, fn)
}

// storageErr wraps unexpected store failures and passes domain outcomes
// through untouched.
func storageErr(op string, err error) error {
	var se *domain.StorageError
	switch {
	case errors.As(err, &se),
		errors.Is(err, domain.ErrSeatUnavailable),
		errors.Is(err, domain.ErrSeatMismatch),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrConflict):
		return err
	}
	return &domain.StorageError{Op: op, Err: err}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func bookingIDs(bs []domain.Booking) []uuid.UUID {
	ids := make([]uuid.UUID, len(bs))
	for i, b := range bs {
		ids[i] = b.ID
	}
	return ids
}
