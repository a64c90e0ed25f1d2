package lifecycle

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/robertarktes/bus-seat-booking/internal/observability"
	"github.com/robertarktes/bus-seat-booking/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CreateGroupBooking books 1..5 passengers sharing trip details. Seats are
// claimed in passenger order and the whole batch commits or none of it.
func (e *Engine) CreateGroupBooking(ctx context.Context, trip domain.TripInfo, passengers []domain.PassengerInfo) ([]domain.Booking, error) {
	ctx, span := e.tracer.Start(ctx, "lifecycle.CreateGroupBooking", trace.WithAttributes(attribute.Int("passengers", len(passengers))))
	defer span.End()

	if len(passengers) < 1 || len(passengers) > domain.MaxGroupSize {
		return nil, fail(span, domain.NewValidationError("passengers", fmt.Sprintf("must have between 1 and %d passengers", domain.MaxGroupSize)))
	}
	if err := checkSeats(passengers); err != nil {
		return nil, fail(span, err)
	}

	errs := []error{domain.ValidateTrip(trip)}
	for i, p := range passengers {
		errs = append(errs, domain.ValidatePassengerAt(i, p))
		if err := domain.ValidateSeatNumber(p.SeatNumber); err != nil {
			errs = append(errs, domain.NewValidationError(fmt.Sprintf("passengers[%d].seat_number", i), "must be between 1 and 31"))
		}
	}
	if err := domain.MergeValidation(errs...); err != nil {
		return nil, fail(span, err)
	}

	fare, err := e.fare(ctx, trip)
	if err != nil {
		return nil, fail(span, err)
	}

	now := e.now()
	bookings := make([]domain.Booking, len(passengers))
	for i, p := range passengers {
		bookings[i] = domain.NewBooking(p, trip, fare, now)
	}

	err = e.withTx(ctx, func(tx store.Tx) error {
		for i, b := range bookings {
			if err := e.claimAndInsert(ctx, tx, b); err != nil {
				return errors.Wrapf(err, "passenger %d", i+1)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAmbiguousCommit) {
			e.compensate(ctx, bookings)
		}
		return nil, fail(span, storageErr("create group booking", err))
	}

	observability.BookingTransitions.WithLabelValues(string(domain.StatusPending)).Add(float64(len(bookings)))
	e.logger.WithField("bookings", bookingIDs(bookings)).Info("group booking created")
	return bookings, nil
}

// checkSeats rejects missing or repeated seats before any claim.
func checkSeats(passengers []domain.PassengerInfo) error {
	seen := make(map[int]int, len(passengers))
	for i, p := range passengers {
		if p.SeatNumber == 0 {
			return errors.Wrapf(domain.ErrSeatMismatch, "%d passenger(s) but passenger %d has no seat", len(passengers), i+1)
		}
		if j, dup := seen[p.SeatNumber]; dup {
			return errors.Wrapf(domain.ErrSeatMismatch, "seat %d chosen by passengers %d and %d", p.SeatNumber, j+1, i+1)
		}
		seen[p.SeatNumber] = i
	}
	return nil
}
