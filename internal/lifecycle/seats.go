package lifecycle

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/robertarktes/bus-seat-booking/internal/ledger"
	"github.com/robertarktes/bus-seat-booking/internal/observability"
	"github.com/robertarktes/bus-seat-booking/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ToggleSeat blocks or unblocks a seat that no active booking holds. The
// holder check and the flip share one transaction.
func (e *Engine) ToggleSeat(ctx context.Context, number int) (domain.Seat, error) {
	ctx, span := e.tracer.Start(ctx, "lifecycle.ToggleSeat", trace.WithAttributes(attribute.Int("seat", number)))
	defer span.End()

	if err := domain.ValidateSeatNumber(number); err != nil {
		return domain.Seat{}, fail(span, err)
	}
	var seat domain.Seat
	err := e.withTx(ctx, func(tx store.Tx) error {
		holder, err := tx.ActiveBookingForSeat(ctx, number)
		switch {
		case err == nil:
			return errors.Wrapf(domain.ErrConflict, "seat %d is held by booking %s", number, holder.ID)
		case !errors.Is(err, domain.ErrNotFound):
			return &domain.StorageError{Op: "check seat holder", Err: err}
		}
		seat, err = ledger.ToggleIn(ctx, tx, number)
		return err
	})
	if err != nil {
		return domain.Seat{}, fail(span, storageErr("toggle seat", err))
	}
	e.logger.WithField("seat", number).WithField("available", seat.Available).Info("seat toggled")
	return seat, nil
}

// ReleaseSeat frees a seat. An active booking holding it is cancelled in
// the same transaction and returned; otherwise the release is
// unconditional and the returned booking is nil.
func (e *Engine) ReleaseSeat(ctx context.Context, number int) (domain.Seat, *domain.Booking, error) {
	ctx, span := e.tracer.Start(ctx, "lifecycle.ReleaseSeat", trace.WithAttributes(attribute.Int("seat", number)))
	defer span.End()

	if err := domain.ValidateSeatNumber(number); err != nil {
		return domain.Seat{}, nil, fail(span, err)
	}
	var (
		seat      domain.Seat
		cancelled *domain.Booking
	)
	err := e.withTx(ctx, func(tx store.Tx) error {
		cancelled = nil
		holder, err := tx.ActiveBookingForSeat(ctx, number)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			if err := ledger.ReleaseIn(ctx, tx, number); err != nil {
				return err
			}
		case err != nil:
			return &domain.StorageError{Op: "check seat holder", Err: err}
		default:
			b, err := tx.GetBookingForUpdate(ctx, holder.ID)
			if err != nil {
				return err
			}
			wasApproved := b.Status == domain.StatusApproved
			if b.Cancel(e.now()) {
				if err := tx.UpdateBooking(ctx, b); err != nil {
					return err
				}
				if wasApproved {
					if err := tx.InsertOutbox(ctx, cancelledEvent(b)); err != nil {
						return err
					}
				}
				cancelled = &b
			}
			released, err := ledger.ReleaseHeldBy(ctx, tx, number, b.ID)
			if err != nil {
				return err
			}
			// The seat row may point at a stale occupant; with the holder
			// cancelled nothing active is left on it.
			if !released {
				if err := ledger.ReleaseIn(ctx, tx, number); err != nil {
					return err
				}
			}
		}
		seat, err = tx.GetSeat(ctx, number)
		return err
	})
	if err != nil {
		return domain.Seat{}, nil, fail(span, storageErr("release seat", err))
	}
	log := e.logger.WithField("seat", number)
	if cancelled != nil {
		observability.BookingTransitions.WithLabelValues(string(domain.StatusCancelled)).Inc()
		log = log.WithField("booking_id", cancelled.ID)
	}
	log.Info("seat released")
	return seat, cancelled, nil
}
