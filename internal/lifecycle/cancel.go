package lifecycle

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/robertarktes/bus-seat-booking/internal/ledger"
	"github.com/robertarktes/bus-seat-booking/internal/observability"
	"github.com/robertarktes/bus-seat-booking/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RejectOrCancel cancels a pending or approved booking and frees its seat
// if the booking still holds it. Cancelling a cancelled booking is a no-op.
func (e *Engine) RejectOrCancel(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	ctx, span := e.tracer.Start(ctx, "lifecycle.RejectOrCancel", trace.WithAttributes(attribute.String("booking_id", id.String())))
	defer span.End()

	var b domain.Booking
	var changed bool
	err := e.withTx(ctx, func(tx store.Tx) error {
		var err error
		changed = false
		b, err = tx.GetBookingForUpdate(ctx, id)
		if err != nil {
			return err
		}
		wasApproved := b.Status == domain.StatusApproved
		if !b.Cancel(e.now()) {
			return nil
		}
		changed = true
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		if _, err := ledger.ReleaseHeldBy(ctx, tx, b.SeatNumber, b.ID); err != nil {
			return err
		}
		if wasApproved {
			return tx.InsertOutbox(ctx, cancelledEvent(b))
		}
		return nil
	})
	if err != nil {
		return domain.Booking{}, fail(span, storageErr("cancel booking", err))
	}
	if changed {
		observability.BookingTransitions.WithLabelValues(string(domain.StatusCancelled)).Inc()
		e.logger.WithField("booking_id", id).WithField("seat", b.SeatNumber).Info("booking cancelled")
	}
	return b, nil
}

// DeleteBooking removes the booking row and frees its seat if the booking
// still holds it.
func (e *Engine) DeleteBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	ctx, span := e.tracer.Start(ctx, "lifecycle.DeleteBooking", trace.WithAttributes(attribute.String("booking_id", id.String())))
	defer span.End()

	var b domain.Booking
	err := e.withTx(ctx, func(tx store.Tx) error {
		var err error
		b, err = tx.GetBookingForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteBooking(ctx, id); err != nil {
			return err
		}
		_, err = ledger.ReleaseHeldBy(ctx, tx, b.SeatNumber, b.ID)
		return err
	})
	if err != nil {
		return domain.Booking{}, fail(span, storageErr("delete booking", err))
	}
	e.logger.WithField("booking_id", id).WithField("seat", b.SeatNumber).Info("booking deleted")
	return b, nil
}

func cancelledEvent(b domain.Booking) domain.OutboxRecord {
	payload, _ := json.Marshal(map[string]any{
		"booking_id":  b.ID,
		"seat_number": b.SeatNumber,
		"email":       b.Email,
		"status":      b.Status,
	})
	return domain.OutboxRecord{
		ID:            uuid.New(),
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     domain.EventBookingCancelled,
		Payload:       payload,
		CreatedAt:     b.UpdatedAt,
		Status:        domain.OutboxNew,
		DedupeKey:     domain.EventBookingCancelled + ":" + b.ID.String(),
	}
}

// ExpireStale cancels pending bookings older than the hold TTL and frees
// their seats. It works in batches and returns how many it expired.
func (e *Engine) ExpireStale(ctx context.Context) (int, error) {
	ctx, span := e.tracer.Start(ctx, "lifecycle.ExpireStale")
	defer span.End()

	const batch = 100
	cutoff := e.now().Add(-e.holdTTL)
	total := 0
	for {
		stale, err := e.store.ListStalePending(ctx, cutoff, batch)
		if err != nil {
			return total, fail(span, &domain.StorageError{Op: "list stale bookings", Err: err})
		}
		expired := 0
		for _, b := range stale {
			ok, err := e.expireOne(ctx, b.ID, cutoff)
			if err != nil {
				e.logger.WithError(err).WithField("booking_id", b.ID).Warn("expire booking failed")
				continue
			}
			if ok {
				expired++
			}
		}
		total += expired
		if len(stale) < batch || expired == 0 {
			break
		}
	}

	if total > 0 {
		observability.BookingsExpired.Add(float64(total))
		e.logger.WithField("expired", total).Info("stale bookings expired")
	}
	span.SetAttributes(attribute.Int("expired", total))
	return total, nil
}

func (e *Engine) expireOne(ctx context.Context, id uuid.UUID, cutoff time.Time) (bool, error) {
	var expired bool
	err := e.withTx(ctx, func(tx store.Tx) error {
		expired = false
		b, err := tx.GetBookingForUpdate(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		// A payment may have landed since the listing.
		if b.Status != domain.StatusPending || b.CreatedAt.After(cutoff) {
			return nil
		}
		b.Cancel(e.now())
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		if _, err := ledger.ReleaseHeldBy(ctx, tx, b.SeatNumber, b.ID); err != nil {
			return err
		}
		expired = true
		return nil
	})
	return expired, err
}
