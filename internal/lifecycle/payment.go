package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/robertarktes/bus-seat-booking/internal/observability"
	"github.com/robertarktes/bus-seat-booking/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// charge is what the gateway reports as paid for a reference.
type charge struct {
	amount   domain.Money
	currency string
}

func (c *charge) check(total domain.Money) error {
	if c.currency != domain.Currency {
		return errors.Wrapf(domain.ErrAmountMismatch, "paid in %q, bookings are priced in %s", c.currency, domain.Currency)
	}
	if c.amount != total {
		return errors.Wrapf(domain.ErrAmountMismatch, "paid %d pesewas, bookings total %d", c.amount, total)
	}
	return nil
}

// ConfirmPayment approves every booking paid by reference. It is idempotent
// per reference: repeating it changes nothing and emits no second receipt.
// When the bookings cannot be approved the reference is flagged for
// reconciliation and a *domain.PaymentCallbackError is returned.
func (e *Engine) ConfirmPayment(ctx context.Context, ids []uuid.UUID, reference string) error {
	return e.confirm(ctx, ids, reference, nil)
}

// ConfirmCharge confirms a gateway charge. The paid amount and currency must
// equal the bookings' total; otherwise nothing is approved and the
// reference is flagged for reconciliation.
func (e *Engine) ConfirmCharge(ctx context.Context, ids []uuid.UUID, reference string, paid domain.Money, currency string) error {
	return e.confirm(ctx, ids, reference, &charge{amount: paid, currency: currency})
}

func (e *Engine) confirm(ctx context.Context, ids []uuid.UUID, reference string, paid *charge) error {
	ctx, span := e.tracer.Start(ctx, "lifecycle.ConfirmPayment", trace.WithAttributes(
		attribute.String("reference", reference),
		attribute.Int("bookings", len(ids)),
	))
	defer span.End()
	if paid != nil {
		span.SetAttributes(attribute.Int64("paid", int64(paid.amount)), attribute.String("currency", paid.currency))
	}

	if reference == "" {
		return fail(span, domain.NewValidationError("reference", "is required"))
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return fail(span, domain.NewValidationError("booking_ids", "is required"))
	}

	names := e.receiptNames(ctx, ids)
	now := e.now()
	var approved int
	err := e.withTx(ctx, func(tx store.Tx) error {
		approved = 0
		bookings := make([]domain.Booking, 0, len(ids))
		var total domain.Money
		for _, id := range ids {
			b, err := tx.GetBookingForUpdate(ctx, id)
			if err != nil {
				return errors.Wrapf(err, "booking %s", id)
			}
			bookings = append(bookings, b)
			total += b.Amount
		}
		if paid != nil {
			if err := paid.check(total); err != nil {
				return err
			}
		}
		for _, b := range bookings {
			changed, err := b.Approve(reference, now)
			if err != nil {
				return errors.Wrapf(err, "booking %s is %s", b.ID, b.Status)
			}
			if !changed {
				continue
			}
			seat, err := tx.GetSeat(ctx, b.SeatNumber)
			if err != nil {
				return errors.Wrapf(err, "seat %d", b.SeatNumber)
			}
			if seat.BookingID == nil || *seat.BookingID != b.ID {
				return errors.Wrapf(domain.ErrConflict, "seat %d is no longer held by booking %s", b.SeatNumber, b.ID)
			}
			if err := tx.UpdateBooking(ctx, b); err != nil {
				return err
			}
			rec, err := approvedEvent(b, names, now)
			if err != nil {
				return err
			}
			if err := tx.InsertOutbox(ctx, rec); err != nil {
				return err
			}
			approved++
		}
		return nil
	})
	if err != nil {
		e.flagReconciliation(ctx, reference, ids, err)
		return fail(span, &domain.PaymentCallbackError{Reference: reference, BookingIDs: ids, Err: err})
	}

	if approved > 0 {
		observability.BookingTransitions.WithLabelValues(string(domain.StatusApproved)).Add(float64(approved))
		e.logger.WithField("reference", reference).WithField("approved", approved).Info("payment confirmed")
	}
	return nil
}

// FailPayment marks pending bookings as payment failed. Approved or
// cancelled bookings are left as they are.
func (e *Engine) FailPayment(ctx context.Context, ids []uuid.UUID) error {
	ctx, span := e.tracer.Start(ctx, "lifecycle.FailPayment", trace.WithAttributes(attribute.Int("bookings", len(ids))))
	defer span.End()

	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return fail(span, domain.NewValidationError("booking_ids", "is required"))
	}
	now := e.now()
	err := e.withTx(ctx, func(tx store.Tx) error {
		for _, id := range ids {
			b, err := tx.GetBookingForUpdate(ctx, id)
			if err != nil {
				return errors.Wrapf(err, "booking %s", id)
			}
			if !b.MarkPaymentFailed(now) {
				continue
			}
			if err := tx.UpdateBooking(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fail(span, storageErr("fail payment", err))
	}
	e.logger.WithField("bookings", ids).Info("payment marked failed")
	return nil
}

// ApproveManually approves one booking on an operator's word. It follows
// the same path as a gateway confirmation.
func (e *Engine) ApproveManually(ctx context.Context, id uuid.UUID, reference string) (domain.Booking, error) {
	if reference == "" {
		reference = "manual-" + id.String()
	}
	if err := e.ConfirmPayment(ctx, []uuid.UUID{id}, reference); err != nil {
		var pce *domain.PaymentCallbackError
		if errors.As(err, &pce) {
			return domain.Booking{}, pce.Err
		}
		return domain.Booking{}, err
	}
	b, err := e.store.GetBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, storageErr("get booking", err)
	}
	return b, nil
}

func (e *Engine) flagReconciliation(ctx context.Context, reference string, ids []uuid.UUID, cause error) {
	ctx = context.WithoutCancel(ctx)
	r := domain.Reconciliation{
		ID:         uuid.New(),
		Reference:  reference,
		BookingIDs: ids,
		Reason:     cause.Error(),
		CreatedAt:  e.now(),
	}
	log := e.logger.WithError(cause).WithField("reference", reference).WithField("bookings", ids)
	added, err := e.store.InsertReconciliation(ctx, r)
	if err != nil {
		log.WithField("reconcile_error", err.Error()).Error("paid reference could not be applied or recorded")
		return
	}
	if !added {
		log.Warn("paid reference still unapplied, already flagged for reconciliation")
		return
	}
	observability.PaymentReconciliations.Inc()
	log.Error("paid reference could not be applied, flagged for reconciliation")
}

// receiptNames resolves catalog display names for the receipts. A missing
// entry falls back to "N/A" and never blocks the approval.
func (e *Engine) receiptNames(ctx context.Context, ids []uuid.UUID) map[string]string {
	names := map[string]string{}
	for _, id := range ids {
		b, err := e.store.GetBooking(ctx, id)
		if err != nil {
			continue
		}
		if _, ok := names["p:"+b.PickupPointID]; !ok {
			names["p:"+b.PickupPointID] = "N/A"
			if p, err := e.catalog.GetPickupPoint(ctx, b.PickupPointID); err == nil {
				names["p:"+b.PickupPointID] = p.Name
			}
		}
		if _, ok := names["d:"+b.DestinationID]; !ok {
			names["d:"+b.DestinationID] = "N/A"
			if d, err := e.catalog.GetDestination(ctx, b.DestinationID); err == nil {
				names["d:"+b.DestinationID] = d.Name
			}
		}
	}
	return names
}

func approvedEvent(b domain.Booking, names map[string]string, now time.Time) (domain.OutboxRecord, error) {
	pickup, ok := names["p:"+b.PickupPointID]
	if !ok {
		pickup = "N/A"
	}
	dest, ok := names["d:"+b.DestinationID]
	if !ok {
		dest = "N/A"
	}
	payload, err := json.Marshal(b.ToReceipt(pickup, dest))
	if err != nil {
		return domain.OutboxRecord{}, errors.Wrap(err, "marshal receipt")
	}
	return domain.OutboxRecord{
		ID:            uuid.New(),
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     domain.EventBookingApproved,
		Payload:       payload,
		CreatedAt:     now,
		Status:        domain.OutboxNew,
		DedupeKey:     fmt.Sprintf("%s:%s:%s", domain.EventBookingApproved, b.ID, *b.PaymentReference),
	}, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
