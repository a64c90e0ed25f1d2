package payment

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/robertarktes/bus-seat-booking/internal/observability"
)

// Lifecycle is the part of the booking engine a payment outcome drives.
type Lifecycle interface {
	ConfirmCharge(ctx context.Context, ids []uuid.UUID, reference string, paid domain.Money, currency string) error
	FailPayment(ctx context.Context, ids []uuid.UUID) error
}

type Dispatcher struct {
	lifecycle Lifecycle
	gateway   *Gateway
	logger    observability.Logger
}

func NewDispatcher(lc Lifecycle, gateway *Gateway, logger observability.Logger) *Dispatcher {
	return &Dispatcher{lifecycle: lc, gateway: gateway, logger: logger}
}

// Handle applies a verified gateway event. Only a successful charge for
// the bookings' exact total approves them; cancel and close leave them
// pending.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) error {
	log := d.logger.WithField("reference", ev.Reference).WithField("outcome", string(ev.Outcome))
	switch ev.Outcome {
	case OutcomeSuccess:
		return d.lifecycle.ConfirmCharge(ctx, ev.BookingIDs, ev.Reference, ev.Amount, ev.Currency)
	case OutcomeFailed:
		return d.lifecycle.FailPayment(ctx, ev.BookingIDs)
	case OutcomeCancelled, OutcomeClosed, OutcomeIgnored:
		log.Info("payment outcome acknowledged, bookings unchanged")
		return nil
	}
	return domain.NewValidationError("outcome", "is not a known payment outcome")
}

// ClientOutcome handles what the browser reports after the checkout widget
// closes. A reported success is trusted only after the gateway confirms it.
func (d *Dispatcher) ClientOutcome(ctx context.Context, outcome Outcome, reference string, ids []uuid.UUID) error {
	switch outcome {
	case OutcomeCancelled, OutcomeClosed:
		return d.Handle(ctx, Event{Outcome: outcome, Reference: reference, BookingIDs: ids})
	case OutcomeSuccess:
		if reference == "" {
			return domain.NewValidationError("reference", "is required")
		}
		ev, err := d.gateway.Verify(ctx, reference)
		if err != nil {
			return errors.Wrap(err, "verify reported payment")
		}
		if ev.Outcome == OutcomeIgnored {
			d.logger.WithField("reference", reference).Info("reported payment not settled yet")
			return nil
		}
		return d.Handle(ctx, ev)
	}
	return domain.NewValidationError("outcome", "must be one of success, cancel, close")
}
