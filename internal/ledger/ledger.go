// Package ledger is the single source of truth for seat occupancy. It
// guarantees at most one active booking per seat by routing every claim
// through the store's conditional update.
package ledger

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/robertarktes/bus-seat-booking/internal/observability"
	"github.com/robertarktes/bus-seat-booking/internal/store"
)

// ClaimToken proves a successful claim of a seat for a booking.
type ClaimToken struct {
	SeatNumber int
	BookingID  uuid.UUID
	ClaimedAt  time.Time
}

type Ledger struct {
	store  store.Store
	logger observability.Logger
}

func New(s store.Store, logger observability.Logger) *Ledger {
	return &Ledger{store: s, logger: logger}
}

// Claim marks the seat unavailable for bookingID in its own transaction.
func (l *Ledger) Claim(ctx context.Context, number int, bookingID uuid.UUID, passenger string) (ClaimToken, error) {
	var tok ClaimToken
	err := l.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		tok, err = ClaimIn(ctx, tx, number, bookingID, passenger)
		return err
	})
	if err != nil {
		return ClaimToken{}, err
	}
	return tok, nil
}

// ClaimIn performs the claim inside an existing transaction.
func ClaimIn(ctx context.Context, tx store.SeatTx, number int, bookingID uuid.UUID, passenger string) (ClaimToken, error) {
	if err := domain.ValidateSeatNumber(number); err != nil {
		return ClaimToken{}, err
	}
	ok, err := tx.ClaimSeat(ctx, number, bookingID, passenger)
	if err != nil {
		observability.SeatClaims.WithLabelValues("error").Inc()
		return ClaimToken{}, &domain.StorageError{Op: "claim seat", Err: err}
	}
	if !ok {
		observability.SeatClaims.WithLabelValues("unavailable").Inc()
		return ClaimToken{}, errors.Wrapf(domain.ErrSeatUnavailable, "seat %d", number)
	}
	observability.SeatClaims.WithLabelValues("claimed").Inc()
	return ClaimToken{SeatNumber: number, BookingID: bookingID, ClaimedAt: time.Now()}, nil
}

// Release makes the seat available regardless of its current state.
func (l *Ledger) Release(ctx context.Context, number int) error {
	err := l.store.WithTx(ctx, func(tx store.Tx) error {
		return ReleaseIn(ctx, tx, number)
	})
	if err != nil {
		return err
	}
	l.logger.WithField("seat", number).Info("seat released")
	return nil
}

// ReleaseIn performs the unconditional release inside an existing
// transaction.
func ReleaseIn(ctx context.Context, tx store.SeatTx, number int) error {
	if err := domain.ValidateSeatNumber(number); err != nil {
		return err
	}
	if err := tx.ReleaseSeat(ctx, number); err != nil {
		return &domain.StorageError{Op: "release seat", Err: err}
	}
	return nil
}

// ReleaseHeldBy releases the seat only when bookingID still occupies it.
func ReleaseHeldBy(ctx context.Context, tx store.SeatTx, number int, bookingID uuid.UUID) (bool, error) {
	released, err := tx.ReleaseSeatHeldBy(ctx, number, bookingID)
	if err != nil {
		return false, &domain.StorageError{Op: "release seat", Err: err}
	}
	return released, nil
}

// Toggle flips the seat for maintenance blocking. It ignores any booking
// linkage and clears the occupant.
func (l *Ledger) Toggle(ctx context.Context, number int) (domain.Seat, error) {
	var seat domain.Seat
	err := l.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		seat, err = ToggleIn(ctx, tx, number)
		return err
	})
	if err != nil {
		return domain.Seat{}, err
	}
	l.logger.WithField("seat", number).WithField("available", seat.Available).Info("seat toggled")
	return seat, nil
}

// ToggleIn flips the seat inside an existing transaction.
func ToggleIn(ctx context.Context, tx store.SeatTx, number int) (domain.Seat, error) {
	if err := domain.ValidateSeatNumber(number); err != nil {
		return domain.Seat{}, err
	}
	seat, err := tx.ToggleSeat(ctx, number)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Seat{}, err
	}
	if err != nil {
		return domain.Seat{}, &domain.StorageError{Op: "toggle seat", Err: err}
	}
	return seat, nil
}

func (l *Ledger) Status(ctx context.Context, number int) (domain.Seat, error) {
	if err := domain.ValidateSeatNumber(number); err != nil {
		return domain.Seat{}, err
	}
	seat, err := l.store.GetSeat(ctx, number)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Seat{}, err
	}
	if err != nil {
		return domain.Seat{}, &domain.StorageError{Op: "get seat", Err: err}
	}
	return seat, nil
}

func (l *Ledger) List(ctx context.Context) ([]domain.Seat, error) {
	seats, err := l.store.ListSeats(ctx)
	if err != nil {
		return nil, &domain.StorageError{Op: "list seats", Err: err}
	}
	return seats, nil
}
