// Package store defines the storage contract shared by the seat ledger and
// the booking lifecycle. Every adapter must make ClaimSeat a single
// conditional update and must make WithTx failure-atomic.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
)

type SeatTx interface {
	// ClaimSeat sets the seat unavailable and links it to bookingID only if
	// it is currently available. It reports whether the update happened.
	ClaimSeat(ctx context.Context, number int, bookingID uuid.UUID, passenger string) (bool, error)
	// ReleaseSeat makes the seat available and clears its occupant.
	ReleaseSeat(ctx context.Context, number int) error
	// ReleaseSeatHeldBy releases the seat only if bookingID occupies it.
	ReleaseSeatHeldBy(ctx context.Context, number int, bookingID uuid.UUID) (bool, error)
	// ToggleSeat flips availability and clears the occupant.
	ToggleSeat(ctx context.Context, number int) (domain.Seat, error)
	GetSeat(ctx context.Context, number int) (domain.Seat, error)
	ListSeats(ctx context.Context) ([]domain.Seat, error)
}

type BookingTx interface {
	InsertBooking(ctx context.Context, b domain.Booking) error
	// GetBookingForUpdate locks the row for the rest of the transaction.
	GetBookingForUpdate(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	UpdateBooking(ctx context.Context, b domain.Booking) error
	DeleteBooking(ctx context.Context, id uuid.UUID) error
	// ActiveBookingForSeat returns the pending or approved booking that holds
	// the seat, or domain.ErrNotFound.
	ActiveBookingForSeat(ctx context.Context, number int) (domain.Booking, error)
	InsertOutbox(ctx context.Context, rec domain.OutboxRecord) error
}

type Tx interface {
	SeatTx
	BookingTx
}

type BookingFilter struct {
	Status domain.Status
	Limit  int
}

type Store interface {
	// WithTx runs fn in one failure-atomic transaction. A returned error
	// discards every write made through tx.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// EnsureSeats creates seats 1..domain.SeatCount when missing.
	EnsureSeats(ctx context.Context) error
	ListSeats(ctx context.Context) ([]domain.Seat, error)
	GetSeat(ctx context.Context, number int) (domain.Seat, error)

	GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	ListBookings(ctx context.Context, f BookingFilter) ([]domain.Booking, error)
	// ListStalePending returns pending bookings created at or before cutoff,
	// oldest first.
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]domain.Booking, error)

	// InsertReconciliation records r unless an unresolved entry for the
	// same reference exists. It reports whether a row was added.
	InsertReconciliation(ctx context.Context, r domain.Reconciliation) (bool, error)
	ListReconciliations(ctx context.Context, unresolvedOnly bool) ([]domain.Reconciliation, error)
	ResolveReconciliation(ctx context.Context, id uuid.UUID, at time.Time) error

	OutboxStore
}

type OutboxStore interface {
	GetUnpublishedOutbox(ctx context.Context, limit int) ([]domain.OutboxRecord, error)
	MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error
}

type AdminStore interface {
	CreateAdmin(ctx context.Context, a domain.Admin) error
	GetAdminByEmail(ctx context.Context, email string) (domain.Admin, error)
	CountAdmins(ctx context.Context) (int, error)
}
