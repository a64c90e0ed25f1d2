package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
)

type tx struct {
	s  *Store
	st *state
}

func (t *tx) ClaimSeat(ctx context.Context, number int, bookingID uuid.UUID, passenger string) (bool, error) {
	if err := t.s.takeFault("ClaimSeat"); err != nil {
		return false, err
	}
	seat, ok := t.st.seats[number]
	if !ok || !seat.Available {
		return false, nil
	}
	id := bookingID
	seat.Available = false
	seat.BookingID = &id
	seat.PassengerName = passenger
	seat.UpdatedAt = t.s.now()
	t.st.seats[number] = seat
	return true, nil
}

func (t *tx) ReleaseSeat(ctx context.Context, number int) error {
	if err := t.s.takeFault("ReleaseSeat"); err != nil {
		return err
	}
	seat, ok := t.st.seats[number]
	if !ok {
		return domain.ErrNotFound
	}
	t.st.seats[number] = domain.Seat{Number: seat.Number, Available: true, UpdatedAt: t.s.now()}
	return nil
}

func (t *tx) ReleaseSeatHeldBy(ctx context.Context, number int, bookingID uuid.UUID) (bool, error) {
	if err := t.s.takeFault("ReleaseSeatHeldBy"); err != nil {
		return false, err
	}
	seat, ok := t.st.seats[number]
	if !ok || seat.BookingID == nil || *seat.BookingID != bookingID {
		return false, nil
	}
	t.st.seats[number] = domain.Seat{Number: seat.Number, Available: true, UpdatedAt: t.s.now()}
	return true, nil
}

func (t *tx) ToggleSeat(ctx context.Context, number int) (domain.Seat, error) {
	if err := t.s.takeFault("ToggleSeat"); err != nil {
		return domain.Seat{}, err
	}
	seat, ok := t.st.seats[number]
	if !ok {
		return domain.Seat{}, domain.ErrNotFound
	}
	seat = domain.Seat{Number: seat.Number, Available: !seat.Available, UpdatedAt: t.s.now()}
	t.st.seats[number] = seat
	return seat, nil
}

func (t *tx) GetSeat(ctx context.Context, number int) (domain.Seat, error) {
	seat, ok := t.st.seats[number]
	if !ok {
		return domain.Seat{}, domain.ErrNotFound
	}
	return seat, nil
}

func (t *tx) ListSeats(ctx context.Context) ([]domain.Seat, error) {
	return listSeats(t.st), nil
}

func (t *tx) InsertBooking(ctx context.Context, b domain.Booking) error {
	if err := t.s.takeFault("InsertBooking"); err != nil {
		return err
	}
	if _, exists := t.st.bookings[b.ID]; exists {
		return domain.ErrConflict
	}
	t.st.bookings[b.ID] = b
	return nil
}

func (t *tx) GetBookingForUpdate(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	if err := t.s.takeFault("GetBookingForUpdate"); err != nil {
		return domain.Booking{}, err
	}
	b, ok := t.st.bookings[id]
	if !ok {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, nil
}

func (t *tx) UpdateBooking(ctx context.Context, b domain.Booking) error {
	if err := t.s.takeFault("UpdateBooking"); err != nil {
		return err
	}
	if _, ok := t.st.bookings[b.ID]; !ok {
		return domain.ErrNotFound
	}
	t.st.bookings[b.ID] = b
	return nil
}

func (t *tx) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	if err := t.s.takeFault("DeleteBooking"); err != nil {
		return err
	}
	if _, ok := t.st.bookings[id]; !ok {
		return domain.ErrNotFound
	}
	delete(t.st.bookings, id)
	return nil
}

func (t *tx) ActiveBookingForSeat(ctx context.Context, number int) (domain.Booking, error) {
	for _, b := range t.st.bookings {
		if b.SeatNumber == number && b.Active() {
			return b, nil
		}
	}
	return domain.Booking{}, domain.ErrNotFound
}

func (t *tx) InsertOutbox(ctx context.Context, rec domain.OutboxRecord) error {
	if err := t.s.takeFault("InsertOutbox"); err != nil {
		return err
	}
	for _, existing := range t.st.outbox {
		if rec.DedupeKey != "" && existing.DedupeKey == rec.DedupeKey {
			return nil
		}
	}
	if rec.Status == "" {
		rec.Status = domain.OutboxNew
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = t.s.now()
	}
	t.st.outbox[rec.ID] = rec
	return nil
}
