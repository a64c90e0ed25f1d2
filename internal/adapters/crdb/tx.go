package crdb

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
)

type txRepo struct {
	q querier
}

const seatColumns = `seat_number, is_available, booking_id, passenger_name, updated_at`

const bookingColumns = `id, full_name, class, email, phone, contact_person_name, contact_person_phone,
	pickup_point_id, destination_id, bus_type, seat_number, amount, referral, departure_date,
	status, payment_status, payment_reference, created_at, updated_at`

func (t *txRepo) ClaimSeat(ctx context.Context, number int, bookingID uuid.UUID, passenger string) (bool, error) {
	tag, err := t.q.Exec(ctx, `
		UPDATE seats SET is_available = false, booking_id = $2, passenger_name = $3, updated_at = now()
		WHERE seat_number = $1 AND is_available
	`, number, bookingID, passenger)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *txRepo) ReleaseSeat(ctx context.Context, number int) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE seats SET is_available = true, booking_id = NULL, passenger_name = '', updated_at = now()
		WHERE seat_number = $1
	`, number)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *txRepo) ReleaseSeatHeldBy(ctx context.Context, number int, bookingID uuid.UUID) (bool, error) {
	tag, err := t.q.Exec(ctx, `
		UPDATE seats SET is_available = true, booking_id = NULL, passenger_name = '', updated_at = now()
		WHERE seat_number = $1 AND booking_id = $2
	`, number, bookingID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *txRepo) ToggleSeat(ctx context.Context, number int) (domain.Seat, error) {
	seat, err := scanSeat(t.q.QueryRow(ctx, `
		UPDATE seats SET is_available = NOT is_available, booking_id = NULL, passenger_name = '', updated_at = now()
		WHERE seat_number = $1
		RETURNING `+seatColumns, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Seat{}, domain.ErrNotFound
	}
	return seat, err
}

func (t *txRepo) GetSeat(ctx context.Context, number int) (domain.Seat, error) {
	return getSeat(ctx, t.q, number, true)
}

func (t *txRepo) ListSeats(ctx context.Context) ([]domain.Seat, error) {
	return listSeats(ctx, t.q)
}

func (t *txRepo) InsertBooking(ctx context.Context, b domain.Booking) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, b.ID, b.FullName, b.Class, b.Email, b.Phone, b.ContactPersonName, b.ContactPersonPhone,
		b.PickupPointID, b.DestinationID, b.BusType, b.SeatNumber, int64(b.Amount), b.Referral, b.DepartureDate,
		string(b.Status), string(b.PaymentStatus), b.PaymentReference, b.CreatedAt, b.UpdatedAt)
	return err
}

func (t *txRepo) GetBookingForUpdate(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return getBooking(ctx, t.q, id, true)
}

func (t *txRepo) UpdateBooking(ctx context.Context, b domain.Booking) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE bookings SET status = $2, payment_status = $3, payment_reference = $4, updated_at = $5
		WHERE id = $1
	`, b.ID, string(b.Status), string(b.PaymentStatus), b.PaymentReference, b.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *txRepo) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *txRepo) ActiveBookingForSeat(ctx context.Context, number int) (domain.Booking, error) {
	b, err := scanBooking(t.q.QueryRow(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE seat_number = $1 AND status IN ('pending', 'approved')
		LIMIT 1
	`, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, err
}

func getSeat(ctx context.Context, q querier, number int, forUpdate bool) (domain.Seat, error) {
	sql := `SELECT ` + seatColumns + ` FROM seats WHERE seat_number = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	seat, err := scanSeat(q.QueryRow(ctx, sql, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Seat{}, domain.ErrNotFound
	}
	return seat, err
}

func listSeats(ctx context.Context, q querier) ([]domain.Seat, error) {
	rows, err := q.Query(ctx, `SELECT `+seatColumns+` FROM seats ORDER BY seat_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seats := make([]domain.Seat, 0, domain.SeatCount)
	for rows.Next() {
		seat, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, seat)
	}
	return seats, rows.Err()
}

func scanSeat(row pgx.Row) (domain.Seat, error) {
	var s domain.Seat
	err := row.Scan(&s.Number, &s.Available, &s.BookingID, &s.PassengerName, &s.UpdatedAt)
	return s, err
}

func getBooking(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (domain.Booking, error) {
	sql := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	b, err := scanBooking(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, err
}

func queryBookings(ctx context.Context, q querier, sql string, args ...any) ([]domain.Booking, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var b domain.Booking
	var amount int64
	var status, paymentStatus string
	err := row.Scan(&b.ID, &b.FullName, &b.Class, &b.Email, &b.Phone, &b.ContactPersonName, &b.ContactPersonPhone,
		&b.PickupPointID, &b.DestinationID, &b.BusType, &b.SeatNumber, &amount, &b.Referral, &b.DepartureDate,
		&status, &paymentStatus, &b.PaymentReference, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return domain.Booking{}, err
	}
	b.Amount = domain.Money(amount)
	b.Status = domain.Status(status)
	b.PaymentStatus = domain.PaymentStatus(paymentStatus)
	return b, nil
}
