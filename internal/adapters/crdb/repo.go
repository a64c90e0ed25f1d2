// Package crdb implements the store contract on CockroachDB through pgx.
// Transactions run SERIALIZABLE and are retried on serialization failures.
package crdb

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/robertarktes/bus-seat-booking/internal/store"
)

const (
	SerializationFailureCode = "40001"
	AmbiguousCommitCode      = "40003"
	UniqueViolationCode      = "23505"

	defaultMaxRetries = 3
)

type Repository struct {
	pool       *pgxpool.Pool
	maxRetries int
}

var _ store.Store = (*Repository)(nil)
var _ store.AdminStore = (*Repository)(nil)

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, maxRetries: defaultMaxRetries}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	var err error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt*attempt) * 10 * time.Millisecond):
			}
		}
		err = r.runTx(ctx, fn)
		if !errors.Is(err, domain.ErrSerializationFailure) {
			return err
		}
	}
	return errors.Wrapf(err, "gave up after %d attempts", r.maxRetries+1)
}

func (r *Repository) runTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&txRepo{q: tx}); err != nil {
		return classify(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classifyCommit(err)
	}
	return nil
}

// classify marks retryable and ambiguous pg failures with the matching
// domain sentinel. Domain errors pass through.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case SerializationFailureCode:
		return errors.Mark(err, domain.ErrSerializationFailure)
	case AmbiguousCommitCode:
		return errors.Mark(err, domain.ErrAmbiguousCommit)
	}
	return err
}

// classifyCommit treats a commit that failed without a server answer as
// ambiguous: the writes may or may not have landed.
func classifyCommit(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classify(err)
	}
	return errors.Mark(errors.Wrap(err, "commit"), domain.ErrAmbiguousCommit)
}

func (r *Repository) EnsureSeats(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO seats (seat_number)
		SELECT g FROM generate_series(1, $1) AS g
		ON CONFLICT (seat_number) DO NOTHING
	`, domain.SeatCount)
	return err
}

func (r *Repository) ListSeats(ctx context.Context) ([]domain.Seat, error) {
	return listSeats(ctx, r.pool)
}

func (r *Repository) GetSeat(ctx context.Context, number int) (domain.Seat, error) {
	return getSeat(ctx, r.pool, number, false)
}

func (r *Repository) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return getBooking(ctx, r.pool, id, false)
}

func (r *Repository) ListBookings(ctx context.Context, f store.BookingFilter) ([]domain.Booking, error) {
	sql := `SELECT ` + bookingColumns + ` FROM bookings WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC`
	args := []any{string(f.Status)}
	if f.Limit > 0 {
		sql += ` LIMIT $2`
		args = append(args, f.Limit)
	}
	return queryBookings(ctx, r.pool, sql, args...)
}

func (r *Repository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]domain.Booking, error) {
	return queryBookings(ctx, r.pool, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = 'pending' AND created_at <= $1
		ORDER BY created_at ASC LIMIT $2
	`, cutoff, limit)
}

func (r *Repository) InsertReconciliation(ctx context.Context, rec domain.Reconciliation) (bool, error) {
	ids := make([]string, len(rec.BookingIDs))
	for i, id := range rec.BookingIDs {
		ids[i] = id.String()
	}
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO reconciliations (id, payment_reference, booking_ids, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (payment_reference) WHERE resolved_at IS NULL DO NOTHING
	`, rec.ID, rec.Reference, ids, rec.Reason, rec.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) ListReconciliations(ctx context.Context, unresolvedOnly bool) ([]domain.Reconciliation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, payment_reference, booking_ids, reason, created_at, resolved_at
		FROM reconciliations WHERE NOT $1 OR resolved_at IS NULL
		ORDER BY created_at DESC
	`, unresolvedOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reconciliation
	for rows.Next() {
		var rec domain.Reconciliation
		var ids []string
		if err := rows.Scan(&rec.ID, &rec.Reference, &ids, &rec.Reason, &rec.CreatedAt, &rec.ResolvedAt); err != nil {
			return nil, err
		}
		for _, s := range ids {
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, errors.Wrapf(err, "reconciliation %s", rec.ID)
			}
			rec.BookingIDs = append(rec.BookingIDs, id)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repository) ResolveReconciliation(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE reconciliations SET resolved_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) CreateAdmin(ctx context.Context, a domain.Admin) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO admins (id, email, password_hash, full_name, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID, strings.ToLower(a.Email), a.PasswordHash, a.FullName, a.Role, a.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == UniqueViolationCode {
		return errors.Wrapf(domain.ErrConflict, "admin %s exists", a.Email)
	}
	return err
}

func (r *Repository) GetAdminByEmail(ctx context.Context, email string) (domain.Admin, error) {
	var a domain.Admin
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, full_name, role, created_at
		FROM admins WHERE email = $1
	`, strings.ToLower(email)).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.FullName, &a.Role, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Admin{}, domain.ErrNotFound
	}
	return a, err
}

func (r *Repository) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM admins`).Scan(&n)
	return n, err
}

// Ping reports whether the database answers.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
