// Package memory is an in-process implementation of the store contracts.
// Transactions are serialized by a single lock and work on a copy of the
// state that replaces the live state only on commit.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/robertarktes/bus-seat-booking/internal/store"
)

type state struct {
	seats           map[int]domain.Seat
	bookings        map[uuid.UUID]domain.Booking
	outbox          map[uuid.UUID]domain.OutboxRecord
	reconciliations map[uuid.UUID]domain.Reconciliation
}

func (s *state) clone() *state {
	c := &state{
		seats:           make(map[int]domain.Seat, len(s.seats)),
		bookings:        make(map[uuid.UUID]domain.Booking, len(s.bookings)),
		outbox:          make(map[uuid.UUID]domain.OutboxRecord, len(s.outbox)),
		reconciliations: make(map[uuid.UUID]domain.Reconciliation, len(s.reconciliations)),
	}
	for k, v := range s.seats {
		c.seats[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.outbox {
		c.outbox[k] = v
	}
	for k, v := range s.reconciliations {
		c.reconciliations[k] = v
	}
	return c
}

type commitFault struct {
	err     error
	applied bool
}

type Store struct {
	mu    sync.RWMutex
	st    *state
	now   func() time.Time
	fmu   sync.Mutex
	fault map[string]error
	cf    *commitFault

	admins sync.Map
}

var _ store.Store = (*Store)(nil)
var _ store.AdminStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		st: &state{
			seats:           map[int]domain.Seat{},
			bookings:        map[uuid.UUID]domain.Booking{},
			outbox:          map[uuid.UUID]domain.OutboxRecord{},
			reconciliations: map[uuid.UUID]domain.Reconciliation{},
		},
		now:   time.Now,
		fault: map[string]error{},
	}
}

// SetClock replaces the time source used for seat timestamps.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// FailNext makes the next call of the named tx operation (for example
// "InsertBooking") return err.
func (s *Store) FailNext(op string, err error) {
	s.fmu.Lock()
	defer s.fmu.Unlock()
	s.fault[op] = err
}

// FailCommit makes the next commit return err. When applied is true the
// writes still land, which is how an ambiguous commit looks to the caller.
func (s *Store) FailCommit(err error, applied bool) {
	s.fmu.Lock()
	defer s.fmu.Unlock()
	s.cf = &commitFault{err: err, applied: applied}
}

func (s *Store) takeFault(op string) error {
	s.fmu.Lock()
	defer s.fmu.Unlock()
	err, ok := s.fault[op]
	if !ok {
		return nil
	}
	delete(s.fault, op)
	return err
}

func (s *Store) takeCommitFault() *commitFault {
	s.fmu.Lock()
	defer s.fmu.Unlock()
	cf := s.cf
	s.cf = nil
	return cf
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&tx{s: s, st: work}); err != nil {
		return err
	}
	if cf := s.takeCommitFault(); cf != nil {
		if cf.applied {
			s.st = work
		}
		return cf.err
	}
	s.st = work
	return nil
}

func (s *Store) EnsureSeats(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for n := 1; n <= domain.SeatCount; n++ {
		if _, ok := s.st.seats[n]; !ok {
			s.st.seats[n] = domain.Seat{Number: n, Available: true, UpdatedAt: now}
		}
	}
	return nil
}

func (s *Store) ListSeats(ctx context.Context) ([]domain.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listSeats(s.st), nil
}

func (s *Store) GetSeat(ctx context.Context, number int) (domain.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seat, ok := s.st.seats[number]
	if !ok {
		return domain.Seat{}, domain.ErrNotFound
	}
	return seat, nil
}

func (s *Store) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.st.bookings[id]
	if !ok {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, nil
}

func (s *Store) ListBookings(ctx context.Context, f store.BookingFilter) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Booking, 0, len(s.st.bookings))
	for _, b := range s.st.bookings {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Booking
	for _, b := range s.st.bookings {
		if b.Status == domain.StatusPending && !b.CreatedAt.After(cutoff) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) InsertReconciliation(ctx context.Context, r domain.Reconciliation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, open := range s.st.reconciliations {
		if open.Reference == r.Reference && open.ResolvedAt == nil {
			return false, nil
		}
	}
	s.st.reconciliations[r.ID] = r
	return true, nil
}

func (s *Store) ListReconciliations(ctx context.Context, unresolvedOnly bool) ([]domain.Reconciliation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Reconciliation
	for _, r := range s.st.reconciliations {
		if unresolvedOnly && r.ResolvedAt != nil {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ResolveReconciliation(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.st.reconciliations[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.ResolvedAt = &at
	s.st.reconciliations[id] = r
	return nil
}

func (s *Store) GetUnpublishedOutbox(ctx context.Context, limit int) ([]domain.OutboxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.OutboxRecord
	for _, rec := range s.st.outbox {
		if rec.Status == domain.OutboxNew {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.st.outbox[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Status = domain.OutboxPublished
	rec.PublishedAt = &publishedAt
	s.st.outbox[id] = rec
	return nil
}

// Outbox returns every outbox record, published or not, oldest first.
func (s *Store) Outbox() []domain.OutboxRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.OutboxRecord, 0, len(s.st.outbox))
	for _, rec := range s.st.outbox {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) CreateAdmin(ctx context.Context, a domain.Admin) error {
	if _, loaded := s.admins.LoadOrStore(strings.ToLower(a.Email), a); loaded {
		return errors.Wrapf(domain.ErrConflict, "admin %s already exists", a.Email)
	}
	return nil
}

func (s *Store) GetAdminByEmail(ctx context.Context, email string) (domain.Admin, error) {
	v, ok := s.admins.Load(strings.ToLower(email))
	if !ok {
		return domain.Admin{}, domain.ErrNotFound
	}
	return v.(domain.Admin), nil
}

func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	n := 0
	s.admins.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n, nil
}

func listSeats(st *state) []domain.Seat {
	out := make([]domain.Seat, 0, len(st.seats))
	for _, seat := range st.seats {
		out = append(out, seat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}
