package lifecycle_test

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/bus-seat-booking/internal/adapters/memory"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/robertarktes/bus-seat-booking/internal/lifecycle"
	"github.com/robertarktes/bus-seat-booking/internal/observability"
	"github.com/robertarktes/bus-seat-booking/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	engine *lifecycle.Engine
	store  *memory.Store
	clock  *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.NewStore()
	require.NoError(t, s.EnsureSeats(ctx))

	cat := memory.NewCatalog()
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	for _, p := range domain.DefaultPickupPoints(now) {
		require.NoError(t, cat.UpsertPickupPoint(ctx, p))
	}
	for _, d := range domain.DefaultDestinations(now) {
		require.NoError(t, cat.UpsertDestination(ctx, d))
	}

	clock := &fakeClock{now: now}
	e := lifecycle.New(s, cat, observability.NewLoggerTo(io.Discard), 15*time.Minute, lifecycle.WithClock(clock.Now))
	return &fixture{engine: e, store: s, clock: clock}
}

func passenger(name string) domain.PassengerInfo {
	return domain.PassengerInfo{
		FullName: name,
		Class:    "Level 200",
		Email:    "ama@example.com",
		Phone:    "0241234567",
	}
}

func trip() domain.TripInfo {
	return domain.TripInfo{
		ContactPersonName:  "Esi Mensah",
		ContactPersonPhone: "0201234567",
		PickupPointID:      "apowa",
		DestinationID:      "accra",
		BusType:            "Sprinter",
		Referral:           "Friend",
		DepartureDate:      "2026-12-18",
	}
}

func (f *fixture) seat(t *testing.T, n int) domain.Seat {
	t.Helper()
	s, err := f.store.GetSeat(context.Background(), n)
	require.NoError(t, err)
	return s
}

func (f *fixture) bookingCount(t *testing.T) int {
	t.Helper()
	bs, err := f.store.ListBookings(context.Background(), store.BookingFilter{})
	require.NoError(t, err)
	return len(bs)
}

func (f *fixture) occupied(t *testing.T) int {
	t.Helper()
	seats, err := f.store.ListSeats(context.Background())
	require.NoError(t, err)
	n := 0
	for _, s := range seats {
		if !s.Available {
			n++
		}
	}
	return n
}

func TestCreateBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b, err := f.engine.CreateBooking(ctx, passenger("Ama Owusu"), trip(), 12)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, b.Status)
	assert.Equal(t, domain.PaymentPending, b.PaymentStatus)
	assert.Equal(t, domain.GHS(40), b.Amount)
	assert.Equal(t, 12, b.SeatNumber)
	assert.Nil(t, b.PaymentReference)

	seat := f.seat(t, 12)
	assert.False(t, seat.Available)
	require.NotNil(t, seat.BookingID)
	assert.Equal(t, b.ID, *seat.BookingID)
	assert.Equal(t, "Ama Owusu", seat.PassengerName)
}

func TestCreateBooking_SeatTaken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.CreateBooking(ctx, passenger("Ama"), trip(), 12)
	require.NoError(t, err)

	_, err = f.engine.CreateBooking(ctx, passenger("Kofi"), trip(), 12)
	assert.True(t, errors.Is(err, domain.ErrSeatUnavailable))
	assert.Equal(t, 1, f.bookingCount(t))
}

func TestCreateBooking_ConcurrentSameSeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const callers = 20
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.CreateBooking(ctx, passenger("Racer"), trip(), 7)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrSeatUnavailable), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, f.bookingCount(t))
}

func TestCreateBooking_SeatOutOfRange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, n := range []int{0, 32} {
		_, err := f.engine.CreateBooking(ctx, passenger("Ama"), trip(), n)
		var ve *domain.ValidationError
		require.True(t, errors.As(err, &ve), "seat %d", n)
		assert.Contains(t, ve.Fields, "seat_number")
	}
	assert.Zero(t, f.occupied(t))
	assert.Zero(t, f.bookingCount(t))
}

func TestCreateBooking_InvalidForm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p := passenger("Ama")
	p.Email = "nope"
	tr := trip()
	tr.DestinationID = ""

	_, err := f.engine.CreateBooking(ctx, p, tr, 3)
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "email")
	assert.Contains(t, ve.Fields, "destination_id")
	assert.True(t, f.seat(t, 3).Available)
}

func TestCreateBooking_UnknownDestination(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tr := trip()
	tr.DestinationID = "kumasi"

	_, err := f.engine.CreateBooking(ctx, passenger("Ama"), tr, 3)
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "destination_id")
}

func TestCreateBooking_InsertFailureLeavesSeatFree(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.FailNext("InsertBooking", errors.New("disk full"))

	_, err := f.engine.CreateBooking(ctx, passenger("Ama"), trip(), 9)
	assert.True(t, errors.Is(err, domain.ErrStorage))
	assert.True(t, f.seat(t, 9).Available)
	assert.Zero(t, f.bookingCount(t))

	_, err = f.engine.CreateBooking(ctx, passenger("Ama"), trip(), 9)
	assert.NoError(t, err)
}

func TestCreateBooking_AmbiguousCommitIsCompensated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.FailCommit(domain.ErrAmbiguousCommit, true)

	_, err := f.engine.CreateBooking(ctx, passenger("Ama"), trip(), 14)
	assert.True(t, errors.Is(err, domain.ErrAmbiguousCommit))
	assert.True(t, errors.Is(err, domain.ErrStorage))

	assert.True(t, f.seat(t, 14).Available, "compensation released the seat")
	assert.Zero(t, f.bookingCount(t))
}

func TestCreateGroupBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ps := []domain.PassengerInfo{passenger("A"), passenger("B"), passenger("C")}
	for i, n := range []int{3, 4, 5} {
		ps[i].SeatNumber = n
	}
	bs, err := f.engine.CreateGroupBooking(ctx, trip(), ps)
	require.NoError(t, err)
	require.Len(t, bs, 3)
	for i, b := range bs {
		assert.Equal(t, ps[i].SeatNumber, b.SeatNumber)
		assert.Equal(t, ps[i].FullName, b.FullName)
		assert.Equal(t, "Esi Mensah", b.ContactPersonName)
		assert.Equal(t, domain.GHS(40), b.Amount)
	}
	assert.Equal(t, 3, f.occupied(t))
}

func TestCreateGroupBooking_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.CreateBooking(ctx, passenger("Early bird"), trip(), 2)
	require.NoError(t, err)

	ps := []domain.PassengerInfo{passenger("A"), passenger("B"), passenger("C")}
	for i, n := range []int{1, 2, 3} {
		ps[i].SeatNumber = n
	}
	_, err = f.engine.CreateGroupBooking(ctx, trip(), ps)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSeatUnavailable))
	assert.Contains(t, err.Error(), "passenger 2")

	assert.True(t, f.seat(t, 1).Available)
	assert.True(t, f.seat(t, 3).Available)
	assert.Equal(t, 1, f.bookingCount(t))
}

func TestCreateGroupBooking_BlockedSeatRollsBackEarlierClaims(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ps := []domain.PassengerInfo{passenger("A"), passenger("B")}
	ps[0].SeatNumber, ps[1].SeatNumber = 20, 21
	require.NoError(t, f.store.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.ToggleSeat(ctx, 21)
		return err
	}))

	_, err := f.engine.CreateGroupBooking(ctx, trip(), ps)
	assert.True(t, errors.Is(err, domain.ErrSeatUnavailable))
	assert.True(t, f.seat(t, 20).Available)
	assert.Zero(t, f.bookingCount(t))
}

func TestCreateGroupBooking_SeatMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	dup := []domain.PassengerInfo{passenger("A"), passenger("B")}
	dup[0].SeatNumber, dup[1].SeatNumber = 7, 7
	_, err := f.engine.CreateGroupBooking(ctx, trip(), dup)
	assert.True(t, errors.Is(err, domain.ErrSeatMismatch))

	missing := []domain.PassengerInfo{passenger("A"), passenger("B")}
	missing[0].SeatNumber = 8
	_, err = f.engine.CreateGroupBooking(ctx, trip(), missing)
	assert.True(t, errors.Is(err, domain.ErrSeatMismatch))

	assert.Zero(t, f.occupied(t))
	assert.Zero(t, f.bookingCount(t))
}

func TestCreateGroupBooking_Size(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.CreateGroupBooking(ctx, trip(), nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	six := make([]domain.PassengerInfo, 6)
	for i := range six {
		six[i] = passenger("P")
		six[i].SeatNumber = i + 1
	}
	_, err = f.engine.CreateGroupBooking(ctx, trip(), six)
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "passengers")
	assert.Zero(t, f.occupied(t))
}

func TestCreateGroupBooking_FieldErrorsAreIndexed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ps := []domain.PassengerInfo{passenger("A"), passenger("B")}
	ps[0].SeatNumber, ps[1].SeatNumber = 1, 40
	ps[1].Email = ""

	_, err := f.engine.CreateGroupBooking(ctx, trip(), ps)
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "passengers[1].email")
	assert.Contains(t, ve.Fields, "passengers[1].seat_number")
	assert.Zero(t, f.occupied(t))
}

func TestConfirmPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b, err := f.engine.CreateBooking(ctx, passenger("Ama"), trip(), 5)
	require.NoError(t, err)

	require.NoError(t, f.engine.ConfirmPayment(ctx, []uuid.UUID{b.ID}, "ref-1"))

	got, err := f.store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, got.Status)
	assert.Equal(t, domain.PaymentCompleted, got.PaymentStatus)
	require.NotNil(t, got.PaymentReference)
	assert.Equal(t, "ref-1", *got.PaymentReference)

	outbox := f.store.Outbox()
	require.Len(t, outbox, 1)
	assert.Equal(t, domain.EventBookingApproved, outbox[0].EventType)

	var receipt domain.Receipt
	require.NoError(t, json.Unmarshal(outbox[0].Payload, &receipt))
	assert.Equal(t, "Apowa", receipt.PickupPoint)
	assert.Equal(t, "Accra", receipt.Destination)
	assert.Equal(t, "ref-1", receipt.PaymentReference)
	assert.Equal(t, 5, receipt.SeatNumber)
}

func TestConfirmPayment_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ps := []domain.PassengerInfo{passenger("A"), passenger("B")}
	ps[0].SeatNumber, ps[1].SeatNumber = 10, 11
	bs, err := f.engine.CreateGroupBooking(ctx, trip(), ps)
	require.NoError(t, err)
	ids := []uuid.UUID{bs[0].ID, bs[1].ID}

	require.NoError(t, f.engine.ConfirmPayment(ctx, ids, "ref-g"))
	first, err := f.store.GetBooking(ctx, bs[0].ID)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	require.NoError(t, f.engine.ConfirmPayment(ctx, ids, "ref-g"))
	second, err := f.store.GetBooking(ctx, bs[0].ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, f.store.Outbox(), 2, "one receipt per booking")
}

func TestConfirmPayment_CancelledBookingIsReconciled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b, err := f.engine.CreateBooking(ctx, passenger("Ama"), trip(), 6)
	require.NoError(t, err)
	_, err = f.engine.RejectOrCancel(ctx, b.ID)
	require.NoError(t, err)

	err = f.engine.ConfirmPayment(ctx, []uuid.UUID{b.ID}, "late-ref")
	var pce *domain.PaymentCallbackError
	require.True(t, errors.As(err, &pce))
	assert.Equal(t, "late-ref", pce.Reference)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	recs, err := f.store.ListReconciliations(ctx, true)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "late-ref", recs[0].Reference)
	assert.Equal(t, []uuid.UUID{b.ID}, recs[0].BookingIDs)
	assert.Empty(t, f.store.Outbox())
}

func TestConfirmPayment_StoreFailureRollsBackAllBookings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ps := []domain.PassengerInfo{passenger("A"), passenger("B")}
	ps[0].SeatNumber, ps[1].SeatNumber = 15, 16
	bs, err := f.engine.CreateGroupBooking(ctx, trip(), ps)
	require.NoError(t, err)

	f.store.FailCommit(errors.New("connection lost"), false)
	err = f.engine.ConfirmPayment(ctx, []uuid.UUID{bs[0].ID, bs[1].ID}, "ref-x")
	var pce *domain.PaymentCallbackError
	require.True(t, errors.As(err, &pce))

	for _, b := range bs {
		got, err := f.store.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, got.Status)
	}
	assert.Empty(t, f.store.Outbox())
}

func TestConfirmPayment_UnknownBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.engine.ConfirmPayment(ctx, []uuid.UUID{uuid.New()}, "ref-ghost")
	var pce *domain.PaymentCallbackError
	require.True(t, errors.As(err, &pce))
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestFailPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pending, err := f.engine.CreateBooking(ctx, passenger("A"), trip(), 1)
	require.NoError(t, err)
	approved, err := f.engine.CreateBooking(ctx, passenger("B"), trip(), 2)
	require.NoError(t, err)
	require.NoError(t, f.engine.ConfirmPayment(ctx, []uuid.UUID{approved.ID}, "ref-b"))

	require.NoError(t, f.engine.FailPayment(ctx, []uuid.UUID{pending.ID, approved.ID}))

	got, _ := f.store.GetBooking(ctx, pending.ID)
	assert.Equal(t, domain.PaymentFailed, got.PaymentStatus)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.False(t, f.seat(t, 1).Available, "failed payment keeps the hold")

	got, _ = f.store.GetBooking(ctx, approved.ID)
	assert.Equal(t, domain.PaymentCompleted, got.PaymentStatus)
	assert.Equal(t, domain.StatusApproved, got.Status)
}

func TestRejectOrCancel_ReleasesSeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b, err := f.engine.CreateBooking(ctx, passenger("Ama"), trip(), 5)
	require.NoError(t, err)
	require.NoError(t, f.engine.ConfirmPayment(ctx, []uuid.UUID{b.ID}, "ref-1"))

	got, err := f.engine.RejectOrCancel(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.True(t, f.seat(t, 5).Available)

	var cancelled int
	for _, rec := range f.store.Outbox() {
		if rec.EventType == domain.EventBookingCancelled {
			cancelled++
		}
	}
	assert.Equal(t, 1, cancelled)

	_, err = f.engine.CreateBooking(ctx, passenger("Kofi"), trip(), 5)
	assert.NoError(t, err)

	again, err := f.engine.RejectOrCancel(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, again.Status)
	assert.False(t, f.seat(t, 5).Available, "second cancel must not free the new holder's seat")
}

func TestRejectOrCancel_NotFound(t *testing.T) {
	_, err := newFixture(t).engine.RejectOrCancel(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDeleteBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b, err := f.engine.CreateBooking(ctx, passenger("Ama"), trip(), 30)
	require.NoError(t, err)

	_, err = f.engine.DeleteBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, f.seat(t, 30).Available)

	_, err = f.store.GetBooking(ctx, b.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDeleteBooking_KeepsSeatOfAnotherHolder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	old, err := f.engine.CreateBooking(ctx, passenger("Ama"), trip(), 30)
	require.NoError(t, err)
	_, err = f.engine.RejectOrCancel(ctx, old.ID)
	require.NoError(t, err)
	current, err := f.engine.CreateBooking(ctx, passenger("Kofi"), trip(), 30)
	require.NoError(t, err)

	_, err = f.engine.DeleteBooking(ctx, old.ID)
	require.NoError(t, err)

	seat := f.seat(t, 30)
	assert.False(t, seat.Available)
	require.NotNil(t, seat.BookingID)
	assert.Equal(t, current.ID, *seat.BookingID)
}

func TestApproveManually(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b, err := f.engine.CreateBooking(ctx, passenger("Ama"), trip(), 8)
	require.NoError(t, err)

	got, err := f.engine.ApproveManually(ctx, b.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, got.Status)
	require.NotNil(t, got.PaymentReference)
	assert.Equal(t, "manual-"+b.ID.String(), *got.PaymentReference)
	assert.Len(t, f.store.Outbox(), 1)
}

func TestExpireStale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	stale, err := f.engine.CreateBooking(ctx, passenger("Stale"), trip(), 1)
	require.NoError(t, err)
	paid, err := f.engine.CreateBooking(ctx, passenger("Paid"), trip(), 2)
	require.NoError(t, err)
	require.NoError(t, f.engine.ConfirmPayment(ctx, []uuid.UUID{paid.ID}, "ref-p"))

	f.clock.Advance(10 * time.Minute)
	fresh, err := f.engine.CreateBooking(ctx, passenger("Fresh"), trip(), 3)
	require.NoError(t, err)

	f.clock.Advance(6 * time.Minute)
	n, err := f.engine.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := f.store.GetBooking(ctx, stale.ID)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.True(t, f.seat(t, 1).Available)

	got, _ = f.store.GetBooking(ctx, paid.ID)
	assert.Equal(t, domain.StatusApproved, got.Status)
	got, _ = f.store.GetBooking(ctx, fresh.ID)
	assert.Equal(t, domain.StatusPending, got.Status)

	n, err = f.engine.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConfirmPayment_RedeliveryFlagsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b, err := f.engine.CreateBooking(ctx, passenger("Ama"), trip(), 7)
	require.NoError(t, err)
	_, err = f.engine.RejectOrCancel(ctx, b.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		err := f.engine.ConfirmPayment(ctx, []uuid.UUID{b.ID}, "late-ref")
		var pce *domain.PaymentCallbackError
		require.True(t, errors.As(err, &pce))
	}

	recs, err := f.store.ListReconciliations(ctx, false)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestConfirmCharge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ps := []domain.PassengerInfo{passenger("A"), passenger("B")}
	ps[0].SeatNumber, ps[1].SeatNumber = 20, 21
	bs, err := f.engine.CreateGroupBooking(ctx, trip(), ps)
	require.NoError(t, err)
	ids := []uuid.UUID{bs[0].ID, bs[1].ID}

	err = f.engine.ConfirmCharge(ctx, ids, "ref-half", domain.GHS(40), "GHS")
	var pce *domain.PaymentCallbackError
	require.True(t, errors.As(err, &pce))
	assert.True(t, errors.Is(err, domain.ErrAmountMismatch))
	for _, b := range bs {
		got, err := f.store.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, got.Status, "a short charge approves none of the group")
	}

	require.NoError(t, f.engine.ConfirmCharge(ctx, ids, "ref-full", domain.GHS(80), "GHS"))
	require.NoError(t, f.engine.ConfirmCharge(ctx, ids, "ref-full", domain.GHS(80), "GHS"))
	for _, b := range bs {
		got, err := f.store.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusApproved, got.Status)
	}
	assert.Len(t, f.store.Outbox(), 2)
}

func TestToggleSeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	seat, err := f.engine.ToggleSeat(ctx, 3)
	require.NoError(t, err)
	assert.False(t, seat.Available)

	_, err = f.engine.CreateBooking(ctx, passenger("Ama"), trip(), 3)
	assert.True(t, errors.Is(err, domain.ErrSeatUnavailable))

	seat, err = f.engine.ToggleSeat(ctx, 3)
	require.NoError(t, err)
	assert.True(t, seat.Available)

	b, err := f.engine.CreateBooking(ctx, passenger("Ama"), trip(), 3)
	require.NoError(t, err)
	_, err = f.engine.ToggleSeat(ctx, 3)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	require.NotNil(t, f.seat(t, 3).BookingID)
	assert.Equal(t, b.ID, *f.seat(t, 3).BookingID)

	_, err = f.engine.ToggleSeat(ctx, 0)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestReleaseSeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.ToggleSeat(ctx, 8)
	require.NoError(t, err)
	seat, cancelled, err := f.engine.ReleaseSeat(ctx, 8)
	require.NoError(t, err)
	assert.True(t, seat.Available)
	assert.Nil(t, cancelled)

	b, err := f.engine.CreateBooking(ctx, passenger("Ama"), trip(), 8)
	require.NoError(t, err)
	require.NoError(t, f.engine.ConfirmPayment(ctx, []uuid.UUID{b.ID}, "ref-8"))

	f.clock.Advance(time.Minute)
	seat, cancelled, err = f.engine.ReleaseSeat(ctx, 8)
	require.NoError(t, err)
	assert.True(t, seat.Available)
	assert.Nil(t, seat.BookingID)
	require.NotNil(t, cancelled)
	assert.Equal(t, b.ID, cancelled.ID)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	var events []string
	for _, rec := range f.store.Outbox() {
		events = append(events, rec.EventType)
	}
	assert.Equal(t, []string{domain.EventBookingApproved, domain.EventBookingCancelled}, events)

	_, _, err = f.engine.ReleaseSeat(ctx, 41)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestSeatOverridesNeverStrandBookings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, _ = f.engine.CreateBooking(ctx, passenger("Ama"), trip(), 14)
		}()
		go func() {
			defer wg.Done()
			_, _, _ = f.engine.ReleaseSeat(ctx, 14)
		}()
		go func() {
			defer wg.Done()
			_, _ = f.engine.ToggleSeat(ctx, 14)
		}()
	}
	wg.Wait()

	bs, err := f.store.ListBookings(ctx, store.BookingFilter{})
	require.NoError(t, err)
	var active int
	for _, b := range bs {
		if !b.Active() {
			continue
		}
		active++
		seat := f.seat(t, 14)
		require.NotNil(t, seat.BookingID, "active booking %s lost its seat", b.ID)
		assert.Equal(t, b.ID, *seat.BookingID)
	}
	assert.LessOrEqual(t, active, 1)
}
