// Package admin implements the operator console: booking moderation, seat
// overrides, catalog edits, reporting and the activity trail.
package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/mssola/user_agent"
	"github.com/robertarktes/bus-seat-booking/internal/catalog"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/robertarktes/bus-seat-booking/internal/ledger"
	"github.com/robertarktes/bus-seat-booking/internal/observability"
	"github.com/robertarktes/bus-seat-booking/internal/store"
)

const activityLimit = 50

const (
	ActionBookingApproved        = "BOOKING_APPROVED"
	ActionBookingRejected        = "BOOKING_REJECTED"
	ActionBookingDeleted         = "BOOKING_DELETED"
	ActionPickupPointCreated     = "PICKUP_POINT_CREATED"
	ActionPickupPointUpdated     = "PICKUP_POINT_UPDATED"
	ActionPickupPointDeleted     = "PICKUP_POINT_DELETED"
	ActionDestinationCreated     = "DESTINATION_CREATED"
	ActionDestinationUpdated     = "DESTINATION_UPDATED"
	ActionDestinationDeleted     = "DESTINATION_DELETED"
	ActionSeatToggled            = "SEAT_TOGGLED"
	ActionSeatReleased           = "SEAT_RELEASED"
	ActionDataExported           = "DATA_EXPORTED"
	ActionBookingsExpired        = "BOOKINGS_EXPIRED"
	ActionReconciliationResolved = "RECONCILIATION_RESOLVED"
)

type Lifecycle interface {
	ApproveManually(ctx context.Context, id uuid.UUID, reference string) (domain.Booking, error)
	RejectOrCancel(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	DeleteBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	ExpireStale(ctx context.Context) (int, error)
	ToggleSeat(ctx context.Context, number int) (domain.Seat, error)
	ReleaseSeat(ctx context.Context, number int) (domain.Seat, *domain.Booking, error)
}

type ActivityLog interface {
	Record(ctx context.Context, e domain.ActivityEntry) error
	Recent(ctx context.Context, limit int) ([]domain.ActivityEntry, error)
}

type SeatCache interface {
	InvalidateSeatMap(ctx context.Context) error
}

// Actor identifies the operator behind a request.
type Actor struct {
	AdminID   uuid.UUID
	Email     string
	IP        string
	UserAgent string
}

type Service struct {
	store     store.Store
	lifecycle Lifecycle
	ledger    *ledger.Ledger
	catalog   *catalog.Service
	activity  ActivityLog
	cache     SeatCache
	logger    observability.Logger
	now       func() time.Time
}

func NewService(s store.Store, lc Lifecycle, l *ledger.Ledger, cat *catalog.Service, activity ActivityLog, cache SeatCache, logger observability.Logger) *Service {
	return &Service{
		store:     s,
		lifecycle: lc,
		ledger:    l,
		catalog:   cat,
		activity:  activity,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) Bookings(ctx context.Context, status domain.Status, limit int) ([]domain.Booking, error) {
	if status != "" && status != domain.StatusPending && status != domain.StatusApproved && status != domain.StatusCancelled {
		return nil, domain.NewValidationError("status", "must be pending, approved or cancelled")
	}
	bs, err := s.store.ListBookings(ctx, store.BookingFilter{Status: status, Limit: limit})
	if err != nil {
		return nil, &domain.StorageError{Op: "list bookings", Err: err}
	}
	return bs, nil
}

func (s *Service) Approve(ctx context.Context, actor Actor, id uuid.UUID, reference string) (domain.Booking, error) {
	b, err := s.lifecycle.ApproveManually(ctx, id, reference)
	if err != nil {
		return domain.Booking{}, err
	}
	s.seatsChanged(ctx)
	s.record(ctx, actor, ActionBookingApproved, fmt.Sprintf("Approved booking for %s (seat %d)", b.FullName, b.SeatNumber),
		map[string]any{"booking_id": b.ID.String(), "seat_number": b.SeatNumber, "payment_reference": deref(b.PaymentReference)})
	return b, nil
}

func (s *Service) Reject(ctx context.Context, actor Actor, id uuid.UUID) (domain.Booking, error) {
	b, err := s.lifecycle.RejectOrCancel(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	s.seatsChanged(ctx)
	s.record(ctx, actor, ActionBookingRejected, fmt.Sprintf("Rejected booking for %s (seat %d)", b.FullName, b.SeatNumber),
		map[string]any{"booking_id": b.ID.String(), "seat_number": b.SeatNumber})
	return b, nil
}

func (s *Service) Delete(ctx context.Context, actor Actor, id uuid.UUID) (domain.Booking, error) {
	b, err := s.lifecycle.DeleteBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	s.seatsChanged(ctx)
	s.record(ctx, actor, ActionBookingDeleted, fmt.Sprintf("Deleted booking for %s (seat %d)", b.FullName, b.SeatNumber),
		map[string]any{"booking_id": b.ID.String(), "seat_number": b.SeatNumber, "status": string(b.Status)})
	return b, nil
}

// ToggleSeat blocks or unblocks a seat. A seat held by an active booking
// must be freed through the booking first.
func (s *Service) ToggleSeat(ctx context.Context, actor Actor, number int) (domain.Seat, error) {
	seat, err := s.lifecycle.ToggleSeat(ctx, number)
	if err != nil {
		return domain.Seat{}, err
	}
	s.seatsChanged(ctx)
	state := "blocked"
	if seat.Available {
		state = "opened"
	}
	s.record(ctx, actor, ActionSeatToggled, fmt.Sprintf("Seat %d %s", number, state),
		map[string]any{"seat_number": number, "available": seat.Available})
	return seat, nil
}

// ReleaseSeat frees a seat. When an active booking holds it, that booking
// is cancelled so no booking is left without its seat.
func (s *Service) ReleaseSeat(ctx context.Context, actor Actor, number int) (domain.Seat, error) {
	seat, cancelled, err := s.lifecycle.ReleaseSeat(ctx, number)
	if err != nil {
		return domain.Seat{}, err
	}
	meta := map[string]any{"seat_number": number}
	if cancelled != nil {
		meta["cancelled_booking_id"] = cancelled.ID.String()
	}
	s.seatsChanged(ctx)
	s.record(ctx, actor, ActionSeatReleased, fmt.Sprintf("Seat %d released", number), meta)
	return seat, nil
}

func (s *Service) Reconciliations(ctx context.Context, unresolvedOnly bool) ([]domain.Reconciliation, error) {
	rs, err := s.store.ListReconciliations(ctx, unresolvedOnly)
	if err != nil {
		return nil, &domain.StorageError{Op: "list reconciliations", Err: err}
	}
	return rs, nil
}

func (s *Service) ResolveReconciliation(ctx context.Context, actor Actor, id uuid.UUID) error {
	if err := s.store.ResolveReconciliation(ctx, id, s.now()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return &domain.StorageError{Op: "resolve reconciliation", Err: err}
	}
	s.record(ctx, actor, ActionReconciliationResolved, "Resolved payment reconciliation", map[string]any{"reconciliation_id": id.String()})
	return nil
}

// RunExpiry triggers the stale booking sweep on demand.
func (s *Service) RunExpiry(ctx context.Context, actor Actor) (int, error) {
	n, err := s.lifecycle.ExpireStale(ctx)
	if err != nil {
		return n, err
	}
	if n > 0 {
		s.seatsChanged(ctx)
	}
	s.record(ctx, actor, ActionBookingsExpired, fmt.Sprintf("Expired %d stale booking(s)", n), map[string]any{"expired": n})
	return n, nil
}

func (s *Service) Activity(ctx context.Context) ([]domain.ActivityEntry, error) {
	es, err := s.activity.Recent(ctx, activityLimit)
	if err != nil {
		return nil, &domain.StorageError{Op: "list activity", Err: err}
	}
	return es, nil
}

func (s *Service) seatsChanged(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateSeatMap(ctx); err != nil {
		s.logger.WithError(err).Warn("seat map cache invalidation failed")
	}
}

// record appends to the activity trail. A failed write is logged and never
// fails the operation it describes.
func (s *Service) record(ctx context.Context, actor Actor, action, desc string, meta map[string]any) {
	e := domain.ActivityEntry{
		ID:          uuid.New(),
		AdminID:     actor.AdminID,
		AdminEmail:  actor.Email,
		Action:      action,
		Description: desc,
		Metadata:    meta,
		IPAddress:   actor.IP,
		CreatedAt:   s.now(),
	}
	if actor.UserAgent != "" {
		ua := user_agent.New(actor.UserAgent)
		name, version := ua.Browser()
		e.Browser = strings.TrimSpace(name + " " + version)
		e.OS = ua.OS()
	}
	if err := s.activity.Record(context.WithoutCancel(ctx), e); err != nil {
		s.logger.WithError(err).WithField("action", action).Warn("activity record failed")
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
