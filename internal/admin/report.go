package admin

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/robertarktes/bus-seat-booking/internal/store"
)

// Stats is the dashboard summary. Amounts are in pesewas.
type Stats struct {
	TotalBookings     int          `json:"total_bookings"`
	PendingBookings   int          `json:"pending_bookings"`
	ApprovedBookings  int          `json:"approved_bookings"`
	CancelledBookings int          `json:"cancelled_bookings"`
	Revenue           domain.Money `json:"revenue"`
	PendingRevenue    domain.Money `json:"pending_revenue"`
	TotalSeats        int          `json:"total_seats"`
	AvailableSeats    int          `json:"available_seats"`
	OccupiedApproved  int          `json:"occupied_approved"`
	OccupiedPending   int          `json:"occupied_pending"`
	BlockedSeats      int          `json:"blocked_seats"`
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	bookings, err := s.store.ListBookings(ctx, store.BookingFilter{})
	if err != nil {
		return Stats{}, &domain.StorageError{Op: "list bookings", Err: err}
	}
	seats, err := s.ledger.List(ctx)
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	byID := make(map[string]domain.Booking, len(bookings))
	for _, b := range bookings {
		st.TotalBookings++
		byID[b.ID.String()] = b
		switch b.Status {
		case domain.StatusPending:
			st.PendingBookings++
			st.PendingRevenue += b.Amount
		case domain.StatusApproved:
			st.ApprovedBookings++
			st.Revenue += b.Amount
		case domain.StatusCancelled:
			st.CancelledBookings++
		}
	}
	st.TotalSeats = len(seats)
	for _, seat := range seats {
		if seat.Available {
			st.AvailableSeats++
			continue
		}
		if seat.BookingID == nil {
			st.BlockedSeats++
			continue
		}
		switch byID[seat.BookingID.String()].Status {
		case domain.StatusApproved:
			st.OccupiedApproved++
		case domain.StatusPending:
			st.OccupiedPending++
		default:
			st.BlockedSeats++
		}
	}
	return st, nil
}

var csvHeader = []string{
	"Booking ID", "Full Name", "Class", "Email", "Phone",
	"Contact Person", "Contact Phone", "Pickup Point", "Destination",
	"Bus Type", "Seat", "Amount (GHS)", "Referral", "Departure Date",
	"Status", "Payment Status", "Payment Reference", "Created At",
}

// ExportCSV writes every booking as CSV, resolving catalog names.
func (s *Service) ExportCSV(ctx context.Context, actor Actor, w io.Writer) (int, error) {
	bookings, err := s.store.ListBookings(ctx, store.BookingFilter{})
	if err != nil {
		return 0, &domain.StorageError{Op: "list bookings", Err: err}
	}
	pickups, err := s.catalog.PickupPoints(ctx, false)
	if err != nil {
		return 0, err
	}
	dests, err := s.catalog.Destinations(ctx, false)
	if err != nil {
		return 0, err
	}
	pickupNames := make(map[string]string, len(pickups))
	for _, p := range pickups {
		pickupNames[p.ID] = p.Name
	}
	destNames := make(map[string]string, len(dests))
	for _, d := range dests {
		destNames[d.ID] = d.Name
	}
	name := func(m map[string]string, id string) string {
		if n, ok := m[id]; ok {
			return n
		}
		return "N/A"
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, errors.Wrap(err, "write csv header")
	}
	for _, b := range bookings {
		row := []string{
			b.ID.String(), b.FullName, b.Class, b.Email, b.Phone,
			b.ContactPersonName, b.ContactPersonPhone,
			name(pickupNames, b.PickupPointID), name(destNames, b.DestinationID),
			b.BusType, strconv.Itoa(b.SeatNumber),
			fmt.Sprintf("%d.%02d", int64(b.Amount)/100, int64(b.Amount)%100),
			b.Referral, b.DepartureDate,
			string(b.Status), string(b.PaymentStatus), deref(b.PaymentReference),
			b.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return 0, errors.Wrap(err, "write csv row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, errors.Wrap(err, "flush csv")
	}
	s.record(ctx, actor, ActionDataExported, fmt.Sprintf("Exported %d booking(s) to CSV", len(bookings)),
		map[string]any{"rows": len(bookings)})
	return len(bookings), nil
}
