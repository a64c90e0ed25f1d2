package domain

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusCancelled Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

var allowedTransitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusCancelled},
	StatusApproved:  {StatusCancelled},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Active reports whether the booking still holds its seat.
func (b Booking) Active() bool {
	return b.Status == StatusPending || b.Status == StatusApproved
}

// PassengerInfo is the per-passenger part of the booking form.
type PassengerInfo struct {
	FullName   string `json:"full_name" validate:"required,max=120"`
	Class      string `json:"class" validate:"required,passengerclass"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required,phone"`
	SeatNumber int    `json:"seat_number"`
}

// TripInfo is shared by every passenger of a group.
type TripInfo struct {
	ContactPersonName  string `json:"contact_person_name" validate:"required,max=120"`
	ContactPersonPhone string `json:"contact_person_phone" validate:"required,phone"`
	PickupPointID      string `json:"pickup_point_id" validate:"required"`
	DestinationID      string `json:"destination_id" validate:"required"`
	BusType            string `json:"bus_type" validate:"required"`
	Referral           string `json:"referral" validate:"required"`
	DepartureDate      string `json:"departure_date" validate:"required,datetime=2006-01-02"`
}

var PassengerClasses = []string{"Level 100", "Level 200", "Level 300", "Level 400", "Non-Student"}

// NewBooking builds a pending booking for a claimed seat.
func NewBooking(p PassengerInfo, trip TripInfo, amount Money, now time.Time) Booking {
	return Booking{
		ID:                 uuid.New(),
		FullName:           p.FullName,
		Class:              p.Class,
		Email:              p.Email,
		Phone:              p.Phone,
		ContactPersonName:  trip.ContactPersonName,
		ContactPersonPhone: trip.ContactPersonPhone,
		PickupPointID:      trip.PickupPointID,
		DestinationID:      trip.DestinationID,
		BusType:            trip.BusType,
		SeatNumber:         p.SeatNumber,
		Amount:             amount,
		Referral:           trip.Referral,
		DepartureDate:      trip.DepartureDate,
		Status:             StatusPending,
		PaymentStatus:      PaymentPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Approve moves a pending booking to approved with a completed payment.
// Approving an already approved booking with the same reference is a no-op
// and reports changed=false.
func (b *Booking) Approve(reference string, now time.Time) (changed bool, err error) {
	if b.Status == StatusApproved {
		if b.PaymentReference != nil && *b.PaymentReference == reference {
			return false, nil
		}
		return false, ErrConflict
	}
	if !CanTransition(b.Status, StatusApproved) {
		return false, ErrConflict
	}
	ref := reference
	b.Status = StatusApproved
	b.PaymentStatus = PaymentCompleted
	b.PaymentReference = &ref
	b.UpdatedAt = now
	return true, nil
}

// Cancel moves an active booking to cancelled. Cancelling twice is a no-op.
func (b *Booking) Cancel(now time.Time) (changed bool) {
	if b.Status == StatusCancelled {
		return false
	}
	b.Status = StatusCancelled
	b.UpdatedAt = now
	return true
}

// MarkPaymentFailed records a failed charge on a pending booking only.
func (b *Booking) MarkPaymentFailed(now time.Time) (changed bool) {
	if b.Status != StatusPending || b.PaymentStatus == PaymentFailed {
		return false
	}
	b.PaymentStatus = PaymentFailed
	b.UpdatedAt = now
	return true
}

func (b Booking) ToReceipt(pickupName, destinationName string) Receipt {
	ref := ""
	if b.PaymentReference != nil {
		ref = *b.PaymentReference
	}
	return Receipt{
		BookingID:          b.ID,
		CustomerName:       b.FullName,
		CustomerEmail:      b.Email,
		PickupPoint:        pickupName,
		Destination:        destinationName,
		SeatNumber:         b.SeatNumber,
		DepartureDate:      b.DepartureDate,
		Amount:             b.Amount,
		PaymentReference:   ref,
		BookingDate:        b.CreatedAt,
		Class:              b.Class,
		Phone:              b.Phone,
		ContactPersonName:  b.ContactPersonName,
		ContactPersonPhone: b.ContactPersonPhone,
		Referral:           b.Referral,
		BusType:            b.BusType,
	}
}
