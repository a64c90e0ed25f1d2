package domain

import (
	"time"

	"github.com/google/uuid"
)

// Currency is the only currency fares are priced and charged in.
const Currency = "GHS"

// Money is an amount in minor currency units (pesewas).
type Money int64

func GHS(cedis int64) Money { return Money(cedis * 100) }

type Seat struct {
	Number        int        `json:"seat_number"`
	Available     bool       `json:"is_available"`
	BookingID     *uuid.UUID `json:"booking_id,omitempty"`
	PassengerName string     `json:"passenger_name,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type Booking struct {
	ID                 uuid.UUID     `json:"id"`
	FullName           string        `json:"full_name"`
	Class              string        `json:"class"`
	Email              string        `json:"email"`
	Phone              string        `json:"phone"`
	ContactPersonName  string        `json:"contact_person_name"`
	ContactPersonPhone string        `json:"contact_person_phone"`
	PickupPointID      string        `json:"pickup_point_id"`
	DestinationID      string        `json:"destination_id"`
	BusType            string        `json:"bus_type"`
	SeatNumber         int           `json:"seat_number"`
	Amount             Money         `json:"amount"`
	Referral           string        `json:"referral"`
	DepartureDate      string        `json:"departure_date"`
	Status             Status        `json:"status"`
	PaymentStatus      PaymentStatus `json:"payment_status"`
	PaymentReference   *string       `json:"payment_reference"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

type PickupPoint struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Active    bool      `json:"active" bson:"active"`
	Price     Money     `json:"price" bson:"price"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

type Destination struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Active    bool      `json:"active" bson:"active"`
	Price     Money     `json:"price" bson:"price"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

type Admin struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super-admin"
)

type ActivityEntry struct {
	ID          uuid.UUID      `json:"id" bson:"_id"`
	AdminID     uuid.UUID      `json:"admin_id" bson:"admin_id"`
	AdminEmail  string         `json:"admin_email" bson:"admin_email"`
	Action      string         `json:"action" bson:"action"`
	Description string         `json:"description" bson:"description"`
	Metadata    map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	IPAddress   string         `json:"ip_address,omitempty" bson:"ip_address,omitempty"`
	Browser     string         `json:"browser,omitempty" bson:"browser,omitempty"`
	OS          string         `json:"os,omitempty" bson:"os,omitempty"`
	CreatedAt   time.Time      `json:"created_at" bson:"created_at"`
}

type OutboxRecord struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Status        string // NEW, PUBLISHED
	DedupeKey     string
}

const (
	OutboxNew       = "NEW"
	OutboxPublished = "PUBLISHED"

	EventBookingApproved  = "booking.approved"
	EventBookingCancelled = "booking.cancelled"
)

// Reconciliation flags a paid reference that could not be applied.
type Reconciliation struct {
	ID         uuid.UUID   `json:"id"`
	Reference  string      `json:"payment_reference"`
	BookingIDs []uuid.UUID `json:"booking_ids"`
	Reason     string      `json:"reason"`
	CreatedAt  time.Time   `json:"created_at"`
	ResolvedAt *time.Time  `json:"resolved_at,omitempty"`
}

// Receipt is the denormalized booking detail sent to the notifier.
type Receipt struct {
	BookingID          uuid.UUID `json:"booking_id"`
	CustomerName       string    `json:"customer_name"`
	CustomerEmail      string    `json:"customer_email"`
	PickupPoint        string    `json:"pickup_point"`
	Destination        string    `json:"destination"`
	SeatNumber         int       `json:"seat_number"`
	DepartureDate      string    `json:"departure_date"`
	Amount             Money     `json:"amount"`
	PaymentReference   string    `json:"payment_reference"`
	BookingDate        time.Time `json:"booking_date"`
	Class              string    `json:"class"`
	Phone              string    `json:"phone"`
	ContactPersonName  string    `json:"contact_person_name"`
	ContactPersonPhone string    `json:"contact_person_phone"`
	Referral           string    `json:"referral"`
	BusType            string    `json:"bus_type"`
}
