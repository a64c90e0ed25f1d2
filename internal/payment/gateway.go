// Package payment integrates the Paystack checkout. It builds the inline
// checkout descriptor, verifies signed webhooks and maps gateway outcomes
// onto booking transitions.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/tidwall/gjson"
)

const (
	Currency        = domain.Currency
	SignatureHeader = "X-Paystack-Signature"
	defaultBaseURL  = "https://api.paystack.co"
)

var ErrInvalidSignature = errors.Mark(errors.New("invalid webhook signature"), domain.ErrUnauthorized)

type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancel"
	OutcomeClosed    Outcome = "close"
	OutcomeIgnored   Outcome = "ignored"
)

// Event is a gateway notification reduced to what the booking flow needs.
type Event struct {
	Outcome    Outcome
	Reference  string
	BookingIDs []uuid.UUID
	Amount     domain.Money
	Currency   string
}

type CustomField struct {
	DisplayName  string `json:"display_name"`
	VariableName string `json:"variable_name"`
	Value        string `json:"value"`
}

type Metadata struct {
	BookingIDs     []uuid.UUID   `json:"booking_ids"`
	CustomerName   string        `json:"customer_name"`
	PassengerCount int           `json:"passenger_count"`
	CustomFields   []CustomField `json:"custom_fields"`
}

// Checkout is what the browser hands to the Paystack inline widget.
type Checkout struct {
	Key       string       `json:"key"`
	Email     string       `json:"email"`
	Amount    domain.Money `json:"amount"`
	Currency  string       `json:"currency"`
	Reference string       `json:"reference"`
	Metadata  Metadata     `json:"metadata"`
}

type Gateway struct {
	secretKey string
	publicKey string
	baseURL   string
	client    *http.Client
	now       func() time.Time
}

type Option func(*Gateway)

func WithBaseURL(u string) Option { return func(g *Gateway) { g.baseURL = u } }

func WithHTTPClient(c *http.Client) Option { return func(g *Gateway) { g.client = c } }

func WithClock(now func() time.Time) Option { return func(g *Gateway) { g.now = now } }

func NewGateway(secretKey, publicKey string, opts ...Option) *Gateway {
	g := &Gateway{
		secretKey: secretKey,
		publicKey: publicKey,
		baseURL:   defaultBaseURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Checkout builds the payment descriptor for pending bookings. The first
// booking is the primary passenger.
func (g *Gateway) Checkout(bookings []domain.Booking) (Checkout, error) {
	if len(bookings) == 0 {
		return Checkout{}, domain.NewValidationError("booking_ids", "is required")
	}
	var total domain.Money
	ids := make([]uuid.UUID, len(bookings))
	for i, b := range bookings {
		if b.Status != domain.StatusPending {
			return Checkout{}, errors.Wrapf(domain.ErrConflict, "booking %s is %s", b.ID, b.Status)
		}
		total += b.Amount
		ids[i] = b.ID
	}
	primary := bookings[0]
	bookingType := "Single Booking"
	if len(bookings) > 1 {
		bookingType = "Group Booking"
	}
	return Checkout{
		Key:       g.publicKey,
		Email:     primary.Email,
		Amount:    total,
		Currency:  Currency,
		Reference: fmt.Sprintf("booking_%s_%d", primary.ID.String()[:8], g.now().UnixMilli()),
		Metadata: Metadata{
			BookingIDs:     ids,
			CustomerName:   primary.FullName,
			PassengerCount: len(bookings),
			CustomFields: []CustomField{
				{DisplayName: "Booking Type", VariableName: "booking_type", Value: bookingType},
				{DisplayName: "Passenger Count", VariableName: "passenger_count", Value: strconv.Itoa(len(bookings))},
				{DisplayName: "Primary Passenger", VariableName: "primary_passenger", Value: primary.FullName},
			},
		},
	}, nil
}

// ParseWebhook checks the HMAC-SHA512 signature of body and decodes the
// event. Unknown event types come back as OutcomeIgnored.
func (g *Gateway) ParseWebhook(body []byte, signature string) (Event, error) {
	if !g.validSignature(body, signature) {
		return Event{}, ErrInvalidSignature
	}
	if !gjson.ValidBytes(body) {
		return Event{}, domain.NewValidationError("body", "is not valid JSON")
	}
	root := gjson.ParseBytes(body)

	var outcome Outcome
	switch root.Get("event").String() {
	case "charge.success":
		outcome = OutcomeSuccess
	case "charge.failed":
		outcome = OutcomeFailed
	default:
		return Event{Outcome: OutcomeIgnored}, nil
	}
	return decodeTransaction(root.Get("data"), outcome)
}

// Verify asks the gateway for the final state of a transaction.
func (g *Gateway) Verify(ctx context.Context, reference string) (Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/transaction/verify/"+reference, nil)
	if err != nil {
		return Event{}, err
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	resp, err := g.client.Do(req)
	if err != nil {
		return Event{}, errors.Wrap(err, "verify transaction")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Event{}, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return Event{}, errors.Wrapf(domain.ErrNotFound, "transaction %s", reference)
	}
	if resp.StatusCode != http.StatusOK {
		return Event{}, errors.Newf("verify transaction: status %d: %s", resp.StatusCode, gjson.GetBytes(body, "message").String())
	}

	data := gjson.GetBytes(body, "data")
	var outcome Outcome
	switch data.Get("status").String() {
	case "success":
		outcome = OutcomeSuccess
	case "failed", "reversed":
		outcome = OutcomeFailed
	default:
		return Event{Outcome: OutcomeIgnored, Reference: reference}, nil
	}
	return decodeTransaction(data, outcome)
}

func (g *Gateway) validSignature(body []byte, signature string) bool {
	if g.secretKey == "" || signature == "" {
		return false
	}
	want, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(g.secretKey))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}

// Sign returns the signature the gateway would send for body.
func Sign(secretKey string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secretKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func decodeTransaction(data gjson.Result, outcome Outcome) (Event, error) {
	ev := Event{
		Outcome:   outcome,
		Reference: data.Get("reference").String(),
		Amount:    domain.Money(data.Get("amount").Int()),
		Currency:  data.Get("currency").String(),
	}
	if ev.Reference == "" {
		return Event{}, domain.NewValidationError("reference", "is required")
	}

	meta := data.Get("metadata")
	// The metadata object is sometimes delivered as a JSON string.
	if meta.Type == gjson.String {
		meta = gjson.Parse(meta.String())
	}
	for _, v := range meta.Get("booking_ids").Array() {
		id, err := uuid.Parse(v.String())
		if err != nil {
			return Event{}, domain.NewValidationError("metadata.booking_ids", "must contain booking ids")
		}
		ev.BookingIDs = append(ev.BookingIDs, id)
	}
	if len(ev.BookingIDs) == 0 {
		return Event{}, domain.NewValidationError("metadata.booking_ids", "is required")
	}
	return ev, nil
}
