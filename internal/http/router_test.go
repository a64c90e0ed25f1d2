package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/bus-seat-booking/internal/adapters/memory"
	"github.com/robertarktes/bus-seat-booking/internal/admin"
	"github.com/robertarktes/bus-seat-booking/internal/auth"
	"github.com/robertarktes/bus-seat-booking/internal/catalog"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	api "github.com/robertarktes/bus-seat-booking/internal/http"
	"github.com/robertarktes/bus-seat-booking/internal/idempotency"
	"github.com/robertarktes/bus-seat-booking/internal/ledger"
	"github.com/robertarktes/bus-seat-booking/internal/lifecycle"
	"github.com/robertarktes/bus-seat-booking/internal/observability"
	"github.com/robertarktes/bus-seat-booking/internal/payment"
	"github.com/robertarktes/bus-seat-booking/internal/rateLimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const paystackSecret = "sk_test_router"

type server struct {
	t      *testing.T
	srv    *httptest.Server
	store  *memory.Store
	cache  *memory.SeatCache
	engine *lifecycle.Engine
}

func newServer(t *testing.T, rate int) *server {
	t.Helper()
	ctx := context.Background()
	logger := observability.NewLoggerTo(io.Discard)

	s := memory.NewStore()
	require.NoError(t, s.EnsureSeats(ctx))
	cat := catalog.NewService(memory.NewCatalog(), logger)
	_, err := cat.SeedDefaults(ctx)
	require.NoError(t, err)

	engine := lifecycle.New(s, cat, logger, 15*time.Minute)
	seats := ledger.New(s, logger)
	cache := memory.NewSeatCache()
	gateway := payment.NewGateway(paystackSecret, "pk_test_router")
	authSvc := auth.NewService(s, "jwt-secret", time.Hour, logger)
	_, err = authSvc.ProvisionAdmin(ctx, "ops@example.com", "correct horse", "Ops", domain.RoleAdmin)
	require.NoError(t, err)

	h := api.NewHandlers(api.Deps{
		Engine:     engine,
		Bookings:   s,
		Seats:      seats,
		Catalog:    cat,
		SeatCache:  cache,
		Gateway:    gateway,
		Dispatcher: payment.NewDispatcher(engine, gateway, logger),
		Auth:       authSvc,
		Admin:      admin.NewService(s, engine, seats, cat, memory.NewActivityLog(), cache, logger),
	})
	router := api.SetupRouter(h, api.RouterOptions{
		Logger:      logger,
		RateLimiter: rateLimit.NewRateLimiter(memory.NewCounters(), logger),
		Rate:        rate,
		RatePeriod:  time.Minute,
		Idempotency: idempotency.NewIdempotency(memory.NewIdempotency(), time.Hour),
		CORSOrigins: []string{"*"},
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &server{t: t, srv: srv, store: s, cache: cache, engine: engine}
}

func (s *server) do(method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	s.t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		rd = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(s.t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rd)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp, out
}

func idemKey() map[string]string {
	return map[string]string{"Idempotency-Key": uuid.NewString()}
}

func bookingBody(seat int) map[string]any {
	return map[string]any{
		"full_name":            "Ama Owusu",
		"class":                "Level 100",
		"email":                "ama@example.com",
		"phone":                "0241234567",
		"seat_number":          seat,
		"contact_person_name":  "Esi Mensah",
		"contact_person_phone": "0201234567",
		"pickup_point_id":      "apowa",
		"destination_id":       "kasoa",
		"bus_type":             "Sprinter",
		"referral":             "Friend",
		"departure_date":       "2026-12-18",
	}
}

type bookingsResp struct {
	Bookings  []domain.Booking `json:"bookings"`
	ExpiresAt time.Time        `json:"expires_at"`
}

func (s *server) createBooking(seat int) domain.Booking {
	s.t.Helper()
	resp, body := s.do(http.MethodPost, "/v1/bookings", bookingBody(seat), idemKey())
	require.Equal(s.t, http.StatusCreated, resp.StatusCode, string(body))
	var out bookingsResp
	require.NoError(s.t, json.Unmarshal(body, &out))
	require.Len(s.t, out.Bookings, 1)
	return out.Bookings[0]
}

func (s *server) login() map[string]string {
	s.t.Helper()
	resp, body := s.do(http.MethodPost, "/v1/admin/login", map[string]string{"email": "ops@example.com", "password": "correct horse"}, nil)
	require.Equal(s.t, http.StatusOK, resp.StatusCode, string(body))
	var sess auth.Session
	require.NoError(s.t, json.Unmarshal(body, &sess))
	return map[string]string{"Authorization": "Bearer " + sess.Token}
}

func TestCatalogAndSeats(t *testing.T) {
	s := newServer(t, 1000)

	resp, body := s.do(http.MethodGet, "/v1/catalog/destinations", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dests struct {
		Destinations []domain.Destination `json:"destinations"`
	}
	require.NoError(t, json.Unmarshal(body, &dests))
	assert.Len(t, dests.Destinations, 6)

	resp, body = s.do(http.MethodGet, "/v1/seats", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var seats struct {
		Seats []domain.Seat `json:"seats"`
	}
	require.NoError(t, json.Unmarshal(body, &seats))
	assert.Len(t, seats.Seats, domain.SeatCount)

	s.do(http.MethodGet, "/v1/seats", nil, nil)
	assert.Equal(t, 1, s.cache.Hits)

	resp, _ = s.do(http.MethodGet, "/v1/seats/40", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateBooking(t *testing.T) {
	s := newServer(t, 1000)
	b := s.createBooking(14)
	assert.Equal(t, domain.StatusPending, b.Status)
	assert.Equal(t, domain.GHS(70), b.Amount)

	resp, body := s.do(http.MethodGet, "/v1/seats/14", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var seat domain.Seat
	require.NoError(t, json.Unmarshal(body, &seat))
	assert.False(t, seat.Available)
	assert.Equal(t, "Ama Owusu", seat.PassengerName)

	resp, body = s.do(http.MethodPost, "/v1/bookings", bookingBody(14), idemKey())
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "pick another seat")

	resp, body = s.do(http.MethodGet, "/v1/bookings/"+b.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"payment_status":"pending"`)

	resp, _ = s.do(http.MethodGet, "/v1/bookings/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateBooking_Validation(t *testing.T) {
	s := newServer(t, 1000)
	body := bookingBody(3)
	body["email"] = "not-an-email"
	body["phone"] = "12"

	resp, out := s.do(http.MethodPost, "/v1/bookings", body, idemKey())
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var e struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(out, &e))
	assert.Contains(t, e.Fields, "email")
	assert.Contains(t, e.Fields, "phone")
}

func TestIdempotency(t *testing.T) {
	s := newServer(t, 1000)
	headers := idemKey()

	resp, first := s.do(http.MethodPost, "/v1/bookings", bookingBody(20), headers)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, second := s.do(http.MethodPost, "/v1/bookings", bookingBody(20), headers)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get("Idempotent-Replayed"))
	assert.JSONEq(t, string(first), string(second))

	resp, _ = s.do(http.MethodPost, "/v1/bookings", bookingBody(21), headers)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/v1/bookings", bookingBody(22), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/v1/bookings", bookingBody(22), map[string]string{"Idempotency-Key": "short"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIdempotency_SerializationConflictIsRetried(t *testing.T) {
	s := newServer(t, 1000)
	headers := idemKey()

	s.store.FailCommit(domain.ErrSerializationFailure, false)
	resp, body := s.do(http.MethodPost, "/v1/bookings", bookingBody(23), headers)
	require.Equal(t, http.StatusConflict, resp.StatusCode, string(body))

	resp, body = s.do(http.MethodPost, "/v1/bookings", bookingBody(23), headers)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Empty(t, resp.Header.Get("Idempotent-Replayed"))

	seat, err := s.store.GetSeat(context.Background(), 23)
	require.NoError(t, err)
	assert.False(t, seat.Available)
}

func TestGroupBooking(t *testing.T) {
	s := newServer(t, 1000)
	trip := bookingBody(0)
	for _, k := range []string{"full_name", "class", "email", "phone", "seat_number"} {
		delete(trip, k)
	}
	passengers := []map[string]any{}
	for i, seat := range []int{5, 6, 7} {
		passengers = append(passengers, map[string]any{
			"full_name": fmt.Sprintf("Passenger %d", i+1), "class": "Level 300",
			"email": fmt.Sprintf("p%d@example.com", i+1), "phone": "0241234567", "seat_number": seat,
		})
	}
	trip["passengers"] = passengers

	resp, body := s.do(http.MethodPost, "/v1/bookings/group", trip, idemKey())
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var out bookingsResp
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Len(t, out.Bookings, 3)

	passengers[2]["seat_number"] = 5
	trip["passengers"] = passengers
	resp, _ = s.do(http.MethodPost, "/v1/bookings/group", trip, idemKey())
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestPaymentFlow(t *testing.T) {
	s := newServer(t, 1000)
	b := s.createBooking(9)

	resp, body := s.do(http.MethodPost, "/v1/payments/checkout", map[string]any{"booking_ids": []uuid.UUID{b.ID}}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var co payment.Checkout
	require.NoError(t, json.Unmarshal(body, &co))
	assert.Equal(t, domain.GHS(70), co.Amount)
	assert.True(t, strings.HasPrefix(co.Reference, "booking_"+b.ID.String()[:8]))

	resp, _ = s.do(http.MethodPost, "/v1/payments/outcome", map[string]any{"outcome": "close", "reference": co.Reference, "booking_ids": []uuid.UUID{b.ID}}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	hook := []byte(fmt.Sprintf(`{"event":"charge.success","data":{"reference":%q,"amount":7000,"currency":"GHS","metadata":{"booking_ids":[%q]}}}`, co.Reference, b.ID))
	resp, _ = s.do(http.MethodPost, "/v1/payments/callback", hook, map[string]string{payment.SignatureHeader: "deadbeef"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	sig := map[string]string{payment.SignatureHeader: payment.Sign(paystackSecret, hook)}
	resp, _ = s.do(http.MethodPost, "/v1/payments/callback", hook, sig)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(http.MethodPost, "/v1/payments/callback", hook, sig)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := s.store.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, got.Status)
	assert.Len(t, s.store.Outbox(), 1)
}

func TestPaymentCallback_UnappliedPaymentIs502(t *testing.T) {
	s := newServer(t, 1000)
	b := s.createBooking(10)
	_, err := s.engine.RejectOrCancel(context.Background(), b.ID)
	require.NoError(t, err)

	hook := []byte(fmt.Sprintf(`{"event":"charge.success","data":{"reference":"ref-late","amount":7000,"currency":"GHS","metadata":{"booking_ids":[%q]}}}`, b.ID))
	resp, body := s.do(http.MethodPost, "/v1/payments/callback", hook, map[string]string{payment.SignatureHeader: payment.Sign(paystackSecret, hook)})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, string(body), "ref-late")

	rs, err := s.store.ListReconciliations(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, rs, 1)
}

func TestPaymentCallback_ShortChargeIsNotApproved(t *testing.T) {
	s := newServer(t, 1000)
	b := s.createBooking(11)

	hook := []byte(fmt.Sprintf(`{"event":"charge.success","data":{"reference":"ref-short","amount":1,"currency":"GHS","metadata":{"booking_ids":[%q]}}}`, b.ID))
	sig := map[string]string{payment.SignatureHeader: payment.Sign(paystackSecret, hook)}
	for i := 0; i < 3; i++ {
		resp, body := s.do(http.MethodPost, "/v1/payments/callback", hook, sig)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Contains(t, string(body), "ref-short")
	}

	got, err := s.store.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Empty(t, s.store.Outbox())

	rs, err := s.store.ListReconciliations(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "ref-short", rs[0].Reference)
}

func TestAdmin(t *testing.T) {
	s := newServer(t, 1000)
	b := s.createBooking(2)

	resp, _ := s.do(http.MethodGet, "/v1/admin/bookings", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/v1/admin/login", map[string]string{"email": "ops@example.com", "password": "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	authz := s.login()

	resp, body := s.do(http.MethodGet, "/v1/admin/bookings?status=pending", nil, authz)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), b.ID.String())

	resp, body = s.do(http.MethodPost, "/v1/admin/bookings/"+b.ID.String()+"/approve", nil, authz)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"status":"approved"`)

	resp, body = s.do(http.MethodGet, "/v1/admin/stats", nil, authz)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st admin.Stats
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, 1, st.ApprovedBookings)
	assert.Equal(t, domain.GHS(70), st.Revenue)

	resp, body = s.do(http.MethodGet, "/v1/admin/export.csv", nil, authz)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "Kasoa")

	resp, _ = s.do(http.MethodPost, "/v1/admin/seats/2/toggle", nil, authz)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/v1/admin/bookings/"+b.ID.String()+"/reject", nil, authz)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/v1/admin/seats/2/toggle", nil, authz)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(http.MethodDelete, "/v1/admin/bookings/"+b.ID.String(), nil, authz)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = s.do(http.MethodPost, "/v1/admin/catalog/destinations", map[string]any{"name": "Winneba", "price": 45}, authz)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	resp, _ = s.do(http.MethodPost, "/v1/admin/catalog/destinations", map[string]any{"name": "Winneba", "price": 45}, authz)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = s.do(http.MethodGet, "/v1/admin/activity", nil, authz)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), admin.ActionDataExported)

	resp, body = s.do(http.MethodPost, "/v1/admin/expire", nil, authz)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"expired":0}`, string(body))
}

func TestRateLimit(t *testing.T) {
	s := newServer(t, 2)
	for i := 0; i < 2; i++ {
		resp, _ := s.do(http.MethodGet, "/v1/catalog/pickup-points", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, _ := s.do(http.MethodGet, "/v1/catalog/pickup-points", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp, _ = s.do(http.MethodGet, "/v1/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
