package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/robertarktes/bus-seat-booking/internal/idempotency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SeatMap(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	cache := NewCache(db)

	mock.ExpectGet(seatMapKey).RedisNil()
	_, ok, err := cache.SeatMap(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	seats := []domain.Seat{{Number: 1, Available: true}, {Number: 2, PassengerName: "Ama"}}
	data, err := json.Marshal(seats)
	require.NoError(t, err)

	mock.ExpectSet(seatMapKey, data, 5*time.Second).SetVal("OK")
	require.NoError(t, cache.SetSeatMap(ctx, seats, 5*time.Second))

	mock.ExpectGet(seatMapKey).SetVal(string(data))
	got, ok, err := cache.SeatMap(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Ama", got[1].PassengerName)

	mock.ExpectDel(seatMapKey).SetVal(1)
	require.NoError(t, cache.InvalidateSeatMap(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_IncrWindow(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	cache := NewCache(db)

	mock.ExpectIncr("rl:ip:1.2.3.4").SetVal(3)
	mock.ExpectExpireNX("rl:ip:1.2.3.4", time.Minute).SetVal(false)

	n, err := cache.IncrWindow(ctx, "ip:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_Store(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	store := NewIdempotency(db)

	mock.ExpectGet("idemp:k1").RedisNil()
	resp, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, resp)

	mock.Regexp().ExpectSetNX("idemp:lock:k1", `^\d{4}-`, 30*time.Second).SetVal(true)
	ok, err := store.Lock(ctx, "k1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	stored := idempotency.Response{Status: 201, Body: []byte(`{"id":"x"}`), ContentType: "application/json"}
	data, err := json.Marshal(stored)
	require.NoError(t, err)
	mock.ExpectSet("idemp:k1", data, time.Hour).SetVal("OK")
	require.NoError(t, store.Set(ctx, "k1", stored, time.Hour))

	mock.ExpectDel("idemp:lock:k1").SetVal(1)
	require.NoError(t, store.Unlock(ctx, "k1"))

	mock.ExpectGet("idemp:k1").SetVal(string(data))
	resp, err = store.Get(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 201, resp.Status)
	assert.JSONEq(t, `{"id":"x"}`, string(resp.Body))

	assert.NoError(t, mock.ExpectationsWereMet())
}
