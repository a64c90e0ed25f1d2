// Package redis holds the Redis-backed seat map cache, idempotency store and
// rate limit counters.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
)

const seatMapKey = "seats:map"

func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

// SeatMap returns the cached seat map. ok is false on a miss.
func (c *Cache) SeatMap(ctx context.Context) (seats []domain.Seat, ok bool, err error) {
	val, err := c.client.Get(ctx, seatMapKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal(val, &seats); err != nil {
		return nil, false, errors.Wrap(err, "decode seat map")
	}
	return seats, true, nil
}

func (c *Cache) SetSeatMap(ctx context.Context, seats []domain.Seat, ttl time.Duration) error {
	data, err := json.Marshal(seats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, seatMapKey, data, ttl).Err()
}

func (c *Cache) InvalidateSeatMap(ctx context.Context) error {
	return c.client.Del(ctx, seatMapKey).Err()
}

// IncrWindow counts a hit for key in a fixed window that starts with the
// first hit.
func (c *Cache) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	fullKey := "rl:" + key
	pipe := c.client.Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
