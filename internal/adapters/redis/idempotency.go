package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/bus-seat-booking/internal/idempotency"
)

// Idempotency keeps replayable booking responses under idemp:<key> and the
// in-flight marker under idemp:lock:<key>.
type Idempotency struct {
	client *redis.Client
}

var _ idempotency.Store = (*Idempotency)(nil)

func NewIdempotency(client *redis.Client) *Idempotency {
	return &Idempotency{client: client}
}

func responseKey(key string) string { return "idemp:" + key }
func lockKey(key string) string     { return "idemp:lock:" + key }

func (i *Idempotency) Get(ctx context.Context, key string) (*idempotency.Response, error) {
	raw, err := i.client.Get(ctx, responseKey(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, errors.Wrapf(err, "get %s", responseKey(key))
	}
	resp := new(idempotency.Response)
	if err := json.Unmarshal(raw, resp); err != nil {
		return nil, errors.Wrap(err, "decode idempotent response")
	}
	return resp, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, resp idempotency.Response, ttl time.Duration) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return errors.Wrap(err, "encode idempotent response")
	}
	return errors.Wrapf(i.client.Set(ctx, responseKey(key), raw, ttl).Err(), "set %s", responseKey(key))
}

// Lock stores the acquisition time so a stuck marker can be inspected.
func (i *Idempotency) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := i.client.SetNX(ctx, lockKey(key), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, errors.Wrapf(err, "lock %s", key)
	}
	return ok, nil
}

func (i *Idempotency) Unlock(ctx context.Context, key string) error {
	return errors.Wrapf(i.client.Del(ctx, lockKey(key)).Err(), "unlock %s", key)
}
