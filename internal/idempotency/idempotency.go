// Package idempotency replays the stored response of a request whose
// Idempotency-Key was already completed, and rejects concurrent or
// mismatched reuse of a key.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	ErrInProgress = errors.New("request with this idempotency key is in progress")
	ErrKeyReused  = errors.New("idempotency key reused with a different request")
)

type Response struct {
	Status      int    `json:"status"`
	Body        []byte `json:"body"`
	ContentType string `json:"content_type"`
	Fingerprint string `json:"fingerprint"`
}

type Store interface {
	// Get returns nil, nil when nothing is stored under key.
	Get(ctx context.Context, key string) (*Response, error)
	Set(ctx context.Context, key string, resp Response, ttl time.Duration) error
	// Lock reports whether the caller acquired the in-flight marker.
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type Idempotency struct {
	store   Store
	ttl     time.Duration
	lockTTL time.Duration
}

func NewIdempotency(store Store, ttl time.Duration) *Idempotency {
	return &Idempotency{store: store, ttl: ttl, lockTTL: 30 * time.Second}
}

// Begin returns the stored response for key, or acquires the key for a new
// request and returns nil.
func (i *Idempotency) Begin(ctx context.Context, key, fingerprint string) (*Response, error) {
	cached, err := i.store.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "idempotency lookup")
	}
	if cached != nil {
		if cached.Fingerprint != "" && cached.Fingerprint != fingerprint {
			return nil, ErrKeyReused
		}
		return cached, nil
	}
	ok, err := i.store.Lock(ctx, key, i.lockTTL)
	if err != nil {
		return nil, errors.Wrap(err, "idempotency lock")
	}
	if !ok {
		return nil, ErrInProgress
	}
	return nil, nil
}

// Complete stores resp under key unless the outcome is retryable, then
// frees the key. Retryable outcomes are not replayed so a retry with the
// same key runs the request again.
func (i *Idempotency) Complete(ctx context.Context, key string, resp Response) error {
	var err error
	if !Retryable(resp.Status) {
		err = i.store.Set(ctx, key, resp, i.ttl)
	}
	if uerr := i.store.Unlock(ctx, key); uerr != nil && err == nil {
		err = uerr
	}
	return err
}

// Retryable reports whether a response status may change on retry: server
// errors, timeouts, conflicts such as a serialization failure, and rate
// limiting.
func Retryable(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
		return true
	}
	return status >= 500
}

// Fingerprint identifies a request body for key reuse checks.
func Fingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
