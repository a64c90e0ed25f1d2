package memory

import (
	"context"
	"sync"
	"time"

	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/robertarktes/bus-seat-booking/internal/idempotency"
)

// Counters is a fixed window hit counter.
type Counters struct {
	mu      sync.Mutex
	windows map[string]window
	now     func() time.Time
}

type window struct {
	n       int64
	expires time.Time
}

func NewCounters() *Counters {
	return &Counters{windows: map[string]window{}, now: time.Now}
}

func (c *Counters) IncrWindow(ctx context.Context, key string, d time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	w := c.windows[key]
	if !now.Before(w.expires) {
		w = window{expires: now.Add(d)}
	}
	w.n++
	c.windows[key] = w
	return w.n, nil
}

// Idempotency keeps idempotent responses and in-flight markers in memory.
// Entries do not expire.
type Idempotency struct {
	mu     sync.Mutex
	resp   map[string]idempotency.Response
	locked map[string]bool
}

var _ idempotency.Store = (*Idempotency)(nil)

func NewIdempotency() *Idempotency {
	return &Idempotency{resp: map[string]idempotency.Response{}, locked: map[string]bool{}}
}

func (i *Idempotency) Get(ctx context.Context, key string) (*idempotency.Response, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	r, ok := i.resp[key]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, resp idempotency.Response, ttl time.Duration) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.resp[key] = resp
	return nil
}

func (i *Idempotency) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.locked[key] {
		return false, nil
	}
	i.locked[key] = true
	return true, nil
}

func (i *Idempotency) Unlock(ctx context.Context, key string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.locked, key)
	return nil
}

// SeatCache is a seat map cache without expiry.
type SeatCache struct {
	mu    sync.Mutex
	seats []domain.Seat
	Hits  int
}

func NewSeatCache() *SeatCache { return &SeatCache{} }

func (c *SeatCache) SeatMap(ctx context.Context) ([]domain.Seat, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seats == nil {
		return nil, false, nil
	}
	c.Hits++
	return append([]domain.Seat(nil), c.seats...), true, nil
}

func (c *SeatCache) SetSeatMap(ctx context.Context, seats []domain.Seat, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seats = append([]domain.Seat(nil), seats...)
	return nil
}

func (c *SeatCache) InvalidateSeatMap(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seats = nil
	return nil
}
