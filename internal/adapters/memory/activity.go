package memory

import (
	"context"
	"sync"

	"github.com/robertarktes/bus-seat-booking/internal/domain"
)

// ActivityLog keeps admin activity entries in insertion order.
type ActivityLog struct {
	mu      sync.Mutex
	entries []domain.ActivityEntry
}

func NewActivityLog() *ActivityLog {
	return &ActivityLog{}
}

func (a *ActivityLog) Record(ctx context.Context, e domain.ActivityEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

// Recent returns up to limit entries, newest first.
func (a *ActivityLog) Recent(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.ActivityEntry, 0, limit)
	for i := len(a.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, a.entries[i])
	}
	return out, nil
}
