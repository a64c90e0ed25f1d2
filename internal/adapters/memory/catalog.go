package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robertarktes/bus-seat-booking/internal/domain"
)

type Catalog struct {
	mu           sync.RWMutex
	pickupPoints map[string]domain.PickupPoint
	destinations map[string]domain.Destination
}

func NewCatalog() *Catalog {
	return &Catalog{
		pickupPoints: map[string]domain.PickupPoint{},
		destinations: map[string]domain.Destination{},
	}
}

func (c *Catalog) GetPickupPoint(ctx context.Context, id string) (domain.PickupPoint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.pickupPoints[id]
	if !ok {
		return domain.PickupPoint{}, domain.ErrNotFound
	}
	return p, nil
}

func (c *Catalog) GetDestination(ctx context.Context, id string) (domain.Destination, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.destinations[id]
	if !ok {
		return domain.Destination{}, domain.ErrNotFound
	}
	return d, nil
}

func (c *Catalog) ListPickupPoints(ctx context.Context, activeOnly bool) ([]domain.PickupPoint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.PickupPoint, 0, len(c.pickupPoints))
	for _, p := range c.pickupPoints {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *Catalog) ListDestinations(ctx context.Context, activeOnly bool) ([]domain.Destination, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Destination, 0, len(c.destinations))
	for _, d := range c.destinations {
		if activeOnly && !d.Active {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *Catalog) UpsertPickupPoint(ctx context.Context, p domain.PickupPoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if existing, ok := c.pickupPoints[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	c.pickupPoints[p.ID] = p
	return nil
}

func (c *Catalog) UpsertDestination(ctx context.Context, d domain.Destination) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if existing, ok := c.destinations[d.ID]; ok {
		d.CreatedAt = existing.CreatedAt
	} else if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	c.destinations[d.ID] = d
	return nil
}

func (c *Catalog) DeletePickupPoint(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pickupPoints[id]; !ok {
		return domain.ErrNotFound
	}
	delete(c.pickupPoints, id)
	return nil
}

func (c *Catalog) DeleteDestination(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.destinations[id]; !ok {
		return domain.ErrNotFound
	}
	delete(c.destinations, id)
	return nil
}
