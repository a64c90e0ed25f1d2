package admin

import (
	"context"
	"fmt"

	"github.com/robertarktes/bus-seat-booking/internal/catalog"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
)

func (s *Service) PickupPoints(ctx context.Context) ([]domain.PickupPoint, error) {
	return s.catalog.PickupPoints(ctx, false)
}

func (s *Service) Destinations(ctx context.Context) ([]domain.Destination, error) {
	return s.catalog.Destinations(ctx, false)
}

func (s *Service) CreatePickupPoint(ctx context.Context, actor Actor, in catalog.PickupPointInput) (domain.PickupPoint, error) {
	p, err := s.catalog.CreatePickupPoint(ctx, in)
	if err != nil {
		return domain.PickupPoint{}, err
	}
	s.record(ctx, actor, ActionPickupPointCreated, fmt.Sprintf("Created pickup point %s", p.Name), map[string]any{"pickup_point_id": p.ID})
	return p, nil
}

func (s *Service) UpdatePickupPoint(ctx context.Context, actor Actor, id string, in catalog.PickupPointInput) (domain.PickupPoint, error) {
	p, err := s.catalog.UpdatePickupPoint(ctx, id, in)
	if err != nil {
		return domain.PickupPoint{}, err
	}
	s.record(ctx, actor, ActionPickupPointUpdated, fmt.Sprintf("Updated pickup point %s", p.Name),
		map[string]any{"pickup_point_id": p.ID, "active": p.Active})
	return p, nil
}

func (s *Service) DeletePickupPoint(ctx context.Context, actor Actor, id string) error {
	if err := s.catalog.DeletePickupPoint(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, ActionPickupPointDeleted, fmt.Sprintf("Deleted pickup point %s", id), map[string]any{"pickup_point_id": id})
	return nil
}

func (s *Service) CreateDestination(ctx context.Context, actor Actor, in catalog.DestinationInput) (domain.Destination, error) {
	d, err := s.catalog.CreateDestination(ctx, in)
	if err != nil {
		return domain.Destination{}, err
	}
	s.record(ctx, actor, ActionDestinationCreated, fmt.Sprintf("Created destination %s", d.Name),
		map[string]any{"destination_id": d.ID, "price": int64(d.Price)})
	return d, nil
}

func (s *Service) UpdateDestination(ctx context.Context, actor Actor, id string, in catalog.DestinationInput) (domain.Destination, error) {
	d, err := s.catalog.UpdateDestination(ctx, id, in)
	if err != nil {
		return domain.Destination{}, err
	}
	s.record(ctx, actor, ActionDestinationUpdated, fmt.Sprintf("Updated destination %s", d.Name),
		map[string]any{"destination_id": d.ID, "price": int64(d.Price), "active": d.Active})
	return d, nil
}

func (s *Service) DeleteDestination(ctx context.Context, actor Actor, id string) error {
	if err := s.catalog.DeleteDestination(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, ActionDestinationDeleted, fmt.Sprintf("Deleted destination %s", id), map[string]any{"destination_id": id})
	return nil
}
