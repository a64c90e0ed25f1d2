// Package catalog manages pickup points and destinations. Destinations carry
// the flat fare charged for a seat.
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/robertarktes/bus-seat-booking/internal/observability"
)

type Store interface {
	GetPickupPoint(ctx context.Context, id string) (domain.PickupPoint, error)
	GetDestination(ctx context.Context, id string) (domain.Destination, error)
	ListPickupPoints(ctx context.Context, activeOnly bool) ([]domain.PickupPoint, error)
	ListDestinations(ctx context.Context, activeOnly bool) ([]domain.Destination, error)
	UpsertPickupPoint(ctx context.Context, p domain.PickupPoint) error
	UpsertDestination(ctx context.Context, d domain.Destination) error
	DeletePickupPoint(ctx context.Context, id string) error
	DeleteDestination(ctx context.Context, id string) error
}

type Service struct {
	store  Store
	logger observability.Logger
}

func NewService(s Store, logger observability.Logger) *Service {
	return &Service{store: s, logger: logger}
}

// PickupPointInput is the admin form for a pickup point.
type PickupPointInput struct {
	Name   string `json:"name"`
	Active *bool  `json:"active"`
}

// DestinationInput is the admin form for a destination. Price is in cedis.
type DestinationInput struct {
	Name   string   `json:"name"`
	Price  *float64 `json:"price"`
	Active *bool    `json:"active"`
}

// SeedDefaults fills an empty catalog with the default entries. It reports
// whether anything was written.
func (s *Service) SeedDefaults(ctx context.Context) (bool, error) {
	pps, err := s.store.ListPickupPoints(ctx, false)
	if err != nil {
		return false, &domain.StorageError{Op: "list pickup points", Err: err}
	}
	dests, err := s.store.ListDestinations(ctx, false)
	if err != nil {
		return false, &domain.StorageError{Op: "list destinations", Err: err}
	}
	now := time.Now().UTC()
	seeded := false
	if len(pps) == 0 {
		for _, p := range domain.DefaultPickupPoints(now) {
			if err := s.store.UpsertPickupPoint(ctx, p); err != nil {
				return seeded, &domain.StorageError{Op: "seed pickup point", Err: err}
			}
		}
		seeded = true
	}
	if len(dests) == 0 {
		for _, d := range domain.DefaultDestinations(now) {
			if err := s.store.UpsertDestination(ctx, d); err != nil {
				return seeded, &domain.StorageError{Op: "seed destination", Err: err}
			}
		}
		seeded = true
	}
	if seeded {
		s.logger.Info("default catalog seeded")
	}
	return seeded, nil
}

func (s *Service) GetPickupPoint(ctx context.Context, id string) (domain.PickupPoint, error) {
	p, err := s.store.GetPickupPoint(ctx, id)
	return p, wrap("get pickup point", err)
}

func (s *Service) GetDestination(ctx context.Context, id string) (domain.Destination, error) {
	d, err := s.store.GetDestination(ctx, id)
	return d, wrap("get destination", err)
}

func (s *Service) PickupPoints(ctx context.Context, activeOnly bool) ([]domain.PickupPoint, error) {
	pps, err := s.store.ListPickupPoints(ctx, activeOnly)
	return pps, wrap("list pickup points", err)
}

func (s *Service) Destinations(ctx context.Context, activeOnly bool) ([]domain.Destination, error) {
	ds, err := s.store.ListDestinations(ctx, activeOnly)
	return ds, wrap("list destinations", err)
}

func (s *Service) CreatePickupPoint(ctx context.Context, in PickupPointInput) (domain.PickupPoint, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.PickupPoint{}, domain.NewValidationError("name", "is required")
	}
	id := domain.Slug(name)
	if _, err := s.store.GetPickupPoint(ctx, id); err == nil {
		return domain.PickupPoint{}, errors.Wrapf(domain.ErrConflict, "pickup point %q exists", id)
	}
	p := domain.PickupPoint{ID: id, Name: name, Active: in.Active == nil || *in.Active}
	if err := s.store.UpsertPickupPoint(ctx, p); err != nil {
		return domain.PickupPoint{}, &domain.StorageError{Op: "create pickup point", Err: err}
	}
	return s.GetPickupPoint(ctx, id)
}

func (s *Service) UpdatePickupPoint(ctx context.Context, id string, in PickupPointInput) (domain.PickupPoint, error) {
	p, err := s.store.GetPickupPoint(ctx, id)
	if err != nil {
		return domain.PickupPoint{}, wrap("get pickup point", err)
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		p.Name = name
	}
	if in.Active != nil {
		p.Active = *in.Active
	}
	if err := s.store.UpsertPickupPoint(ctx, p); err != nil {
		return domain.PickupPoint{}, &domain.StorageError{Op: "update pickup point", Err: err}
	}
	return s.GetPickupPoint(ctx, id)
}

func (s *Service) DeletePickupPoint(ctx context.Context, id string) error {
	return wrap("delete pickup point", s.store.DeletePickupPoint(ctx, id))
}

func (s *Service) CreateDestination(ctx context.Context, in DestinationInput) (domain.Destination, error) {
	name := strings.TrimSpace(in.Name)
	fields := map[string]string{}
	if name == "" {
		fields["name"] = "is required"
	}
	if in.Price == nil || *in.Price <= 0 {
		fields["price"] = "must be greater than zero"
	}
	if len(fields) > 0 {
		return domain.Destination{}, &domain.ValidationError{Fields: fields}
	}
	id := domain.Slug(name)
	if _, err := s.store.GetDestination(ctx, id); err == nil {
		return domain.Destination{}, errors.Wrapf(domain.ErrConflict, "destination %q exists", id)
	}
	d := domain.Destination{ID: id, Name: name, Price: toPesewas(*in.Price), Active: in.Active == nil || *in.Active}
	if err := s.store.UpsertDestination(ctx, d); err != nil {
		return domain.Destination{}, &domain.StorageError{Op: "create destination", Err: err}
	}
	return s.GetDestination(ctx, id)
}

func (s *Service) UpdateDestination(ctx context.Context, id string, in DestinationInput) (domain.Destination, error) {
	d, err := s.store.GetDestination(ctx, id)
	if err != nil {
		return domain.Destination{}, wrap("get destination", err)
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		d.Name = name
	}
	if in.Price != nil {
		if *in.Price <= 0 {
			return domain.Destination{}, domain.NewValidationError("price", "must be greater than zero")
		}
		d.Price = toPesewas(*in.Price)
	}
	if in.Active != nil {
		d.Active = *in.Active
	}
	if err := s.store.UpsertDestination(ctx, d); err != nil {
		return domain.Destination{}, &domain.StorageError{Op: "update destination", Err: err}
	}
	return s.GetDestination(ctx, id)
}

func (s *Service) DeleteDestination(ctx context.Context, id string) error {
	return wrap("delete destination", s.store.DeleteDestination(ctx, id))
}

func toPesewas(cedis float64) domain.Money {
	return domain.Money(cedis*100 + 0.5)
}

func wrap(op string, err error) error {
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return &domain.StorageError{Op: op, Err: err}
}
