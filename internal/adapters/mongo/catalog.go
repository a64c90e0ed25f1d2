package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/robertarktes/bus-seat-booking/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CatalogRepository stores pickup points and destinations, one collection
// each, keyed by slug.
type CatalogRepository struct {
	pickups      *mongo.Collection
	destinations *mongo.Collection
	logger       observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		pickups:      db.Collection("pickup_points"),
		destinations: db.Collection("destinations"),
		logger:       logger,
	}
}

func (c *CatalogRepository) GetPickupPoint(ctx context.Context, id string) (domain.PickupPoint, error) {
	var p domain.PickupPoint
	err := c.pickups.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.PickupPoint{}, domain.ErrNotFound
	}
	if err != nil {
		c.logger.WithError(err).WithField("pickup_point_id", id).Error("failed to get pickup point")
		return domain.PickupPoint{}, err
	}
	return p, nil
}

func (c *CatalogRepository) GetDestination(ctx context.Context, id string) (domain.Destination, error) {
	var d domain.Destination
	err := c.destinations.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Destination{}, domain.ErrNotFound
	}
	if err != nil {
		c.logger.WithError(err).WithField("destination_id", id).Error("failed to get destination")
		return domain.Destination{}, err
	}
	return d, nil
}

func (c *CatalogRepository) ListPickupPoints(ctx context.Context, activeOnly bool) ([]domain.PickupPoint, error) {
	out := []domain.PickupPoint{}
	if err := c.list(ctx, c.pickups, activeOnly, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CatalogRepository) ListDestinations(ctx context.Context, activeOnly bool) ([]domain.Destination, error) {
	out := []domain.Destination{}
	if err := c.list(ctx, c.destinations, activeOnly, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CatalogRepository) list(ctx context.Context, coll *mongo.Collection, activeOnly bool, out any) error {
	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}
	cur, err := coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		c.logger.WithError(err).WithField("collection", coll.Name()).Error("failed to list catalog")
		return err
	}
	return cur.All(ctx, out)
}

func (c *CatalogRepository) UpsertPickupPoint(ctx context.Context, p domain.PickupPoint) error {
	now := time.Now().UTC()
	return c.upsert(ctx, c.pickups, p.ID, bson.M{
		"name":       p.Name,
		"active":     p.Active,
		"price":      p.Price,
		"updated_at": now,
	}, now)
}

func (c *CatalogRepository) UpsertDestination(ctx context.Context, d domain.Destination) error {
	now := time.Now().UTC()
	return c.upsert(ctx, c.destinations, d.ID, bson.M{
		"name":       d.Name,
		"active":     d.Active,
		"price":      d.Price,
		"updated_at": now,
	}, now)
}

func (c *CatalogRepository) upsert(ctx context.Context, coll *mongo.Collection, id string, set bson.M, now time.Time) error {
	_, err := coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set, "$setOnInsert": bson.M{"created_at": now}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		c.logger.WithError(err).WithField("id", id).Error("failed to upsert catalog entry")
	}
	return err
}

func (c *CatalogRepository) DeletePickupPoint(ctx context.Context, id string) error {
	return c.delete(ctx, c.pickups, id)
}

func (c *CatalogRepository) DeleteDestination(ctx context.Context, id string) error {
	return c.delete(ctx, c.destinations, id)
}

func (c *CatalogRepository) delete(ctx context.Context, coll *mongo.Collection, id string) error {
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		c.logger.WithError(err).WithField("id", id).Error("failed to delete catalog entry")
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
