package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/robertarktes/bus-seat-booking/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ActivityLog persists admin activity entries.
type ActivityLog struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewActivityLog(db *mongo.Database, logger observability.Logger) *ActivityLog {
	return &ActivityLog{
		coll:   db.Collection("admin_activity"),
		logger: logger,
	}
}

type activityDoc struct {
	ID          string    `bson:"_id"`
	AdminID     string    `bson:"admin_id"`
	AdminEmail  string    `bson:"admin_email"`
	Action      string    `bson:"action"`
	Description string    `bson:"description"`
	Metadata    bson.M    `bson:"metadata,omitempty"`
	IPAddress   string    `bson:"ip_address,omitempty"`
	Browser     string    `bson:"browser,omitempty"`
	OS          string    `bson:"os,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
}

func (a *ActivityLog) Record(ctx context.Context, e domain.ActivityEntry) error {
	doc := activityDoc{
		ID:          e.ID.String(),
		AdminID:     e.AdminID.String(),
		AdminEmail:  e.AdminEmail,
		Action:      e.Action,
		Description: e.Description,
		Metadata:    bson.M(e.Metadata),
		IPAddress:   e.IPAddress,
		Browser:     e.Browser,
		OS:          e.OS,
		CreatedAt:   e.CreatedAt,
	}
	if _, err := a.coll.InsertOne(ctx, doc); err != nil {
		a.logger.WithError(err).WithField("action", e.Action).Error("failed to insert activity entry")
		return err
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (a *ActivityLog) Recent(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit))
	cur, err := a.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var docs []activityDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]domain.ActivityEntry, 0, len(docs))
	for _, d := range docs {
		id, _ := uuid.Parse(d.ID)
		adminID, _ := uuid.Parse(d.AdminID)
		out = append(out, domain.ActivityEntry{
			ID:          id,
			AdminID:     adminID,
			AdminEmail:  d.AdminEmail,
			Action:      d.Action,
			Description: d.Description,
			Metadata:    map[string]any(d.Metadata),
			IPAddress:   d.IPAddress,
			Browser:     d.Browser,
			OS:          d.OS,
			CreatedAt:   d.CreatedAt,
		})
	}
	return out, nil
}

// EnsureIndexes creates the created_at index used by Recent.
func (a *ActivityLog) EnsureIndexes(ctx context.Context) error {
	_, err := a.coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "created_at", Value: -1}}})
	return err
}
