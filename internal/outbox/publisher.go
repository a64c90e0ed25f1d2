// Package outbox relays committed outbox rows to the message broker.
package outbox

import (
	"context"
	"time"

	"github.com/robertarktes/bus-seat-booking/internal/observability"
	"github.com/robertarktes/bus-seat-booking/internal/store"
)

type MessagePublisher interface {
	PublishEvent(ctx context.Context, eventType, messageID string, body []byte) error
}

type Publisher struct {
	store     store.OutboxStore
	pub       MessagePublisher
	logger    observability.Logger
	batchSize int
	retries   int
	backoff   time.Duration
	now       func() time.Time
}

func NewPublisher(s store.OutboxStore, pub MessagePublisher, logger observability.Logger) *Publisher {
	return &Publisher{
		store:     s,
		pub:       pub,
		logger:    logger,
		batchSize: 50,
		retries:   3,
		backoff:   200 * time.Millisecond,
		now:       time.Now,
	}
}

// RunOnce publishes one batch of unpublished records in creation order and
// reports how many were published. A record that cannot be published stops
// the batch so later events do not overtake it.
func (p *Publisher) RunOnce(ctx context.Context) (int, error) {
	records, err := p.store.GetUnpublishedOutbox(ctx, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		observability.OutboxLag.Set(0)
		return 0, nil
	}
	observability.OutboxLag.Set(p.now().Sub(records[0].CreatedAt).Seconds())

	published := 0
	for _, rec := range records {
		log := p.logger.WithField("outbox_id", rec.ID).WithField("event_type", rec.EventType)
		if err := p.publish(ctx, rec.EventType, rec.DedupeKey, rec.Payload); err != nil {
			log.WithError(err).Error("outbox publish failed")
			return published, err
		}
		if err := p.store.MarkPublished(ctx, rec.ID, p.now()); err != nil {
			// The event went out; a second send carries the same message id.
			log.WithError(err).Warn("mark published failed")
			return published, err
		}
		published++
	}
	return published, nil
}

func (p *Publisher) publish(ctx context.Context, eventType, id string, body []byte) error {
	var err error
	for attempt := 0; attempt < p.retries; attempt++ {
		if attempt > 0 {
			observability.RabbitPublishRetries.Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * p.backoff):
			}
		}
		if err = p.pub.PublishEvent(ctx, eventType, id, body); err == nil {
			return nil
		}
	}
	return err
}
