package notify

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/robertarktes/bus-seat-booking/internal/observability"
)

// Notifier turns booking.approved events into receipt emails. A failed
// send never touches the booking.
type Notifier struct {
	sender Sender
	logger observability.Logger
}

func NewNotifier(sender Sender, logger observability.Logger) *Notifier {
	return &Notifier{sender: sender, logger: logger}
}

// HandleDelivery is a rabbit.Handler for the receipts queue.
func (n *Notifier) HandleDelivery(ctx context.Context, d amqp.Delivery) error {
	if d.Type != "" && d.Type != domain.EventBookingApproved {
		return nil
	}
	return n.Handle(ctx, d.Body)
}

// Handle sends the receipt carried by an approval event. Malformed payloads
// are dropped since a retry cannot fix them.
func (n *Notifier) Handle(ctx context.Context, payload []byte) error {
	var r domain.Receipt
	if err := json.Unmarshal(payload, &r); err != nil {
		observability.ReceiptsSent.WithLabelValues("invalid").Inc()
		n.logger.WithError(err).Error("undecodable receipt event dropped")
		return nil
	}
	log := n.logger.WithField("booking_id", r.BookingID).WithField("reference", r.PaymentReference)
	if r.CustomerEmail == "" {
		observability.ReceiptsSent.WithLabelValues("invalid").Inc()
		log.Warn("receipt has no recipient, dropped")
		return nil
	}

	msg, err := Compose(r)
	if err != nil {
		observability.ReceiptsSent.WithLabelValues("failed").Inc()
		return err
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		observability.ReceiptsSent.WithLabelValues("failed").Inc()
		log.WithError(err).Error("receipt email failed")
		return errors.Wrap(err, "send receipt")
	}
	observability.ReceiptsSent.WithLabelValues("sent").Inc()
	log.Info("receipt sent")
	return nil
}

// Compose builds the full receipt email with its PDF attachment.
func Compose(r domain.Receipt) (Message, error) {
	body, err := Render(r)
	if err != nil {
		return Message{}, err
	}
	doc, name, err := ReceiptPDF(r)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:          r.CustomerEmail,
		Subject:     body.Subject,
		HTML:        body.HTML,
		Text:        body.Text,
		Attachments: []Attachment{{Name: name, Data: doc}},
	}, nil
}
