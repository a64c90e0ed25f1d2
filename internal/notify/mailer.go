package notify

import (
	"bytes"
	"context"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/bus-seat-booking/internal/config"
	"github.com/wneessen/go-mail"
)

type Attachment struct {
	Name string
	Data []byte
}

type Message struct {
	To          string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

// SMTPMailer sends messages through an authenticated SMTP relay.
type SMTPMailer struct {
	client   *mail.Client
	from     string
	fromName string
}

func NewSMTPMailer(cfg *config.Config) (*SMTPMailer, error) {
	if cfg.SMTPHost == "" {
		return nil, errors.New("SMTP_HOST is required")
	}
	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUsername),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}
	c, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "init smtp client")
	}
	return &SMTPMailer{client: c, from: cfg.MailFrom, fromName: cfg.MailFromName}, nil
}

func (s *SMTPMailer) Send(ctx context.Context, m Message) error {
	msg := mail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.from); err != nil {
		return errors.Wrap(err, "set from address")
	}
	if err := msg.To(m.To); err != nil {
		return errors.Wrapf(err, "set to address %q", m.To)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextHTML, m.HTML)
	if m.Text != "" {
		msg.AddAlternativeString(mail.TypeTextPlain, m.Text)
	}
	for _, a := range m.Attachments {
		if err := msg.AttachReader(a.Name, bytes.NewReader(a.Data)); err != nil {
			return errors.Wrapf(err, "attach %s", a.Name)
		}
	}
	return s.client.DialAndSendWithContext(ctx, msg)
}
