package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/askstuart/pkg/logging"
)

// mailCategory tags every outgoing message for provider-side filtering.
const mailCategory = "ask-stuart-question"

const defaultFromName = "Ask Stuart"

// ErrIncompleteMail is returned for a Mail without a recipient or subject.
var ErrIncompleteMail = errors.New("notify: mail needs a recipient and subject")

// Mail is one notification e-mail. Text is required; HTML is an optional alternative part.
type Mail struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

func (m Mail) validate() error {
	if strings.TrimSpace(m.To) == "" || strings.TrimSpace(m.Subject) == "" {
		return ErrIncompleteMail
	}
	return nil
}

// EmailSender delivers a Mail through one provider.
type EmailSender interface {
	Send(ctx context.Context, m Mail) error
}

// From is the sender identity shared by every provider.
type From struct {
	Email string
	Name  string
}

func (f From) withDefaults() From {
	f.Email = strings.TrimSpace(f.Email)
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		f.Name = defaultFromName
	}
	return f
}

type sendGridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender delivers mail through the SendGrid v3 API.
type SendGridSender struct {
	api    sendGridAPI
	from   From
	tracer trace.Tracer
	logger *logging.Logger
}

// NewSendGridSender returns nil when apiKey is blank.
func NewSendGridSender(apiKey string, from From, logger *logging.Logger) *SendGridSender {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	return newSendGridSender(sendgrid.NewSendClient(apiKey), from, logger)
}

func newSendGridSender(api sendGridAPI, from From, logger *logging.Logger) *SendGridSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &SendGridSender{
		api:    api,
		from:   from.withDefaults(),
		tracer: otel.Tracer("askstuart.internal.notify"),
		logger: logger,
	}
}

func (s *SendGridSender) message(m Mail) *mail.SGMailV3 {
	msg := mail.NewV3Mail()
	msg.SetFrom(mail.NewEmail(s.from.Name, s.from.Email))
	msg.Subject = m.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail("", m.To))
	msg.AddPersonalizations(p)

	// text/plain must precede text/html.
	msg.AddContent(mail.NewContent("text/plain", m.Text))
	if m.HTML != "" {
		msg.AddContent(mail.NewContent("text/html", m.HTML))
	}
	msg.AddCategories(mailCategory)
	return msg
}

// Send posts the mail; any status of 300 or above is an error.
func (s *SendGridSender) Send(ctx context.Context, m Mail) error {
	if err := m.validate(); err != nil {
		return err
	}
	ctx, span := s.tracer.Start(ctx, "notify.sendgrid.send")
	defer span.End()

	resp, err := s.api.SendWithContext(ctx, s.message(m))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("notify: sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		s.logger.Warn("sendgrid rejected notification", "status", resp.StatusCode, "body", resp.Body)
		return fmt.Errorf("notify: sendgrid status %d", resp.StatusCode)
	}
	s.logger.Debug("notification emailed", "provider", "sendgrid", "status", resp.StatusCode)
	return nil
}

// DevSender only logs. It keeps every Mail so local runs and tests can inspect them.
type DevSender struct {
	logger *logging.Logger

	mu   sync.Mutex
	sent []Mail
}

func NewDevSender(logger *logging.Logger) *DevSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &DevSender{logger: logger}
}

func (s *DevSender) Send(ctx context.Context, m Mail) error {
	if err := m.validate(); err != nil {
		return err
	}
	s.logger.Info("dev mail sender", "to", m.To, "subject", m.Subject)
	s.mu.Lock()
	s.sent = append(s.sent, m)
	s.mu.Unlock()
	return nil
}

// Sent returns a copy of the mails passed to Send.
func (s *DevSender) Sent() []Mail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Mail(nil), s.sent...)
}

var (
	_ EmailSender = (*SendGridSender)(nil)
	_ EmailSender = (*DevSender)(nil)
)
