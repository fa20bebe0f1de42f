package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wolfman30/askstuart/pkg/logging"
)

// ErrDisabled is returned when no sender or recipient is configured.
var ErrDisabled = errors.New("notify: email notifications disabled")

// QuestionNotice describes a newly submitted question.
type QuestionNotice struct {
	MessageID string
	Name      string
	Question  string
	At        time.Time
}

// Notifier e-mails a copy of each new question to the responder.
type Notifier struct {
	email    EmailSender
	to       string
	location *time.Location
	logger   *logging.Logger
}

// NewNotifier builds a notifier. A nil sender or empty recipient disables it.
func NewNotifier(email EmailSender, to string, location *time.Location, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Default()
	}
	if location == nil {
		location = time.UTC
	}
	return &Notifier{
		email:    email,
		to:       strings.TrimSpace(to),
		location: location,
		logger:   logger,
	}
}

// Enabled reports whether NotifyNewQuestion will attempt a send.
func (n *Notifier) Enabled() bool {
	return n != nil && n.email != nil && n.to != ""
}

// NotifyNewQuestion sends the e-mail copy of a new question.
func (n *Notifier) NotifyNewQuestion(ctx context.Context, notice QuestionNotice) error {
	if !n.Enabled() {
		return ErrDisabled
	}
	at := notice.At.In(n.location).Format("Monday 2 January 2006, 3:04 pm MST")
	subject := fmt.Sprintf("New Ask Stuart question from %s", notice.Name)
	body := fmt.Sprintf(`New question via the Ask Stuart chat widget.

From: %s
Question: %s

Message ID: %s
Received: %s

Reply by SMS or from the admin panel.`, notice.Name, notice.Question, notice.MessageID, at)

	htmlBody := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2>New Ask Stuart question</h2>
<p><strong>From:</strong> %s</p>
<p><strong>Question:</strong> %s</p>
<p style="color: #6b7280;">Message ID %s, received %s</p>
</div>`, html.EscapeString(notice.Name), html.EscapeString(notice.Question), html.EscapeString(notice.MessageID), at)

	if err := n.email.Send(ctx, Mail{To: n.to, Subject: subject, Text: body, HTML: htmlBody}); err != nil {
		return fmt.Errorf("notify: new question %s: %w", notice.MessageID, err)
	}
	n.logger.Debug("question notification emailed", "message_id", notice.MessageID)
	return nil
}
