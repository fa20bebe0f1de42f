// Package admin is the responder's dashboard: every exchange record, the
// unread count, and direct replies written straight to the store.
package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/askstuart/internal/countdown"
	"github.com/wolfman30/askstuart/internal/exchange"
	"github.com/wolfman30/askstuart/pkg/logging"
)

// EmptyText is shown when there are no records.
const EmptyText = "No messages yet. Waiting for questions..."

// Entry statuses.
const (
	StatusReplied = "Replied"
	StatusPending = "Pending"
)

// Store is the subset of exchange.Store the panel uses.
type Store interface {
	List(ctx context.Context, since time.Time) ([]exchange.Record, error)
	Answer(ctx context.Context, id string, a exchange.Answer) error
}

// Entry is one record row.
type Entry struct {
	exchange.Record
	Status string `json:"status"`
	Unread bool   `json:"unread"`
}

// Dashboard is the full panel view.
type Dashboard struct {
	Messages    []Entry             `json:"messages"`
	Unread      int                 `json:"unread"`
	Subtitle    string              `json:"subtitle"`
	Countdown   countdown.Remaining `json:"countdown"`
	LaunchBadge string              `json:"launchBadge"`
	EmptyText   string              `json:"emptyText,omitempty"`
}

// Panel builds dashboards and writes replies.
type Panel struct {
	store    Store
	launchAt time.Time
	now      func() time.Time
	logger   *logging.Logger
}

// NewPanel creates a panel over store; launchAt drives the countdown badge.
func NewPanel(store Store, launchAt time.Time, logger *logging.Logger) *Panel {
	if store == nil {
		panic("admin: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Panel{store: store, launchAt: launchAt, now: time.Now, logger: logger}
}

// IsUnread is a visitor question nobody has answered.
func IsUnread(r exchange.Record) bool {
	return !r.Read && !r.IsFromStuart
}

// UnreadCount counts unread records.
func UnreadCount(recs []exchange.Record) int {
	n := 0
	for _, r := range recs {
		if IsUnread(r) {
			n++
		}
	}
	return n
}

// Subtitle renders the header line, pluralised.
func Subtitle(unread int) string {
	suffix := "s"
	if unread == 1 {
		suffix = ""
	}
	return fmt.Sprintf("Specialist Family Law Property Valuer - %d unread message%s", unread, suffix)
}

// LaunchBadge is the countdown text, or the launch message once live.
func LaunchBadge(r countdown.Remaining) string {
	if r.IsLive {
		return "🎉 We're Live! 🎉"
	}
	return r.String()
}

// Dashboard lists every record in creation order.
func (p *Panel) Dashboard(ctx context.Context) (*Dashboard, error) {
	recs, err := p.store.List(ctx, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("admin: list records: %w", err)
	}
	entries := make([]Entry, 0, len(recs))
	for _, r := range recs {
		status := StatusPending
		if r.Read {
			status = StatusReplied
		}
		entries = append(entries, Entry{Record: r, Status: status, Unread: IsUnread(r)})
	}
	unread := UnreadCount(recs)
	remaining := countdown.Compute(p.launchAt, p.now())
	d := &Dashboard{
		Messages:    entries,
		Unread:      unread,
		Subtitle:    Subtitle(unread),
		Countdown:   remaining,
		LaunchBadge: LaunchBadge(remaining),
	}
	if len(entries) == 0 {
		d.EmptyText = EmptyText
	}
	return d, nil
}

// Reply writes a reply onto the record. A blank reply is a no-op and
// returns false; a record that already has a reply yields
// exchange.ErrAlreadyAnswered.
func (p *Panel) Reply(ctx context.Context, id, body string) (bool, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return false, nil
	}
	if err := p.store.Answer(ctx, id, exchange.Answer{Body: body, At: p.now()}); err != nil {
		return false, fmt.Errorf("admin: reply to %s: %w", id, err)
	}
	p.logger.Info("admin reply saved", "message_id", id)
	return true, nil
}
