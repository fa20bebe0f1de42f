// Package chatclient is the data layer behind the chat widget and admin panel:
// a live view of the exchange records and the question submit path.
package chatclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/askstuart/internal/exchange"
	"github.com/wolfman30/askstuart/internal/relay"
	"github.com/wolfman30/askstuart/pkg/logging"
)

// PermissionDeniedMessage is shown while a freshly provisioned store still rejects reads.
const PermissionDeniedMessage = "Connecting to database... Please wait a moment and refresh the page."

// View is a record as the UI renders it. Timestamps are unix milliseconds.
type View struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Question     string `json:"question"`
	Reply        string `json:"reply,omitempty"`
	Timestamp    int64  `json:"timestamp"`
	IsFromStuart bool   `json:"isFromStuart"`
	Read         bool   `json:"read"`
}

// State is one update of the live view.
type State struct {
	Messages []View
	Loading  bool
	Err      string
}

// Feed is the live query the hook follows.
type Feed interface {
	Subscribe(ctx context.Context, since time.Time) (<-chan exchange.Snapshot, error)
}

// QuestionWriter writes the authoritative record.
type QuestionWriter interface {
	Create(ctx context.Context, q exchange.Question) (*exchange.Record, error)
}

// Notifier triggers the SMS side effect.
type Notifier interface {
	Notify(ctx context.Context, req relay.Request) (*relay.Response, error)
}

// Hook combines the live view with the submit path.
type Hook struct {
	feed        Feed
	writer      QuestionWriter
	notifier    Notifier
	reloadDelay time.Duration
	now         func() time.Time
	logger      *logging.Logger
}

// NewHook wires a hook. notifier may be nil, in which case Submit only writes.
func NewHook(feed Feed, writer QuestionWriter, notifier Notifier, reloadDelay time.Duration, logger *logging.Logger) *Hook {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hook{
		feed:        feed,
		writer:      writer,
		notifier:    notifier,
		reloadDelay: reloadDelay,
		now:         time.Now,
		logger:      logger,
	}
}

// ReloadDelay is the wait before the reload that follows a permission failure.
func (h *Hook) ReloadDelay() time.Duration {
	return h.reloadDelay
}

// Watch follows the live query until ctx is cancelled. The first state is
// always Loading. A permission failure shows PermissionDeniedMessage and
// triggers a single full reload after the reload delay; any other failure is
// reported as "Database error: ..." and ends the stream.
func (h *Hook) Watch(ctx context.Context, since time.Time) <-chan State {
	out := make(chan State, 1)
	go func() {
		defer close(out)
		if !emit(ctx, out, State{Loading: true}) {
			return
		}
		reloaded := false
		for {
			last, err := h.follow(ctx, since, out)
			if err == nil || ctx.Err() != nil {
				return
			}
			if errors.Is(err, exchange.ErrPermissionDenied) {
				h.logger.Warn("live subscription denied", "error", err, "reloaded", reloaded)
				emit(ctx, out, State{Messages: last, Err: PermissionDeniedMessage})
				if reloaded {
					return
				}
				reloaded = true
				select {
				case <-ctx.Done():
					return
				case <-time.After(h.reloadDelay):
				}
				h.logger.Info("retrying live subscription")
				if !emit(ctx, out, State{Loading: true}) {
					return
				}
				continue
			}
			h.logger.Error("live subscription failed", "error", err)
			emit(ctx, out, State{Messages: last, Err: "Database error: " + err.Error()})
			return
		}
	}()
	return out
}

// follow runs one subscription and returns the last delivered view.
func (h *Hook) follow(ctx context.Context, since time.Time, out chan<- State) ([]View, error) {
	snaps, err := h.feed.Subscribe(ctx, since)
	if err != nil {
		return nil, err
	}
	var last []View
	for snap := range snaps {
		if snap.Err != nil {
			return last, snap.Err
		}
		last = h.toViews(snap.Records)
		if !emit(ctx, out, State{Messages: last}) {
			return last, nil
		}
	}
	return last, nil
}

func (h *Hook) toViews(recs []exchange.Record) []View {
	out := make([]View, 0, len(recs))
	for _, r := range recs {
		ts := r.Timestamp
		// Pending server timestamps render as now.
		if ts.IsZero() {
			ts = h.now()
		}
		out = append(out, View{
			ID:           r.ID,
			Name:         r.Name,
			Question:     r.Question,
			Reply:        r.Reply,
			Timestamp:    ts.UnixMilli(),
			IsFromStuart: r.IsFromStuart,
			Read:         r.Read,
		})
	}
	return out
}

// Submit writes the question, then asks the relay to send the SMS. A relay
// failure is logged and never undoes or retries the write.
func (h *Hook) Submit(ctx context.Context, name, question string) (string, error) {
	q := exchange.Question{Name: name, Question: question}
	if err := q.Validate(); err != nil {
		return "", err
	}
	rec, err := h.writer.Create(ctx, q)
	if err != nil {
		return "", fmt.Errorf("chatclient: save question: %w", err)
	}
	if h.notifier == nil {
		return rec.ID, nil
	}
	resp, err := h.notifier.Notify(ctx, relay.Request{Name: name, Question: question, RecordID: rec.ID})
	if err != nil {
		h.logger.Warn("sms notification failed", "message_id", rec.ID, "error", err)
		return rec.ID, nil
	}
	h.logger.Info("sms notification result", "message_id", rec.ID, "sms_status", resp.SMSStatus)
	return rec.ID, nil
}

func emit(ctx context.Context, out chan<- State, s State) bool {
	select {
	case out <- s:
		return true
	case <-ctx.Done():
		return false
	}
}
