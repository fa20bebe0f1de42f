// Package widget holds the chat bubble's view state: identity capture, the
// question draft and its character budget, and the visitor's conversation.
package widget

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/wolfman30/askstuart/internal/chatclient"
	"github.com/wolfman30/askstuart/internal/exchange"
)

// Copy shown by the widget.
const (
	Greeting          = "Hi! I'm Stuart, your specialist family law property valuer. What's your name and law firm name?"
	NamePlaceholder   = "Enter your name and law firm..."
	ConnectingText    = "Connecting..."
	ConnectionErrText = "Connection error. Please refresh the page."
	SendingText       = "Sending your question..."
	SendFailedText    = "Error sending message. Please try again."
	NameMaxLength     = 100
	counterWarnBelow  = 25
	counterCritBelow  = 10
)

// CounterLevel colours the remaining-characters counter.
type CounterLevel string

const (
	CounterNormal   CounterLevel = "normal"
	CounterWarning  CounterLevel = "warning"
	CounterCritical CounterLevel = "critical"
)

// SubmitResult says what a Submit call did.
type SubmitResult int

const (
	SubmitIgnored SubmitResult = iota
	SubmitNameSet
	SubmitSent
)

// ErrSendFailed wraps a failed question write.
var ErrSendFailed = errors.New(SendFailedText)

// Submitter writes a question; chatclient.Hook implements it.
type Submitter interface {
	Submit(ctx context.Context, name, question string) (string, error)
}

// Session is one visitor's widget. It is safe for concurrent use.
type Session struct {
	mu         sync.Mutex
	submitter  Submitter
	tooltip    *Tooltip
	open       bool
	name       string
	draft      string
	hasSetName bool
	sending    bool
	messages   []chatclient.View
	loading    bool
	err        string
}

// NewSession starts closed, loading and without a name.
func NewSession(submitter Submitter, tooltip *Tooltip) *Session {
	if tooltip == nil {
		tooltip = NewTooltip(0)
	}
	return &Session{submitter: submitter, tooltip: tooltip, loading: true}
}

// Tooltip returns the bubble's hover tooltip.
func (s *Session) Tooltip() *Tooltip { return s.tooltip }

// Toggle opens or closes the chat window and hides the tooltip.
func (s *Session) Toggle() bool {
	s.mu.Lock()
	s.open = !s.open
	open := s.open
	s.mu.Unlock()
	s.tooltip.Hide()
	return open
}

// Open reports whether the chat window is showing.
func (s *Session) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// SetName edits the identity field; ignored once the name is committed.
func (s *Session) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasSetName {
		return
	}
	s.name = exchange.TruncateUnits(name, NameMaxLength, "")
}

// SetDraft edits the question field. Over-long drafts are kept so the
// counter can go negative.
func (s *Session) SetDraft(draft string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = draft
}

// Name returns the identity as typed.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// HasSetName reports whether the identity step is done.
func (s *Session) HasSetName() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasSetName
}

// Draft returns the current question text.
func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Prompt is the first bubble in the window.
func (s *Session) Prompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasSetName {
		return Greeting
	}
	return fmt.Sprintf("Hi %s! How can I help with your family law property matter today?", s.name)
}

// Placeholder is the input hint for the current step.
func (s *Session) Placeholder() string {
	if !s.HasSetName() {
		return NamePlaceholder
	}
	return fmt.Sprintf("Brief question (max %d chars)...", exchange.MaxQuestionLength)
}

// RemainingChars is the question budget left; negative when over.
func (s *Session) RemainingChars() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return exchange.MaxQuestionLength - exchange.QuestionLength(s.draft)
}

// Counter renders "n/max" for the draft.
func (s *Session) Counter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%d/%d", exchange.QuestionLength(s.draft), exchange.MaxQuestionLength)
}

// Level picks the counter colour.
func (s *Session) Level() CounterLevel {
	switch n := s.RemainingChars(); {
	case n < counterCritBelow:
		return CounterCritical
	case n < counterWarnBelow:
		return CounterWarning
	default:
		return CounterNormal
	}
}

// TooLong reports a committed name with an over-budget draft.
func (s *Session) TooLong() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tooLongLocked()
}

func (s *Session) tooLongLocked() bool {
	return s.hasSetName && exchange.QuestionLength(s.draft) > exchange.MaxQuestionLength
}

// CanSend mirrors the send button's enabled state.
func (s *Session) CanSend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.tooLongLocked() && !s.sending
}

// Sending reports an in-flight submit.
func (s *Session) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// Submit commits the name on the first call, then sends questions. An
// over-long draft returns *exchange.LengthError without calling the submitter.
func (s *Session) Submit(ctx context.Context) (SubmitResult, error) {
	s.mu.Lock()
	if !s.hasSetName {
		if strings.TrimSpace(s.name) == "" {
			s.mu.Unlock()
			return SubmitIgnored, nil
		}
		s.hasSetName = true
		s.mu.Unlock()
		return SubmitNameSet, nil
	}
	if strings.TrimSpace(s.draft) == "" || s.sending {
		s.mu.Unlock()
		return SubmitIgnored, nil
	}
	if n := exchange.QuestionLength(s.draft); n > exchange.MaxQuestionLength {
		s.mu.Unlock()
		return SubmitIgnored, &exchange.LengthError{Current: n, Max: exchange.MaxQuestionLength}
	}
	name, question := s.name, s.draft
	s.sending = true
	s.mu.Unlock()

	_, err := s.submitter.Submit(ctx, name, question)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sending = false
	if err != nil {
		return SubmitIgnored, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	s.draft = ""
	return SubmitSent, nil
}

// Apply takes one live-view update.
func (s *Session) Apply(st chatclient.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = st.Loading
	s.err = st.Err
	if st.Messages != nil || !st.Loading {
		s.messages = st.Messages
	}
}

// Follow applies states until the channel closes or ctx is done.
func (s *Session) Follow(ctx context.Context, states <-chan chatclient.State) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			s.Apply(st)
		}
	}
}

// Status is the banner above the conversation: connecting, an error, or empty.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.err != "":
		return ConnectionErrText
	case s.loading:
		return ConnectingText
	default:
		return ""
	}
}

// Err returns the raw live-view error, if any.
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Conversation returns the records whose name matches the visitor's,
// compared case-insensitively. Two visitors with the same name share a thread.
func (s *Session) Conversation() []chatclient.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := strings.ToLower(s.name)
	out := []chatclient.View{}
	for _, m := range s.messages {
		if strings.ToLower(m.Name) == want {
			out = append(out, m)
		}
	}
	return out
}
