package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type failingSender struct{}

func (failingSender) Send(ctx context.Context, m Mail) error {
	return errors.New("smtp down")
}

func TestNotifierDisabled(t *testing.T) {
	var nilNotifier *Notifier
	if nilNotifier.Enabled() {
		t.Fatal("nil notifier should be disabled")
	}
	n := NewNotifier(nil, "stuart@example.com", nil, nil)
	if err := n.NotifyNewQuestion(context.Background(), QuestionNotice{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	n = NewNotifier(NewDevSender(nil), " ", nil, nil)
	if n.Enabled() {
		t.Fatal("blank recipient should disable notifier")
	}
}

func TestNotifierNewQuestion(t *testing.T) {
	stub := NewDevSender(nil)
	sydney, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	n := NewNotifier(stub, "stuart@example.com", sydney, nil)

	err = n.NotifyNewQuestion(context.Background(), QuestionNotice{
		MessageID: "abc123",
		Name:      "Jane <Smith & Co>",
		Question:  "Is super included?",
		At:        time.Date(2025, 7, 1, 0, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sent := stub.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sent))
	}
	msg := sent[0]
	if msg.To != "stuart@example.com" {
		t.Errorf("To = %q", msg.To)
	}
	if !strings.Contains(msg.Subject, "Jane <Smith & Co>") {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.Text, "Question: Is super included?") || !strings.Contains(msg.Text, "10:30 am AEST") {
		t.Errorf("Body = %q", msg.Text)
	}
	if !strings.Contains(msg.HTML, "Jane &lt;Smith &amp; Co&gt;") {
		t.Errorf("HTML not escaped: %q", msg.HTML)
	}
}

func TestNotifierWrapsSendError(t *testing.T) {
	n := NewNotifier(failingSender{}, "stuart@example.com", time.UTC, nil)
	err := n.NotifyNewQuestion(context.Background(), QuestionNotice{MessageID: "m1"})
	if err == nil || !strings.Contains(err.Error(), "m1") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
