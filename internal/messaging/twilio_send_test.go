package messaging

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/wolfman30/askstuart/pkg/logging"
)

func newTestSender(t *testing.T, handler http.HandlerFunc) *TwilioSender {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s := NewTwilioSender("AC123", "secret", "+61400000009", logging.Default())
	s.apiBase = srv.URL
	return s
}

func TestTwilioSenderSend(t *testing.T) {
	var gotForm url.Values
	var gotPath, gotUser string
	s := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		raw, _ := io.ReadAll(r.Body)
		gotForm, _ = url.ParseQuery(string(raw))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM42","status":"queued"}`))
	})

	res, err := s.Send(context.Background(), OutboundSMS{To: "+61400000001", Body: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SID != "SM42" || res.Status != "queued" {
		t.Errorf("unexpected result %+v", res)
	}
	if res.From != "+61400000009" {
		t.Errorf("expected default from, got %q", res.From)
	}
	if gotPath != "/2010-04-01/Accounts/AC123/Messages.json" {
		t.Errorf("path = %q", gotPath)
	}
	if gotUser != "AC123" {
		t.Errorf("basic auth user = %q", gotUser)
	}
	if gotForm.Get("Body") != "hello" || gotForm.Get("To") != "+61400000001" {
		t.Errorf("form = %v", gotForm)
	}
}

func TestTwilioSenderAPIError(t *testing.T) {
	calls := 0
	s := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"The 'To' number is not a valid phone number.","status":400}`))
	})

	_, err := s.Send(context.Background(), OutboundSMS{To: "bad", Body: "hello"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != 21211 || apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("unexpected api error %+v", apiErr)
	}
	if calls != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
}

func TestTwilioSenderServerErrorNotRetried(t *testing.T) {
	calls := 0
	s := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := s.Send(context.Background(), OutboundSMS{To: "+61400000001", Body: "hello"})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
}

func TestTwilioSenderNotConfigured(t *testing.T) {
	s := NewTwilioSender("", "", "", nil)
	if s.Configured() {
		t.Fatal("expected unconfigured sender")
	}
	if _, err := s.Send(context.Background(), OutboundSMS{To: "+1", Body: "x"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	s = NewTwilioSender("AC1", "tok", "", nil)
	if _, err := s.Send(context.Background(), OutboundSMS{To: "+1", Body: "x"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured without from number, got %v", err)
	}
}

func TestParseTwilioErrorRawBody(t *testing.T) {
	err := parseTwilioError(502, []byte("  upstream down "))
	if err.Message != "upstream down" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Error() != "twilio send failed: status 502: upstream down" {
		t.Errorf("Error() = %q", err.Error())
	}
}
