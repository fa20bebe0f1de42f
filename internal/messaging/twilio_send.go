package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/askstuart/pkg/logging"
)

var twilioSendTracer = otel.Tracer("askstuart.internal.messaging.twilio_send")

const defaultTwilioAPIBase = "https://api.twilio.com"

// ErrNotConfigured is returned when carrier credentials or numbers are missing.
var ErrNotConfigured = errors.New("messaging: twilio not configured")

// SMSSender delivers one text message and returns the carrier's message id.
type SMSSender interface {
	Send(ctx context.Context, msg OutboundSMS) (*SendResult, error)
}

// OutboundSMS is a single text message. An empty From uses the sender default.
type OutboundSMS struct {
	To   string
	From string
	Body string
}

// SendResult describes an accepted message.
type SendResult struct {
	SID    string
	Status string
	From   string
	To     string
}

// APIError is a non-2xx response from the Messages API.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("twilio send failed: status %d", e.StatusCode)
	}
	if e.Code != 0 {
		return fmt.Sprintf("twilio send failed: status %d code %d: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("twilio send failed: status %d: %s", e.StatusCode, e.Message)
}

// TwilioSender posts SMS messages using Twilio's REST API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	apiBase    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewTwilioSender builds a sender with sane defaults.
func NewTwilioSender(accountSID, authToken, defaultFrom string, logger *logging.Logger) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioSender{
		accountSID: strings.TrimSpace(accountSID),
		authToken:  strings.TrimSpace(authToken),
		from:       strings.TrimSpace(defaultFrom),
		apiBase:    defaultTwilioAPIBase,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

var _ SMSSender = (*TwilioSender)(nil)

// Configured reports whether credentials are present.
func (s *TwilioSender) Configured() bool {
	return s != nil && s.accountSID != "" && s.authToken != ""
}

// From returns the default sender number.
func (s *TwilioSender) From() string {
	if s == nil {
		return ""
	}
	return s.from
}

// Send dispatches a single SMS. Failures are returned as-is; there is no retry.
func (s *TwilioSender) Send(ctx context.Context, msg OutboundSMS) (*SendResult, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if msg.From == "" {
		msg.From = s.from
	}
	if msg.To == "" || msg.From == "" {
		return nil, fmt.Errorf("%w: to and from numbers required", ErrNotConfigured)
	}
	if strings.TrimSpace(msg.Body) == "" {
		return nil, errors.New("messaging: body required")
	}

	ctx, span := twilioSendTracer.Start(ctx, "messaging.twilio.send")
	defer span.End()
	span.SetAttributes(attribute.String("askstuart.to", MaskPhone(msg.To)))

	payload := url.Values{}
	payload.Set("To", msg.To)
	payload.Set("From", msg.From)
	payload.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.apiBase, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("messaging: build twilio request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("messaging: twilio request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseTwilioError(resp.StatusCode, body)
		span.RecordError(apiErr)
		return nil, apiErr
	}

	var parsed struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		s.logger.Warn("twilio response not decodable", "error", err)
	}
	s.logger.Info("twilio sms sent", "to", MaskPhone(msg.To), "sid", parsed.SID)
	return &SendResult{SID: parsed.SID, Status: parsed.Status, From: msg.From, To: msg.To}, nil
}

type twilioAPIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func parseTwilioError(status int, body []byte) *APIError {
	out := &APIError{StatusCode: status}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return out
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		out.Code = parsed.Code
		out.Message = parsed.Message
		return out
	}
	out.Message = trimmed
	return out
}
