package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/askstuart/internal/exchange"
	"github.com/wolfman30/askstuart/internal/messaging"
	"github.com/wolfman30/askstuart/internal/notify"
	"github.com/wolfman30/askstuart/internal/observability/metrics"
	"github.com/wolfman30/askstuart/pkg/logging"
)

var relayTracer = otel.Tracer("askstuart.internal.relay")

const maxBodyBytes = 64 << 10

// Request is the relay payload. HPField is the honeypot input hidden from humans.
type Request struct {
	Name     string `json:"name"`
	Question string `json:"question"`
	HPField  string `json:"hp_field,omitempty"`
	// RecordID is set when the caller already wrote the record.
	RecordID string `json:"recordId,omitempty"`
}

// Response is the 200 body.
type Response struct {
	Success         bool        `json:"success"`
	MessageID       string      `json:"messageId"`
	Message         string      `json:"message"`
	FirestoreStatus StoreStatus `json:"firestoreStatus"`
	SMSStatus       SMSStatus   `json:"smsStatus"`
	QuestionLength  int         `json:"questionLength"`
	MaxLength       int         `json:"maxLength"`
	Honeypot        bool        `json:"honeypot,omitempty"`
	Debug           Debug       `json:"debug"`
}

// Debug reports which integrations are configured and how the SMS went.
type Debug struct {
	FirebaseConfigured bool        `json:"firebaseConfigured"`
	TwilioConfigured   bool        `json:"twilioConfigured"`
	SMSDetails         SMSDetails  `json:"smsDetails"`
	EmailStatus        EmailStatus `json:"emailStatus"`
}

// ErrorResponse is the body of every non-200 relay response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Reason        string `json:"reason,omitempty"`
	CurrentLength int    `json:"currentLength,omitempty"`
	MaxLength     int    `json:"maxLength,omitempty"`
	Details       string `json:"details,omitempty"`
}

// QuestionWriter is the store operation the relay needs.
type QuestionWriter interface {
	Create(ctx context.Context, q exchange.Question) (*exchange.Record, error)
}

// SMSSender sends the notification text.
type SMSSender interface {
	Send(ctx context.Context, msg messaging.OutboundSMS) (*messaging.SendResult, error)
}

// EmailNotifier sends the optional e-mail copy.
type EmailNotifier interface {
	Enabled() bool
	NotifyNewQuestion(ctx context.Context, notice notify.QuestionNotice) error
}

// Config holds the numbers and diagnostic flags of the relay.
type Config struct {
	FromNumber string
	// Recipient is the responder's number.
	Recipient          string
	FirebaseConfigured bool
	TwilioConfigured   bool
	Location           *time.Location
}

// Handler serves the relay endpoint. A nil store or sender degrades that side
// effect to "not_configured".
type Handler struct {
	cfg     Config
	store   QuestionWriter
	sms     SMSSender
	email   EmailNotifier
	metrics *metrics.RelayMetrics
	logger  *logging.Logger
	now     func() time.Time
}

// NewHandler creates the relay handler.
func NewHandler(cfg Config, store QuestionWriter, sms SMSSender, email EmailNotifier, m *metrics.RelayMetrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	cfg.FromNumber = strings.TrimSpace(cfg.FromNumber)
	cfg.Recipient = strings.TrimSpace(cfg.Recipient)
	return &Handler{
		cfg:     cfg,
		store:   store,
		sms:     sms,
		email:   email,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("relay panicked", "panic", fmt.Sprint(rec))
			h.metrics.ObserveSubmission("error")
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{
				Error:   "Internal server error",
				Details: fmt.Sprint(rec),
			})
		}
	}()

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "Method not allowed"})
		return
	}

	var req Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		h.metrics.ObserveSubmission("invalid")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Reason:  "invalid_body",
			Details: err.Error(),
		})
		return
	}

	out, err := h.Relay(r.Context(), req)
	h.metrics.ObserveLatency("relay", time.Since(start).Seconds())
	if err != nil {
		h.metrics.ObserveSubmission("invalid")
		writeValidationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success:         true,
		MessageID:       out.MessageID,
		Message:         "Question received and saved to database",
		FirestoreStatus: out.Store,
		SMSStatus:       out.SMS,
		QuestionLength:  out.QuestionLength,
		MaxLength:       exchange.MaxQuestionLength,
		Honeypot:        out.Honeypot,
		Debug: Debug{
			FirebaseConfigured: h.cfg.FirebaseConfigured,
			TwilioConfigured:   h.cfg.TwilioConfigured,
			SMSDetails:         out.SMSDetails,
			EmailStatus:        out.Email,
		},
	})
}

// Relay validates the question then runs the store write and the SMS send in
// sequence. Only validation failures are returned as errors.
func (h *Handler) Relay(ctx context.Context, req Request) (Outcome, error) {
	ctx, span := relayTracer.Start(ctx, "relay.submit")
	defer span.End()

	length := exchange.QuestionLength(req.Question)
	if strings.TrimSpace(req.HPField) != "" {
		h.logger.Info("honeypot triggered, submission discarded")
		h.metrics.ObserveSubmission("honeypot")
		span.SetAttributes(attribute.Bool("askstuart.honeypot", true))
		return h.decoy(length), nil
	}

	q := exchange.Question{Name: req.Name, Question: req.Question}
	if err := q.Validate(); err != nil {
		return Outcome{}, err
	}

	out := Outcome{QuestionLength: length}
	h.persist(ctx, q, req.RecordID, &out)
	h.notifySMS(ctx, q, &out)
	h.notifyEmail(ctx, q, &out)

	span.SetAttributes(
		attribute.String("askstuart.message_id", out.MessageID),
		attribute.String("askstuart.store_status", string(out.Store)),
		attribute.String("askstuart.sms_status", string(out.SMS)),
	)
	h.metrics.ObserveSubmission("accepted")
	h.logger.FromContext(ctx).Info("question relayed",
		"message_id", out.MessageID,
		"store_status", out.Store,
		"sms_status", out.SMS,
		"email_status", out.Email,
	)
	return out, nil
}

func (h *Handler) persist(ctx context.Context, q exchange.Question, recordID string, out *Outcome) {
	defer func() { h.metrics.ObserveStoreWrite(string(out.Store)) }()

	if id := strings.TrimSpace(recordID); id != "" {
		out.MessageID = id
		out.Store = StoreClientSaved
		return
	}
	if h.store == nil {
		out.MessageID = syntheticID(h.now())
		out.Store = StoreNotConfigured
		return
	}
	rec, err := h.store.Create(ctx, q)
	if err != nil {
		h.logger.Error("relay store write failed", "error", err)
		out.MessageID = syntheticID(h.now())
		out.Store = StoreFailed
		out.StoreErr = err
		return
	}
	out.MessageID = rec.ID
	out.Store = StoreSaved
}

// decoy is the outcome a real submission would report under the current
// configuration, built without touching the store or any integration.
func (h *Handler) decoy(length int) Outcome {
	out := Outcome{
		MessageID:      syntheticID(h.now()),
		QuestionLength: length,
		Store:          StoreSaved,
		Email:          EmailNotConfigured,
		Honeypot:       true,
	}
	if h.store == nil {
		out.Store = StoreNotConfigured
	}
	if status, details, ok := h.smsPreflight(); ok {
		out.SMS = SMSSent
		out.SMSDetails = SMSDetails{MessageSID: syntheticSID(), From: h.cfg.FromNumber, To: h.cfg.Recipient}
	} else {
		out.SMS, out.SMSDetails = status, details
	}
	if h.email != nil && h.email.Enabled() {
		out.Email = EmailSent
	}
	return out
}

// smsPreflight reports the status and details of an SMS that cannot be sent;
// ok is true when the sender and both numbers are configured.
func (h *Handler) smsPreflight() (SMSStatus, SMSDetails, bool) {
	if h.sms == nil || !h.cfg.TwilioConfigured {
		return SMSNotConfigured, SMSDetails{Error: "Twilio credentials not configured"}, false
	}
	if h.cfg.FromNumber == "" || h.cfg.Recipient == "" {
		return SMSNumbersNotConfigured, SMSDetails{
			Error:      "Phone numbers not configured",
			FromNumber: orNotSet(h.cfg.FromNumber),
			ToNumber:   orNotSet(h.cfg.Recipient),
		}, false
	}
	return "", SMSDetails{}, true
}

func (h *Handler) notifySMS(ctx context.Context, q exchange.Question, out *Outcome) {
	defer func() { h.metrics.ObserveSMS(string(out.SMS)) }()

	if status, details, ok := h.smsPreflight(); !ok {
		if status == SMSNumbersNotConfigured {
			h.logger.Warn("twilio phone numbers not configured")
		}
		out.SMS, out.SMSDetails = status, details
		return
	}

	body := FormatNotification(q.Name, q.Question, out.MessageID, h.now(), h.cfg.Location)
	res, err := h.sms.Send(ctx, messaging.OutboundSMS{
		To:   h.cfg.Recipient,
		From: h.cfg.FromNumber,
		Body: body,
	})
	if err != nil {
		h.logger.Error("relay sms failed", "error", err, "message_id", out.MessageID)
		out.SMS = SMSFailed
		out.SMSDetails = SMSDetails{Error: err.Error(), Code: smsErrorCode(err)}
		return
	}
	out.SMS = SMSSent
	out.SMSDetails = SMSDetails{MessageSID: res.SID, From: h.cfg.FromNumber, To: h.cfg.Recipient}
}

func (h *Handler) notifyEmail(ctx context.Context, q exchange.Question, out *Outcome) {
	defer func() { h.metrics.ObserveEmail(string(out.Email)) }()

	if h.email == nil || !h.email.Enabled() {
		out.Email = EmailNotConfigured
		return
	}
	err := h.email.NotifyNewQuestion(ctx, notify.QuestionNotice{
		MessageID: out.MessageID,
		Name:      q.Name,
		Question:  q.Question,
		At:        h.now(),
	})
	if err != nil {
		h.logger.Warn("relay email failed", "error", err, "message_id", out.MessageID)
		out.Email = EmailFailed
		return
	}
	out.Email = EmailSent
}

func writeValidationError(w http.ResponseWriter, err error) {
	var lengthErr *exchange.LengthError
	switch {
	case errors.As(err, &lengthErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:         fmt.Sprintf("Question too long. Maximum %d characters allowed.", lengthErr.Max),
			Reason:        "question_too_long",
			CurrentLength: lengthErr.Current,
			MaxLength:     lengthErr.Max,
		})
	case errors.Is(err, exchange.ErrMissingFields):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "Name and question are required",
			Reason: "missing_fields",
		})
	default:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Reason: "invalid"})
	}
}

func smsErrorCode(err error) any {
	var apiErr *messaging.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return apiErr.Code
	}
	return "unknown"
}

func orNotSet(v string) string {
	if v == "" {
		return "not_set"
	}
	return v
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// syntheticID is used when the store did not assign one: msg_<unix ms>_<9 base36 chars>.
func syntheticID(now time.Time) string {
	var suffix [9]byte
	for i := range suffix {
		suffix[i] = base36[rand.IntN(len(base36))]
	}
	return "msg_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(suffix[:])
}

// syntheticSID has the shape of a Twilio message SID: "SM" and 32 hex digits.
func syntheticSID() string {
	const hex = "0123456789abcdef"
	var b [32]byte
	for i := range b {
		b[i] = hex[rand.IntN(len(hex))]
	}
	return "SM" + string(b[:])
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
