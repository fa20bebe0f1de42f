package messaging

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/askstuart/internal/exchange"
	"github.com/wolfman30/askstuart/internal/observability/metrics"
	"github.com/wolfman30/askstuart/pkg/logging"
)

var twilioTracer = otel.Tracer("askstuart.internal.messaging.twilio")

// Inbound results, used for logs and metrics.
const (
	ResultAnswered     = "answered"
	ResultStandalone   = "standalone"
	ResultWrongMethod  = "ignored_method"
	ResultNoAdmin      = "ignored_unconfigured"
	ResultWrongSender  = "ignored_sender"
	ResultEmptyBody    = "ignored_empty"
	ResultBadSignature = "invalid_signature"
	ResultBadPayload   = "invalid_payload"
	ResultDuplicate    = "duplicate"
	ResultStoreError   = "error"
	ResultHandlerPanic = "panic"
)

// ReplyStore is the part of exchange.Store reply ingestion needs.
type ReplyStore interface {
	LatestPending(ctx context.Context) (*exchange.Record, error)
	Answer(ctx context.Context, id string, a exchange.Answer) error
	CreateStandalone(ctx context.Context, a exchange.Answer) (*exchange.Record, error)
}

// ReplyHandlerConfig holds the optional knobs of the reply handler.
type ReplyHandlerConfig struct {
	// AdminNumber is the only sender whose messages become replies.
	AdminNumber string
	// WebhookSecret enables X-Twilio-Signature checks when set.
	WebhookSecret string
	PublicBaseURL string
	Dedupe        Deduper
	Metrics       *metrics.RelayMetrics
	StoreTimeout  time.Duration
}

// ReplyHandler turns admin SMS replies into exchange record updates. It always
// answers 200 with an empty TwiML document so the carrier never retries.
type ReplyHandler struct {
	store  ReplyStore
	cfg    ReplyHandlerConfig
	logger *logging.Logger
}

// NewReplyHandler creates the reply ingestion handler.
func NewReplyHandler(store ReplyStore, cfg ReplyHandlerConfig, logger *logging.Logger) *ReplyHandler {
	if store == nil {
		panic("messaging: reply store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 8 * time.Second
	}
	cfg.AdminNumber = strings.TrimSpace(cfg.AdminNumber)
	return &ReplyHandler{store: store, cfg: cfg, logger: logger}
}

func (h *ReplyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := twilioTracer.Start(r.Context(), "messaging.twilio.reply")
	defer span.End()

	result := h.ingest(ctx, r)
	span.SetAttributes(attribute.String("askstuart.inbound.result", result))
	h.cfg.Metrics.ObserveInbound(result)
	h.cfg.Metrics.ObserveLatency("ingestion", time.Since(start).Seconds())

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(TwiMLEmptyResponse))
}

func (h *ReplyHandler) ingest(ctx context.Context, r *http.Request) (result string) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("reply ingestion panicked", "panic", fmt.Sprint(rec))
			result = ResultHandlerPanic
		}
	}()

	if r.Method != http.MethodPost {
		h.logger.Warn("reply webhook wrong method", "method", r.Method)
		return ResultWrongMethod
	}
	if h.cfg.AdminNumber == "" {
		h.logger.Warn("reply webhook ignored: admin number not configured")
		return ResultNoAdmin
	}
	if h.cfg.WebhookSecret != "" && !ValidateTwilioSignature(r, h.cfg.WebhookSecret, webhookURL(r, h.cfg.PublicBaseURL)) {
		h.logger.Warn("invalid twilio signature")
		return ResultBadSignature
	}

	msg, err := ParseTwilioWebhook(r)
	if err != nil {
		h.logger.Warn("failed to parse twilio webhook", "error", err)
		return ResultBadPayload
	}
	if msg.From != h.cfg.AdminNumber {
		h.logger.Info("reply webhook from unknown sender", "from", MaskPhone(msg.From))
		return ResultWrongSender
	}
	if strings.TrimSpace(msg.Body) == "" {
		h.logger.Info("reply webhook with empty body", "message_sid", msg.MessageSid)
		return ResultEmptyBody
	}

	if h.cfg.Dedupe != nil && msg.MessageSid != "" {
		first, err := h.cfg.Dedupe.Claim(ctx, msg.MessageSid)
		if err != nil {
			h.logger.Warn("inbound de-duplication unavailable", "error", err)
		} else if !first {
			h.logger.Info("duplicate reply webhook", "message_sid", msg.MessageSid)
			return ResultDuplicate
		}
	}

	storeCtx, cancel := context.WithTimeout(ctx, h.cfg.StoreTimeout)
	defer cancel()
	answer := exchange.Answer{Body: msg.Body, SID: msg.MessageSid}

	pending, err := h.store.LatestPending(storeCtx)
	switch {
	case errors.Is(err, exchange.ErrNotFound):
		rec, err := h.store.CreateStandalone(storeCtx, answer)
		if err != nil {
			h.logger.Error("failed to store standalone reply", "error", err, "message_sid", msg.MessageSid)
			return ResultStoreError
		}
		h.logger.Info("standalone reply stored", "record_id", rec.ID, "message_sid", msg.MessageSid)
		return ResultStandalone
	case err != nil:
		h.logger.Error("failed to find pending question", "error", err, "message_sid", msg.MessageSid)
		return ResultStoreError
	}

	err = h.store.Answer(storeCtx, pending.ID, answer)
	if errors.Is(err, exchange.ErrAlreadyAnswered) {
		// Answered from the admin panel since the lookup; keep the SMS as its own record.
		rec, err := h.store.CreateStandalone(storeCtx, answer)
		if err != nil {
			h.logger.Error("failed to store standalone reply", "error", err, "message_sid", msg.MessageSid)
			return ResultStoreError
		}
		h.logger.Info("pending question answered meanwhile; reply stored standalone", "record_id", rec.ID, "message_sid", msg.MessageSid)
		return ResultStandalone
	}
	if err != nil {
		h.logger.Error("failed to attach reply", "error", err, "record_id", pending.ID, "message_sid", msg.MessageSid)
		return ResultStoreError
	}
	h.logger.Info("reply attached", "record_id", pending.ID, "message_sid", msg.MessageSid)
	return ResultAnswered
}
