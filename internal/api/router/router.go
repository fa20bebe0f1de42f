package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/askstuart/internal/admin"
	"github.com/wolfman30/askstuart/internal/countdown"
	httpmiddleware "github.com/wolfman30/askstuart/internal/http/middleware"
	"github.com/wolfman30/askstuart/internal/widget"
	"github.com/wolfman30/askstuart/pkg/logging"
)

// Legacy function paths kept for widgets deployed against the old host.
const (
	legacyRelayPath = "/.netlify/functions/messages-post"
	legacyListPath  = "/.netlify/functions/messages-get"
	legacyReplyPath = "/.netlify/functions/sms-webhook"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Relay          http.Handler
	List           http.Handler
	Reply          http.Handler
	LiveFeed       http.Handler
	Admin          *admin.Handler
	MetricsHandler http.Handler

	CORSAllowedOrigins []string
	LaunchAt           time.Time
	Now                func() time.Time
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Carrier webhook: the handler itself acks every method.
	if cfg.Reply != nil {
		r.Handle("/webhooks/twilio/sms", cfg.Reply)
		r.Handle(legacyReplyPath, cfg.Reply)
	}

	// Browser-facing endpoints.
	r.Group(func(api chi.Router) {
		api.Use(httpmiddleware.CORS(httpmiddleware.CORSPolicy{
			AllowedOrigins: origins,
			Methods:        []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		}))
		if cfg.Relay != nil {
			api.Handle("/api/messages", cfg.Relay)
			api.Handle(legacyRelayPath, cfg.Relay)
		}
		if cfg.List != nil {
			api.Handle("/api/messages/list", cfg.List)
			api.Handle(legacyListPath, cfg.List)
		}
		api.Get("/api/countdown", countdownHandler(cfg.LaunchAt, now))
	})

	if cfg.LiveFeed != nil {
		r.Get("/api/messages/live", cfg.LiveFeed.ServeHTTP)
	}

	if cfg.Admin != nil {
		adminCORS := httpmiddleware.CORS(httpmiddleware.CORSPolicy{AllowedOrigins: origins})
		r.With(adminCORS).Mount("/admin", cfg.Admin.Routes())
	}

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type countdownResponse struct {
	Target    time.Time           `json:"target"`
	Countdown countdown.Remaining `json:"countdown"`
	Banner    widget.Banner       `json:"banner"`
}

func countdownHandler(target time.Time, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remaining := countdown.Compute(target, now())
		writeJSON(w, http.StatusOK, countdownResponse{
			Target:    target,
			Countdown: remaining,
			Banner:    widget.LaunchBanner(remaining),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
