// Package bootstrap builds the process-wide handles (store, carrier client,
// notifier, metrics) once at start-up and wires them into the router.
package bootstrap

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/askstuart/internal/admin"
	"github.com/wolfman30/askstuart/internal/api/router"
	"github.com/wolfman30/askstuart/internal/chatclient"
	appconfig "github.com/wolfman30/askstuart/internal/config"
	"github.com/wolfman30/askstuart/internal/exchange"
	"github.com/wolfman30/askstuart/internal/livefeed"
	"github.com/wolfman30/askstuart/internal/messaging"
	"github.com/wolfman30/askstuart/internal/observability/metrics"
	"github.com/wolfman30/askstuart/internal/relay"
	"github.com/wolfman30/askstuart/pkg/logging"
)

// App is a fully wired HTTP application.
type App struct {
	Handler  http.Handler
	Store    exchange.Store
	Registry *prometheus.Registry
	// Chat is the in-process client data hook over Store.
	Chat    *chatclient.Hook
	closers []func()
}

// Close releases store and client connections in reverse build order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Build constructs every dependency from cfg and returns the router.
func Build(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	app := &App{}

	store, closeStore, err := BuildStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.Store = store
	app.Chat = BuildChatHook(cfg, store, logger)
	app.closers = append(app.closers, closeStore)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewRelayMetrics(reg)
	app.Registry = reg

	loc := LoadLocation(cfg.NotifyTimezone, logger)

	var sms relay.SMSSender
	if sender := BuildSMSSender(cfg, logger); sender != nil {
		sms = sender
	} else {
		logger.Warn("twilio credentials not configured; sms notifications disabled")
	}

	relayHandler := relay.NewHandler(relay.Config{
		FromNumber:         cfg.TwilioFromNumber,
		Recipient:          cfg.SMSRecipient,
		FirebaseConfigured: cfg.FirestoreConfigured(),
		TwilioConfigured:   cfg.TwilioConfigured(),
		Location:           loc,
	}, store, sms, BuildNotifier(ctx, cfg, loc, logger), m, logger)

	replyHandler := messaging.NewReplyHandler(store, messaging.ReplyHandlerConfig{
		AdminNumber:   cfg.SMSRecipient,
		WebhookSecret: cfg.TwilioWebhookSecret,
		PublicBaseURL: cfg.PublicBaseURL,
		Dedupe:        BuildDeduper(ctx, cfg, logger),
		Metrics:       m,
	}, logger)

	app.Handler = router.New(&router.Config{
		Logger:             logger,
		Relay:              relayHandler,
		List:               relay.ListHandler{},
		Reply:              replyHandler,
		LiveFeed:           livefeed.NewHandler(store, m, logger),
		Admin:              admin.NewHandler(admin.NewPanel(store, cfg.LaunchAt, logger), logger),
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		LaunchAt:           cfg.LaunchAt,
	})
	return app, nil
}
