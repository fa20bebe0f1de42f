package bootstrap

import (
	"context"

	appconfig "github.com/wolfman30/askstuart/internal/config"
	"github.com/wolfman30/askstuart/internal/messaging"
	"github.com/wolfman30/askstuart/pkg/logging"
)

// BuildSMSSender returns the Twilio sender, or nil when credentials are missing.
func BuildSMSSender(cfg *appconfig.Config, logger *logging.Logger) *messaging.TwilioSender {
	if cfg == nil || !cfg.TwilioConfigured() {
		return nil
	}
	return messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
}

// BuildDeduper returns the Redis MessageSid de-duplicator, or nil when Redis
// is unset or unreachable.
func BuildDeduper(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) messaging.Deduper {
	if cfg == nil {
		return nil
	}
	client := messaging.NewRedisClient(ctx, messaging.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		TLS:      cfg.RedisTLS,
	}, logger)
	if client == nil {
		return nil
	}
	return messaging.NewRedisDeduper(client, cfg.DedupeTTL)
}
