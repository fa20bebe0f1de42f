package bootstrap

import (
	"context"
	"strings"
	"time"

	appconfig "github.com/wolfman30/askstuart/internal/config"
	"github.com/wolfman30/askstuart/internal/notify"
	"github.com/wolfman30/askstuart/pkg/logging"
)

// Email providers accepted in EMAIL_PROVIDER.
const (
	EmailProviderSendGrid = "sendgrid"
	EmailProviderSES      = "ses"
)

// BuildNotifier wires the optional e-mail copy of each new question. It is
// disabled when no recipient or no sender is configured.
func BuildNotifier(ctx context.Context, cfg *appconfig.Config, loc *time.Location, logger *logging.Logger) *notify.Notifier {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || strings.TrimSpace(cfg.NotifyEmailTo) == "" {
		return notify.NewNotifier(nil, "", loc, logger)
	}

	from := notify.From{Email: cfg.SendGridFromEmail, Name: cfg.SendGridFromName}
	var sender notify.EmailSender
	switch cfg.EmailProvider {
	case EmailProviderSES:
		client, err := notify.NewSESClient(ctx, cfg.AWSRegion)
		if err != nil {
			logger.Warn("ses unavailable; email notifications disabled", "error", err)
			break
		}
		if s := notify.NewSESSender(client, from, logger); s != nil {
			sender = s
		}
	default:
		if s := notify.NewSendGridSender(cfg.SendGridAPIKey, from, logger); s != nil {
			sender = s
		}
	}

	if sender == nil {
		if cfg.Env == "development" {
			logger.Info("email provider not configured; logging notifications only")
			sender = notify.NewDevSender(logger)
		} else {
			logger.Warn("email provider not configured; email notifications disabled", "provider", cfg.EmailProvider)
		}
	}
	return notify.NewNotifier(sender, cfg.NotifyEmailTo, loc, logger)
}

// LoadLocation resolves the notification time zone, falling back to UTC.
func LoadLocation(name string, logger *logging.Logger) *time.Location {
	if logger == nil {
		logger = logging.Default()
	}
	loc, err := time.LoadLocation(strings.TrimSpace(name))
	if err != nil {
		logger.Warn("unknown notification time zone; using UTC", "timezone", name, "error", err)
		return time.UTC
	}
	return loc
}
