package bootstrap

import (
	"strings"

	"github.com/wolfman30/askstuart/internal/chatclient"
	appconfig "github.com/wolfman30/askstuart/internal/config"
	"github.com/wolfman30/askstuart/internal/exchange"
	"github.com/wolfman30/askstuart/pkg/logging"
)

// relayPath is where the relay is reached when PUBLIC_BASE_URL is set.
const relayPath = "/api/messages"

// BuildChatHook wires the client data hook to the store. Submitted questions
// are relayed over HTTP only when PUBLIC_BASE_URL is configured.
func BuildChatHook(cfg *appconfig.Config, store exchange.Store, logger *logging.Logger) *chatclient.Hook {
	if logger == nil {
		logger = logging.Default()
	}
	var notifier chatclient.Notifier
	if base := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"); base != "" {
		notifier = chatclient.NewRelayClient(base+relayPath, chatclient.WithLogger(logger))
	}
	return chatclient.NewHook(store, store, notifier, cfg.LiveReloadDelay, logger)
}
