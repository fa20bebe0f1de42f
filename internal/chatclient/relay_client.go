package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wolfman30/askstuart/internal/relay"
	"github.com/wolfman30/askstuart/pkg/logging"
)

// RelayClient posts submissions to the relay endpoint so it can send the SMS.
type RelayClient struct {
	endpoint   string
	httpClient *http.Client
	logger     *logging.Logger
}

// RelayOption configures a RelayClient.
type RelayOption func(*RelayClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) RelayOption {
	return func(c *RelayClient) {
		c.httpClient = client
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logging.Logger) RelayOption {
	return func(c *RelayClient) {
		c.logger = logger
	}
}

// NewRelayClient creates a client for the relay at endpoint
// (e.g. "https://example.com/api/messages").
func NewRelayClient(endpoint string, opts ...RelayOption) *RelayClient {
	c := &RelayClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Notify sends one submission. Any non-200 reply is returned as an error.
func (c *RelayClient) Notify(ctx context.Context, req relay.Request) (*relay.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("chatclient: marshal relay request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("chatclient: create relay request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chatclient: relay request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("chatclient: read relay response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chatclient: relay returned status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var out relay.Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("chatclient: decode relay response: %w", err)
	}
	return &out, nil
}
