package messaging

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/askstuart/pkg/logging"
)

const dedupeKeyPrefix = "askstuart:inbound:"

// Deduper claims a carrier message id the first time it is seen.
type Deduper interface {
	Claim(ctx context.Context, messageSID string) (bool, error)
}

// RedisDeduper remembers message ids in Redis with a TTL.
type RedisDeduper struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisDeduper returns nil when client is nil so callers can skip de-duplication.
func NewRedisDeduper(client redis.Cmdable, ttl time.Duration) *RedisDeduper {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

// Claim returns true when this call is the first to see messageSID.
func (d *RedisDeduper) Claim(ctx context.Context, messageSID string) (bool, error) {
	if d == nil {
		return true, nil
	}
	ok, err := d.client.SetNX(ctx, dedupeKeyPrefix+messageSID, time.Now().UTC().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("messaging: claim %s: %w", messageSID, err)
	}
	return ok, nil
}

// RedisOptions configures NewRedisClient.
type RedisOptions struct {
	Addr     string
	Password string
	TLS      bool
}

// NewRedisClient returns a configured Redis client or nil when disabled.
// A failed ping also returns nil; de-duplication is optional.
func NewRedisClient(ctx context.Context, opts RedisOptions, logger *logging.Logger) *redis.Client {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	redisOptions := &redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
	}
	if opts.TLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis not available, inbound de-duplication disabled", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}
