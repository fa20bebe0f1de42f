package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/wolfman30/askstuart/internal/config"
	"github.com/wolfman30/askstuart/internal/exchange"
	"github.com/wolfman30/askstuart/pkg/logging"
)

// BuildStore opens the configured exchange store. The returned func releases
// its connections.
func BuildStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (exchange.Store, func(), error) {
	if cfg == nil {
		return nil, nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.StoreBackend {
	case appconfig.StoreMemory:
		logger.Warn("using in-memory exchange store; records are lost on restart")
		return exchange.NewMemoryStore(), func() {}, nil

	case appconfig.StorePostgres:
		pool, err := connectPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("exchange store ready", "backend", appconfig.StorePostgres)
		return exchange.NewPostgresStore(pool), pool.Close, nil

	case appconfig.StoreFirestore, "":
		client, err := exchange.NewFirestoreClient(ctx, exchange.ServiceAccount{
			ProjectID:    cfg.FirebaseProjectID,
			PrivateKeyID: cfg.FirebasePrivateKeyID,
			PrivateKey:   cfg.FirebasePrivateKey,
			ClientEmail:  cfg.FirebaseClientEmail,
			ClientID:     cfg.FirebaseClientID,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("exchange store ready",
			"backend", appconfig.StoreFirestore,
			"project_id", cfg.FirebaseProjectID,
			"collection", cfg.FirestoreCollection,
		)
		return exchange.NewFirestoreStore(client, cfg.FirestoreCollection), func() { _ = client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown store backend %q", cfg.StoreBackend)
	}
}

func connectPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("bootstrap: DATABASE_URL is required for the postgres store")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open postgres pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	return pool, nil
}
