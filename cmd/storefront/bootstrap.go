package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/vaidashi/storefront-api/internal/clients"
	"github.com/vaidashi/storefront-api/internal/config"
	"github.com/vaidashi/storefront-api/internal/database"
	"github.com/vaidashi/storefront-api/internal/metrics"
	"github.com/vaidashi/storefront-api/internal/repository"
	"github.com/vaidashi/storefront-api/internal/repository/memory"
	"github.com/vaidashi/storefront-api/internal/repository/mongodb"
	"github.com/vaidashi/storefront-api/internal/repository/postgres"
	"github.com/vaidashi/storefront-api/internal/service"
	"github.com/vaidashi/storefront-api/pkg/circuitbreaker"
	"github.com/vaidashi/storefront-api/pkg/logger"
)

var _ service.Gateway = (*clients.StripeClient)(nil)

// loadConfig reads the configuration and builds the process logger
func loadConfig(c *cli.Context) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(c.StringSlice("env-file")...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}).
		With("service", "storefront", "env", cfg.Env)
	return cfg, log, nil
}

// openStore connects the backend selected by STORE_DRIVER
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := database.New(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return postgres.NewStore(db, log), nil

	case config.StoreDriverMongo:
		db, err := database.NewMongo(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureIndexes(ctx); err != nil {
			_ = db.Close(context.Background())
			return nil, err
		}
		return mongodb.NewStore(db, log), nil

	case config.StoreDriverMemory:
		log.Warn("Using the in-memory store; data is lost on exit")
		return memory.NewStore(log), nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func closeStore(store repository.Store, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.Close(ctx); err != nil {
		log.Error("Error closing store", "error", err)
	}
}

// newPaymentGateway returns a nil gateway when no Stripe key is configured
func newPaymentGateway(cfg *config.Config, m *metrics.Metrics, log logger.Logger) (service.Gateway, *circuitbreaker.CircuitBreaker) {
	if cfg.Payment.StripeSecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY not set; payment endpoints will report ServiceUnavailable")
		return nil, nil
	}

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:             "stripe",
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 1,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			m.BreakerState(name, int(to))
			log.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return clients.NewStripeClient(clients.StripeConfig{SecretKey: cfg.Payment.StripeSecretKey}, breaker, m, log), breaker
}
