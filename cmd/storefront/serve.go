package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"github.com/vaidashi/storefront-api/internal/api"
	"github.com/vaidashi/storefront-api/internal/config"
	"github.com/vaidashi/storefront-api/internal/database"
	"github.com/vaidashi/storefront-api/internal/metrics"
	"github.com/vaidashi/storefront-api/internal/outbox"
	"github.com/vaidashi/storefront-api/internal/service"
	"github.com/vaidashi/storefront-api/pkg/auth"
	"github.com/vaidashi/storefront-api/pkg/circuitbreaker"
	"github.com/vaidashi/storefront-api/pkg/kafka"
	"github.com/vaidashi/storefront-api/pkg/logger"
	"golang.org/x/sync/errgroup"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API and the outbox relay",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "migrate",
				Usage: "apply pending migrations before serving (postgres only)",
				Value: true,
			},
		},
		Action: serve,
	}
}

func serve(c *cli.Context) error {
	cfg, log, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.StoreDriver == config.StoreDriverPostgres && c.Bool("migrate") {
		if err := database.Migrate(cfg.GetDBURL(), database.Up, 0, log); err != nil {
			return err
		}
	}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore(store, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	gateway, breaker := newPaymentGateway(cfg, m, log)
	var breakers []*circuitbreaker.CircuitBreaker
	if breaker != nil {
		breakers = append(breakers, breaker)
	}

	processor := outbox.NewProcessor(store.Outbox(), outbox.ProcessorConfig{
		PollingInterval: cfg.Outbox.PollInterval,
		BatchSize:       cfg.Outbox.BatchSize,
		MaxRetries:      cfg.Outbox.MaxRetries,
		ClaimTimeout:    cfg.Outbox.ClaimTimeout,
	}, m, log.With("component", "outbox"))

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := producer.Close(); err != nil {
				log.Error("Error closing Kafka producer", "error", err)
			}
		}()
		processor.RegisterAll(outbox.NewKafkaHandler(producer, cfg.Kafka.OrdersTopic, log))
	} else {
		processor.RegisterAll(outbox.NewLoggingHandler(log))
	}

	server := api.NewServer(cfg, api.Dependencies{
		Store:       store,
		Orders:      service.NewOrderService(store, m, log),
		Queries:     service.NewQueryService(store.Orders(), log),
		Products:    service.NewProductService(store, m, log),
		Payments:    service.NewPaymentService(gateway, cfg.Payment.Currency, log),
		DeadLetters: outbox.NewDeadLetters(store.Outbox(), log),
		Tokens:      auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.TokenTTL),
		Metrics:     m,
		Gatherer:    reg,
		Breakers:    breakers,
	}, log)

	return runAll(ctx, log, server, processor)
}

func runAll(ctx context.Context, log logger.Logger, server *api.Server, processor *outbox.Processor) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)
	g.Go(func() error { return processor.Run(gctx) })
	g.Go(func() error { return server.OrderLimiter().Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", "error", err)
		return err
	}
	log.Info("Server exiting")
	return nil
}
