package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"github.com/vaidashi/storefront-api/internal/config"
	"github.com/vaidashi/storefront-api/internal/database"
	"github.com/vaidashi/storefront-api/internal/handlers"
	"github.com/vaidashi/storefront-api/internal/models"
	"github.com/vaidashi/storefront-api/internal/seed"
	"github.com/vaidashi/storefront-api/internal/service"
	"github.com/vaidashi/storefront-api/pkg/auth"
	"github.com/vaidashi/storefront-api/pkg/kafka"
)

func migrateCommand() *cli.Command {
	run := func(direction database.Direction) cli.ActionFunc {
		return func(c *cli.Context) error {
			cfg, log, err := loadConfig(c)
			if err != nil {
				return err
			}
			if cfg.StoreDriver != config.StoreDriverPostgres {
				return fmt.Errorf("migrations only apply to the postgres store, STORE_DRIVER is %q", cfg.StoreDriver)
			}
			return database.Migrate(cfg.GetDBURL(), direction, c.Int("steps"), log)
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "apply or roll back the postgres schema",
		Subcommands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "apply all pending migrations",
				Action: run(database.Up),
			},
			{
				Name:  "down",
				Usage: "roll back migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "steps", Value: 1, Usage: "number of migrations to roll back"},
				},
				Action: run(database.Down),
			},
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "insert the sample catalogue; existing SKUs are skipped",
		Action: func(c *cli.Context) error {
			cfg, log, err := loadConfig(c)
			if err != nil {
				return err
			}

			store, err := openStore(c.Context, cfg, log)
			if err != nil {
				return err
			}
			defer closeStore(store, log)

			result, err := seed.Run(c.Context, service.NewProductService(store, nil, log), log)
			if err != nil {
				return err
			}

			log.Info("Seeding finished", "created", result.Created, "skipped", result.Skipped)
			return nil
		},
	}
}

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "consume order events from Kafka and log them",
		Action: func(c *cli.Context) error {
			cfg, log, err := loadConfig(c)
			if err != nil {
				return err
			}

			consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
				Brokers:       cfg.Kafka.Brokers,
				Topics:        []string{cfg.Kafka.OrdersTopic},
				ConsumerGroup: cfg.Kafka.ConsumerGroup,
				FromOldest:    true,
			}, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := consumer.Close(); err != nil {
					log.Error("Error closing Kafka consumer", "error", err)
				}
			}()

			consumer.RegisterHandler(cfg.Kafka.OrdersTopic, handlers.NewOrderEventsHandler(log))

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return consumer.Run(ctx)
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "issue a bearer token for local testing",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Required: true, Usage: "user ID carried by the token"},
			&cli.StringFlag{Name: "role", Value: models.RoleUser, Usage: "user or admin"},
		},
		Action: func(c *cli.Context) error {
			cfg, _, err := loadConfig(c)
			if err != nil {
				return err
			}

			role := c.String("role")
			if role != models.RoleUser && role != models.RoleAdmin {
				return fmt.Errorf("unknown role %q", role)
			}

			token, err := auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.TokenTTL).Generate(c.String("user"), role)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			return nil
		},
	}
}
