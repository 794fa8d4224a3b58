package database

import (
	"context"
	"fmt"
	"time"

	"github.com/vaidashi/storefront-api/internal/config"
	"github.com/vaidashi/storefront-api/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names used by the document store
const (
	ProductsCollection = "products"
	OrdersCollection   = "orders"
	OutboxCollection   = "outbox_messages"
)

// MongoDB wraps a connected client and the storefront database handle
type MongoDB struct {
	Client *mongo.Client
	DB     *mongo.Database
	logger logger.Logger
}

// NewMongo connects to MongoDB with the decimal-aware registry and verifies
// the connection. Multi-document transactions require a replica set.
func NewMongo(ctx context.Context, cfg *config.Config, logger logger.Logger) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.Mongo.URI).
		SetRegistry(NewBSONRegistry())

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	logger.Info("Connected to MongoDB", "database", cfg.Mongo.Database)

	return &MongoDB{
		Client: client,
		DB:     client.Database(cfg.Mongo.Database),
		logger: logger,
	}, nil
}

// EnsureIndexes creates the indexes the repositories rely on
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		ProductsCollection: {
			{Keys: bson.D{{Key: "sku", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "category", Value: 1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		OrdersCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		OutboxCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "nextAttemptAt", Value: 1}}},
		},
	}

	for collection, models := range indexes {
		if _, err := m.DB.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}

	m.logger.Info("MongoDB indexes ensured")
	return nil
}

// Ping checks the connection
func (m *MongoDB) Ping(ctx context.Context) error {
	return m.Client.Ping(ctx, nil)
}

// Close disconnects the client
func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
