// Package mongodb implements the repositories on MongoDB. Units of work run
// in multi-document transactions, so the deployment must be a replica set.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/vaidashi/storefront-api/internal/database"
	"github.com/vaidashi/storefront-api/internal/repository"
	"github.com/vaidashi/storefront-api/pkg/logger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const transientTransactionLabel = "TransientTransactionError"

type Store struct {
	mongo  *database.MongoDB
	logger logger.Logger
}

var _ repository.Store = (*Store)(nil)

// NewStore creates a Store over a connected client
func NewStore(db *database.MongoDB, logger logger.Logger) *Store {
	return &Store{
		mongo:  db,
		logger: logger,
	}
}

// WithinTx runs fn inside session.WithTransaction. The driver re-invokes fn
// while the error carries the TransientTransactionError label, e.g. after a
// write conflict on a product or order document.
func (s *Store) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	session, err := s.mongo.Client.StartSession()
	if err != nil {
		s.logger.Error("Failed to start session", "error", err)
		return mapError(err)
	}
	defer session.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	var fnErr error
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		fnErr = fn(sc, &mongoTx{db: s.mongo.DB, logger: s.logger})
		return nil, fnErr
	}, txOpts)

	if err == nil {
		return nil
	}
	if fnErr != nil {
		return fnErr
	}

	s.logger.Error("Failed to commit transaction", "error", err)
	return mapError(err)
}

func (s *Store) Products() repository.ProductRepository {
	return &productRepository{coll: s.mongo.DB.Collection(database.ProductsCollection), logger: s.logger}
}

func (s *Store) Orders() repository.OrderRepository {
	return &orderRepository{coll: s.mongo.DB.Collection(database.OrdersCollection), logger: s.logger}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return &outboxRepository{coll: s.mongo.DB.Collection(database.OutboxCollection), logger: s.logger}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.mongo.Ping(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.mongo.Close(ctx)
}

// mapError translates driver errors into repository sentinels. The driver
// error stays in the chain so transaction labels survive wrapping.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %w", repository.ErrDuplicate, err)
	}

	var labeled mongo.LabeledError
	if errors.As(err, &labeled) && labeled.HasErrorLabel(transientTransactionLabel) {
		return fmt.Errorf("%w: %w", repository.ErrConflict, err)
	}

	return fmt.Errorf("%w: %w", repository.ErrDatabase, err)
}
