// Package postgres implements the repositories on PostgreSQL through sqlx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/vaidashi/storefront-api/internal/database"
	"github.com/vaidashi/storefront-api/internal/repository"
	"github.com/vaidashi/storefront-api/pkg/logger"
)

// Store runs units of work in READ COMMITTED transactions. Stock guards are
// conditional UPDATEs, which Postgres re-evaluates against the latest row
// version when writers collide.
type Store struct {
	db     *database.Database
	logger logger.Logger
}

var _ repository.Store = (*Store)(nil)

// NewStore creates a Store over an open database
func NewStore(db *database.Database, logger logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// WithinTx runs fn in a transaction and commits only if fn succeeds
func (s *Store) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	tx, err := s.db.DB.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		s.logger.Error("Failed to begin transaction", "error", err)
		return mapError(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &pgTx{tx: tx, logger: s.logger}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("Failed to roll back transaction", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("Failed to commit transaction", "error", err)
		return mapError(err)
	}

	return nil
}

func (s *Store) Products() repository.ProductRepository {
	return &productRepository{db: s.db.DB, logger: s.logger}
}

func (s *Store) Orders() repository.OrderRepository {
	return &orderRepository{db: s.db.DB, logger: s.logger}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return &outboxRepository{db: s.db.DB, logger: s.logger}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

// mapError translates driver errors into repository sentinels
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %v", repository.ErrConflict, err)
		case "23505": // unique_violation
			return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
		case "23514": // check_violation
			if pqErr.Constraint == "products_stock_check" {
				return fmt.Errorf("%w: %v", repository.ErrInsufficientStock, err)
			}
		}
	}

	return fmt.Errorf("%w: %v", repository.ErrDatabase, err)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
