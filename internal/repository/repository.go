package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vaidashi/storefront-api/internal/models"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDatabase          = errors.New("database error")
	ErrDuplicate         = errors.New("duplicate record")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("concurrent update conflict")
)

// TxFunc is a unit of work. It may be invoked more than once when the
// backend retries transient transaction errors, so it must rebuild any state
// it derives from tx on every call.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is a persistence backend able to run all-or-nothing units of work
type Store interface {
	WithinTx(ctx context.Context, fn TxFunc) error
	Products() ProductRepository
	Orders() OrderRepository
	Outbox() OutboxRepository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Tx exposes the operations that must commit or roll back together
type Tx interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	// AdjustStock applies delta only if the resulting stock stays >= 0 and
	// returns the updated product. Underflow yields ErrInsufficientStock.
	AdjustStock(ctx context.Context, productID string, delta int) (*models.Product, error)
	// GetOrder loads an order and locks it for the rest of the unit of work
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	UpdateOrder(ctx context.Context, order *models.Order) error
	DeleteOrder(ctx context.Context, id string) error
	CreateOutboxMessage(ctx context.Context, message *models.OutboxMessage) error
}

// ProductRepository handles catalogue reads and non-stock writes
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id string) (*models.Product, error)
	GetBySKU(ctx context.Context, sku string) (*models.Product, error)
	List(ctx context.Context, filter models.ProductFilter, limit, offset int) ([]*models.Product, error)
	Count(ctx context.Context, filter models.ProductFilter) (int, error)
	// Update persists every field except Stock
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
}

// OrderRepository handles order reads and aggregates
type OrderRepository interface {
	GetByID(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, filter models.OrderFilter, limit, offset int) ([]*models.Order, error)
	Count(ctx context.Context, filter models.OrderFilter) (int, error)
	SumTotal(ctx context.Context, filter models.OrderFilter) (decimal.Decimal, error)
	CountByStatus(ctx context.Context) (map[models.OrderStatus]int, error)
	MonthlyRevenue(ctx context.Context, filter models.OrderFilter) ([]models.MonthlyRevenue, error)
}

// OutboxRepository handles the relay side of the transactional outbox
type OutboxRepository interface {
	GetPendingMessages(ctx context.Context, limit int) ([]*models.OutboxMessage, error)
	ListByStatus(ctx context.Context, status models.OutboxStatus, limit, offset int) ([]*models.OutboxMessage, error)
	GetMessage(ctx context.Context, id string) (*models.OutboxMessage, error)
	// MarkAsProcessing claims a message and stamps next_attempt_at with the
	// claim time
	MarkAsProcessing(ctx context.Context, id string) error
	// ReclaimStale returns processing messages claimed at or before olderThan
	// to pending and reports how many were reclaimed
	ReclaimStale(ctx context.Context, olderThan time.Time) (int, error)
	MarkAsCompleted(ctx context.Context, id string) error
	MarkAsFailed(ctx context.Context, id string, errorMessage string) error
	// Reschedule returns a message to pending with the error recorded
	Reschedule(ctx context.Context, id string, errorMessage string, nextAttempt time.Time) error
	// Requeue resets a failed message so the relay picks it up again
	Requeue(ctx context.Context, id string) error
}
