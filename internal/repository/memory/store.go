// Package memory is an in-process Store used for local runs and tests.
// Units of work are serialised behind a single lock and staged on an
// overlay that is only applied to the shared maps on success.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vaidashi/storefront-api/internal/models"
	"github.com/vaidashi/storefront-api/internal/repository"
	"github.com/vaidashi/storefront-api/pkg/logger"
)

type Store struct {
	mu       sync.RWMutex
	products map[string]*models.Product
	orders   map[string]*models.Order
	outbox   map[string]*models.OutboxMessage
	seq      map[string]int64
	nextSeq  int64
	logger   logger.Logger
}

var _ repository.Store = (*Store)(nil)

// NewStore creates an empty Store
func NewStore(logger logger.Logger) *Store {
	return &Store{
		products: make(map[string]*models.Product),
		orders:   make(map[string]*models.Order),
		outbox:   make(map[string]*models.OutboxMessage),
		seq:      make(map[string]int64),
		logger:   logger,
	}
}

// WithinTx runs fn against a staged view of the store. fn must not call
// back into the Store's repositories.
func (s *Store) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		s:        s,
		products: make(map[string]*models.Product),
		orders:   make(map[string]*models.Order),
		deleted:  make(map[string]bool),
	}

	if err := fn(ctx, tx); err != nil {
		s.logger.Debug("Discarding staged changes", "error", err)
		return err
	}

	tx.commit()
	return nil
}

func (s *Store) Products() repository.ProductRepository { return &productRepository{s: s} }
func (s *Store) Orders() repository.OrderRepository { return &orderRepository{s: s} }
func (s *Store) Outbox() repository.OutboxRepository { return &outboxRepository{s: s} }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }
func (s *Store) Close(ctx context.Context) error { return nil }

func (s *Store) sequence(id string) int64 {
	if n, ok := s.seq[id]; ok {
		return n
	}
	s.nextSeq++
	s.seq[id] = s.nextSeq
	return s.nextSeq
}

type memTx struct {
	s        *Store
	products map[string]*models.Product
	orders   map[string]*models.Order
	deleted  map[string]bool
	outbox   []*models.OutboxMessage
}

func (tx *memTx) product(id string) (*models.Product, bool) {
	if p, ok := tx.products[id]; ok {
		return p, true
	}
	p, ok := tx.s.products[id]
	if !ok {
		return nil, false
	}
	staged := p.Clone()
	tx.products[id] = staged
	return staged, true
}

func (tx *memTx) order(id string) (*models.Order, bool) {
	if tx.deleted[id] {
		return nil, false
	}
	if o, ok := tx.orders[id]; ok {
		return o, true
	}
	o, ok := tx.s.orders[id]
	return o, ok
}

func (tx *memTx) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p, ok := tx.product(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p.Clone(), nil
}

func (tx *memTx) AdjustStock(ctx context.Context, productID string, delta int) (*models.Product, error) {
	p, ok := tx.product(productID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	if p.Stock+delta < 0 {
		return nil, repository.ErrInsufficientStock
	}

	p.Stock += delta
	p.UpdatedAt = models.GetCurrentTime()
	return p.Clone(), nil
}

func (tx *memTx) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	o, ok := tx.order(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return o.Clone(), nil
}

func (tx *memTx) CreateOrder(ctx context.Context, order *models.Order) error {
	if _, exists := tx.order(order.ID); exists {
		return repository.ErrDuplicate
	}
	delete(tx.deleted, order.ID)
	tx.orders[order.ID] = order.Clone()
	return nil
}

func (tx *memTx) UpdateOrder(ctx context.Context, order *models.Order) error {
	if _, exists := tx.order(order.ID); !exists {
		return repository.ErrNotFound
	}
	tx.orders[order.ID] = order.Clone()
	return nil
}

func (tx *memTx) DeleteOrder(ctx context.Context, id string) error {
	if _, exists := tx.order(id); !exists {
		return repository.ErrNotFound
	}
	delete(tx.orders, id)
	tx.deleted[id] = true
	return nil
}

func (tx *memTx) CreateOutboxMessage(ctx context.Context, message *models.OutboxMessage) error {
	tx.outbox = append(tx.outbox, message.Clone())
	return nil
}

func (tx *memTx) commit() {
	s := tx.s
	for id, p := range tx.products {
		s.products[id] = p
	}
	for id := range tx.deleted {
		delete(s.orders, id)
	}

	// deterministic sequence numbers for orders created in this unit of work
	ids := make([]string, 0, len(tx.orders))
	for id := range tx.orders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		s.orders[id] = tx.orders[id]
		s.sequence(id)
	}

	for _, m := range tx.outbox {
		s.outbox[m.ID] = m
		s.sequence(m.ID)
	}
}
