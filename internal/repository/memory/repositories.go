package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vaidashi/storefront-api/internal/models"
	"github.com/vaidashi/storefront-api/internal/repository"
)

type productRepository struct {
	s *Store
}

func (r *productRepository) Create(ctx context.Context, product *models.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.products[product.ID]; exists {
		return repository.ErrDuplicate
	}
	for _, p := range r.s.products {
		if product.SKU != "" && p.SKU == product.SKU {
			return repository.ErrDuplicate
		}
	}

	r.s.products[product.ID] = product.Clone()
	r.s.sequence(product.ID)
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *productRepository) GetBySKU(ctx context.Context, sku string) (*models.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.products {
		if p.SKU == sku {
			return p.Clone(), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *productRepository) matching(filter models.ProductFilter) []*models.Product {
	var out []*models.Product
	for _, p := range r.s.products {
		if filter.Matches(p) {
			out = append(out, p)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if filter.Less(out[i], out[j]) {
			return true
		}
		if filter.Less(out[j], out[i]) {
			return false
		}
		return r.s.seq[out[i].ID] > r.s.seq[out[j].ID]
	})
	return out
}

func (r *productRepository) List(ctx context.Context, filter models.ProductFilter, limit, offset int) ([]*models.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := r.matching(filter)
	page := make([]*models.Product, 0, limit)
	for _, p := range window(len(all), limit, offset, all) {
		page = append(page, p.Clone())
	}
	return page, nil
}

func (r *productRepository) Count(ctx context.Context, filter models.ProductFilter) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return len(r.matching(filter)), nil
}

func (r *productRepository) Update(ctx context.Context, product *models.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.products[product.ID]
	if !ok {
		return repository.ErrNotFound
	}

	updated := product.Clone()
	updated.Stock = current.Stock
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = models.GetCurrentTime()
	r.s.products[product.ID] = updated
	return nil
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.products[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.products, id)
	return nil
}

type orderRepository struct {
	s *Store
}

func (r *orderRepository) matching(filter models.OrderFilter) []*models.Order {
	var out []*models.Order
	for _, o := range r.s.orders {
		if filter.Matches(o) {
			out = append(out, o)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return r.s.seq[out[i].ID] > r.s.seq[out[j].ID]
	})
	return out
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *orderRepository) List(ctx context.Context, filter models.OrderFilter, limit, offset int) ([]*models.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := r.matching(filter)
	page := make([]*models.Order, 0, limit)
	for _, o := range window(len(all), limit, offset, all) {
		page = append(page, o.Clone())
	}
	return page, nil
}

func (r *orderRepository) Count(ctx context.Context, filter models.OrderFilter) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return len(r.matching(filter)), nil
}

func (r *orderRepository) SumTotal(ctx context.Context, filter models.OrderFilter) (decimal.Decimal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	total := decimal.Zero
	for _, o := range r.matching(filter) {
		total = total.Add(o.TotalPrice)
	}
	return total, nil
}

func (r *orderRepository) CountByStatus(ctx context.Context) (map[models.OrderStatus]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[models.OrderStatus]int)
	for _, o := range r.s.orders {
		counts[o.Status]++
	}
	return counts, nil
}

func (r *orderRepository) MonthlyRevenue(ctx context.Context, filter models.OrderFilter) ([]models.MonthlyRevenue, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	buckets := make(map[time.Month]*models.MonthlyRevenue)
	for _, o := range r.matching(filter) {
		m := o.CreatedAt.UTC().Month()
		b, ok := buckets[m]
		if !ok {
			b = &models.MonthlyRevenue{Month: int(m)}
			buckets[m] = b
		}
		b.Revenue = b.Revenue.Add(o.TotalPrice)
		b.Orders++
	}

	out := make([]models.MonthlyRevenue, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

type outboxRepository struct {
	s *Store
}

func (r *outboxRepository) byCreation(status models.OutboxStatus) []*models.OutboxMessage {
	var out []*models.OutboxMessage
	for _, m := range r.s.outbox {
		if m.Status == status {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.s.seq[out[i].ID] < r.s.seq[out[j].ID] })
	return out
}

func (r *outboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*models.OutboxMessage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	now := models.GetCurrentTime()
	var out []*models.OutboxMessage
	for _, m := range r.byCreation(models.OutboxStatusPending) {
		if m.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, m.Clone())
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *outboxRepository) ListByStatus(ctx context.Context, status models.OutboxStatus, limit, offset int) ([]*models.OutboxMessage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := r.byCreation(status)
	out := make([]*models.OutboxMessage, 0, limit)
	for _, m := range window(len(all), limit, offset, all) {
		out = append(out, m.Clone())
	}
	return out, nil
}

func (r *outboxRepository) GetMessage(ctx context.Context, id string) (*models.OutboxMessage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.outbox[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m.Clone(), nil
}

func (r *outboxRepository) update(id string, fn func(m *models.OutboxMessage)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.outbox[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(m)
	return nil
}

func (r *outboxRepository) MarkAsProcessing(ctx context.Context, id string) error {
	return r.update(id, func(m *models.OutboxMessage) {
		m.Status = models.OutboxStatusProcessing
		m.ProcessingAttempts++
		m.NextAttemptAt = models.GetCurrentTime()
	})
}

func (r *outboxRepository) ReclaimStale(ctx context.Context, olderThan time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	reclaimed := 0
	for _, m := range r.s.outbox {
		if m.Status != models.OutboxStatusProcessing || m.NextAttemptAt.After(olderThan) {
			continue
		}
		errorMessage := models.StaleProcessingError
		m.Status = models.OutboxStatusPending
		m.LastError = &errorMessage
		reclaimed++
	}
	return reclaimed, nil
}

func (r *outboxRepository) MarkAsCompleted(ctx context.Context, id string) error {
	return r.update(id, func(m *models.OutboxMessage) {
		now := models.GetCurrentTime()
		m.Status = models.OutboxStatusCompleted
		m.ProcessedAt = &now
	})
}

func (r *outboxRepository) MarkAsFailed(ctx context.Context, id string, errorMessage string) error {
	return r.update(id, func(m *models.OutboxMessage) {
		m.Status = models.OutboxStatusFailed
		m.LastError = &errorMessage
	})
}

func (r *outboxRepository) Reschedule(ctx context.Context, id string, errorMessage string, nextAttempt time.Time) error {
	return r.update(id, func(m *models.OutboxMessage) {
		m.Status = models.OutboxStatusPending
		m.LastError = &errorMessage
		m.NextAttemptAt = nextAttempt
	})
}

func (r *outboxRepository) Requeue(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.outbox[id]
	if !ok || m.Status != models.OutboxStatusFailed {
		return repository.ErrNotFound
	}
	m.Status = models.OutboxStatusPending
	m.ProcessingAttempts = 0
	m.NextAttemptAt = models.GetCurrentTime()
	return nil
}

func window[T any](n, limit, offset int, items []T) []T {
	if offset >= n {
		return nil
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	return items[offset:end]
}
