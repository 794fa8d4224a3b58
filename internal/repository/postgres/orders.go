package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/vaidashi/storefront-api/internal/models"
	"github.com/vaidashi/storefront-api/pkg/logger"
)

type orderRepository struct {
	db     *sqlx.DB
	logger logger.Logger
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.GetContext(ctx, &order, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id); err != nil {
		return nil, mapError(err)
	}
	return &order, nil
}

func (r *orderRepository) List(ctx context.Context, filter models.OrderFilter, limit, offset int) ([]*models.Order, error) {
	w := orderWhere(filter)
	query := `SELECT ` + orderColumns + ` FROM orders` + w.String() +
		` ORDER BY created_at DESC, id DESC` + w.page(limit, offset)

	orders := []*models.Order{}
	if err := r.db.SelectContext(ctx, &orders, query, w.args...); err != nil {
		r.logger.Error("Failed to list orders", "error", err)
		return nil, mapError(err)
	}
	return orders, nil
}

func (r *orderRepository) Count(ctx context.Context, filter models.OrderFilter) (int, error) {
	w := orderWhere(filter)

	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM orders`+w.String(), w.args...); err != nil {
		r.logger.Error("Failed to count orders", "error", err)
		return 0, mapError(err)
	}
	return count, nil
}

func (r *orderRepository) SumTotal(ctx context.Context, filter models.OrderFilter) (decimal.Decimal, error) {
	w := orderWhere(filter)

	var total decimal.Decimal
	if err := r.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(total_price), 0) FROM orders`+w.String(), w.args...); err != nil {
		r.logger.Error("Failed to sum order totals", "error", err)
		return decimal.Zero, mapError(err)
	}
	return total, nil
}

func (r *orderRepository) CountByStatus(ctx context.Context) (map[models.OrderStatus]int, error) {
	var rows []struct {
		Status models.OrderStatus `db:"status"`
		Count  int                `db:"count"`
	}

	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM orders GROUP BY status`); err != nil {
		r.logger.Error("Failed to count orders by status", "error", err)
		return nil, mapError(err)
	}

	counts := make(map[models.OrderStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *orderRepository) MonthlyRevenue(ctx context.Context, filter models.OrderFilter) ([]models.MonthlyRevenue, error) {
	w := orderWhere(filter)
	query := `
		SELECT
			EXTRACT(MONTH FROM created_at AT TIME ZONE 'UTC')::int AS month,
			COALESCE(SUM(total_price), 0) AS revenue,
			COUNT(*) AS orders
		FROM orders` + w.String() + `
		GROUP BY 1
		ORDER BY 1`

	months := []models.MonthlyRevenue{}
	if err := r.db.SelectContext(ctx, &months, query, w.args...); err != nil {
		r.logger.Error("Failed to aggregate monthly revenue", "error", err)
		return nil, mapError(err)
	}
	return months, nil
}
