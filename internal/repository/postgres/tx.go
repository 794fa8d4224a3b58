package postgres

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/vaidashi/storefront-api/internal/models"
	"github.com/vaidashi/storefront-api/internal/repository"
	"github.com/vaidashi/storefront-api/pkg/logger"
)

type pgTx struct {
	tx     *sqlx.Tx
	logger logger.Logger
}

func (t *pgTx) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	var product models.Product
	if err := t.tx.GetContext(ctx, &product, query, id); err != nil {
		return nil, mapError(err)
	}
	return &product, nil
}

// AdjustStock is a single conditional UPDATE; the row lock it takes is held
// until the surrounding transaction ends.
func (t *pgTx) AdjustStock(ctx context.Context, productID string, delta int) (*models.Product, error) {
	query := `
		UPDATE products
		SET stock = stock + $1, updated_at = $2
		WHERE id = $3 AND stock + $1 >= 0
		RETURNING ` + productColumns

	var product models.Product
	err := t.tx.GetContext(ctx, &product, query, delta, models.GetCurrentTime(), productID)
	if err == nil {
		return &product, nil
	}

	err = mapError(err)
	if !errors.Is(err, repository.ErrNotFound) {
		t.logger.Error("Failed to adjust stock", "error", err, "productID", productID, "delta", delta)
		return nil, err
	}

	var exists bool
	if err := t.tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, productID); err != nil {
		return nil, mapError(err)
	}
	if exists {
		return nil, repository.ErrInsufficientStock
	}
	return nil, repository.ErrNotFound
}

func (t *pgTx) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	var order models.Order
	if err := t.tx.GetContext(ctx, &order, query, id); err != nil {
		return nil, mapError(err)
	}
	return &order, nil
}

func (t *pgTx) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES (
			:id, :user_id, :items, :shipping_info, :payment_info, :items_price, :tax_price,
			:shipping_price, :discount, :total_price, :status, :status_history, :notes,
			:tracking_number, :shipping_carrier, :estimated_delivery, :shipped_at,
			:delivered_at, :invoice_number, :coupon_code, :refund_amount, :refund_reason,
			:created_at, :updated_at
		)`

	if _, err := t.tx.NamedExecContext(ctx, query, order); err != nil {
		t.logger.Error("Failed to create order", "error", err, "orderID", order.ID)
		return mapError(err)
	}
	return nil
}

func (t *pgTx) UpdateOrder(ctx context.Context, order *models.Order) error {
	query := `
		UPDATE orders SET
			items = :items,
			shipping_info = :shipping_info,
			payment_info = :payment_info,
			items_price = :items_price,
			tax_price = :tax_price,
			shipping_price = :shipping_price,
			discount = :discount,
			total_price = :total_price,
			status = :status,
			status_history = :status_history,
			notes = :notes,
			tracking_number = :tracking_number,
			shipping_carrier = :shipping_carrier,
			estimated_delivery = :estimated_delivery,
			shipped_at = :shipped_at,
			delivered_at = :delivered_at,
			invoice_number = :invoice_number,
			coupon_code = :coupon_code,
			refund_amount = :refund_amount,
			refund_reason = :refund_reason,
			updated_at = :updated_at
		WHERE id = :id`

	res, err := t.tx.NamedExecContext(ctx, query, order)
	if err != nil {
		t.logger.Error("Failed to update order", "error", err, "orderID", order.ID)
		return mapError(err)
	}
	return expectOneRow(res)
}

func (t *pgTx) DeleteOrder(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		t.logger.Error("Failed to delete order", "error", err, "orderID", id)
		return mapError(err)
	}
	return expectOneRow(res)
}

func (t *pgTx) CreateOutboxMessage(ctx context.Context, message *models.OutboxMessage) error {
	query := `
		INSERT INTO outbox_messages (` + outboxColumns + `)
		VALUES (
			:id, :aggregate_type, :aggregate_id, :event_type, :payload, :created_at,
			:next_attempt_at, :processed_at, :processing_attempts, :last_error, :status
		)`

	if _, err := t.tx.NamedExecContext(ctx, query, message); err != nil {
		t.logger.Error("Failed to create outbox message", "error", err, "eventType", message.EventType)
		return mapError(err)
	}
	return nil
}
