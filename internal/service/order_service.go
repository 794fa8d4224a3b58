package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vaidashi/storefront-api/internal/metrics"
	"github.com/vaidashi/storefront-api/internal/models"
	"github.com/vaidashi/storefront-api/internal/repository"
	apperrors "github.com/vaidashi/storefront-api/pkg/errors"
	"github.com/vaidashi/storefront-api/pkg/logger"
)

// OrderService runs the order lifecycle. Every operation that touches stock
// commits the stock changes, the order and its outbox event as one unit of work.
type OrderService struct {
	store   repository.Store
	metrics *metrics.Metrics
	logger  logger.Logger
	now     func() time.Time
}

// NewOrderService creates a new OrderService
func NewOrderService(store repository.Store, m *metrics.Metrics, logger logger.Logger) *OrderService {
	return &OrderService{
		store:   store,
		metrics: m,
		logger:  logger,
		now:     models.GetCurrentTime,
	}
}

// CreateOrder validates the request, reserves stock for every item and
// persists the order. Either all decrements commit with the order or none do.
func (s *OrderService) CreateOrder(ctx context.Context, ownerID string, in CreateOrderInput) (*models.Order, error) {
	if ownerID == "" {
		return nil, apperrors.NewUnauthorizedError("missing caller identity")
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var order *models.Order

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		items := make([]models.OrderItem, 0, len(in.Items))
		deltas := make([]models.StockDelta, 0, len(in.Items))
		requested := make(map[string]int, len(in.Items))

		for _, item := range in.Items {
			product, err := tx.GetProduct(ctx, item.ProductID)
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewNotFoundError(fmt.Sprintf("product %s not found", item.ProductID))
			}
			if err != nil {
				return fmt.Errorf("load product %s: %w", item.ProductID, err)
			}

			requested[product.ID] += item.Quantity
			if product.Stock < requested[product.ID] {
				return insufficientStock(product, requested[product.ID])
			}

			items = append(items, models.OrderItem{
				ProductID: product.ID,
				Name:      product.Name,
				Price:     product.EffectivePrice(),
				Quantity:  item.Quantity,
				Image:     product.PrimaryImage(),
				Variant:   item.Variant,
			})
			deltas = append(deltas, models.StockDelta{ProductID: product.ID, Delta: -item.Quantity})
		}

		candidate := models.NewOrder(ownerID, items, in.ShippingInfo, in.PaymentInfo, s.now())
		candidate.TaxPrice = in.TaxPrice
		candidate.ShippingPrice = in.ShippingPrice
		candidate.Discount = in.Discount
		candidate.CouponCode = strings.ToUpper(strings.TrimSpace(in.CouponCode))
		candidate.Notes = in.Notes
		candidate.RecalculateTotals()

		if candidate.TotalPrice.IsNegative() {
			return apperrors.NewValidationError("discount exceeds the order amount")
		}

		for _, d := range models.MergeStockDeltas(deltas) {
			if _, err := tx.AdjustStock(ctx, d.ProductID, d.Delta); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					return apperrors.NewInsufficientStockError(
						fmt.Sprintf("insufficient stock for product %s", d.ProductID)).
						WithContext("productId", d.ProductID)
				}
				return fmt.Errorf("reserve stock for %s: %w", d.ProductID, err)
			}
		}

		if err := tx.CreateOrder(ctx, candidate); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		msg, err := models.NewOrderCreatedEvent(candidate)
		if err != nil {
			return apperrors.NewInternalErrorWithCause("failed to create outbox message", err)
		}
		if err := tx.CreateOutboxMessage(ctx, msg); err != nil {
			return fmt.Errorf("insert outbox message: %w", err)
		}

		order = candidate
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrInsufficientStock) {
			s.metrics.StockRejected("insufficient_stock")
		}
		s.logger.Warn("Order rejected", "userID", ownerID, "error", err)
		return nil, s.stockError(err, "order")
	}

	s.metrics.OrderPlaced()
	s.metrics.StockAdjusted("order")
	s.logger.Info("Order created",
		"orderID", order.ID,
		"userID", ownerID,
		"items", len(order.Items),
		"totalPrice", order.TotalPrice.String())

	return order, nil
}

// UpdateOrderStatus moves an order along the status state machine.
// Moving to Cancelled returns the reserved stock in the same unit of work.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID string, in UpdateStatusInput, actorID string) (*models.Order, error) {
	next, err := in.Validate()
	if err != nil {
		return nil, err
	}

	var (
		order     *models.Order
		oldStatus models.OrderStatus
		changed   bool
	)

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		changed = false

		current, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load order %s: %w", orderID, err)
		}

		if current.Status.IsTerminal() {
			return apperrors.NewAlreadyTerminalError(
				fmt.Sprintf("order is already %s and cannot change status", current.Status))
		}
		if current.Status == next {
			order = current
			return nil
		}
		if !current.Status.CanTransitionTo(next) {
			return apperrors.NewInvalidStateError(
				fmt.Sprintf("cannot change order status from %s to %s", current.Status, next)).
				WithContext("allowed", current.Status.NextStatuses())
		}

		if next == models.OrderStatusRefunded && in.RefundAmount.GreaterThan(current.TotalPrice) {
			return apperrors.NewValidationError(
				fmt.Sprintf("refundAmount cannot exceed the order total of %s", current.TotalPrice.StringFixed(2)))
		}

		restocked := false
		if next == models.OrderStatusCancelled {
			if err := s.restock(ctx, tx, current); err != nil {
				return err
			}
			restocked = true
		}

		oldStatus = current.Status
		current.ApplyStatus(next, models.StatusUpdate{
			TrackingNumber:    in.TrackingNumber,
			ShippingCarrier:   in.ShippingCarrier,
			EstimatedDelivery: in.EstimatedDelivery,
			RefundAmount:      in.RefundAmount,
			RefundReason:      in.RefundReason,
			Note:              in.Note,
			UpdatedBy:         actorID,
		}, s.now())

		if err := tx.UpdateOrder(ctx, current); err != nil {
			return fmt.Errorf("update order %s: %w", orderID, err)
		}

		msg, err := models.NewOrderStatusChangedEvent(current, oldStatus, actorID, restocked)
		if err != nil {
			return apperrors.NewInternalErrorWithCause("failed to create outbox message", err)
		}
		if err := tx.CreateOutboxMessage(ctx, msg); err != nil {
			return fmt.Errorf("insert outbox message: %w", err)
		}

		order = current
		changed = true
		return nil
	})
	if err != nil {
		s.logger.Warn("Order status update rejected", "orderID", orderID, "status", next, "error", err)
		return nil, s.stockError(err, "order")
	}

	if changed {
		s.metrics.OrderTransition(string(oldStatus), string(next))
		if next == models.OrderStatusCancelled {
			s.metrics.StockAdjusted("restock")
		}
		s.logger.Info("Order status updated",
			"orderID", orderID,
			"oldStatus", oldStatus,
			"newStatus", next,
			"updatedBy", actorID)
	}

	return order, nil
}

// CancelOrder lets the owner cancel an order that has not shipped yet and
// returns its items to stock.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, requesterID, reason string) (*models.Order, error) {
	var (
		order     *models.Order
		oldStatus models.OrderStatus
	)

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		current, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load order %s: %w", orderID, err)
		}

		if !current.IsOwnedBy(requesterID) {
			return apperrors.NewForbiddenError("not authorized to cancel this order")
		}
		if !current.Status.CanTransitionTo(models.OrderStatusCancelled) {
			return apperrors.NewInvalidStateError(
				fmt.Sprintf("cannot cancel an order that is %s", current.Status))
		}

		if err := s.restock(ctx, tx, current); err != nil {
			return err
		}

		note := reason
		if note == "" {
			note = "Cancelled by customer"
		}

		oldStatus = current.Status
		current.ApplyStatus(models.OrderStatusCancelled, models.StatusUpdate{
			Note:      note,
			UpdatedBy: requesterID,
		}, s.now())

		if err := tx.UpdateOrder(ctx, current); err != nil {
			return fmt.Errorf("update order %s: %w", orderID, err)
		}

		msg, err := models.NewOrderCancelledEvent(current, oldStatus)
		if err != nil {
			return apperrors.NewInternalErrorWithCause("failed to create outbox message", err)
		}
		if err := tx.CreateOutboxMessage(ctx, msg); err != nil {
			return fmt.Errorf("insert outbox message: %w", err)
		}

		order = current
		return nil
	})
	if err != nil {
		s.logger.Warn("Order cancellation rejected", "orderID", orderID, "requesterID", requesterID, "error", err)
		return nil, s.stockError(err, "order")
	}

	s.metrics.OrderTransition(string(oldStatus), string(models.OrderStatusCancelled))
	s.metrics.StockAdjusted("restock")
	s.logger.Info("Order cancelled", "orderID", orderID, "oldStatus", oldStatus, "userID", requesterID)

	return order, nil
}

// DeleteOrder removes an order. Stock is returned only while the order is
// still Processing; later statuses are assumed to have consumed it.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID, actorID string) error {
	var restocked bool

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load order %s: %w", orderID, err)
		}

		restocked = order.Status == models.OrderStatusProcessing
		if restocked {
			if err := s.restock(ctx, tx, order); err != nil {
				return err
			}
		}

		if err := tx.DeleteOrder(ctx, orderID); err != nil {
			return fmt.Errorf("delete order %s: %w", orderID, err)
		}

		msg, err := models.NewOrderDeletedEvent(order, actorID, restocked)
		if err != nil {
			return apperrors.NewInternalErrorWithCause("failed to create outbox message", err)
		}
		if err := tx.CreateOutboxMessage(ctx, msg); err != nil {
			return fmt.Errorf("insert outbox message: %w", err)
		}

		return nil
	})
	if err != nil {
		s.logger.Warn("Order deletion failed", "orderID", orderID, "error", err)
		return s.stockError(err, "order")
	}

	if restocked {
		s.metrics.StockAdjusted("restock")
	}
	s.logger.Info("Order deleted", "orderID", orderID, "deletedBy", actorID, "restocked", restocked)

	return nil
}

// restock returns every item of order to stock. Products deleted since the
// order was placed are skipped.
func (s *OrderService) restock(ctx context.Context, tx repository.Tx, order *models.Order) error {
	for _, d := range order.RestockDeltas() {
		_, err := tx.AdjustStock(ctx, d.ProductID, d.Delta)
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("Skipping restock of missing product", "orderID", order.ID, "productID", d.ProductID)
			continue
		}
		if err != nil {
			return fmt.Errorf("restock product %s: %w", d.ProductID, err)
		}
	}
	return nil
}

// stockError maps a failed unit of work, counting lost stock races
func (s *OrderService) stockError(err error, entity string) error {
	mapped := storeError(err, entity)
	if errors.Is(mapped, apperrors.ErrStockConflict) {
		s.metrics.StockRejected("conflict")
	}
	return mapped
}

func insufficientStock(product *models.Product, requested int) error {
	return apperrors.NewInsufficientStockError(
		fmt.Sprintf("insufficient stock for %s: available %d, requested %d", product.Name, product.Stock, requested)).
		WithContext("productId", product.ID).
		WithContext("available", product.Stock).
		WithContext("requested", requested)
}
