package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Shopify/sarama"
	"github.com/vaidashi/storefront-api/internal/models"
	"github.com/vaidashi/storefront-api/pkg/logger"
)

// OrderEventsHandler logs the lifecycle events relayed from the outbox
type OrderEventsHandler struct {
	logger logger.Logger

	mu   sync.Mutex
	seen map[string]int
}

// NewOrderEventsHandler creates a new OrderEventsHandler
func NewOrderEventsHandler(logger logger.Logger) *OrderEventsHandler {
	return &OrderEventsHandler{
		logger: logger,
		seen:   make(map[string]int),
	}
}

// Seen returns how many events of eventType were handled
func (h *OrderEventsHandler) Seen(eventType string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seen[eventType]
}

// HandleMessage decodes one event. Malformed messages are reported and
// skipped so they do not block the partition.
func (h *OrderEventsHandler) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var event models.OutboxMessageEvent

	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error("Skipping undecodable event", "error", err, "offset", msg.Offset)
		return nil
	}

	h.mu.Lock()
	h.seen[event.EventType]++
	h.mu.Unlock()

	log := h.logger.With(
		"eventType", event.EventType,
		"eventID", event.EventID,
		"aggregateID", event.AggregateID,
		"occurredAt", event.OccurredAt)

	if err := h.handle(log, event); err != nil {
		log.Error("Skipping malformed event", "error", err)
	}

	return nil
}

func (h *OrderEventsHandler) handle(log logger.Logger, event models.OutboxMessageEvent) error {
	switch event.EventType {
	case models.EventOrderCreated:
		var order models.Order
		if err := json.Unmarshal(event.Data, &order); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		log.Info("Order placed",
			"userID", order.UserID,
			"items", len(order.Items),
			"totalPrice", order.TotalPrice.String())

	case models.EventOrderStatusChanged, models.EventOrderCancelled:
		var data models.StatusChangedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		log.Info("Order status changed",
			"oldStatus", data.OldStatus,
			"newStatus", data.NewStatus,
			"updatedBy", data.UpdatedBy,
			"restocked", data.Restocked)

	case models.EventOrderDeleted:
		var data models.OrderDeletedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		log.Info("Order deleted", "status", data.Status, "deletedBy", data.DeletedBy, "restocked", data.Restocked)

	case models.EventStockAdjusted:
		var data models.StockAdjustedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		log.Info("Stock adjusted", "delta", data.Delta, "stock", data.Stock, "reason", data.Reason)

	default:
		log.Warn("Unknown event type")
	}

	return nil
}
