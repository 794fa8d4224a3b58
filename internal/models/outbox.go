package models

import (
	"encoding/json"
	"time"
)

// OutboxStatus represents the status of an outbox message
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusCompleted  OutboxStatus = "completed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// Event types written to the outbox
const (
	EventOrderCreated       = "order_created"
	EventOrderStatusChanged = "order_status_changed"
	EventOrderCancelled     = "order_cancelled"
	EventOrderDeleted       = "order_deleted"
	EventStockAdjusted      = "stock_adjusted"
)

// EventTypes lists every event type the relay must route
func EventTypes() []string {
	return []string{
		EventOrderCreated,
		EventOrderStatusChanged,
		EventOrderCancelled,
		EventOrderDeleted,
		EventStockAdjusted,
	}
}

// StaleProcessingError is recorded on messages whose processing claim expired
const StaleProcessingError = "processing claim expired before delivery finished"

// OutboxMessage is an event persisted in the same transaction as the state change it describes
type OutboxMessage struct {
	ID                 string       `db:"id" bson:"_id" json:"id"`
	AggregateType      string       `db:"aggregate_type" bson:"aggregateType" json:"aggregate_type"`
	AggregateID        string       `db:"aggregate_id" bson:"aggregateId" json:"aggregate_id"`
	EventType          string       `db:"event_type" bson:"eventType" json:"event_type"`
	Payload            []byte       `db:"payload" bson:"payload" json:"payload"`
	CreatedAt          time.Time    `db:"created_at" bson:"createdAt" json:"created_at"`
	NextAttemptAt      time.Time    `db:"next_attempt_at" bson:"nextAttemptAt" json:"next_attempt_at"`
	ProcessedAt        *time.Time   `db:"processed_at" bson:"processedAt,omitempty" json:"processed_at,omitempty"`
	ProcessingAttempts int          `db:"processing_attempts" bson:"processingAttempts" json:"processing_attempts"`
	LastError          *string      `db:"last_error" bson:"lastError,omitempty" json:"last_error,omitempty"`
	Status             OutboxStatus `db:"status" bson:"status" json:"status"`
}

// OutboxMessageEvent represents the event data in the outbox message
type OutboxMessageEvent struct {
	EventType   string          `json:"event_type"`
	EventID     string          `json:"event_id"`
	AggregateID string          `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Data        json.RawMessage `json:"data"`
}

// StatusChangedData is the payload of order_status_changed and order_cancelled
type StatusChangedData struct {
	OrderID   string      `json:"order_id"`
	UserID    string      `json:"user_id"`
	OldStatus OrderStatus `json:"old_status"`
	NewStatus OrderStatus `json:"new_status"`
	UpdatedBy string      `json:"updated_by"`
	Restocked bool        `json:"restocked"`
}

// OrderDeletedData is the payload of order_deleted
type OrderDeletedData struct {
	OrderID   string      `json:"order_id"`
	Status    OrderStatus `json:"status"`
	DeletedBy string      `json:"deleted_by"`
	Restocked bool        `json:"restocked"`
}

// StockAdjustedData is the payload of stock_adjusted
type StockAdjustedData struct {
	ProductID string `json:"product_id"`
	Delta     int    `json:"delta"`
	Stock     int    `json:"stock"`
	Reason    string `json:"reason,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
}

func newOutboxMessage(aggregateType, aggregateID, eventType string, data interface{}) (*OutboxMessage, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	now := GetCurrentTime()
	event := OutboxMessageEvent{
		EventType:   eventType,
		EventID:     GenerateID("evt"),
		AggregateID: aggregateID,
		OccurredAt:  now,
		Data:        raw,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &OutboxMessage{
		ID:            event.EventID,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
		NextAttemptAt: now,
		Status:        OutboxStatusPending,
	}, nil
}

// NewOrderCreatedEvent creates a new order created event
func NewOrderCreatedEvent(order *Order) (*OutboxMessage, error) {
	return newOutboxMessage("order", order.ID, EventOrderCreated, order)
}

// NewOrderStatusChangedEvent creates a new event for order status change
func NewOrderStatusChangedEvent(order *Order, oldStatus OrderStatus, updatedBy string, restocked bool) (*OutboxMessage, error) {
	return newOutboxMessage("order", order.ID, EventOrderStatusChanged, StatusChangedData{
		OrderID:   order.ID,
		UserID:    order.UserID,
		OldStatus: oldStatus,
		NewStatus: order.Status,
		UpdatedBy: updatedBy,
		Restocked: restocked,
	})
}

// NewOrderCancelledEvent creates the event emitted when an owner cancels
func NewOrderCancelledEvent(order *Order, oldStatus OrderStatus) (*OutboxMessage, error) {
	return newOutboxMessage("order", order.ID, EventOrderCancelled, StatusChangedData{
		OrderID:   order.ID,
		UserID:    order.UserID,
		OldStatus: oldStatus,
		NewStatus: order.Status,
		UpdatedBy: order.UserID,
		Restocked: true,
	})
}

// NewOrderDeletedEvent creates the event emitted when an admin deletes an order
func NewOrderDeletedEvent(order *Order, deletedBy string, restocked bool) (*OutboxMessage, error) {
	return newOutboxMessage("order", order.ID, EventOrderDeleted, OrderDeletedData{
		OrderID:   order.ID,
		Status:    order.Status,
		DeletedBy: deletedBy,
		Restocked: restocked,
	})
}

// NewStockAdjustedEvent creates the event emitted for manual inventory corrections
func NewStockAdjustedEvent(product *Product, delta int, reason, actorID string) (*OutboxMessage, error) {
	return newOutboxMessage("product", product.ID, EventStockAdjusted, StockAdjustedData{
		ProductID: product.ID,
		Delta:     delta,
		Stock:     product.Stock,
		Reason:    reason,
		ActorID:   actorID,
	})
}

// Clone returns a deep copy
func (m *OutboxMessage) Clone() *OutboxMessage {
	c := *m
	c.Payload = append([]byte(nil), m.Payload...)
	c.ProcessedAt = cloneTime(m.ProcessedAt)
	if m.LastError != nil {
		e := *m.LastError
		c.LastError = &e
	}
	return &c
}
