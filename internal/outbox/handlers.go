package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vaidashi/storefront-api/internal/models"
	"github.com/vaidashi/storefront-api/pkg/logger"
)

// LoggingHandler writes events to the log. It is the relay target when no
// broker is configured.
type LoggingHandler struct {
	logger logger.Logger
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(logger logger.Logger) *LoggingHandler {
	return &LoggingHandler{
		logger: logger,
	}
}

// HandleMessage handles the outbox message by logging it
func (h *LoggingHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	var event models.OutboxMessageEvent

	if err := json.Unmarshal(message.Payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal outbox message: %w", err)
	}

	h.logger.Info("Order event",
		"messageID", message.ID,
		"eventType", message.EventType,
		"aggregateType", message.AggregateType,
		"aggregateID", message.AggregateID,
		"occurredAt", event.OccurredAt)

	return nil
}

// RegisterAll routes every known event type to handler
func (p *Processor) RegisterAll(handler MessageHandler) {
	for _, eventType := range models.EventTypes() {
		p.RegisterHandler(eventType, handler)
	}
}
