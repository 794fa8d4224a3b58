package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/vaidashi/storefront-api/internal/metrics"
	"github.com/vaidashi/storefront-api/internal/models"
	"github.com/vaidashi/storefront-api/internal/repository"
	"github.com/vaidashi/storefront-api/pkg/logger"
	"github.com/vaidashi/storefront-api/pkg/retry"
)

// MessageHandler delivers one outbox message
type MessageHandler interface {
	HandleMessage(ctx context.Context, message *models.OutboxMessage) error
}

// ProcessorConfig holds the configuration for the Processor
type ProcessorConfig struct {
	PollingInterval time.Duration
	BatchSize       int
	MaxRetries      int
	Backoff         retry.BackoffStrategy
	// ClaimTimeout is how long a message may stay processing before another
	// batch reclaims it
	ClaimTimeout time.Duration
}

// Processor relays committed outbox messages to their handlers. Failed
// deliveries are rescheduled with backoff until MaxRetries is reached, after
// which the message is parked as failed for an operator to requeue.
type Processor struct {
	outboxRepo repository.OutboxRepository
	handlers   map[string]MessageHandler
	config     ProcessorConfig
	metrics    *metrics.Metrics
	logger     logger.Logger
	now        func() time.Time
}

// NewProcessor creates a new Processor
func NewProcessor(outboxRepo repository.OutboxRepository, config ProcessorConfig, m *metrics.Metrics, logger logger.Logger) *Processor {
	if config.PollingInterval <= 0 {
		config.PollingInterval = 5 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 20
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 5
	}
	if config.Backoff == nil {
		config.Backoff = retry.NewOutboxBackoff()
	}
	if config.ClaimTimeout <= 0 {
		config.ClaimTimeout = 5 * time.Minute
	}

	return &Processor{
		outboxRepo: outboxRepo,
		handlers:   make(map[string]MessageHandler),
		config:     config,
		metrics:    m,
		logger:     logger,
		now:        models.GetCurrentTime,
	}
}

// RegisterHandler registers a message handler for a specific event type
func (p *Processor) RegisterHandler(eventType string, handler MessageHandler) {
	p.handlers[eventType] = handler
}

// Run polls until ctx is cancelled
func (p *Processor) Run(ctx context.Context) error {
	p.logger.Info("Outbox processor started",
		"pollingInterval", p.config.PollingInterval,
		"batchSize", p.config.BatchSize,
		"maxRetries", p.config.MaxRetries)

	ticker := time.NewTicker(p.config.PollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox processor stopped")
			return nil
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error("Failed to process outbox batch", "error", err)
			}
		}
	}
}

// ProcessBatch delivers up to BatchSize due messages and returns how many
// were delivered
func (p *Processor) ProcessBatch(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.PollingInterval)
	defer cancel()

	reclaimed, err := p.outboxRepo.ReclaimStale(ctx, p.now().Add(-p.config.ClaimTimeout))
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale messages: %w", err)
	}
	if reclaimed > 0 {
		p.logger.Warn("Reclaimed stale outbox messages", "count", reclaimed, "claimTimeout", p.config.ClaimTimeout)
	}

	messages, err := p.outboxRepo.GetPendingMessages(ctx, p.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending messages: %w", err)
	}

	if len(messages) == 0 {
		p.logger.Debug("No pending messages to process")
		return 0, nil
	}

	p.logger.Debug("Processing batch of outbox messages", "count", len(messages))

	delivered := 0
	for _, msg := range messages {
		if err := p.processMessage(ctx, msg); err != nil {
			p.logger.Warn("Failed to process message",
				"error", err,
				"messageID", msg.ID,
				"aggregateID", msg.AggregateID,
				"eventType", msg.EventType)
			continue
		}
		delivered++
	}

	return delivered, nil
}

func (p *Processor) processMessage(ctx context.Context, msg *models.OutboxMessage) error {
	if err := p.outboxRepo.MarkAsProcessing(ctx, msg.ID); err != nil {
		return fmt.Errorf("failed to mark message as processing: %w", err)
	}
	attempt := msg.ProcessingAttempts + 1

	handler, exists := p.handlers[msg.EventType]
	if !exists {
		errorMsg := fmt.Sprintf("no handler registered for event type: %s", msg.EventType)
		if err := p.outboxRepo.MarkAsFailed(ctx, msg.ID, errorMsg); err != nil {
			p.logger.Error("Failed to mark message as failed", "error", err, "messageID", msg.ID)
		}
		p.metrics.OutboxResult(msg.EventType, "unroutable")
		return fmt.Errorf("%s", errorMsg)
	}

	err := handler.HandleMessage(ctx, msg)
	if err == nil {
		if markErr := p.outboxRepo.MarkAsCompleted(ctx, msg.ID); markErr != nil {
			return fmt.Errorf("failed to mark message as completed: %w", markErr)
		}
		p.metrics.OutboxResult(msg.EventType, "published")
		p.logger.Debug("Successfully processed message",
			"messageID", msg.ID,
			"aggregateID", msg.AggregateID,
			"eventType", msg.EventType)
		return nil
	}

	if attempt >= p.config.MaxRetries {
		errorMsg := fmt.Sprintf("max retries reached: %s", err.Error())
		if markErr := p.outboxRepo.MarkAsFailed(ctx, msg.ID, errorMsg); markErr != nil {
			p.logger.Error("Failed to mark message as failed", "error", markErr, "messageID", msg.ID)
		}
		p.metrics.OutboxResult(msg.EventType, "failed")
		p.logger.Error("Outbox message parked after max retries",
			"messageID", msg.ID,
			"attempts", attempt,
			"error", err)
		return fmt.Errorf("message failed after %d attempts: %w", attempt, err)
	}

	next := p.now().Add(p.config.Backoff.NextBackoff(attempt))
	if markErr := p.outboxRepo.Reschedule(ctx, msg.ID, err.Error(), next); markErr != nil {
		p.logger.Error("Failed to reschedule message", "error", markErr, "messageID", msg.ID)
	}
	p.metrics.OutboxResult(msg.EventType, "retry")

	return fmt.Errorf("attempt %d failed, retry at %s: %w", attempt, next.Format(time.RFC3339), err)
}
