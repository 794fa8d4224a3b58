package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/vaidashi/storefront-api/internal/models"
	"github.com/vaidashi/storefront-api/internal/repository"
	apperrors "github.com/vaidashi/storefront-api/pkg/errors"
	"github.com/vaidashi/storefront-api/pkg/logger"
)

// DeadLetters exposes messages the relay gave up on
type DeadLetters struct {
	outboxRepo repository.OutboxRepository
	logger     logger.Logger
}

// NewDeadLetters creates a new DeadLetters
func NewDeadLetters(outboxRepo repository.OutboxRepository, logger logger.Logger) *DeadLetters {
	return &DeadLetters{
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// List returns one page of failed messages, oldest first
func (d *DeadLetters) List(ctx context.Context, page, pageSize int) ([]*models.OutboxMessage, error) {
	p := models.NewPagination(page, pageSize, 20)

	messages, err := d.outboxRepo.ListByStatus(ctx, models.OutboxStatusFailed, p.PageSize, p.Offset())
	if err != nil {
		d.logger.Error("Failed to list dead letters", "error", err)
		return nil, apperrors.NewInternalErrorWithCause("failed to list failed messages", err)
	}
	return messages, nil
}

// Retry hands a failed message back to the relay with a fresh attempt budget
func (d *DeadLetters) Retry(ctx context.Context, id string) (*models.OutboxMessage, error) {
	if err := d.outboxRepo.Requeue(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("failed message %s not found", id))
		}
		d.logger.Error("Failed to requeue message", "error", err, "messageID", id)
		return nil, apperrors.NewInternalErrorWithCause("failed to requeue message", err)
	}

	msg, err := d.outboxRepo.GetMessage(ctx, id)
	if err != nil {
		return nil, apperrors.NewInternalErrorWithCause("failed to load requeued message", err)
	}

	d.logger.Info("Requeued failed message", "messageID", id, "eventType", msg.EventType)
	return msg, nil
}
