package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vaidashi/storefront-api/internal/models"
	"github.com/vaidashi/storefront-api/pkg/logger"
)

type outboxRepository struct {
	db     *sqlx.DB
	logger logger.Logger
}

// GetPendingMessages retrieves due pending messages, oldest first
func (r *outboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*models.OutboxMessage, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_messages
		WHERE status = $1 AND next_attempt_at <= $2
		ORDER BY created_at ASC
		LIMIT $3`

	messages := []*models.OutboxMessage{}
	err := r.db.SelectContext(ctx, &messages, query, models.OutboxStatusPending, models.GetCurrentTime(), limit)
	if err != nil {
		r.logger.Error("Failed to get pending outbox messages", "error", err)
		return nil, mapError(err)
	}
	return messages, nil
}

func (r *outboxRepository) ListByStatus(ctx context.Context, status models.OutboxStatus, limit, offset int) ([]*models.OutboxMessage, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_messages
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`

	messages := []*models.OutboxMessage{}
	if err := r.db.SelectContext(ctx, &messages, query, status, limit, offset); err != nil {
		r.logger.Error("Failed to list outbox messages", "error", err, "status", status)
		return nil, mapError(err)
	}
	return messages, nil
}

func (r *outboxRepository) GetMessage(ctx context.Context, id string) (*models.OutboxMessage, error) {
	var message models.OutboxMessage
	if err := r.db.GetContext(ctx, &message, `SELECT `+outboxColumns+` FROM outbox_messages WHERE id = $1`, id); err != nil {
		return nil, mapError(err)
	}
	return &message, nil
}

func (r *outboxRepository) exec(ctx context.Context, op, id, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to "+op+" outbox message", "error", err, "messageID", id)
		return mapError(err)
	}
	return expectOneRow(res)
}

func (r *outboxRepository) MarkAsProcessing(ctx context.Context, id string) error {
	return r.exec(ctx, "mark as processing", id, `
		UPDATE outbox_messages
		SET status = $1, processing_attempts = processing_attempts + 1, next_attempt_at = $2
		WHERE id = $3`,
		models.OutboxStatusProcessing, models.GetCurrentTime(), id)
}

func (r *outboxRepository) ReclaimStale(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outbox_messages
		SET status = $1, last_error = $2
		WHERE status = $3 AND next_attempt_at <= $4`,
		models.OutboxStatusPending, models.StaleProcessingError, models.OutboxStatusProcessing, olderThan)
	if err != nil {
		r.logger.Error("Failed to reclaim stale outbox messages", "error", err)
		return 0, mapError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(err)
	}
	return int(n), nil
}

func (r *outboxRepository) MarkAsCompleted(ctx context.Context, id string) error {
	return r.exec(ctx, "mark as completed", id, `
		UPDATE outbox_messages
		SET status = $1, processed_at = $2
		WHERE id = $3`,
		models.OutboxStatusCompleted, models.GetCurrentTime(), id)
}

func (r *outboxRepository) MarkAsFailed(ctx context.Context, id string, errorMessage string) error {
	return r.exec(ctx, "mark as failed", id, `
		UPDATE outbox_messages
		SET status = $1, last_error = $2
		WHERE id = $3`,
		models.OutboxStatusFailed, errorMessage, id)
}

func (r *outboxRepository) Reschedule(ctx context.Context, id string, errorMessage string, nextAttempt time.Time) error {
	return r.exec(ctx, "reschedule", id, `
		UPDATE outbox_messages
		SET status = $1, last_error = $2, next_attempt_at = $3
		WHERE id = $4`,
		models.OutboxStatusPending, errorMessage, nextAttempt, id)
}

func (r *outboxRepository) Requeue(ctx context.Context, id string) error {
	return r.exec(ctx, "requeue", id, `
		UPDATE outbox_messages
		SET status = $1, processing_attempts = 0, next_attempt_at = $2
		WHERE id = $3 AND status = $4`,
		models.OutboxStatusPending, models.GetCurrentTime(), id, models.OutboxStatusFailed)
}
