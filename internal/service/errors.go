package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/vaidashi/storefront-api/internal/repository"
	apperrors "github.com/vaidashi/storefront-api/pkg/errors"
)

// storeError translates a store failure into the application taxonomy.
// Errors that are already classified pass through untouched.
func storeError(err error, entity string) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFoundError(fmt.Sprintf("%s not found", entity))
	case errors.Is(err, repository.ErrInsufficientStock):
		return apperrors.NewStockConflictError("stock adjustment would leave a negative quantity")
	case errors.Is(err, repository.ErrConflict):
		return apperrors.NewStockConflictError("concurrent update conflict, please retry")
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflictError(fmt.Sprintf("%s already exists", entity))
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("request timed out")
	case errors.Is(err, context.Canceled):
		return err
	default:
		return apperrors.NewInternalErrorWithCause(fmt.Sprintf("%s operation failed", entity), err)
	}
}
