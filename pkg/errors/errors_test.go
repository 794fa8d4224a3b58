package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"not found", NewNotFoundError("order missing"), KindNotFound},
		{"validation", NewValidationError("bad"), KindValidation},
		{"insufficient stock", NewInsufficientStockError("only 2 left"), KindInsufficientStock},
		{"invalid state", NewInvalidStateError("shipped"), KindInvalidState},
		{"terminal", NewAlreadyTerminalError("delivered"), KindAlreadyTerminal},
		{"stock conflict", NewStockConflictError("race"), KindStockConflict},
		{"payment", NewPaymentFailureError("declined"), KindPaymentFailure},
		{"forbidden", NewForbiddenError("not yours"), KindForbidden},
		{"wrapped sentinel", fmt.Errorf("loading: %w", ErrInvalidState), KindInvalidState},
		{"plain error", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusConflict, StatusCode(NewInsufficientStockError("x")))
	assert.Equal(t, http.StatusPaymentRequired, StatusCode(NewPaymentFailureError("x")))
	assert.Equal(t, http.StatusNotFound, StatusCode(fmt.Errorf("ctx: %w", NewNotFoundError("x"))))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("boom")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewTemporaryError("flaky")))
	assert.True(t, IsRetryable(NewStockConflictError("race")))
	assert.True(t, IsRetryable(ErrTimeout))
	assert.False(t, IsRetryable(NewValidationError("bad")))
	assert.False(t, IsRetryable(errors.New("boom")))
}

func TestInternalErrorWithCauseKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewInternalErrorWithCause("failed to load order", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, "failed to load order", err.Error())
	assert.Equal(t, KindInternal, Kind(err))
}

func TestWithContext(t *testing.T) {
	err := NewPaymentFailureError("declined").WithContext("status", "requires_payment_method")
	assert.Equal(t, "requires_payment_method", err.Context["status"])
}
