package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/vaidashi/storefront-api/pkg/errors"
	"github.com/vaidashi/storefront-api/pkg/logger"
)

func testConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     attempts,
		BackoffStrategy: &ConstantBackoff{Interval: time.Millisecond},
		Logger:          logger.NewNop(),
	}
}

func TestRetrySucceedsAfterTemporaryFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return apperrors.NewTemporaryError("gateway hiccup")
		}
		return nil
	}, testConfig(5))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	declined := apperrors.NewPaymentFailureError("card declined")

	err := Retry(context.Background(), func(ctx context.Context) error {
		calls++
		return declined
	}, testConfig(5))

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, apperrors.ErrPaymentFailure)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		calls++
		return apperrors.NewServiceUnavailableError("down")
	}, testConfig(3))

	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavailable)
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := testConfig(5)
	cfg.BackoffStrategy = &ConstantBackoff{Interval: time.Hour}
	cfg.IsRetryable = func(error) bool { return true }

	done := make(chan error, 1)
	go func() {
		done <- Retry(ctx, func(ctx context.Context) error { return errors.New("boom") }, cfg)
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}

func TestExponentialBackoffIsCapped(t *testing.T) {
	b := &ExponentialBackoff{InitialInterval: 100 * time.Millisecond, MaxInterval: time.Second, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, b.NextBackoff(1))
	assert.Equal(t, 400*time.Millisecond, b.NextBackoff(3))
	assert.Equal(t, time.Second, b.NextBackoff(10))
}
