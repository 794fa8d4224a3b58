package clients

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/vaidashi/storefront-api/pkg/circuitbreaker"
	apperrors "github.com/vaidashi/storefront-api/pkg/errors"
	"github.com/vaidashi/storefront-api/pkg/logger"
	"github.com/vaidashi/storefront-api/pkg/retry"
)

func newTestStripeClient(t *testing.T, handler http.HandlerFunc) (*StripeClient, *circuitbreaker.CircuitBreaker) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	breaker := circuitbreaker.New(circuitbreaker.Config{Name: "stripe", FailureThreshold: 5, ResetTimeout: time.Minute})
	c := NewStripeClient(StripeConfig{
		SecretKey:   "sk_test_123",
		BaseURL:     srv.URL,
		HTTPClient:  srv.Client(),
		MaxAttempts: 3,
		Backoff:     &retry.ConstantBackoff{Interval: time.Millisecond},
	}, breaker, nil, logger.NewNop())

	return c, breaker
}

func TestCreatePaymentIntent(t *testing.T) {
	c, _ := newTestStripeClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "6547", r.PostForm.Get("amount"))
		assert.Equal(t, "usd", r.PostForm.Get("currency"))
		assert.Equal(t, "user-1", r.PostForm.Get("metadata[userId]"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","amount":6547,"currency":"usd",
			"status":"requires_payment_method","client_secret":"pi_123_secret"}`))
	})

	intent, err := c.CreatePaymentIntent(context.Background(), 6547, "usd", map[string]string{"userId": "user-1"})
	require.NoError(t, err)

	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "pi_123_secret", intent.ClientSecret)
	assert.Equal(t, int64(6547), intent.AmountCents)
	assert.Equal(t, "requires_payment_method", intent.Status)
}

func TestCreatePaymentIntentReusesIdempotencyKeyAcrossRetries(t *testing.T) {
	var (
		attempts int32
		keys     []string
	)
	c, _ := newTestStripeClient(t, func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		w.Header().Set("Content-Type", "application/json")

		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"type":"api_error","message":"unavailable"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"pi_456","object":"payment_intent","amount":1000,"currency":"usd",
			"status":"requires_payment_method","client_secret":"pi_456_secret"}`))
	})

	intent, err := c.CreatePaymentIntent(context.Background(), 1000, "usd", nil)
	require.NoError(t, err)

	assert.Equal(t, "pi_456", intent.ID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
	require.Len(t, keys, 2)
	assert.NotEmpty(t, keys[0])
	assert.Equal(t, keys[0], keys[1])
}

func TestRetrievePaymentIntentRetriesServerErrors(t *testing.T) {
	var calls int32
	c, breaker := newTestStripeClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"type":"api_error","message":"try again"}}`))
	})

	_, err := c.RetrievePaymentIntent(context.Background(), "pi_123")

	assert.ErrorIs(t, err, apperrors.ErrTemporaryFailure)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, int64(3), breaker.Snapshot().FailureCount)
}

func TestCardDeclineIsNotRetried(t *testing.T) {
	var calls int32
	c, breaker := newTestStripeClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`))
	})

	_, err := c.CreatePaymentIntent(context.Background(), 100, "usd", nil)

	assert.ErrorIs(t, err, apperrors.ErrPaymentFailure)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, circuitbreaker.StateClosed, breaker.State())
}

func TestOpenBreakerShortCircuits(t *testing.T) {
	var calls int32
	c, breaker := newTestStripeClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	for i := 0; i < 5; i++ {
		breaker.Failure()
	}

	_, err := c.RetrievePaymentIntent(context.Background(), "pi_123")

	assert.ErrorIs(t, err, apperrors.ErrServiceUnavailable)
	assert.False(t, apperrors.IsRetryable(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestClassifyStripeError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"rate limited", &stripe.Error{HTTPStatusCode: 429}, apperrors.ErrRateLimited},
		{"server error", &stripe.Error{HTTPStatusCode: 503}, apperrors.ErrTemporaryFailure},
		{"invalid request", &stripe.Error{HTTPStatusCode: 400, Type: stripe.ErrorTypeInvalidRequest}, apperrors.ErrPaymentFailure},
		{"deadline", context.DeadlineExceeded, apperrors.ErrTimeout},
		{"connection refused", errors.New("dial tcp: connection refused"), apperrors.ErrTemporaryFailure},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, classifyStripeError(tc.err), tc.want)
		})
	}

	assert.Nil(t, classifyStripeError(nil))
}
