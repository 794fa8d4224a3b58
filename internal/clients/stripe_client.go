package clients

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/vaidashi/storefront-api/internal/metrics"
	"github.com/vaidashi/storefront-api/internal/models"
	"github.com/vaidashi/storefront-api/pkg/circuitbreaker"
	apperrors "github.com/vaidashi/storefront-api/pkg/errors"
	"github.com/vaidashi/storefront-api/pkg/logger"
	"github.com/vaidashi/storefront-api/pkg/retry"
)

// StripeConfig configures the payment processor client
type StripeConfig struct {
	SecretKey string
	// BaseURL overrides the API endpoint, e.g. for stripe-mock
	BaseURL     string
	HTTPClient  *http.Client
	MaxAttempts int
	Backoff     retry.BackoffStrategy
}

// StripeClient talks to Stripe's PaymentIntents API. Calls are retried on
// transient failures and guarded by a circuit breaker.
type StripeClient struct {
	api         *client.API
	breaker     *circuitbreaker.CircuitBreaker
	retryConfig *retry.RetryConfig
	metrics     *metrics.Metrics
	logger      logger.Logger
}

// NewStripeClient creates a new StripeClient
func NewStripeClient(cfg StripeConfig, breaker *circuitbreaker.CircuitBreaker, m *metrics.Metrics, logger logger.Logger) *StripeClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff == nil {
		cfg.Backoff = retry.NewDefaultExponentialBackoff()
	}

	backendConfig := &stripe.BackendConfig{
		HTTPClient: httpClient,
		// retries are driven by our own policy
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	}
	if cfg.BaseURL != "" {
		backendConfig.URL = stripe.String(cfg.BaseURL)
	}
	apiBackend := stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig)

	api := client.New(cfg.SecretKey, &stripe.Backends{
		API:     apiBackend,
		Connect: apiBackend,
		Uploads: stripe.GetBackend(stripe.UploadsBackend),
	})

	return &StripeClient{
		api:     api,
		breaker: breaker,
		retryConfig: &retry.RetryConfig{
			MaxAttempts:     cfg.MaxAttempts,
			BackoffStrategy: cfg.Backoff,
			Logger:          logger,
		},
		metrics: m,
		logger:  logger,
	}
}

// Breaker exposes the breaker for diagnostics
func (c *StripeClient) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// CreatePaymentIntent creates an intent for amountCents in currency. All
// attempts share one idempotency key so a retried request cannot create a
// second intent.
func (c *StripeClient) CreatePaymentIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*models.PaymentIntent, error) {
	var intent *stripe.PaymentIntent
	idempotencyKey := stripe.NewIdempotencyKey()

	err := c.call(ctx, "create_intent", func(ctx context.Context) error {
		params := &stripe.PaymentIntentParams{
			Amount:   stripe.Int64(amountCents),
			Currency: stripe.String(currency),
			AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
				Enabled: stripe.Bool(true),
			},
		}
		params.Context = ctx
		params.SetIdempotencyKey(idempotencyKey)
		for k, v := range metadata {
			params.AddMetadata(k, v)
		}

		var err error
		intent, err = c.api.PaymentIntents.New(params)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Created payment intent", "paymentIntentID", intent.ID, "amountCents", amountCents)
	return toPaymentIntent(intent), nil
}

// RetrievePaymentIntent fetches the current state of an intent
func (c *StripeClient) RetrievePaymentIntent(ctx context.Context, id string) (*models.PaymentIntent, error) {
	var intent *stripe.PaymentIntent

	err := c.call(ctx, "retrieve_intent", func(ctx context.Context) error {
		params := &stripe.PaymentIntentParams{}
		params.Context = ctx

		var err error
		intent, err = c.api.PaymentIntents.Get(id, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	return toPaymentIntent(intent), nil
}

func (c *StripeClient) call(ctx context.Context, operation string, fn retry.RetryableFunc) error {
	err := retry.Retry(ctx, func(ctx context.Context) error {
		err := c.breaker.Execute(func() error {
			return classifyStripeError(fn(ctx))
		}, apperrors.IsRetryable)

		if errors.Is(err, circuitbreaker.ErrOpen) {
			return apperrors.NewAppError(apperrors.ErrServiceUnavailable,
				"payment gateway temporarily unavailable", http.StatusServiceUnavailable, false)
		}
		return err
	}, c.retryConfig)

	result := "ok"
	if err != nil {
		result = apperrors.Kind(err)
		c.logger.Warn("Payment gateway call failed", "operation", operation, "error", err)
	}
	c.metrics.PaymentCall(operation, result)

	return err
}

// classifyStripeError maps gateway failures onto the application taxonomy.
// Server-side and connectivity failures are retryable; declines and bad
// requests are not.
func classifyStripeError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError("payment gateway timed out")
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch {
		case stripeErr.HTTPStatusCode == http.StatusTooManyRequests:
			return apperrors.NewRateLimitedError("payment gateway rate limit reached")
		case stripeErr.HTTPStatusCode >= 500 || stripeErr.Type == stripe.ErrorTypeAPI:
			return apperrors.NewTemporaryError(fmt.Sprintf("payment gateway error: %s", stripeErr.Msg))
		default:
			return apperrors.NewPaymentFailureError(stripeErr.Msg).
				WithContext("code", string(stripeErr.Code)).
				WithContext("type", string(stripeErr.Type))
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.NewTimeoutError("payment gateway timed out")
	}

	return apperrors.NewTemporaryError(fmt.Sprintf("payment gateway unreachable: %v", err))
}

func toPaymentIntent(pi *stripe.PaymentIntent) *models.PaymentIntent {
	return &models.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
	}
}
