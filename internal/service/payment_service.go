package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vaidashi/storefront-api/internal/models"
	apperrors "github.com/vaidashi/storefront-api/pkg/errors"
	"github.com/vaidashi/storefront-api/pkg/logger"
)

// Gateway is the payment processor
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*models.PaymentIntent, error)
	RetrievePaymentIntent(ctx context.Context, id string) (*models.PaymentIntent, error)
}

var hundred = decimal.NewFromInt(100)

// PaymentService bridges checkout and the payment processor. It only reads
// the intent status; webhooks are not handled.
type PaymentService struct {
	gateway  Gateway
	currency string
	logger   logger.Logger
}

// NewPaymentService creates a PaymentService. A nil gateway makes every
// call fail with ServiceUnavailable.
func NewPaymentService(gateway Gateway, currency string, logger logger.Logger) *PaymentService {
	if currency == "" {
		currency = "usd"
	}
	return &PaymentService{
		gateway:  gateway,
		currency: strings.ToLower(currency),
		logger:   logger,
	}
}

// CreatePaymentIntent starts a payment of amount in the smallest currency unit
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, userID string, amount decimal.Decimal, currency string) (*models.PaymentIntent, error) {
	if s.gateway == nil {
		return nil, apperrors.NewServiceUnavailableError("payments are not configured")
	}
	if !amount.IsPositive() {
		return nil, apperrors.NewValidationError("amount must be greater than zero")
	}
	if currency == "" {
		currency = s.currency
	}

	cents := amount.Mul(hundred).Round(0).IntPart()

	intent, err := s.gateway.CreatePaymentIntent(ctx, cents, strings.ToLower(currency), map[string]string{
		"userId": userID,
	})
	if err != nil {
		s.logger.Error("Failed to create payment intent", "userID", userID, "error", err)
		return nil, err
	}

	s.logger.Info("Payment intent created", "paymentIntentID", intent.ID, "userID", userID)
	return intent, nil
}

// ConfirmPayment succeeds only when the processor reports the intent as succeeded
func (s *PaymentService) ConfirmPayment(ctx context.Context, intentID string) (*models.PaymentConfirmation, error) {
	if s.gateway == nil {
		return nil, apperrors.NewServiceUnavailableError("payments are not configured")
	}
	if strings.TrimSpace(intentID) == "" {
		return nil, apperrors.NewValidationError("paymentIntentId is required")
	}

	intent, err := s.gateway.RetrievePaymentIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}

	if intent.Status != models.PaymentIntentStatusSucceeded {
		s.logger.Warn("Payment not successful", "paymentIntentID", intentID, "status", intent.Status)
		return nil, apperrors.NewPaymentFailureError(fmt.Sprintf("payment not successful: %s", intent.Status)).
			WithContext("status", intent.Status)
	}

	return &models.PaymentConfirmation{
		ID:     intent.ID,
		Status: intent.Status,
		Amount: decimal.NewFromInt(intent.AmountCents).Div(hundred),
	}, nil
}
