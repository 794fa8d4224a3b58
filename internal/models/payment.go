package models

import "github.com/shopspring/decimal"

// PaymentIntentStatusSucceeded is the only gateway status treated as paid
const PaymentIntentStatusSucceeded = "succeeded"

// PaymentIntent mirrors the fields the storefront reads from the payment processor
type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret,omitempty"`
	Status       string `json:"status"`
	AmountCents  int64  `json:"amountCents"`
	Currency     string `json:"currency"`
}

// PaymentConfirmation is returned when a payment intent has succeeded
type PaymentConfirmation struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Amount decimal.Decimal `json:"amount"`
}
