package api

import (
	"net/http"

	"github.com/shopspring/decimal"
)

// PaymentIntentRequest is the body of POST /payments/intent
type PaymentIntentRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// ConfirmPaymentRequest is the body of POST /payments/confirm
type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
}

func (s *Server) createPaymentIntentHandler(w http.ResponseWriter, r *http.Request) {
	var req PaymentIntentRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.respondWithError(w, r, err)
		return
	}

	intent, err := s.deps.Payments.CreatePaymentIntent(r.Context(), s.caller(r).UserID, req.Amount, req.Currency)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, intent)
}

func (s *Server) confirmPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req ConfirmPaymentRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.respondWithError(w, r, err)
		return
	}

	confirmation, err := s.deps.Payments.ConfirmPayment(r.Context(), req.PaymentIntentID)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, confirmation)
}
