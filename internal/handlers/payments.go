package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/harborstay/api/internal/payments"
	"github.com/harborstay/api/internal/platform/httpx"
	"github.com/harborstay/api/internal/services"
)

const (
	maxPaymentRequestBody = 8 * 1024

	paymentIntentRateLimit  = 10
	paymentIntentRateWindow = time.Minute
)

// PaymentHandlers exposes the auxiliary payment intents: tips and cancellation fines.
type PaymentHandlers struct {
	checkout services.CheckoutService
	limiter  rateLimiter
}

// PaymentOption customises the payment handlers before construction.
type PaymentOption func(*PaymentHandlers)

// NewPaymentHandlers constructs handlers backed by the checkout service. Intent
// creation is rate limited per caller to keep PSP abuse in check.
func NewPaymentHandlers(checkout services.CheckoutService, opts ...PaymentOption) *PaymentHandlers {
	h := &PaymentHandlers{
		checkout: checkout,
		limiter:  newSimpleRateLimiter(paymentIntentRateLimit, paymentIntentRateWindow, time.Now),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// WithPaymentRateLimiter overrides the per-caller intent rate limiter.
func WithPaymentRateLimiter(limiter rateLimiter) PaymentOption {
	return func(h *PaymentHandlers) {
		h.limiter = limiter
	}
}

// Routes wires the payment endpoints onto the provided router.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/tip", h.createTipIntent)
	r.Post("/cancellation-fine", h.createCancellationFineIntent)
}

type tipIntentRequest struct {
	ProviderID    string `json:"providerId"`
	TransactionID string `json:"transactionId"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	CustomerEmail string `json:"customerEmail"`
}

type cancellationFineRequest struct {
	UserID   string `json:"userId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type paymentIntentResponse struct {
	IntentID     string `json:"intentId"`
	ClientSecret string `json:"clientSecret,omitempty"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

func (h *PaymentHandlers) createTipIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		writeCheckoutUnavailable(ctx, w)
		return
	}

	body, err := readLimitedBody(r, maxPaymentRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req tipIntentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	if !h.allow(req.ProviderID) {
		writeRateLimited(w, r)
		return
	}

	intent, err := h.checkout.CreateTipIntent(ctx, services.TipIntentCommand{
		ProviderID:    strings.TrimSpace(req.ProviderID),
		TransactionID: strings.TrimSpace(req.TransactionID),
		Amount:        req.Amount,
		Currency:      req.Currency,
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildIntentResponse(intent))
}

func (h *PaymentHandlers) createCancellationFineIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		writeCheckoutUnavailable(ctx, w)
		return
	}

	body, err := readLimitedBody(r, maxPaymentRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req cancellationFineRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	if !h.allow(req.UserID) {
		writeRateLimited(w, r)
		return
	}

	intent, err := h.checkout.CreateCancellationFineIntent(ctx, services.CancellationFineCommand{
		UserID:   strings.TrimSpace(req.UserID),
		Amount:   req.Amount,
		Currency: req.Currency,
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildIntentResponse(intent))
}

func (h *PaymentHandlers) allow(key string) bool {
	if h.limiter == nil {
		return true
	}
	return h.limiter.Allow(key)
}

func writeRateLimited(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", "too many payment intent requests", http.StatusTooManyRequests))
}

func buildIntentResponse(intent payments.Intent) paymentIntentResponse {
	return paymentIntentResponse{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
		Status:       string(intent.Status),
	}
}
