package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/harborstay/api/internal/domain"
	"github.com/harborstay/api/internal/payments"
	"github.com/harborstay/api/internal/platform/httpx"
	"github.com/harborstay/api/internal/services"
)

const maxCheckoutRequestBody = 32 * 1024

// CheckoutHandlers exposes booking initiation and payment confirmation.
type CheckoutHandlers struct {
	checkout services.CheckoutService
}

// NewCheckoutHandlers constructs handlers backed by the checkout service.
func NewCheckoutHandlers(checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{checkout: checkout}
}

// Routes wires the checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/initiate", h.initiateBooking)
	r.Post("/confirm-payment", h.confirmPayment)
}

type initiateBookingRequest struct {
	CustomerID    string           `json:"customerId"`
	ListingID     string           `json:"listingId"`
	OrderData     domain.OrderData `json:"orderData"`
	IsSpeculative bool             `json:"isSpeculative"`
}

type confirmPaymentRequest struct {
	TransactionID   string `json:"transactionId"`
	PaymentIntentID string `json:"paymentIntentId"`
	PaymentMethodID string `json:"paymentMethodId"`
	ReturnURL       string `json:"returnUrl"`
}

type paymentDetailsResponse struct {
	Provider   string `json:"provider"`
	IntentID   string `json:"intentId"`
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	Captured   bool   `json:"captured"`
	CapturedAt string `json:"capturedAt,omitempty"`
}

func (h *CheckoutHandlers) initiateBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		writeCheckoutUnavailable(ctx, w)
		return
	}

	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req initiateBookingRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	result, err := h.checkout.InitiateBooking(ctx, services.InitiateBookingCommand{
		CustomerID:    strings.TrimSpace(req.CustomerID),
		ListingID:     strings.TrimSpace(req.ListingID),
		OrderData:     req.OrderData,
		IsSpeculative: req.IsSpeculative,
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	status := http.StatusCreated
	if req.IsSpeculative {
		status = http.StatusOK
	}
	writeJSONResponse(w, status, result)
}

func (h *CheckoutHandlers) confirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		writeCheckoutUnavailable(ctx, w)
		return
	}

	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req confirmPaymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	details, err := h.checkout.ConfirmPayment(ctx, services.ConfirmPaymentCommand{
		TransactionID:   strings.TrimSpace(req.TransactionID),
		PaymentIntentID: strings.TrimSpace(req.PaymentIntentID),
		PaymentMethodID: strings.TrimSpace(req.PaymentMethodID),
		ReturnURL:       strings.TrimSpace(req.ReturnURL),
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildPaymentDetailsResponse(details))
}

func buildPaymentDetailsResponse(details payments.PaymentDetails) paymentDetailsResponse {
	resp := paymentDetailsResponse{
		Provider: details.Provider,
		IntentID: details.IntentID,
		Status:   string(details.Status),
		Amount:   details.Amount,
		Currency: details.Currency,
		Captured: details.Captured,
	}
	if details.CapturedAt != nil {
		resp.CapturedAt = details.CapturedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func writeCheckoutUnavailable(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	var missing *services.MissingOrderDataError
	switch {
	case errors.As(err, &missing):
		writeQuoteError(ctx, w, err)
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrQuoteInvalidInput), errors.Is(err, services.ErrPricingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutTransactionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("transaction_not_found", "transaction not found", http.StatusNotFound))
	case errors.Is(err, services.ErrQuoteListingNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("listing_not_found", "listing not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCheckoutProviderNotPayable):
		httpx.WriteError(ctx, w, httpx.NewError("provider_not_payable", "provider has no payout account", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("payment_failed", "payment processing failed", http.StatusBadGateway))
	}
}
