package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/harborstay/api/internal/domain"
	"github.com/harborstay/api/internal/platform/httpx"
	"github.com/harborstay/api/internal/services"
)

const maxQuoteRequestBody = 32 * 1024

// QuoteHandlers exposes the speculative pricing endpoint.
type QuoteHandlers struct {
	quotes services.QuoteService
}

// NewQuoteHandlers constructs handlers backed by the quote service.
func NewQuoteHandlers(quotes services.QuoteService) *QuoteHandlers {
	return &QuoteHandlers{quotes: quotes}
}

// Routes wires the quote endpoints onto the provided router.
func (h *QuoteHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/line-items", h.quoteLineItems)
}

type quoteRequest struct {
	CustomerID string           `json:"customerId"`
	ListingID  string           `json:"listingId"`
	OrderData  domain.OrderData `json:"orderData"`
}

type quoteResponse struct {
	LineItems   []domain.LineItem `json:"lineItems"`
	PayinTotal  domain.Money      `json:"payinTotal"`
	PayoutTotal domain.Money      `json:"payoutTotal"`
}

func (h *QuoteHandlers) quoteLineItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.quotes == nil {
		httpx.WriteError(ctx, w, httpx.NewError("quote_unavailable", "quote service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxQuoteRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req quoteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	items, err := h.quotes.QuoteLineItems(ctx, services.QuoteCommand{
		CustomerID: strings.TrimSpace(req.CustomerID),
		ListingID:  strings.TrimSpace(req.ListingID),
		OrderData:  req.OrderData,
	})
	if err != nil {
		writeQuoteError(ctx, w, err)
		return
	}

	currency := ""
	if len(items) > 0 {
		currency = items[0].UnitPrice.Currency
	}
	writeJSONResponse(w, http.StatusOK, quoteResponse{
		LineItems:   items,
		PayinTotal:  services.PartyTotal(items, domain.PartyCustomer, currency),
		PayoutTotal: services.PartyTotal(items, domain.PartyProvider, currency),
	})
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, errBodyTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
}

func writeQuoteError(ctx context.Context, w http.ResponseWriter, err error) {
	var missing *services.MissingOrderDataError
	switch {
	case errors.As(err, &missing):
		details := make([]any, 0, len(missing.Fields))
		for _, field := range missing.Fields {
			details = append(details, field)
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_order_data", missing.Error(), http.StatusBadRequest).
			WithDetails(map[string]any{"missingFields": details}))
	case errors.Is(err, services.ErrQuoteInvalidInput), errors.Is(err, services.ErrPricingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrQuoteListingNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("listing_not_found", "listing not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to price the order", http.StatusInternalServerError))
	}
}
