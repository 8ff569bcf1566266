package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/harborstay/api/internal/domain"
	"github.com/harborstay/api/internal/payments"
	"github.com/harborstay/api/internal/services"
)

type stubCheckoutService struct {
	initiateFn func(ctx context.Context, cmd services.InitiateBookingCommand) (services.BookingResult, error)
	confirmFn  func(ctx context.Context, cmd services.ConfirmPaymentCommand) (payments.PaymentDetails, error)
	tipFn      func(ctx context.Context, cmd services.TipIntentCommand) (payments.Intent, error)
	fineFn     func(ctx context.Context, cmd services.CancellationFineCommand) (payments.Intent, error)
}

func (s *stubCheckoutService) InitiateBooking(ctx context.Context, cmd services.InitiateBookingCommand) (services.BookingResult, error) {
	if s.initiateFn == nil {
		return services.BookingResult{}, fmt.Errorf("unexpected InitiateBooking call")
	}
	return s.initiateFn(ctx, cmd)
}

func (s *stubCheckoutService) ConfirmPayment(ctx context.Context, cmd services.ConfirmPaymentCommand) (payments.PaymentDetails, error) {
	if s.confirmFn == nil {
		return payments.PaymentDetails{}, fmt.Errorf("unexpected ConfirmPayment call")
	}
	return s.confirmFn(ctx, cmd)
}

func (s *stubCheckoutService) CreateTipIntent(ctx context.Context, cmd services.TipIntentCommand) (payments.Intent, error) {
	if s.tipFn == nil {
		return payments.Intent{}, fmt.Errorf("unexpected CreateTipIntent call")
	}
	return s.tipFn(ctx, cmd)
}

func (s *stubCheckoutService) CreateCancellationFineIntent(ctx context.Context, cmd services.CancellationFineCommand) (payments.Intent, error) {
	if s.fineFn == nil {
		return payments.Intent{}, fmt.Errorf("unexpected CreateCancellationFineIntent call")
	}
	return s.fineFn(ctx, cmd)
}

func newCheckoutTestRouter(checkout services.CheckoutService) chi.Router {
	r := chi.NewRouter()
	NewCheckoutHandlers(checkout).Routes(r)
	return r
}

func TestInitiateBookingEndpoint(t *testing.T) {
	var gotCmd services.InitiateBookingCommand
	checkout := &stubCheckoutService{initiateFn: func(_ context.Context, cmd services.InitiateBookingCommand) (services.BookingResult, error) {
		gotCmd = cmd
		return services.BookingResult{
			Transaction: domain.Transaction{
				ID:             "txn-1",
				CustomerID:     cmd.CustomerID,
				ListingID:      cmd.ListingID,
				LastTransition: "transition/request-payment",
				PayinTotal:     domain.Money{Amount: 31500, Currency: "CAD"},
				PayoutTotal:    domain.Money{Amount: 27000, Currency: "CAD"},
			},
		}, nil
	}}
	router := newCheckoutTestRouter(checkout)

	payload := `{"customerId":"customer-1","listingId":"listing-1","orderData":{"bookingStart":"2026-09-01T00:00:00Z","bookingEnd":"2026-09-04T00:00:00Z"}}`
	req := httptest.NewRequest(http.MethodPost, "/initiate", strings.NewReader(payload))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotCmd.CustomerID != "customer-1" || gotCmd.IsSpeculative {
		t.Fatalf("unexpected command %+v", gotCmd)
	}

	var body services.BookingResult
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Transaction.ID != "txn-1" {
		t.Fatalf("unexpected transaction %+v", body.Transaction)
	}
}

func TestInitiateBookingSpeculativeReturnsOK(t *testing.T) {
	checkout := &stubCheckoutService{initiateFn: func(_ context.Context, cmd services.InitiateBookingCommand) (services.BookingResult, error) {
		if !cmd.IsSpeculative {
			return services.BookingResult{}, fmt.Errorf("expected speculative command")
		}
		return services.BookingResult{}, nil
	}}
	router := newCheckoutTestRouter(checkout)

	payload := `{"customerId":"customer-1","listingId":"listing-1","orderData":{},"isSpeculative":true}`
	req := httptest.NewRequest(http.MethodPost, "/initiate", strings.NewReader(payload))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for speculative request, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestInitiateBookingListingNotFound(t *testing.T) {
	checkout := &stubCheckoutService{initiateFn: func(context.Context, services.InitiateBookingCommand) (services.BookingResult, error) {
		return services.BookingResult{}, services.ErrQuoteListingNotFound
	}}
	router := newCheckoutTestRouter(checkout)

	req := httptest.NewRequest(http.MethodPost, "/initiate", strings.NewReader(`{"customerId":"c","listingId":"missing","orderData":{}}`))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestConfirmPaymentEndpoint(t *testing.T) {
	capturedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	var gotCmd services.ConfirmPaymentCommand
	checkout := &stubCheckoutService{confirmFn: func(_ context.Context, cmd services.ConfirmPaymentCommand) (payments.PaymentDetails, error) {
		gotCmd = cmd
		return payments.PaymentDetails{
			Provider:   "stripe",
			IntentID:   cmd.PaymentIntentID,
			Status:     payments.Status("succeeded"),
			Amount:     31500,
			Currency:   "CAD",
			Captured:   true,
			CapturedAt: &capturedAt,
		}, nil
	}}
	router := newCheckoutTestRouter(checkout)

	payload := `{"transactionId":"txn-1","paymentIntentId":"pi_123","paymentMethodId":"pm_456","returnUrl":"https://example.test/return"}`
	req := httptest.NewRequest(http.MethodPost, "/confirm-payment", strings.NewReader(payload))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotCmd.TransactionID != "txn-1" || gotCmd.PaymentMethodID != "pm_456" {
		t.Fatalf("unexpected command %+v", gotCmd)
	}

	var body paymentDetailsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.IntentID != "pi_123" || body.Status != "succeeded" || !body.Captured {
		t.Fatalf("unexpected payment details %+v", body)
	}
	if body.CapturedAt != "2026-08-01T12:00:00Z" {
		t.Fatalf("unexpected capturedAt %q", body.CapturedAt)
	}
}

func TestConfirmPaymentTransactionNotFound(t *testing.T) {
	checkout := &stubCheckoutService{confirmFn: func(context.Context, services.ConfirmPaymentCommand) (payments.PaymentDetails, error) {
		return payments.PaymentDetails{}, services.ErrCheckoutTransactionNotFound
	}}
	router := newCheckoutTestRouter(checkout)

	req := httptest.NewRequest(http.MethodPost, "/confirm-payment", strings.NewReader(`{"transactionId":"missing","paymentIntentId":"pi_123"}`))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestConfirmPaymentFailureMapsToBadGateway(t *testing.T) {
	checkout := &stubCheckoutService{confirmFn: func(context.Context, services.ConfirmPaymentCommand) (payments.PaymentDetails, error) {
		return payments.PaymentDetails{}, fmt.Errorf("stripe: card declined")
	}}
	router := newCheckoutTestRouter(checkout)

	req := httptest.NewRequest(http.MethodPost, "/confirm-payment", strings.NewReader(`{"transactionId":"txn-1","paymentIntentId":"pi_123"}`))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rr.Code)
	}
}
