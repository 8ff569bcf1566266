package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/harborstay/api/internal/domain"
	"github.com/harborstay/api/internal/payments"
	"github.com/harborstay/api/internal/platform/textutil"
	"github.com/harborstay/api/internal/repositories"
)

var (
	// ErrCheckoutInvalidInput signals a checkout request missing required fields.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutTransactionNotFound is returned when the transaction is unknown.
	ErrCheckoutTransactionNotFound = errors.New("checkout: transaction not found")
	// ErrCheckoutProviderNotPayable is returned when the tip target has no connected payout account.
	ErrCheckoutProviderNotPayable = errors.New("checkout: provider has no payout account")
)

// Transition names recorded on the bookings this service owns.
const (
	TransitionRequestPayment = "transition/request-payment"
	TransitionConfirmPayment = "transition/confirm-payment"
)

// Transaction event types published after durable state changes.
const (
	EventBookingInitiated = "booking.initiated"
	EventPaymentConfirmed = "booking.payment_confirmed"
)

// InitiateBookingCommand starts a booking for a customer on a listing. A
// speculative request runs the identical pricing pipeline but persists nothing.
type InitiateBookingCommand struct {
	CustomerID    string
	ListingID     string
	OrderData     OrderData
	IsSpeculative bool
}

// BookingResult is the priced booking produced by InitiateBooking.
type BookingResult struct {
	Transaction Transaction `json:"transaction"`
	LineItems   []LineItem  `json:"lineItems"`
}

// ConfirmPaymentCommand confirms a payment intent and records the transition.
type ConfirmPaymentCommand struct {
	TransactionID   string
	PaymentIntentID string
	PaymentMethodID string
	ReturnURL       string
}

// TipIntentCommand creates a tip payment intent routed to the provider.
type TipIntentCommand struct {
	ProviderID    string
	TransactionID string
	Amount        int64
	Currency      string
	CustomerEmail string
}

// CancellationFineCommand creates a flat fine payment intent for a user.
type CancellationFineCommand struct {
	UserID   string
	Amount   int64
	Currency string
}

// CheckoutServiceDeps bundles the checkout collaborators. Events is optional;
// without it no transaction events are published.
type CheckoutServiceDeps struct {
	Quotes       QuoteService
	Transactions repositories.TransactionRepository
	Listings     repositories.ListingRepository
	Profiles     repositories.ProfileRepository
	Coupons      repositories.CouponRepository
	Payments     payments.Provider
	Events       TransactionEventPublisher
	Clock        func() time.Time
	NewID        func() string
	Logger       func(context.Context, string, map[string]any)
}

type checkoutService struct {
	quotes       QuoteService
	transactions repositories.TransactionRepository
	listings     repositories.ListingRepository
	profiles     repositories.ProfileRepository
	coupons      repositories.CouponRepository
	payments     payments.Provider
	events       TransactionEventPublisher
	clock        func() time.Time
	newID        func() string
	logger       func(context.Context, string, map[string]any)
}

// NewCheckoutService wires a CheckoutService.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Quotes == nil {
		return nil, errors.New("checkout service: quote service is required")
	}
	if deps.Transactions == nil {
		return nil, errors.New("checkout service: transaction repository is required")
	}
	if deps.Listings == nil {
		return nil, errors.New("checkout service: listing repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("checkout service: payment provider is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &checkoutService{
		quotes:       deps.Quotes,
		transactions: deps.Transactions,
		listings:     deps.Listings,
		profiles:     deps.Profiles,
		coupons:      deps.Coupons,
		payments:     deps.Payments,
		events:       deps.Events,
		clock:        func() time.Time { return clock().UTC() },
		newID:        newID,
		logger:       logger,
	}, nil
}

// InitiateBooking prices the order and, unless speculative, persists the
// booking record with its location and booking-question metadata.
func (s *checkoutService) InitiateBooking(ctx context.Context, cmd InitiateBookingCommand) (BookingResult, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	listingID := strings.TrimSpace(cmd.ListingID)
	if customerID == "" || listingID == "" {
		return BookingResult{}, ErrCheckoutInvalidInput
	}

	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return BookingResult{}, ErrQuoteListingNotFound
		}
		return BookingResult{}, err
	}

	items, err := s.quotes.QuoteLineItems(ctx, QuoteCommand{
		CustomerID: customerID,
		ListingID:  listingID,
		OrderData:  cmd.OrderData,
	})
	if err != nil {
		return BookingResult{}, err
	}

	currency := listing.Price.Currency
	now := s.clock()
	txn := Transaction{
		ID:             s.newID(),
		CustomerID:     customerID,
		ProviderID:     listing.ProviderID,
		ListingID:      listing.ID,
		LastTransition: TransitionRequestPayment,
		LineItems:      items,
		PayinTotal:     PartyTotal(items, domain.PartyCustomer, currency),
		PayoutTotal:    PartyTotal(items, domain.PartyProvider, currency),
		CouponCode:     couponCodeFromItems(cmd.OrderData, items),
		Metadata:       bookingMetadata(listing, cmd.OrderData),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if cmd.IsSpeculative {
		return BookingResult{Transaction: txn, LineItems: items}, nil
	}

	if err := s.transactions.Create(ctx, txn); err != nil {
		return BookingResult{}, err
	}
	s.publish(ctx, TransactionEvent{
		Type:          EventBookingInitiated,
		TransactionID: txn.ID,
		ListingID:     txn.ListingID,
		CustomerID:    txn.CustomerID,
		ProviderID:    txn.ProviderID,
		OccurredAt:    now,
	})

	return BookingResult{Transaction: txn, LineItems: items}, nil
}

// ConfirmPayment confirms the payment intent and then applies the post-success
// side effects: transition update, coupon redemption, and event publication.
// Side-effect failures after a confirmed payment are logged and swallowed; the
// customer's payment is never rolled back for them.
func (s *checkoutService) ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (payments.PaymentDetails, error) {
	txnID := strings.TrimSpace(cmd.TransactionID)
	if txnID == "" || strings.TrimSpace(cmd.PaymentIntentID) == "" || strings.TrimSpace(cmd.PaymentMethodID) == "" {
		return payments.PaymentDetails{}, ErrCheckoutInvalidInput
	}

	txn, err := s.transactions.FindByID(ctx, txnID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return payments.PaymentDetails{}, ErrCheckoutTransactionNotFound
		}
		return payments.PaymentDetails{}, err
	}

	details, err := s.payments.Confirm(ctx, payments.ConfirmRequest{
		IntentID:        cmd.PaymentIntentID,
		PaymentMethodID: cmd.PaymentMethodID,
		ReturnURL:       cmd.ReturnURL,
		IdempotencyKey:  fmt.Sprintf("confirm-%s", txn.ID),
	})
	if err != nil {
		return payments.PaymentDetails{}, err
	}

	if err := s.transactions.UpdateTransition(ctx, txn.ID, TransitionConfirmPayment); err != nil {
		s.logger(ctx, "checkout_transition_update_failed", map[string]any{"transactionId": txn.ID, "error": err.Error()})
	}
	s.redeemCouponBestEffort(ctx, txn)
	s.publish(ctx, TransactionEvent{
		Type:          EventPaymentConfirmed,
		TransactionID: txn.ID,
		ListingID:     txn.ListingID,
		CustomerID:    txn.CustomerID,
		ProviderID:    txn.ProviderID,
		OccurredAt:    s.clock(),
		Attributes:    map[string]string{"paymentIntentId": details.IntentID},
	})

	return details, nil
}

// CreateTipIntent creates a manual-confirmation intent charged on behalf of
// the provider with the funds transferred to their connected account.
func (s *checkoutService) CreateTipIntent(ctx context.Context, cmd TipIntentCommand) (payments.Intent, error) {
	providerID := strings.TrimSpace(cmd.ProviderID)
	if providerID == "" || cmd.Amount <= 0 || strings.TrimSpace(cmd.Currency) == "" {
		return payments.Intent{}, ErrCheckoutInvalidInput
	}
	if s.profiles == nil {
		return payments.Intent{}, errors.New("checkout service: profile repository is required for tips")
	}

	profile, err := s.profiles.FindByID(ctx, providerID)
	if err != nil {
		return payments.Intent{}, err
	}
	if strings.TrimSpace(profile.StripeAccountID) == "" {
		return payments.Intent{}, ErrCheckoutProviderNotPayable
	}

	metadata := map[string]string{"type": "tip", "providerId": providerID}
	if cmd.TransactionID != "" {
		metadata["transactionId"] = cmd.TransactionID
	}

	return s.payments.CreateIntent(ctx, payments.CreateIntentRequest{
		Amount:              cmd.Amount,
		Currency:            cmd.Currency,
		Description:         fmt.Sprintf("Tip for %s", profile.DisplayName),
		ReceiptEmail:        cmd.CustomerEmail,
		OnBehalfOf:          profile.StripeAccountID,
		TransferDestination: profile.StripeAccountID,
		ManualConfirmation:  true,
		Metadata:            metadata,
	})
}

// CreateCancellationFineIntent creates a plain intent charging a provider for
// cancelling an accepted booking.
func (s *checkoutService) CreateCancellationFineIntent(ctx context.Context, cmd CancellationFineCommand) (payments.Intent, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" || cmd.Amount <= 0 || strings.TrimSpace(cmd.Currency) == "" {
		return payments.Intent{}, ErrCheckoutInvalidInput
	}

	return s.payments.CreateIntent(ctx, payments.CreateIntentRequest{
		Amount:      cmd.Amount,
		Currency:    cmd.Currency,
		Description: "Seller cancellation fine payment",
		Metadata: map[string]string{
			"userId": userID,
			"reason": "Seller cancellation fine",
		},
	})
}

// redeemCouponBestEffort applies the redemption recorded on the transaction.
// Failures are logged and swallowed: a lost usage count update must not fail
// an already-confirmed payment.
func (s *checkoutService) redeemCouponBestEffort(ctx context.Context, txn Transaction) {
	if txn.CouponCode == "" || s.coupons == nil {
		return
	}
	coupon, err := s.coupons.FindByCode(ctx, txn.ProviderID, txn.CouponCode)
	if err != nil {
		s.logger(ctx, "checkout_coupon_redeem_failed", map[string]any{"transactionId": txn.ID, "code": txn.CouponCode, "error": err.Error()})
		return
	}
	if _, err := s.coupons.ApplyRedemption(ctx, coupon.ID); err != nil {
		s.logger(ctx, "checkout_coupon_redeem_failed", map[string]any{"transactionId": txn.ID, "couponId": coupon.ID, "error": err.Error()})
		return
	}
	s.logger(ctx, "checkout_coupon_redeemed", map[string]any{"transactionId": txn.ID, "couponId": coupon.ID})
}

func (s *checkoutService) publish(ctx context.Context, event TransactionEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishTransactionEvent(ctx, event); err != nil {
		s.logger(ctx, "checkout_event_publish_failed", map[string]any{"type": event.Type, "transactionId": event.TransactionID, "error": err.Error()})
	}
}

// couponCodeFromItems records the coupon actually applied to the quote: the
// order's code only when the breakdown carries a discount row.
func couponCodeFromItems(orderData OrderData, items []LineItem) string {
	code := strings.ToUpper(strings.TrimSpace(orderData.CouponCode))
	if code == "" && orderData.Coupon != nil {
		code = strings.ToUpper(strings.TrimSpace(orderData.Coupon.Code))
	}
	if code == "" {
		return ""
	}
	for _, item := range items {
		if item.Code == domain.CodeCouponDiscount {
			return code
		}
	}
	return ""
}

// bookingMetadata captures where the booked service takes place plus any
// booking questions, mirroring the metadata shown on the transaction page.
func bookingMetadata(listing Listing, orderData OrderData) map[string]any {
	metadata := make(map[string]any)
	if orderData.LocationChoice != "" {
		metadata["selectedLocationType"] = orderData.LocationChoice
	}
	switch {
	case orderData.LocationChoice == domain.LocationChoiceCustomer &&
		orderData.Location != nil && orderData.Location.SelectedPlace != nil:
		metadata["selectedLocation"] = orderData.Location.SelectedPlace.Address
	case listing.Geolocation != nil:
		metadata["selectedLocation"] = fmt.Sprintf("https://www.google.com/maps?q=%v,%v", listing.Geolocation.Lat, listing.Geolocation.Lng)
	}
	for key, value := range textutil.NormalizeStringMap(orderData.BookingQuestions) {
		if value == "" {
			continue
		}
		metadata[key] = value
	}
	if len(metadata) == 0 {
		return nil
	}
	return metadata
}
