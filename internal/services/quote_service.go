package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/harborstay/api/internal/repositories"
)

var (
	// ErrQuoteInvalidInput signals a quote request missing its identifiers.
	ErrQuoteInvalidInput = errors.New("quote: invalid input")
	// ErrQuoteListingNotFound is returned when the listing does not exist.
	ErrQuoteListingNotFound = errors.New("quote: listing not found")
)

// QuoteCommand prices an order for a customer against a listing.
type QuoteCommand struct {
	CustomerID string
	ListingID  string
	OrderData  OrderData
}

// QuoteServiceDeps bundles the quote service collaborators.
type QuoteServiceDeps struct {
	Listings    repositories.ListingRepository
	Coupons     repositories.CouponRepository
	Commissions CommissionResolver
	Engine      *LineItemEngine
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
}

type quoteService struct {
	listings    repositories.ListingRepository
	coupons     repositories.CouponRepository
	commissions CommissionResolver
	engine      *LineItemEngine
	clock       func() time.Time
	logger      func(context.Context, string, map[string]any)
}

// NewQuoteService wires a QuoteService around the line item engine.
func NewQuoteService(deps QuoteServiceDeps) (QuoteService, error) {
	if deps.Listings == nil {
		return nil, errors.New("quote service: listing repository is required")
	}
	if deps.Commissions == nil {
		return nil, errors.New("quote service: commission resolver is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("quote service: line item engine is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &quoteService{
		listings:    deps.Listings,
		coupons:     deps.Coupons,
		commissions: deps.Commissions,
		engine:      deps.Engine,
		clock:       func() time.Time { return clock().UTC() },
		logger:      logger,
	}, nil
}

// QuoteLineItems loads the listing, resolves the effective commissions and any
// referenced coupon, runs the engine, and returns validated line items. A
// coupon that fails its gating rules is dropped from the quote rather than
// failing it.
func (s *quoteService) QuoteLineItems(ctx context.Context, cmd QuoteCommand) ([]LineItem, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	listingID := strings.TrimSpace(cmd.ListingID)
	if customerID == "" || listingID == "" {
		return nil, ErrQuoteInvalidInput
	}

	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return nil, ErrQuoteListingNotFound
		}
		return nil, err
	}

	pair, err := s.commissions.ResolveCommissions(ctx, ResolveCommissionsCommand{
		CustomerID: customerID,
		Listing:    listing,
	})
	if err != nil {
		return nil, err
	}

	orderData := cmd.OrderData
	s.attachCoupon(ctx, listing, &orderData)

	items, err := s.engine.ComputeLineItems(ctx, listing, orderData, pair.Provider, pair.Customer)
	if err != nil {
		return nil, err
	}
	return ValidatedLineItems(items), nil
}

// attachCoupon resolves orderData.CouponCode into a full coupon when none was
// supplied. Lookup failures and gating rejections are logged and skipped.
func (s *quoteService) attachCoupon(ctx context.Context, listing Listing, orderData *OrderData) {
	if orderData.Coupon != nil || strings.TrimSpace(orderData.CouponCode) == "" || s.coupons == nil {
		return
	}

	code := strings.ToUpper(strings.TrimSpace(orderData.CouponCode))
	coupon, err := s.coupons.FindByCode(ctx, listing.ProviderID, code)
	if err != nil {
		s.logger(ctx, "quote_coupon_lookup_failed", map[string]any{"listingId": listing.ID, "code": code, "error": err.Error()})
		return
	}
	if reason, ok := rejectionReason(coupon, listing.ID, listing.Price.Currency, s.clock()); !ok {
		s.logger(ctx, "quote_coupon_rejected", map[string]any{"listingId": listing.ID, "code": code, "reason": string(reason)})
		return
	}
	orderData.Coupon = &coupon
}
