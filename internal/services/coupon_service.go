package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/harborstay/api/internal/domain"
	"github.com/harborstay/api/internal/repositories"
)

var (
	// ErrCouponNotFound is returned when no coupon matches the identifier.
	ErrCouponNotFound = errors.New("coupon: not found")
	// ErrCouponDuplicateCode is returned when the provider already owns the code.
	ErrCouponDuplicateCode = errors.New("coupon: code already exists")
	// ErrCouponListingNotFound is returned when the validation target listing is unknown.
	ErrCouponListingNotFound = errors.New("coupon: listing not found")
)

// CouponInputError reports the field-level problems of a create/update payload.
type CouponInputError struct {
	Details []string
}

func (e *CouponInputError) Error() string {
	return "coupon: validation failed: " + strings.Join(e.Details, "; ")
}

// CouponRejectionReason classifies why a coupon cannot be applied at checkout.
type CouponRejectionReason string

const (
	CouponRejectionNotFound         CouponRejectionReason = "not_found"
	CouponRejectionInactive         CouponRejectionReason = "inactive"
	CouponRejectionExpired          CouponRejectionReason = "expired"
	CouponRejectionExhausted        CouponRejectionReason = "exhausted"
	CouponRejectionNotApplicable    CouponRejectionReason = "not_applicable"
	CouponRejectionCurrencyMismatch CouponRejectionReason = "currency_mismatch"
)

// CouponRejectedError carries the typed reason a coupon was refused.
type CouponRejectedError struct {
	Reason CouponRejectionReason
	Code   string
}

func (e *CouponRejectedError) Error() string {
	return fmt.Sprintf("coupon %s rejected: %s", e.Code, e.Reason)
}

// CreateCouponCommand carries a new coupon definition.
type CreateCouponCommand struct {
	ProviderID           string
	Code                 string
	Type                 CouponType
	Amount               float64
	Currency             string
	ExpiresAt            *time.Time
	MaxRedemptions       *int64
	ApplicableListingIDs []string
	IsActive             *bool
}

// ListCouponsCommand narrows a provider's coupon listing.
type ListCouponsCommand struct {
	ProviderID      string
	IncludeInactive bool
}

// UpdateCouponCommand carries a partial coupon update. Nil fields are untouched.
type UpdateCouponCommand struct {
	CouponID             string
	Type                 *CouponType
	Amount               *float64
	Currency             *string
	ExpiresAt            *time.Time
	ClearExpiry          bool
	MaxRedemptions       *int64
	ClearMaxRedemptions  bool
	ApplicableListingIDs *[]string
	IsActive             *bool
}

// ValidateCouponCommand asks whether a code applies to an order on a listing.
type ValidateCouponCommand struct {
	ListingID  string
	Code       string
	OrderTotal int64
	Currency   string
}

// CouponValidation is the discount preview returned for a valid coupon.
type CouponValidation struct {
	Coupon         Coupon `json:"coupon"`
	DiscountAmount int64  `json:"discountAmount"`
	FinalTotal     int64  `json:"finalTotal"`
	Currency       string `json:"currency"`
}

// CouponServiceDeps bundles the coupon service collaborators.
type CouponServiceDeps struct {
	Coupons  repositories.CouponRepository
	Listings repositories.ListingRepository
	Clock    func() time.Time
	// NewID mints coupon identifiers; defaults to ULIDs.
	NewID  func() string
	Logger func(context.Context, string, map[string]any)
}

type couponService struct {
	coupons  repositories.CouponRepository
	listings repositories.ListingRepository
	clock    func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewCouponService wires a CouponService backed by the provided repositories.
func NewCouponService(deps CouponServiceDeps) (CouponService, error) {
	if deps.Coupons == nil {
		return nil, errors.New("coupon service: coupon repository is required")
	}
	if deps.Listings == nil {
		return nil, errors.New("coupon service: listing repository is required")
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
	return &couponService{
		coupons:  deps.Coupons,
		listings: deps.Listings,
		clock:    func() time.Time { return clock().UTC() },
		newID:    newID,
		logger:   logger,
	}, nil
}

func (s *couponService) CreateCoupon(ctx context.Context, cmd CreateCouponCommand) (Coupon, error) {
	if strings.TrimSpace(cmd.ProviderID) == "" {
		return Coupon{}, &CouponInputError{Details: []string{"provider id is required"}}
	}
	if details := validateCouponFields(cmd, s.clock()); len(details) > 0 {
		return Coupon{}, &CouponInputError{Details: details}
	}

	now := s.clock()
	isActive := true
	if cmd.IsActive != nil {
		isActive = *cmd.IsActive
	}
	currency := ""
	if cmd.Type == domain.CouponTypeFixed {
		currency = strings.ToUpper(strings.TrimSpace(cmd.Currency))
	}

	coupon := Coupon{
		ID:                   s.newID(),
		ProviderID:           strings.TrimSpace(cmd.ProviderID),
		Code:                 strings.ToUpper(strings.TrimSpace(cmd.Code)),
		Type:                 cmd.Type,
		Amount:               cmd.Amount,
		Currency:             currency,
		ExpiresAt:            cmd.ExpiresAt,
		MaxRedemptions:       cmd.MaxRedemptions,
		UsedCount:            0,
		ApplicableListingIDs: cmd.ApplicableListingIDs,
		IsActive:             isActive,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.coupons.Create(ctx, coupon); err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			return Coupon{}, ErrCouponDuplicateCode
		}
		return Coupon{}, err
	}

	s.logger(ctx, "coupon_created", map[string]any{"couponId": coupon.ID, "providerId": coupon.ProviderID, "code": coupon.Code})
	return coupon, nil
}

func (s *couponService) GetCoupon(ctx context.Context, couponID string) (Coupon, error) {
	couponID = strings.TrimSpace(couponID)
	if couponID == "" {
		return Coupon{}, &CouponInputError{Details: []string{"coupon id is required"}}
	}
	coupon, err := s.coupons.FindByID(ctx, couponID)
	if err != nil {
		return Coupon{}, s.mapNotFound(err)
	}
	return coupon, nil
}

func (s *couponService) ListCoupons(ctx context.Context, cmd ListCouponsCommand) ([]Coupon, error) {
	providerID := strings.TrimSpace(cmd.ProviderID)
	if providerID == "" {
		return nil, &CouponInputError{Details: []string{"provider id is required"}}
	}
	return s.coupons.ListByProvider(ctx, providerID, repositories.CouponListFilter{IncludeInactive: cmd.IncludeInactive})
}

func (s *couponService) UpdateCoupon(ctx context.Context, cmd UpdateCouponCommand) (Coupon, error) {
	couponID := strings.TrimSpace(cmd.CouponID)
	if couponID == "" {
		return Coupon{}, &CouponInputError{Details: []string{"coupon id is required"}}
	}
	if details := validateCouponUpdate(cmd, s.clock()); len(details) > 0 {
		return Coupon{}, &CouponInputError{Details: details}
	}

	update := repositories.CouponUpdate{
		Type:                 cmd.Type,
		Amount:               cmd.Amount,
		ExpiresAt:            cmd.ExpiresAt,
		ClearExpiry:          cmd.ClearExpiry,
		MaxRedemptions:       cmd.MaxRedemptions,
		ClearMaxRedemptions:  cmd.ClearMaxRedemptions,
		ApplicableListingIDs: cmd.ApplicableListingIDs,
		IsActive:             cmd.IsActive,
	}
	if cmd.Currency != nil {
		upper := strings.ToUpper(strings.TrimSpace(*cmd.Currency))
		update.Currency = &upper
	}

	coupon, err := s.coupons.Update(ctx, couponID, update)
	if err != nil {
		return Coupon{}, s.mapNotFound(err)
	}
	s.logger(ctx, "coupon_updated", map[string]any{"couponId": coupon.ID})
	return coupon, nil
}

func (s *couponService) DeleteCoupon(ctx context.Context, couponID string) error {
	couponID = strings.TrimSpace(couponID)
	if couponID == "" {
		return &CouponInputError{Details: []string{"coupon id is required"}}
	}
	if err := s.coupons.Delete(ctx, couponID); err != nil {
		return s.mapNotFound(err)
	}
	return nil
}

// ValidateCoupon resolves the code against the listing's provider and returns
// a discount preview, or a CouponRejectedError naming the refusal reason.
func (s *couponService) ValidateCoupon(ctx context.Context, cmd ValidateCouponCommand) (CouponValidation, error) {
	code := strings.ToUpper(strings.TrimSpace(cmd.Code))
	listingID := strings.TrimSpace(cmd.ListingID)
	if code == "" || listingID == "" || cmd.OrderTotal < 0 {
		return CouponValidation{}, &CouponInputError{Details: []string{"code, listing id, and a non-negative order total are required"}}
	}

	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return CouponValidation{}, ErrCouponListingNotFound
		}
		return CouponValidation{}, err
	}

	coupon, err := s.coupons.FindByCode(ctx, listing.ProviderID, code)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return CouponValidation{}, &CouponRejectedError{Reason: CouponRejectionNotFound, Code: code}
		}
		return CouponValidation{}, err
	}

	if reason, ok := rejectionReason(coupon, listingID, cmd.Currency, s.clock()); !ok {
		return CouponValidation{}, &CouponRejectedError{Reason: reason, Code: code}
	}

	discount := discountPreview(coupon, cmd.OrderTotal)
	return CouponValidation{
		Coupon:         coupon,
		DiscountAmount: discount,
		FinalTotal:     cmd.OrderTotal - discount,
		Currency:       strings.ToUpper(strings.TrimSpace(cmd.Currency)),
	}, nil
}

func (s *couponService) RedeemCoupon(ctx context.Context, couponID string) (Coupon, error) {
	couponID = strings.TrimSpace(couponID)
	if couponID == "" {
		return Coupon{}, &CouponInputError{Details: []string{"coupon id is required"}}
	}
	coupon, err := s.coupons.ApplyRedemption(ctx, couponID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) {
			switch {
			case repoErr.IsNotFound():
				return Coupon{}, ErrCouponNotFound
			case repoErr.IsConflict():
				return Coupon{}, &CouponRejectedError{Reason: CouponRejectionExhausted}
			}
		}
		return Coupon{}, err
	}
	s.logger(ctx, "coupon_redeemed", map[string]any{"couponId": coupon.ID, "usedCount": coupon.UsedCount})
	return coupon, nil
}

func (s *couponService) mapNotFound(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return ErrCouponNotFound
	}
	return err
}

// rejectionReason applies the checkout-time gating rules in check order:
// active, unexpired, under the redemption cap, applicable to the listing, and
// currency-compatible for fixed coupons.
func rejectionReason(coupon Coupon, listingID, currency string, now time.Time) (CouponRejectionReason, bool) {
	switch {
	case !coupon.IsActive:
		return CouponRejectionInactive, false
	case coupon.IsExpired(now):
		return CouponRejectionExpired, false
	case coupon.IsExhausted():
		return CouponRejectionExhausted, false
	case !coupon.AppliesToListing(listingID):
		return CouponRejectionNotApplicable, false
	}
	if coupon.Type == domain.CouponTypeFixed && currency != "" &&
		!strings.EqualFold(coupon.Currency, currency) {
		return CouponRejectionCurrencyMismatch, false
	}
	return "", true
}

// discountPreview mirrors the engine's discount arithmetic against a flat
// order total: percentage coupons round, fixed coupons convert major units to
// subunits, and the result is clamped to the order total.
func discountPreview(coupon Coupon, orderTotal int64) int64 {
	var discount int64
	switch coupon.Type {
	case domain.CouponTypePercentage:
		discount = int64(math.Round(float64(orderTotal) * coupon.Amount / 100))
	case domain.CouponTypeFixed:
		discount = int64(math.Round(coupon.Amount * 100))
	}
	if discount > orderTotal {
		discount = orderTotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

func validateCouponFields(cmd CreateCouponCommand, now time.Time) []string {
	var details []string
	if len(strings.TrimSpace(cmd.Code)) < 3 {
		details = append(details, "coupon code must be at least 3 characters long")
	}
	switch cmd.Type {
	case domain.CouponTypeFixed, domain.CouponTypePercentage:
	default:
		details = append(details, `type must be either "fixed" or "percentage"`)
	}
	if cmd.Amount <= 0 {
		details = append(details, "amount must be a positive number")
	}
	if cmd.Type == domain.CouponTypePercentage && cmd.Amount > 100 {
		details = append(details, "percentage discount cannot exceed 100%")
	}
	if cmd.Type == domain.CouponTypeFixed && strings.TrimSpace(cmd.Currency) == "" {
		details = append(details, "currency is required for fixed amount discounts")
	}
	if cmd.ExpiresAt != nil && !cmd.ExpiresAt.After(now) {
		details = append(details, "expiration date must be in the future")
	}
	if cmd.MaxRedemptions != nil && *cmd.MaxRedemptions < 1 {
		details = append(details, "max redemptions must be a positive number")
	}
	return details
}

func validateCouponUpdate(cmd UpdateCouponCommand, now time.Time) []string {
	var details []string
	if cmd.Type != nil {
		switch *cmd.Type {
		case domain.CouponTypeFixed, domain.CouponTypePercentage:
		default:
			details = append(details, `type must be either "fixed" or "percentage"`)
		}
	}
	if cmd.Amount != nil && *cmd.Amount <= 0 {
		details = append(details, "amount must be a positive number")
	}
	if cmd.Type != nil && *cmd.Type == domain.CouponTypePercentage && cmd.Amount != nil && *cmd.Amount > 100 {
		details = append(details, "percentage discount cannot exceed 100%")
	}
	if cmd.ExpiresAt != nil && !cmd.ExpiresAt.After(now) {
		details = append(details, "expiration date must be in the future")
	}
	if cmd.ExpiresAt != nil && cmd.ClearExpiry {
		details = append(details, "cannot set and clear the expiration date at once")
	}
	if cmd.MaxRedemptions != nil && *cmd.MaxRedemptions < 1 {
		details = append(details, "max redemptions must be a positive number")
	}
	if cmd.MaxRedemptions != nil && cmd.ClearMaxRedemptions {
		details = append(details, "cannot set and clear max redemptions at once")
	}
	return details
}
