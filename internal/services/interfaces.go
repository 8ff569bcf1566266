package services

import (
	"context"
	"time"

	domain "github.com/harborstay/api/internal/domain"
	"github.com/harborstay/api/internal/geocode"
	"github.com/harborstay/api/internal/payments"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Party                   = domain.Party
	Money                   = domain.Money
	LineItem                = domain.LineItem
	UnitType                = domain.UnitType
	PriceVariant            = domain.PriceVariant
	Listing                 = domain.Listing
	OrderData               = domain.OrderData
	Coupon                  = domain.Coupon
	CouponType              = domain.CouponType
	Commission              = domain.Commission
	CommissionPair          = domain.CommissionPair
	RecurringCommissionTier = domain.RecurringCommissionTier
	Profile                 = domain.Profile
	TaxJurisdiction         = domain.TaxJurisdiction
	Transaction             = domain.Transaction
)

// RegionResolver turns a free-form address into an administrative region.
// Implementations are best-effort: a zero Region means "unknown".
type RegionResolver interface {
	Geocode(ctx context.Context, address string) (geocode.Region, error)
}

// TaxRateSource resolves a region name (case-insensitive) to a tax jurisdiction.
type TaxRateSource interface {
	Lookup(region string) (TaxJurisdiction, bool)
}

// TransactionEvent is a domain event emitted after durable transaction state changes.
type TransactionEvent struct {
	Type          string            `json:"type"`
	TransactionID string            `json:"transactionId"`
	ListingID     string            `json:"listingId,omitempty"`
	CustomerID    string            `json:"customerId,omitempty"`
	ProviderID    string            `json:"providerId,omitempty"`
	OccurredAt    time.Time         `json:"occurredAt"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// TransactionEventPublisher fans transaction events out to interested consumers.
type TransactionEventPublisher interface {
	PublishTransactionEvent(ctx context.Context, event TransactionEvent) error
}

// CommissionResolver computes the effective provider/customer commission pair
// for a pricing request, applying the recurring > custom > default precedence.
type CommissionResolver interface {
	ResolveCommissions(ctx context.Context, cmd ResolveCommissionsCommand) (CommissionPair, error)
}

// QuoteService prices an order against a listing and returns validated line items.
type QuoteService interface {
	QuoteLineItems(ctx context.Context, cmd QuoteCommand) ([]LineItem, error)
}

// CouponService manages provider-owned coupons and checkout-time validation.
type CouponService interface {
	CreateCoupon(ctx context.Context, cmd CreateCouponCommand) (Coupon, error)
	GetCoupon(ctx context.Context, couponID string) (Coupon, error)
	ListCoupons(ctx context.Context, cmd ListCouponsCommand) ([]Coupon, error)
	UpdateCoupon(ctx context.Context, cmd UpdateCouponCommand) (Coupon, error)
	DeleteCoupon(ctx context.Context, couponID string) error
	ValidateCoupon(ctx context.Context, cmd ValidateCouponCommand) (CouponValidation, error)

	// RedeemCoupon applies a single redemption. Callers performing post-payment
	// side effects must treat failures as best-effort (log and continue).
	RedeemCoupon(ctx context.Context, couponID string) (Coupon, error)
}

// CheckoutService coordinates booking initiation, payment confirmation, and
// the auxiliary payment intents (tips, cancellation fines).
type CheckoutService interface {
	InitiateBooking(ctx context.Context, cmd InitiateBookingCommand) (BookingResult, error)
	ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (payments.PaymentDetails, error)
	CreateTipIntent(ctx context.Context, cmd TipIntentCommand) (payments.Intent, error)
	CreateCancellationFineIntent(ctx context.Context, cmd CancellationFineCommand) (payments.Intent, error)
}
