package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Party identifies which side of a transaction a line item counts toward.
type Party string

const (
	// PartyCustomer marks line items that contribute to the payin total.
	PartyCustomer Party = "customer"
	// PartyProvider marks line items that contribute to the payout total.
	PartyProvider Party = "provider"
)

// Money represents an amount in minor currency units (e.g. cents) with an ISO 4217 code.
// Amounts are always integral; fractional subunits are never produced.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// NewMoney constructs a Money value.
func NewMoney(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToUpper(strings.TrimSpace(currency))}
}

// Negate returns the money value with its sign flipped.
func (m Money) Negate() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// MaxLineItemCodeLength bounds line item codes per the marketplace wire contract.
const MaxLineItemCodeLength = 64

// Line item codes shared between the pricing engine and the order breakdown.
const (
	CodeShippingFee        = "line-item/shipping-fee"
	CodeCouponDiscount     = "line-item/coupon-discount"
	CodeProviderCommission = "line-item/provider-commission"
	CodeCustomerCommission = "line-item/customer-commission"
)

// UnitCode returns the base order line item code for a unit type, e.g. "line-item/night".
func UnitCode(unitType UnitType) string {
	return "line-item/" + string(unitType)
}

// SalesTaxCode returns the line item code used for a resolved tax jurisdiction.
func SalesTaxCode(region string) string {
	return fmt.Sprintf("line-item/Sales Tax (%s)", region)
}

// LineItem is one priced row in a transaction breakdown. Exactly one of
// Quantity, Percentage, or the Units/Seats pair determines how LineTotal is
// derived from UnitPrice.
type LineItem struct {
	Code       string   `json:"code"`
	UnitPrice  Money    `json:"unitPrice"`
	Quantity   *int64   `json:"quantity,omitempty"`
	Units      *int64   `json:"units,omitempty"`
	Seats      *int64   `json:"seats,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`
	LineTotal  *Money   `json:"lineTotal,omitempty"`
	IncludeFor []Party  `json:"includeFor"`
	Reversal   bool     `json:"reversal"`
}

// IncludesParty reports whether the item counts toward the given party's total.
func (li LineItem) IncludesParty(party Party) bool {
	for _, p := range li.IncludeFor {
		if p == party {
			return true
		}
	}
	return false
}

// Total derives the line total from the unit price and whichever quantity
// factor is present. Percentage totals are rounded to the nearest subunit.
func (li LineItem) Total() Money {
	amount := li.UnitPrice.Amount
	switch {
	case li.Quantity != nil:
		amount = li.UnitPrice.Amount * *li.Quantity
	case li.Units != nil && li.Seats != nil:
		amount = li.UnitPrice.Amount * *li.Units * *li.Seats
	case li.Percentage != nil:
		amount = int64(math.Round(float64(li.UnitPrice.Amount) * *li.Percentage / 100))
	}
	return Money{Amount: amount, Currency: li.UnitPrice.Currency}
}

// UnitType enumerates the order unit semantics a listing can be booked or bought with.
type UnitType string

const (
	// UnitTypeDay prices bookings by calendar day.
	UnitTypeDay UnitType = "day"
	// UnitTypeNight prices bookings by night.
	UnitTypeNight UnitType = "night"
	// UnitTypeHour prices bookings by elapsed hour.
	UnitTypeHour UnitType = "hour"
	// UnitTypeFixed prices fixed-duration sessions, optionally with seats.
	UnitTypeFixed UnitType = "fixed"
	// UnitTypeItem prices product purchases by stock quantity.
	UnitTypeItem UnitType = "item"
)

// IsBookable reports whether the unit type represents a time-based booking.
func (u UnitType) IsBookable() bool {
	switch u {
	case UnitTypeDay, UnitTypeNight, UnitTypeHour, UnitTypeFixed:
		return true
	}
	return false
}

// PriceVariant is a named alternate price/duration pairing for a bookable listing.
type PriceVariant struct {
	Name                   string `json:"name"`
	PriceInSubunits        *int64 `json:"priceInSubunits,omitempty"`
	BookingLengthInMinutes int64  `json:"bookingLengthInMinutes,omitempty"`
}

// ListingPublicData carries the listing attributes the pricing engine reads.
type ListingPublicData struct {
	UnitType                     UnitType       `json:"unitType"`
	PriceVariants                []PriceVariant `json:"priceVariants,omitempty"`
	PriceVariationsEnabled       bool           `json:"priceVariationsEnabled"`
	ShippingPriceOneItem         *int64         `json:"shippingPriceInSubunitsOneItem,omitempty"`
	ShippingPriceAdditionalItems *int64         `json:"shippingPriceInSubunitsAdditionalItems,omitempty"`
	Address                      string         `json:"address,omitempty"`
}

// FindPriceVariant returns the named variant, or nil when absent.
func (pd ListingPublicData) FindPriceVariant(name string) *PriceVariant {
	for i := range pd.PriceVariants {
		if pd.PriceVariants[i].Name == name {
			return &pd.PriceVariants[i]
		}
	}
	return nil
}

// Geolocation is a WGS84 coordinate pair attached to a listing.
type Geolocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Listing is the subset of a marketplace listing consumed by pricing.
type Listing struct {
	ID          string            `json:"id"`
	ProviderID  string            `json:"providerId"`
	Title       string            `json:"title,omitempty"`
	Price       Money             `json:"price"`
	Geolocation *Geolocation      `json:"geolocation,omitempty"`
	PublicData  ListingPublicData `json:"publicData"`
}

// SelectedPlace is a location picked by the customer during checkout.
type SelectedPlace struct {
	Address   string `json:"address,omitempty"`
	StateName string `json:"stateName,omitempty"`
}

// OrderLocation wraps the customer's location choice payload.
type OrderLocation struct {
	SelectedPlace *SelectedPlace `json:"selectedPlace,omitempty"`
}

// Delivery methods for item-type orders.
const (
	DeliveryShipping = "shipping"
	DeliveryPickup   = "pickup"
)

// Location choices for where a booked service takes place.
const (
	LocationChoiceProvider = "providerLocation"
	LocationChoiceCustomer = "mylocation"
)

// OrderData is the ephemeral per-request input bag describing what is being
// ordered. It is owned by the caller and never persisted by the pricing core.
type OrderData struct {
	StockReservationQuantity *int64            `json:"stockReservationQuantity,omitempty"`
	DeliveryMethod           string            `json:"deliveryMethod,omitempty"`
	BookingStart             *time.Time        `json:"bookingStart,omitempty"`
	BookingEnd               *time.Time        `json:"bookingEnd,omitempty"`
	Seats                    *int64            `json:"seats,omitempty"`
	PriceVariantName         string            `json:"priceVariantName,omitempty"`
	PriceVariantNames        []string          `json:"priceVariantNames,omitempty"`
	CouponCode               string            `json:"couponCode,omitempty"`
	Coupon                   *Coupon           `json:"coupon,omitempty"`
	LocationChoice           string            `json:"locationChoice,omitempty"`
	Location                 *OrderLocation    `json:"location,omitempty"`
	BookingQuestions         map[string]string `json:"bookingQuestions,omitempty"`
}

// CouponType distinguishes fixed-amount and percentage coupons.
type CouponType string

const (
	// CouponTypeFixed discounts a fixed amount given in major currency units.
	CouponTypeFixed CouponType = "fixed"
	// CouponTypePercentage discounts a percentage of the customer subtotal.
	CouponTypePercentage CouponType = "percentage"
)

// Coupon is a provider-owned discount code. Codes are stored uppercase and are
// unique per provider; UsedCount and IsActive are the only fields this system
// mutates after creation.
type Coupon struct {
	ID                   string     `json:"id"`
	ProviderID           string     `json:"providerId"`
	Code                 string     `json:"code"`
	Type                 CouponType `json:"type"`
	Amount               float64    `json:"amount"`
	Currency             string     `json:"currency,omitempty"`
	ExpiresAt            *time.Time `json:"expiresAt,omitempty"`
	MaxRedemptions       *int64     `json:"maxRedemptions,omitempty"`
	UsedCount            int64      `json:"usedCount"`
	ApplicableListingIDs []string   `json:"applicableListingIds,omitempty"`
	IsActive             bool       `json:"isActive"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// AppliesToListing reports whether the coupon is restricted away from the
// given listing. An empty restriction list applies to all listings.
func (c Coupon) AppliesToListing(listingID string) bool {
	if len(c.ApplicableListingIDs) == 0 {
		return true
	}
	for _, id := range c.ApplicableListingIDs {
		if id == listingID {
			return true
		}
	}
	return false
}

// IsExpired reports whether the coupon has an expiry at or before now.
func (c Coupon) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// IsExhausted reports whether the coupon has reached its redemption cap.
func (c Coupon) IsExhausted() bool {
	return c.MaxRedemptions != nil && c.UsedCount >= *c.MaxRedemptions
}

// Commission is a percentage cut with a minimum floor in minor currency units.
type Commission struct {
	Percentage    float64 `json:"percentage"`
	MinimumAmount int64   `json:"minimum_amount"`
}

// IsZero reports whether the commission is a no-op.
func (c Commission) IsZero() bool {
	return c.Percentage == 0 && c.MinimumAmount == 0
}

// CommissionPair bundles the two independent commission configurations of a transaction.
type CommissionPair struct {
	Provider Commission `json:"providerCommission"`
	Customer Commission `json:"customerCommission"`
}

// RecurringCommissionTier is the alternate commission configuration applied
// when a qualifying prior transaction exists between customer and listing.
// It is injected as external configuration, not compiled in.
type RecurringCommissionTier struct {
	Provider        Commission `json:"providerCommission"`
	Customer        Commission `json:"customerCommission"`
	ApplyToCustomer bool       `json:"applyToCustomer"`
	Version         string     `json:"version,omitempty"`
}

// Profile is the subset of a marketplace user profile this service reads. A
// non-nil CustomCommission overrides the marketplace default for that user.
type Profile struct {
	ID               string      `json:"id"`
	DisplayName      string      `json:"displayName,omitempty"`
	Email            string      `json:"email,omitempty"`
	StripeAccountID  string      `json:"stripeAccountId,omitempty"`
	CustomCommission *Commission `json:"customCommission,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// TaxJurisdiction maps a region name to its total applicable tax rate percentage.
type TaxJurisdiction struct {
	Region                 string  `json:"province"`
	TotalApplicableTaxRate float64 `json:"total_applicable_tax_rate"`
}

// CompletedTransitions is the fixed set of last-transition names that qualify a
// prior transaction for the recurring-customer commission tier.
var CompletedTransitions = []string{
	"transition/accept",
	"transition/complete",
	"transition/operator-accept",
	"transition/review-1-by-provider",
	"transition/review-2-by-provider",
	"transition/review-1-by-customer",
	"transition/review-2-by-customer",
	"transition/expire-customer-review-period",
	"transition/expire-provider-review-period",
	"transition/expire-review-period",
	"transition/confirm-payment",
}

// Transaction is the booking record this service keeps alongside the
// marketplace platform's own transaction entity.
type Transaction struct {
	ID             string         `json:"id"`
	CustomerID     string         `json:"customerId"`
	ProviderID     string         `json:"providerId"`
	ListingID      string         `json:"listingId"`
	LastTransition string         `json:"lastTransition"`
	LineItems      []LineItem     `json:"lineItems"`
	PayinTotal     Money          `json:"payinTotal"`
	PayoutTotal    Money          `json:"payoutTotal"`
	CouponCode     string         `json:"couponCode,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}
