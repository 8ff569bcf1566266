package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/harborstay/api/internal/domain"
)

var (
	// ErrPricingInvalidInput signals a malformed listing or order payload.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
)

// MissingOrderDataError reports which quantity factors could not be resolved
// from the order data. It is a client fault: the request cannot be priced.
type MissingOrderDataError struct {
	Fields []string
}

func (e *MissingOrderDataError) Error() string {
	return fmt.Sprintf("order data is missing the following information: %s; quantity or either units & seats is required", strings.Join(e.Fields, ", "))
}

// LineItemEngine assembles the ordered line item breakdown for a transaction:
// base order items and unit-type extras, then coupon discount, sales tax, and
// the two commission items. The sum of customer-included totals is the payin
// total and the sum of provider-included totals is the payout total.
type LineItemEngine struct {
	geocoder RegionResolver
	taxRates TaxRateSource
	logger   func(context.Context, string, map[string]any)
}

// LineItemEngineDeps bundles the collaborators of a LineItemEngine. Geocoder
// and TaxRates are optional; without them no sales tax line item is produced.
type LineItemEngineDeps struct {
	Geocoder RegionResolver
	TaxRates TaxRateSource
	Logger   func(context.Context, string, map[string]any)
}

// NewLineItemEngine wires a LineItemEngine.
func NewLineItemEngine(deps LineItemEngineDeps) (*LineItemEngine, error) {
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &LineItemEngine{
		geocoder: deps.Geocoder,
		taxRates: deps.TaxRates,
		logger:   logger,
	}, nil
}

// ComputeLineItems prices the order. It fails fast only on invalid input or
// unresolvable quantity data; coupon, tax, and geocoding resolution degrade by
// omitting their line item.
func (e *LineItemEngine) ComputeLineItems(ctx context.Context, listing Listing, orderData OrderData, providerCommission, customerCommission Commission) ([]LineItem, error) {
	if err := validatePricingInput(listing); err != nil {
		return nil, err
	}

	publicData := listing.PublicData
	unitType := publicData.UnitType
	currency := listing.Price.Currency

	unitPrice := resolveUnitPrice(listing, orderData)

	resolved, err := resolveQuantity(unitType, orderData, publicData, currency)
	if err != nil {
		return nil, err
	}
	if resolved.Quantity == nil && (resolved.Units == nil || resolved.Seats == nil) {
		return nil, missingOrderDataError(resolved)
	}

	baseRows := e.baseOrderLineItems(ctx, listing, orderData, unitPrice, resolved)
	if len(baseRows) == 0 {
		return nil, fmt.Errorf("%w: none of the requested price variants are offered by the listing", ErrPricingInvalidInput)
	}
	baseItems := append([]LineItem{}, resolved.ExtraLineItems...)
	baseItems = append(baseItems, baseRows...)

	couponItem := couponDiscountLineItem(orderData.Coupon, baseItems, currency)

	withCoupon := baseItems
	if couponItem != nil {
		withCoupon = append(append([]LineItem{}, baseItems...), *couponItem)
	}

	taxItem := e.resolveTaxLineItem(ctx, listing, orderData, withCoupon, currency)

	items := append([]LineItem{}, baseItems...)
	if taxItem != nil {
		items = append(items, *taxItem)
	}
	if couponItem != nil {
		items = append(items, *couponItem)
	}
	// Commissions are computed on the post-coupon, pre-tax subtotal.
	if item := commissionLineItem(providerCommission, withCoupon, domain.PartyProvider, currency); item != nil {
		items = append(items, *item)
	}
	if item := commissionLineItem(customerCommission, withCoupon, domain.PartyCustomer, currency); item != nil {
		items = append(items, *item)
	}

	return items, nil
}

// baseOrderLineItems builds the base order rows. A non-empty priceVariantNames
// list yields one independently priced row per named variant; otherwise a
// single row priced at unitPrice.
func (e *LineItemEngine) baseOrderLineItems(ctx context.Context, listing Listing, orderData OrderData, unitPrice Money, resolved resolvedQuantity) []LineItem {
	publicData := listing.PublicData
	currency := listing.Price.Currency

	if len(orderData.PriceVariantNames) == 0 {
		item := LineItem{
			Code:       domain.UnitCode(publicData.UnitType),
			UnitPrice:  unitPrice,
			Quantity:   resolved.Quantity,
			Units:      resolved.Units,
			Seats:      resolved.Seats,
			IncludeFor: bothParties(),
		}
		return []LineItem{item}
	}

	items := make([]LineItem, 0, len(orderData.PriceVariantNames))
	for _, name := range orderData.PriceVariantNames {
		variant := publicData.FindPriceVariant(name)
		if variant == nil || variant.PriceInSubunits == nil {
			e.logger(ctx, "price_variant_skipped", map[string]any{"listingId": listing.ID, "variant": name})
			continue
		}
		quantity := variantQuantity(resolved)
		items = append(items, LineItem{
			Code:       fmt.Sprintf("line-item/%s (%d minutes)", variant.Name, variant.BookingLengthInMinutes),
			UnitPrice:  domain.NewMoney(*variant.PriceInSubunits, currency),
			Quantity:   &quantity,
			IncludeFor: bothParties(),
		})
	}
	return items
}

func validatePricingInput(listing Listing) error {
	if strings.TrimSpace(listing.Price.Currency) == "" {
		return fmt.Errorf("%w: listing price currency is required", ErrPricingInvalidInput)
	}
	switch listing.PublicData.UnitType {
	case domain.UnitTypeDay, domain.UnitTypeNight, domain.UnitTypeHour, domain.UnitTypeFixed, domain.UnitTypeItem:
		return nil
	default:
		return fmt.Errorf("%w: unknown unit type %q", ErrPricingInvalidInput, listing.PublicData.UnitType)
	}
}

// resolveUnitPrice prefers the selected price variant's subunit price when the
// listing is bookable, variants are enabled, and the variant price is a valid
// non-negative integer; otherwise the listing base price applies.
func resolveUnitPrice(listing Listing, orderData OrderData) Money {
	publicData := listing.PublicData
	if !publicData.UnitType.IsBookable() || !publicData.PriceVariationsEnabled {
		return listing.Price
	}
	variant := publicData.FindPriceVariant(orderData.PriceVariantName)
	if variant == nil || variant.PriceInSubunits == nil || *variant.PriceInSubunits < 0 {
		return listing.Price
	}
	return domain.NewMoney(*variant.PriceInSubunits, listing.Price.Currency)
}

func missingOrderDataError(resolved resolvedQuantity) *MissingOrderDataError {
	fields := make([]string, 0, 3)
	if resolved.Quantity == nil {
		fields = append(fields, "quantity")
	}
	if resolved.Units == nil {
		fields = append(fields, "units")
	}
	if resolved.Seats == nil {
		fields = append(fields, "seats")
	}
	return &MissingOrderDataError{Fields: fields}
}

func variantQuantity(resolved resolvedQuantity) int64 {
	if resolved.Quantity != nil {
		return *resolved.Quantity
	}
	if resolved.Seats != nil {
		return *resolved.Seats
	}
	return 1
}

func bothParties() []Party {
	return []Party{domain.PartyCustomer, domain.PartyProvider}
}

// ValidatedLineItems fills the derived attributes the marketplace API adds to
// its own responses: lineTotal from the unit price and quantity factors, and
// an explicit reversal flag.
func ValidatedLineItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, item := range items {
		total := item.Total()
		item.LineTotal = &total
		item.Reversal = false
		out[i] = item
	}
	return out
}

// PartyTotal sums the line totals of the items included for the given party.
// The customer total is the payin amount; the provider total is the payout.
func PartyTotal(items []LineItem, party Party, currency string) Money {
	var sum int64
	for _, item := range items {
		if !item.IncludesParty(party) {
			continue
		}
		sum += item.Total().Amount
	}
	return domain.NewMoney(sum, currency)
}
