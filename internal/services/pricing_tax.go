package services

import (
	"context"
	"math"
	"strings"

	domain "github.com/harborstay/api/internal/domain"
)

// resolveTaxLineItem produces the sales tax row for the order's jurisdiction,
// or nil when no region can be resolved or the region is untaxed. Every
// lookup failure degrades to "no tax line item"; tax resolution never aborts
// the pricing computation.
func (e *LineItemEngine) resolveTaxLineItem(ctx context.Context, listing Listing, orderData OrderData, taxableItems []LineItem, currency string) *LineItem {
	if e.taxRates == nil {
		return nil
	}

	region := e.resolveTaxRegion(ctx, listing, orderData)
	if region == "" {
		return nil
	}

	jurisdiction, ok := e.taxRates.Lookup(region)
	if !ok {
		e.logger(ctx, "tax_region_unmatched", map[string]any{"listingId": listing.ID, "region": region})
		return nil
	}

	var subtotal int64
	for _, item := range taxableItems {
		subtotal += item.Total().Amount
	}
	amount := int64(math.Round(float64(subtotal) * jurisdiction.TotalApplicableTaxRate / 100))
	if amount == 0 {
		return nil
	}

	one := int64(1)
	return &LineItem{
		Code:       domain.SalesTaxCode(region),
		UnitPrice:  domain.NewMoney(amount, currency),
		Quantity:   &one,
		IncludeFor: bothParties(),
	}
}

// resolveTaxRegion picks the jurisdiction region name. When the order takes
// place at the provider's location the listing address is geocoded; otherwise
// the customer's already-selected place is used as-is to avoid a redundant
// lookup.
func (e *LineItemEngine) resolveTaxRegion(ctx context.Context, listing Listing, orderData OrderData) string {
	if orderData.LocationChoice == domain.LocationChoiceProvider {
		address := strings.TrimSpace(listing.PublicData.Address)
		if address == "" || e.geocoder == nil {
			return ""
		}
		region, err := e.geocoder.Geocode(ctx, address)
		if err != nil {
			e.logger(ctx, "tax_geocode_failed", map[string]any{"listingId": listing.ID, "error": err.Error()})
			return ""
		}
		return region.StateName
	}

	if orderData.Location != nil && orderData.Location.SelectedPlace != nil {
		return orderData.Location.SelectedPlace.StateName
	}
	return ""
}
