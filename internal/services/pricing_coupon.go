package services

import (
	"math"
	"strings"

	domain "github.com/harborstay/api/internal/domain"
)

// couponDiscountLineItem computes the bounded discount row for a coupon, or
// nil when the coupon is absent, malformed, or yields no positive discount.
// Validity gating (active/expired/exhausted/applicable) happens upstream; this
// only computes the monetary effect.
func couponDiscountLineItem(coupon *Coupon, baseLineItems []LineItem, currency string) *LineItem {
	if coupon == nil || strings.TrimSpace(coupon.Code) == "" {
		return nil
	}

	subtotal := customerSubtotal(baseLineItems)

	var discount int64
	switch coupon.Type {
	case domain.CouponTypePercentage:
		discount = int64(math.Round(float64(subtotal) * coupon.Amount / 100))
	case domain.CouponTypeFixed:
		// Fixed amounts are given in major units; convert to subunits.
		discount = int64(math.Round(coupon.Amount * 100))
	default:
		return nil
	}

	if discount > subtotal {
		discount = subtotal
	}
	if discount <= 0 {
		return nil
	}

	one := int64(1)
	return &LineItem{
		Code:       domain.CodeCouponDiscount,
		UnitPrice:  domain.NewMoney(-discount, currency),
		Quantity:   &one,
		IncludeFor: bothParties(),
	}
}

// customerSubtotal sums the customer-facing contributions of the base items,
// excluding commission rows so the discount never compounds on them.
func customerSubtotal(items []LineItem) int64 {
	var subtotal int64
	for _, item := range items {
		if !item.IncludesParty(domain.PartyCustomer) {
			continue
		}
		if strings.Contains(item.Code, "commission") {
			continue
		}
		subtotal += item.Total().Amount
	}
	return subtotal
}
