package services

import (
	"math"

	domain "github.com/harborstay/api/internal/domain"
)

// commissionLineItem computes one side's commission row against the
// post-coupon, pre-tax subtotal. The amount is the configured percentage of
// the side's basis, floored at the configured minimum. A zero-configured
// commission is omitted entirely rather than emitted as a zero row.
//
// The provider commission reduces the payout and is carried with a negative
// unit price; the customer commission increases the payin and stays positive.
func commissionLineItem(config Commission, basisItems []LineItem, side Party, currency string) *LineItem {
	if config.IsZero() {
		return nil
	}

	basis := commissionBasis(basisItems, side)
	amount := int64(math.Round(float64(basis) * config.Percentage / 100))
	if amount < config.MinimumAmount {
		amount = config.MinimumAmount
	}
	if amount <= 0 {
		return nil
	}

	code := domain.CodeCustomerCommission
	unitPrice := domain.NewMoney(amount, currency)
	if side == domain.PartyProvider {
		code = domain.CodeProviderCommission
		unitPrice = unitPrice.Negate()
	}

	one := int64(1)
	return &LineItem{
		Code:       code,
		UnitPrice:  unitPrice,
		Quantity:   &one,
		IncludeFor: []Party{side},
	}
}

// commissionBasis sums the line totals included for the given side.
func commissionBasis(items []LineItem, side Party) int64 {
	var basis int64
	for _, item := range items {
		if !item.IncludesParty(side) {
			continue
		}
		basis += item.Total().Amount
	}
	return basis
}
