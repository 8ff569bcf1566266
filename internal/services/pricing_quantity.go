package services

import (
	"time"

	domain "github.com/harborstay/api/internal/domain"
)

// resolvedQuantity carries the quantity factors derived from the order data
// plus any unit-type specific extra line items (e.g. a shipping fee).
type resolvedQuantity struct {
	Quantity       *int64
	Units          *int64
	Seats          *int64
	ExtraLineItems []LineItem
}

// resolveQuantity derives quantity/units/seats for the given unit type.
//   - item: stock reservation quantity, plus a shipping fee when delivery is
//     "shipping" and shipping prices are configured. Pickup is free.
//   - fixed: one unit, split into units x seats when seats are requested.
//   - hour/day/night: units from the booking range, seat-split the same way.
func resolveQuantity(unitType UnitType, orderData OrderData, publicData domain.ListingPublicData, currency string) (resolvedQuantity, error) {
	switch unitType {
	case domain.UnitTypeItem:
		return itemQuantity(orderData, publicData, currency), nil
	case domain.UnitTypeFixed:
		return seatSplit(int64Ptr(1), orderData.Seats), nil
	case domain.UnitTypeHour:
		return seatSplit(hourUnits(orderData), orderData.Seats), nil
	case domain.UnitTypeDay, domain.UnitTypeNight:
		return seatSplit(dateRangeUnits(orderData), orderData.Seats), nil
	}
	return resolvedQuantity{}, nil
}

func itemQuantity(orderData OrderData, publicData domain.ListingPublicData, currency string) resolvedQuantity {
	resolved := resolvedQuantity{Quantity: positiveCount(orderData.StockReservationQuantity)}

	if orderData.DeliveryMethod != domain.DeliveryShipping {
		return resolved
	}
	fee := shippingFee(publicData, orderData.StockReservationQuantity)
	if fee == nil {
		return resolved
	}

	one := int64(1)
	resolved.ExtraLineItems = []LineItem{{
		Code:       domain.CodeShippingFee,
		UnitPrice:  domain.NewMoney(*fee, currency),
		Quantity:   &one,
		IncludeFor: bothParties(),
	}}
	return resolved
}

// shippingFee is the first-item rate plus the additional-item rate for every
// unit beyond the first. Nil when rates or quantity are not configured.
func shippingFee(publicData domain.ListingPublicData, quantity *int64) *int64 {
	if publicData.ShippingPriceOneItem == nil || quantity == nil || *quantity <= 0 {
		return nil
	}
	fee := *publicData.ShippingPriceOneItem
	if *quantity > 1 && publicData.ShippingPriceAdditionalItems != nil {
		fee += (*quantity - 1) * *publicData.ShippingPriceAdditionalItems
	}
	return &fee
}

// seatSplit multiplies the unit count by seats when seats are requested:
// e.g. 3 nights x 4 seats prices the unit price twelve times.
func seatSplit(units *int64, seats *int64) resolvedQuantity {
	units = positiveCount(units)
	if seats := positiveCount(seats); seats != nil {
		return resolvedQuantity{Units: units, Seats: seats}
	}
	return resolvedQuantity{Quantity: units}
}

// positiveCount treats a zero or negative count as absent, so downstream
// missing-data checks reject it instead of pricing an empty order.
func positiveCount(v *int64) *int64 {
	if v == nil || *v <= 0 {
		return nil
	}
	return v
}

func hourUnits(orderData OrderData) *int64 {
	if orderData.BookingStart == nil || orderData.BookingEnd == nil {
		return nil
	}
	start, end := *orderData.BookingStart, *orderData.BookingEnd
	if !end.After(start) {
		return nil
	}
	hours := int64(end.Sub(start) / time.Hour)
	if end.Sub(start)%time.Hour != 0 {
		hours++
	}
	return &hours
}

// dateRangeUnits counts the nights between the booking dates: the calendar
// date difference, never less than one for a forward-moving range.
func dateRangeUnits(orderData OrderData) *int64 {
	if orderData.BookingStart == nil || orderData.BookingEnd == nil {
		return nil
	}
	start, end := *orderData.BookingStart, *orderData.BookingEnd
	if !end.After(start) {
		return nil
	}
	days := int64(truncateToDate(end).Sub(truncateToDate(start)) / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	return &days
}

func truncateToDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func int64Ptr(v int64) *int64 {
	return &v
}
