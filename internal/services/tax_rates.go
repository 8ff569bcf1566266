package services

import (
	"strings"

	domain "github.com/harborstay/api/internal/domain"
)

// StaticTaxTable is an in-memory TaxRateSource over a fixed jurisdiction list.
// Region names match case-insensitively.
type StaticTaxTable struct {
	byRegion map[string]TaxJurisdiction
}

var _ TaxRateSource = (*StaticTaxTable)(nil)

// NewStaticTaxTable builds a table from the given jurisdictions. Later entries
// with the same region name win.
func NewStaticTaxTable(jurisdictions []TaxJurisdiction) *StaticTaxTable {
	byRegion := make(map[string]TaxJurisdiction, len(jurisdictions))
	for _, j := range jurisdictions {
		key := strings.ToLower(strings.TrimSpace(j.Region))
		if key == "" {
			continue
		}
		byRegion[key] = j
	}
	return &StaticTaxTable{byRegion: byRegion}
}

// Lookup resolves a region name to its jurisdiction.
func (t *StaticTaxTable) Lookup(region string) (TaxJurisdiction, bool) {
	if t == nil {
		return TaxJurisdiction{}, false
	}
	j, ok := t.byRegion[strings.ToLower(strings.TrimSpace(region))]
	return j, ok
}

// CanadianTaxTable returns the combined GST/PST/HST rates per province and
// territory.
func CanadianTaxTable() *StaticTaxTable {
	return NewStaticTaxTable([]domain.TaxJurisdiction{
		{Region: "Alberta", TotalApplicableTaxRate: 5},
		{Region: "British Columbia", TotalApplicableTaxRate: 12},
		{Region: "Manitoba", TotalApplicableTaxRate: 12},
		{Region: "New Brunswick", TotalApplicableTaxRate: 15},
		{Region: "Newfoundland and Labrador", TotalApplicableTaxRate: 15},
		{Region: "Northwest Territories", TotalApplicableTaxRate: 5},
		{Region: "Nova Scotia", TotalApplicableTaxRate: 15},
		{Region: "Nunavut", TotalApplicableTaxRate: 5},
		{Region: "Ontario", TotalApplicableTaxRate: 13},
		{Region: "Prince Edward Island", TotalApplicableTaxRate: 15},
		{Region: "Quebec", TotalApplicableTaxRate: 14.975},
		{Region: "Saskatchewan", TotalApplicableTaxRate: 11},
		{Region: "Yukon", TotalApplicableTaxRate: 5},
	})
}
