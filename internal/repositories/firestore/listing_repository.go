package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/harborstay/api/internal/domain"
	pfirestore "github.com/harborstay/api/internal/platform/firestore"
	"github.com/harborstay/api/internal/repositories"
)

const listingsCollection = "listings"

type listingPriceVariantDocument struct {
	Name                   string `firestore:"name"`
	PriceInSubunits        *int64 `firestore:"priceInSubunits,omitempty"`
	BookingLengthInMinutes int64  `firestore:"bookingLengthInMinutes,omitempty"`
}

type listingDocument struct {
	ProviderID  string  `firestore:"providerId"`
	Title       string  `firestore:"title,omitempty"`
	PriceAmount int64   `firestore:"priceAmount"`
	Currency    string  `firestore:"currency"`
	GeoLat      *float64 `firestore:"geoLat,omitempty"`
	GeoLng      *float64 `firestore:"geoLng,omitempty"`

	UnitType                     string                        `firestore:"unitType"`
	PriceVariants                []listingPriceVariantDocument `firestore:"priceVariants,omitempty"`
	PriceVariationsEnabled       bool                          `firestore:"priceVariationsEnabled"`
	ShippingPriceOneItem         *int64                        `firestore:"shippingPriceInSubunitsOneItem,omitempty"`
	ShippingPriceAdditionalItems *int64                        `firestore:"shippingPriceInSubunitsAdditionalItems,omitempty"`
	Address                      string                        `firestore:"address,omitempty"`
}

func (d listingDocument) toDomain(id string) domain.Listing {
	variants := make([]domain.PriceVariant, 0, len(d.PriceVariants))
	for _, v := range d.PriceVariants {
		variants = append(variants, domain.PriceVariant{
			Name:                   v.Name,
			PriceInSubunits:        v.PriceInSubunits,
			BookingLengthInMinutes: v.BookingLengthInMinutes,
		})
	}

	listing := domain.Listing{
		ID:         id,
		ProviderID: d.ProviderID,
		Title:      d.Title,
		Price:      domain.NewMoney(d.PriceAmount, d.Currency),
		PublicData: domain.ListingPublicData{
			UnitType:                     domain.UnitType(d.UnitType),
			PriceVariants:                variants,
			PriceVariationsEnabled:       d.PriceVariationsEnabled,
			ShippingPriceOneItem:         d.ShippingPriceOneItem,
			ShippingPriceAdditionalItems: d.ShippingPriceAdditionalItems,
			Address:                      d.Address,
		},
	}
	if d.GeoLat != nil && d.GeoLng != nil {
		listing.Geolocation = &domain.Geolocation{Lat: *d.GeoLat, Lng: *d.GeoLng}
	}
	return listing
}

// ListingRepository implements repositories.ListingRepository backed by Firestore.
type ListingRepository struct {
	listings *pfirestore.BaseRepository[listingDocument]
}

var _ repositories.ListingRepository = (*ListingRepository)(nil)

// NewListingRepository constructs a Firestore-backed listing repository.
func NewListingRepository(provider *pfirestore.Provider) (*ListingRepository, error) {
	if provider == nil {
		return nil, errors.New("listing repository requires firestore provider")
	}
	return &ListingRepository{
		listings: pfirestore.NewBaseRepository[listingDocument](provider, listingsCollection, nil, nil),
	}, nil
}

// FindByID fetches a listing by identifier.
func (r *ListingRepository) FindByID(ctx context.Context, listingID string) (domain.Listing, error) {
	if r == nil || r.listings == nil {
		return domain.Listing{}, errors.New("listing repository not initialised")
	}
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return domain.Listing{}, errors.New("listing id is required")
	}

	doc, err := r.listings.Get(ctx, listingID)
	if err != nil {
		return domain.Listing{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}
