package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/harborstay/api/internal/platform/firestore"
	"github.com/harborstay/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the
// repositories.Registry contract.
type Registry struct {
	provider     *pfirestore.Provider
	coupons      *CouponRepository
	listings     *ListingRepository
	profiles     *ProfileRepository
	transactions *TransactionRepository
	health       repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs the repository set over a shared Firestore provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	coupons, err := NewCouponRepository(provider)
	if err != nil {
		return nil, err
	}
	listings, err := NewListingRepository(provider)
	if err != nil {
		return nil, err
	}
	profiles, err := NewProfileRepository(provider)
	if err != nil {
		return nil, err
	}
	transactions, err := NewTransactionRepository(provider)
	if err != nil {
		return nil, err
	}

	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{
			Name: "firestore",
			Check: func(ctx context.Context) error {
				_, err := provider.Client(ctx)
				return err
			},
		},
	})
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:     provider,
		coupons:      coupons,
		listings:     listings,
		profiles:     profiles,
		transactions: transactions,
		health:       health,
	}, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Coupons returns the coupon repository.
func (r *Registry) Coupons() repositories.CouponRepository { return r.coupons }

// Listings returns the listing repository.
func (r *Registry) Listings() repositories.ListingRepository { return r.listings }

// Profiles returns the profile repository.
func (r *Registry) Profiles() repositories.ProfileRepository { return r.profiles }

// Transactions returns the transaction repository.
func (r *Registry) Transactions() repositories.TransactionRepository { return r.transactions }

// Health returns the readiness probe repository.
func (r *Registry) Health() repositories.HealthRepository { return r.health }
