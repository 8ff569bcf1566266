package repositories

import (
	"context"
	"time"

	domain "github.com/harborstay/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Coupons() CouponRepository
	Listings() ListingRepository
	Profiles() ProfileRepository
	Transactions() TransactionRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CouponListFilter narrows coupon listings.
type CouponListFilter struct {
	IncludeInactive bool
}

// CouponUpdate carries the mutable coupon fields for a partial update. Nil
// pointers leave the stored value untouched.
type CouponUpdate struct {
	Type                 *domain.CouponType
	Amount               *float64
	Currency             *string
	ExpiresAt            *time.Time
	ClearExpiry          bool
	MaxRedemptions       *int64
	ClearMaxRedemptions  bool
	ApplicableListingIDs *[]string
	IsActive             *bool
}

// CouponRepository persists provider-owned coupons keyed by (providerID, code).
type CouponRepository interface {
	Create(ctx context.Context, coupon domain.Coupon) error
	FindByCode(ctx context.Context, providerID, code string) (domain.Coupon, error)
	FindByID(ctx context.Context, couponID string) (domain.Coupon, error)
	ListByProvider(ctx context.Context, providerID string, filter CouponListFilter) ([]domain.Coupon, error)
	Update(ctx context.Context, couponID string, update CouponUpdate) (domain.Coupon, error)
	Delete(ctx context.Context, couponID string) error

	// ApplyRedemption atomically increments the coupon's usage count when the
	// redemption cap allows it, flipping IsActive off once the cap is reached.
	// A coupon already at its cap yields a conflict error.
	ApplyRedemption(ctx context.Context, couponID string) (domain.Coupon, error)
}

// ListingRepository reads the listing mirror consumed by pricing.
type ListingRepository interface {
	FindByID(ctx context.Context, listingID string) (domain.Listing, error)
}

// ProfileRepository reads marketplace user profiles.
type ProfileRepository interface {
	FindByID(ctx context.Context, userID string) (domain.Profile, error)
}

// TransactionRepository persists the booking records kept by this service.
type TransactionRepository interface {
	Create(ctx context.Context, txn domain.Transaction) error
	FindByID(ctx context.Context, txnID string) (domain.Transaction, error)

	// HasCompletedTransaction reports whether the customer has a prior
	// transaction on the listing whose last transition is in transitions.
	HasCompletedTransaction(ctx context.Context, customerID, listingID string, transitions []string) (bool, error)

	UpdateTransition(ctx context.Context, txnID, transition string) error
	MergeMetadata(ctx context.Context, txnID string, metadata map[string]any) error
}

// HealthRepository verifies downstream dependencies for readiness probes.
type HealthRepository interface {
	CheckReadiness(ctx context.Context) error
}
