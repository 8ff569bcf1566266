package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/harborstay/api/internal/domain"
	pfirestore "github.com/harborstay/api/internal/platform/firestore"
	"github.com/harborstay/api/internal/repositories"
)

const couponsCollection = "coupons"

// couponDocument is the Firestore representation of a coupon. Documents are
// keyed "{providerID}:{CODE}" so code uniqueness per provider falls out of the
// document ID; the ULID in ID supports stable external references.
type couponDocument struct {
	ID                   string     `firestore:"id"`
	ProviderID           string     `firestore:"providerId"`
	Code                 string     `firestore:"code"`
	Type                 string     `firestore:"type"`
	Amount               float64    `firestore:"amount"`
	Currency             string     `firestore:"currency,omitempty"`
	ExpiresAt            *time.Time `firestore:"expiresAt,omitempty"`
	MaxRedemptions       *int64     `firestore:"maxRedemptions,omitempty"`
	UsedCount            int64      `firestore:"usedCount"`
	ApplicableListingIDs []string   `firestore:"applicableListingIds,omitempty"`
	IsActive             bool       `firestore:"isActive"`
	CreatedAt            time.Time  `firestore:"createdAt"`
	UpdatedAt            time.Time  `firestore:"updatedAt"`
}

func couponKey(providerID, code string) string {
	return fmt.Sprintf("%s:%s", strings.TrimSpace(providerID), strings.ToUpper(strings.TrimSpace(code)))
}

func (d couponDocument) toDomain() domain.Coupon {
	return domain.Coupon{
		ID:                   d.ID,
		ProviderID:           d.ProviderID,
		Code:                 d.Code,
		Type:                 domain.CouponType(d.Type),
		Amount:               d.Amount,
		Currency:             d.Currency,
		ExpiresAt:            d.ExpiresAt,
		MaxRedemptions:       d.MaxRedemptions,
		UsedCount:            d.UsedCount,
		ApplicableListingIDs: d.ApplicableListingIDs,
		IsActive:             d.IsActive,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
}

func couponDocumentFromDomain(coupon domain.Coupon) couponDocument {
	return couponDocument{
		ID:                   coupon.ID,
		ProviderID:           coupon.ProviderID,
		Code:                 strings.ToUpper(coupon.Code),
		Type:                 string(coupon.Type),
		Amount:               coupon.Amount,
		Currency:             coupon.Currency,
		ExpiresAt:            coupon.ExpiresAt,
		MaxRedemptions:       coupon.MaxRedemptions,
		UsedCount:            coupon.UsedCount,
		ApplicableListingIDs: coupon.ApplicableListingIDs,
		IsActive:             coupon.IsActive,
		CreatedAt:            coupon.CreatedAt,
		UpdatedAt:            coupon.UpdatedAt,
	}
}

// CouponRepository implements repositories.CouponRepository backed by Firestore.
type CouponRepository struct {
	provider *pfirestore.Provider
	coupons  *pfirestore.BaseRepository[couponDocument]
}

var _ repositories.CouponRepository = (*CouponRepository)(nil)

// NewCouponRepository constructs a Firestore-backed coupon repository.
func NewCouponRepository(provider *pfirestore.Provider) (*CouponRepository, error) {
	if provider == nil {
		return nil, errors.New("coupon repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[couponDocument](provider, couponsCollection, nil, nil)
	return &CouponRepository{
		provider: provider,
		coupons:  base,
	}, nil
}

// Create persists a new coupon, failing with a conflict when the provider
// already has a coupon with the same code.
func (r *CouponRepository) Create(ctx context.Context, coupon domain.Coupon) error {
	if r == nil || r.provider == nil {
		return errors.New("coupon repository not initialised")
	}
	if strings.TrimSpace(coupon.ID) == "" || strings.TrimSpace(coupon.ProviderID) == "" || strings.TrimSpace(coupon.Code) == "" {
		return repositories.NewCouponError(repositories.CouponErrorInvalidInput, "coupon id, provider id, and code are required", nil)
	}

	ref, err := r.coupons.DocumentRef(ctx, couponKey(coupon.ProviderID, coupon.Code))
	if err != nil {
		return err
	}

	doc := couponDocumentFromDomain(coupon)
	if _, err := ref.Create(ctx, doc); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return repositories.NewCouponError(repositories.CouponErrorDuplicateCode,
				fmt.Sprintf("coupon code %s already exists for provider", doc.Code), err)
		}
		return pfirestore.WrapError("coupons.create", err)
	}
	return nil
}

// FindByCode fetches a coupon by provider and code.
func (r *CouponRepository) FindByCode(ctx context.Context, providerID, code string) (domain.Coupon, error) {
	if r == nil || r.provider == nil {
		return domain.Coupon{}, errors.New("coupon repository not initialised")
	}
	doc, err := r.coupons.Get(ctx, couponKey(providerID, code))
	if err != nil {
		return domain.Coupon{}, err
	}
	return doc.Data.toDomain(), nil
}

// FindByID fetches a coupon by its external identifier.
func (r *CouponRepository) FindByID(ctx context.Context, couponID string) (domain.Coupon, error) {
	doc, err := r.findDocumentByID(ctx, couponID)
	if err != nil {
		return domain.Coupon{}, err
	}
	return doc.Data.toDomain(), nil
}

// ListByProvider returns the provider's coupons, newest first.
func (r *CouponRepository) ListByProvider(ctx context.Context, providerID string, filter repositories.CouponListFilter) ([]domain.Coupon, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("coupon repository not initialised")
	}
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return nil, repositories.NewCouponError(repositories.CouponErrorInvalidInput, "provider id is required", nil)
	}

	docs, err := r.coupons.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("providerId", "==", providerID)
		if !filter.IncludeInactive {
			q = q.Where("isActive", "==", true)
		}
		return q.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	coupons := make([]domain.Coupon, 0, len(docs))
	for _, doc := range docs {
		coupons = append(coupons, doc.Data.toDomain())
	}
	return coupons, nil
}

// Update applies a partial update and returns the updated coupon.
func (r *CouponRepository) Update(ctx context.Context, couponID string, update repositories.CouponUpdate) (domain.Coupon, error) {
	doc, err := r.findDocumentByID(ctx, couponID)
	if err != nil {
		return domain.Coupon{}, err
	}

	now := time.Now().UTC()
	updates := []firestore.Update{{Path: "updatedAt", Value: now}}
	if update.Type != nil {
		updates = append(updates, firestore.Update{Path: "type", Value: string(*update.Type)})
	}
	if update.Amount != nil {
		updates = append(updates, firestore.Update{Path: "amount", Value: *update.Amount})
	}
	if update.Currency != nil {
		updates = append(updates, firestore.Update{Path: "currency", Value: *update.Currency})
	}
	if update.ClearExpiry {
		updates = append(updates, firestore.Update{Path: "expiresAt", Value: firestore.Delete})
	} else if update.ExpiresAt != nil {
		updates = append(updates, firestore.Update{Path: "expiresAt", Value: *update.ExpiresAt})
	}
	if update.ClearMaxRedemptions {
		updates = append(updates, firestore.Update{Path: "maxRedemptions", Value: firestore.Delete})
	} else if update.MaxRedemptions != nil {
		updates = append(updates, firestore.Update{Path: "maxRedemptions", Value: *update.MaxRedemptions})
	}
	if update.ApplicableListingIDs != nil {
		updates = append(updates, firestore.Update{Path: "applicableListingIds", Value: *update.ApplicableListingIDs})
	}
	if update.IsActive != nil {
		updates = append(updates, firestore.Update{Path: "isActive", Value: *update.IsActive})
	}

	key := couponKey(doc.Data.ProviderID, doc.Data.Code)
	if _, err := r.coupons.Update(ctx, key, updates); err != nil {
		return domain.Coupon{}, err
	}

	updated, err := r.coupons.Get(ctx, key)
	if err != nil {
		return domain.Coupon{}, err
	}
	return updated.Data.toDomain(), nil
}

// Delete removes the coupon document.
func (r *CouponRepository) Delete(ctx context.Context, couponID string) error {
	doc, err := r.findDocumentByID(ctx, couponID)
	if err != nil {
		return err
	}

	ref, err := r.coupons.DocumentRef(ctx, couponKey(doc.Data.ProviderID, doc.Data.Code))
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("coupons.delete", err)
	}
	return nil
}

// ApplyRedemption increments usedCount inside a transaction, refusing when the
// redemption cap is already reached and deactivating the coupon once the cap
// is hit by this increment.
func (r *CouponRepository) ApplyRedemption(ctx context.Context, couponID string) (domain.Coupon, error) {
	doc, err := r.findDocumentByID(ctx, couponID)
	if err != nil {
		return domain.Coupon{}, err
	}

	ref, err := r.coupons.DocumentRef(ctx, couponKey(doc.Data.ProviderID, doc.Data.Code))
	if err != nil {
		return domain.Coupon{}, err
	}

	var result couponDocument
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var current couponDocument
		if err := snapshot.DataTo(&current); err != nil {
			return fmt.Errorf("firestore coupons decode %s: %w", couponID, err)
		}

		if current.MaxRedemptions != nil && current.UsedCount >= *current.MaxRedemptions {
			return repositories.NewCouponError(repositories.CouponErrorExhausted,
				fmt.Sprintf("coupon %s reached its redemption cap", current.Code), nil)
		}

		current.UsedCount++
		current.UpdatedAt = time.Now().UTC()
		if current.MaxRedemptions != nil && current.UsedCount >= *current.MaxRedemptions {
			current.IsActive = false
		}

		if err := tx.Set(ref, current); err != nil {
			return err
		}
		result = current
		return nil
	})
	if err != nil {
		var couponErr *repositories.CouponError
		if errors.As(err, &couponErr) {
			return domain.Coupon{}, couponErr
		}
		return domain.Coupon{}, pfirestore.WrapError("coupons.redeem", err)
	}
	return result.toDomain(), nil
}

func (r *CouponRepository) findDocumentByID(ctx context.Context, couponID string) (pfirestore.Document[couponDocument], error) {
	if r == nil || r.provider == nil {
		return pfirestore.Document[couponDocument]{}, errors.New("coupon repository not initialised")
	}
	couponID = strings.TrimSpace(couponID)
	if couponID == "" {
		return pfirestore.Document[couponDocument]{}, repositories.NewCouponError(repositories.CouponErrorInvalidInput, "coupon id is required", nil)
	}

	docs, err := r.coupons.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("id", "==", couponID).Limit(1)
	})
	if err != nil {
		return pfirestore.Document[couponDocument]{}, err
	}
	if len(docs) == 0 {
		return pfirestore.Document[couponDocument]{}, repositories.NewCouponError(repositories.CouponErrorNotFound,
			fmt.Sprintf("coupon %s not found", couponID), nil)
	}
	return docs[0], nil
}
