package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/harborstay/api/internal/domain"
	pfirestore "github.com/harborstay/api/internal/platform/firestore"
	"github.com/harborstay/api/internal/repositories"
)

const profilesCollection = "profiles"

type commissionDocument struct {
	Percentage    float64 `firestore:"percentage"`
	MinimumAmount int64   `firestore:"minimumAmount"`
}

type profileDocument struct {
	DisplayName      string              `firestore:"displayName,omitempty"`
	Email            string              `firestore:"email,omitempty"`
	StripeAccountID  string              `firestore:"stripeAccountId,omitempty"`
	CustomCommission *commissionDocument `firestore:"customCommission,omitempty"`
	CreatedAt        time.Time           `firestore:"createdAt"`
	UpdatedAt        time.Time           `firestore:"updatedAt"`
}

func (d profileDocument) toDomain(id string) domain.Profile {
	profile := domain.Profile{
		ID:              id,
		DisplayName:     d.DisplayName,
		Email:           d.Email,
		StripeAccountID: d.StripeAccountID,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	if d.CustomCommission != nil {
		profile.CustomCommission = &domain.Commission{
			Percentage:    d.CustomCommission.Percentage,
			MinimumAmount: d.CustomCommission.MinimumAmount,
		}
	}
	return profile
}

// ProfileRepository implements repositories.ProfileRepository backed by Firestore.
type ProfileRepository struct {
	profiles *pfirestore.BaseRepository[profileDocument]
}

var _ repositories.ProfileRepository = (*ProfileRepository)(nil)

// NewProfileRepository constructs a Firestore-backed profile repository.
func NewProfileRepository(provider *pfirestore.Provider) (*ProfileRepository, error) {
	if provider == nil {
		return nil, errors.New("profile repository requires firestore provider")
	}
	return &ProfileRepository{
		profiles: pfirestore.NewBaseRepository[profileDocument](provider, profilesCollection, nil, nil),
	}, nil
}

// FindByID fetches a user profile by identifier.
func (r *ProfileRepository) FindByID(ctx context.Context, userID string) (domain.Profile, error) {
	if r == nil || r.profiles == nil {
		return domain.Profile{}, errors.New("profile repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Profile{}, errors.New("user id is required")
	}

	doc, err := r.profiles.Get(ctx, userID)
	if err != nil {
		return domain.Profile{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}
