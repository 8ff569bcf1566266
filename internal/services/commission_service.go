package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/harborstay/api/internal/domain"
	"github.com/harborstay/api/internal/repositories"
)

var (
	// ErrCommissionInvalidInput signals a resolve request missing its identifiers.
	ErrCommissionInvalidInput = errors.New("commission: invalid input")
)

// ResolveCommissionsCommand identifies the parties of a pricing request.
type ResolveCommissionsCommand struct {
	CustomerID string
	Listing    Listing
}

// CommissionServiceDeps bundles the collaborators of the commission resolver.
type CommissionServiceDeps struct {
	Transactions repositories.TransactionRepository
	Profiles     repositories.ProfileRepository
	Defaults     CommissionPair
	// Recurring, when non-nil, is the alternate tier applied once a qualifying
	// prior transaction exists between the customer and the listing.
	Recurring *RecurringCommissionTier
	Logger    func(context.Context, string, map[string]any)
}

type commissionService struct {
	transactions repositories.TransactionRepository
	profiles     repositories.ProfileRepository
	defaults     CommissionPair
	recurring    *RecurringCommissionTier
	logger       func(context.Context, string, map[string]any)
}

// NewCommissionService wires a CommissionResolver applying the documented
// precedence: recurring tier, then per-party custom commission, then defaults.
func NewCommissionService(deps CommissionServiceDeps) (CommissionResolver, error) {
	if deps.Transactions == nil {
		return nil, errors.New("commission service: transaction repository is required")
	}
	if deps.Profiles == nil {
		return nil, errors.New("commission service: profile repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &commissionService{
		transactions: deps.Transactions,
		profiles:     deps.Profiles,
		defaults:     deps.Defaults,
		recurring:    deps.Recurring,
		logger:       logger,
	}, nil
}

// ResolveCommissions returns the effective commission pair for the request.
//
// Provider side: recurring tier when a qualifying prior transaction exists,
// else the provider's custom commission, else the marketplace default.
// Customer side: identical, except the recurring tier only applies when the
// tier record is marked customer-applicable.
func (s *commissionService) ResolveCommissions(ctx context.Context, cmd ResolveCommissionsCommand) (CommissionPair, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	listingID := strings.TrimSpace(cmd.Listing.ID)
	providerID := strings.TrimSpace(cmd.Listing.ProviderID)
	if customerID == "" || listingID == "" || providerID == "" {
		return CommissionPair{}, fmt.Errorf("%w: customer, listing, and provider ids are required", ErrCommissionInvalidInput)
	}

	hasPrior, err := s.transactions.HasCompletedTransaction(ctx, customerID, listingID, domain.CompletedTransitions)
	if err != nil {
		return CommissionPair{}, fmt.Errorf("commission: transaction history lookup: %w", err)
	}

	pair := s.defaults

	if custom := s.customCommission(ctx, providerID); custom != nil {
		pair.Provider = *custom
	}
	if custom := s.customCommission(ctx, customerID); custom != nil {
		pair.Customer = *custom
	}

	if hasPrior && s.recurring != nil {
		pair.Provider = s.recurring.Provider
		if s.recurring.ApplyToCustomer {
			pair.Customer = s.recurring.Customer
		}
		s.logger(ctx, "commission_recurring_tier_applied", map[string]any{
			"customerId": customerID,
			"listingId":  listingID,
			"version":    s.recurring.Version,
		})
	}

	return pair, nil
}

// customCommission reads the party's profile override. A missing profile means
// no override; any other lookup failure is surfaced as no override after
// logging, since commission resolution must not fail a quote on a profile read.
func (s *commissionService) customCommission(ctx context.Context, userID string) *Commission {
	profile, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
			s.logger(ctx, "commission_profile_lookup_failed", map[string]any{"userId": userID, "error": err.Error()})
		}
		return nil
	}
	return profile.CustomCommission
}
