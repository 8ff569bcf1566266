package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/harborstay/api/internal/domain"
	"github.com/harborstay/api/internal/payments"
	"github.com/harborstay/api/internal/platform/config"
	"github.com/harborstay/api/internal/repositories"
	"github.com/harborstay/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Quotes      services.QuoteService
	Coupons     services.CouponService
	Checkout    services.CheckoutService
	Commissions services.CommissionResolver
}

// Deps carries the external collaborators the container cannot build itself:
// persistence, the PSP adapter, and the optional geocoding and event plumbing.
type Deps struct {
	Config   config.Config
	Registry repositories.Registry
	Payments payments.Provider
	Geocoder services.RegionResolver
	TaxRates services.TaxRateSource
	Events   services.TransactionEventPublisher
	Logger   func(ctx context.Context, event string, fields map[string]any)
	Clock    func() time.Time
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides real
// implementations, while tests can supply in-memory registries and stub providers.
func NewContainer(ctx context.Context, deps Deps) (*Container, error) {
	if deps.Registry == nil {
		return nil, errors.New("repositories registry is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("payment provider is required")
	}

	svc, err := buildServices(deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       deps.Config,
		Repositories: deps.Registry,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(deps Deps) (Services, error) {
	var svc Services
	reg := deps.Registry
	cfg := deps.Config

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	taxRates := deps.TaxRates
	if !cfg.Features.EnableSalesTax {
		taxRates = nil
	}

	engine, err := services.NewLineItemEngine(services.LineItemEngineDeps{
		Geocoder: deps.Geocoder,
		TaxRates: taxRates,
		Logger:   deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build line item engine: %w", err)
	}

	commissions, err := services.NewCommissionService(services.CommissionServiceDeps{
		Transactions: reg.Transactions(),
		Profiles:     reg.Profiles(),
		Defaults:     commissionDefaults(cfg.Marketplace),
		Recurring:    recurringTier(cfg.Marketplace.RecurringTier),
		Logger:       deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build commission service: %w", err)
	}
	svc.Commissions = commissions

	quotes, err := services.NewQuoteService(services.QuoteServiceDeps{
		Listings:    reg.Listings(),
		Coupons:     reg.Coupons(),
		Commissions: commissions,
		Engine:      engine,
		Clock:       clock,
		Logger:      deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build quote service: %w", err)
	}
	svc.Quotes = quotes

	if cfg.Features.EnableCoupons {
		coupons, err := services.NewCouponService(services.CouponServiceDeps{
			Coupons:  reg.Coupons(),
			Listings: reg.Listings(),
			Clock:    clock,
			Logger:   deps.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build coupon service: %w", err)
		}
		svc.Coupons = coupons
	}

	checkout, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Quotes:       quotes,
		Transactions: reg.Transactions(),
		Listings:     reg.Listings(),
		Profiles:     reg.Profiles(),
		Coupons:      reg.Coupons(),
		Payments:     deps.Payments,
		Events:       deps.Events,
		Clock:        clock,
		Logger:       deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build checkout service: %w", err)
	}
	svc.Checkout = checkout

	return svc, nil
}

func commissionDefaults(cfg config.MarketplaceConfig) domain.CommissionPair {
	return domain.CommissionPair{
		Provider: domain.Commission{
			Percentage:    cfg.ProviderCommissionPercentage,
			MinimumAmount: cfg.ProviderCommissionMinimum,
		},
		Customer: domain.Commission{
			Percentage:    cfg.CustomerCommissionPercentage,
			MinimumAmount: cfg.CustomerCommissionMinimum,
		},
	}
}

func recurringTier(cfg config.RecurringTierConfig) *domain.RecurringCommissionTier {
	if !cfg.Enabled {
		return nil
	}
	return &domain.RecurringCommissionTier{
		Provider: domain.Commission{
			Percentage:    cfg.ProviderPercentage,
			MinimumAmount: cfg.ProviderMinimum,
		},
		Customer: domain.Commission{
			Percentage:    cfg.CustomerPercentage,
			MinimumAmount: cfg.CustomerMinimum,
		},
		ApplyToCustomer: cfg.ApplyToCustomer,
		Version:         cfg.Version,
	}
}
