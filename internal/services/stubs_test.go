package services

import (
	"context"
	"errors"

	"github.com/harborstay/api/internal/geocode"
	"github.com/harborstay/api/internal/payments"
	"github.com/harborstay/api/internal/repositories"

	domain "github.com/harborstay/api/internal/domain"
)

type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepoError) Error() string       { return "stub repository error" }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

type stubCouponRepo struct {
	createFn     func(ctx context.Context, coupon domain.Coupon) error
	findByCodeFn func(ctx context.Context, providerID, code string) (domain.Coupon, error)
	findByIDFn   func(ctx context.Context, couponID string) (domain.Coupon, error)
	listFn       func(ctx context.Context, providerID string, filter repositories.CouponListFilter) ([]domain.Coupon, error)
	updateFn     func(ctx context.Context, couponID string, update repositories.CouponUpdate) (domain.Coupon, error)
	deleteFn     func(ctx context.Context, couponID string) error
	redeemFn     func(ctx context.Context, couponID string) (domain.Coupon, error)
}

func (s *stubCouponRepo) Create(ctx context.Context, coupon domain.Coupon) error {
	if s.createFn == nil {
		return errors.New("unexpected Create call")
	}
	return s.createFn(ctx, coupon)
}

func (s *stubCouponRepo) FindByCode(ctx context.Context, providerID, code string) (domain.Coupon, error) {
	if s.findByCodeFn == nil {
		return domain.Coupon{}, errors.New("unexpected FindByCode call")
	}
	return s.findByCodeFn(ctx, providerID, code)
}

func (s *stubCouponRepo) FindByID(ctx context.Context, couponID string) (domain.Coupon, error) {
	if s.findByIDFn == nil {
		return domain.Coupon{}, errors.New("unexpected FindByID call")
	}
	return s.findByIDFn(ctx, couponID)
}

func (s *stubCouponRepo) ListByProvider(ctx context.Context, providerID string, filter repositories.CouponListFilter) ([]domain.Coupon, error) {
	if s.listFn == nil {
		return nil, errors.New("unexpected ListByProvider call")
	}
	return s.listFn(ctx, providerID, filter)
}

func (s *stubCouponRepo) Update(ctx context.Context, couponID string, update repositories.CouponUpdate) (domain.Coupon, error) {
	if s.updateFn == nil {
		return domain.Coupon{}, errors.New("unexpected Update call")
	}
	return s.updateFn(ctx, couponID, update)
}

func (s *stubCouponRepo) Delete(ctx context.Context, couponID string) error {
	if s.deleteFn == nil {
		return errors.New("unexpected Delete call")
	}
	return s.deleteFn(ctx, couponID)
}

func (s *stubCouponRepo) ApplyRedemption(ctx context.Context, couponID string) (domain.Coupon, error) {
	if s.redeemFn == nil {
		return domain.Coupon{}, errors.New("unexpected ApplyRedemption call")
	}
	return s.redeemFn(ctx, couponID)
}

type stubListingRepo struct {
	findFn func(ctx context.Context, listingID string) (domain.Listing, error)
}

func (s *stubListingRepo) FindByID(ctx context.Context, listingID string) (domain.Listing, error) {
	if s.findFn == nil {
		return domain.Listing{}, errors.New("unexpected listing FindByID call")
	}
	return s.findFn(ctx, listingID)
}

type stubProfileRepo struct {
	profiles map[string]domain.Profile
	err      error
}

func (s *stubProfileRepo) FindByID(ctx context.Context, userID string) (domain.Profile, error) {
	if s.err != nil {
		return domain.Profile{}, s.err
	}
	profile, ok := s.profiles[userID]
	if !ok {
		return domain.Profile{}, &stubRepoError{notFound: true}
	}
	return profile, nil
}

type stubTransactionRepo struct {
	hasCompleted   bool
	hasCompletedFn func(ctx context.Context, customerID, listingID string, transitions []string) (bool, error)
	created        []domain.Transaction
	createErr      error
	findFn         func(ctx context.Context, txnID string) (domain.Transaction, error)
	transitions    map[string]string
	transitionErr  error
	metadata       map[string]map[string]any
}

func (s *stubTransactionRepo) Create(ctx context.Context, txn domain.Transaction) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, txn)
	return nil
}

func (s *stubTransactionRepo) FindByID(ctx context.Context, txnID string) (domain.Transaction, error) {
	if s.findFn == nil {
		return domain.Transaction{}, &stubRepoError{notFound: true}
	}
	return s.findFn(ctx, txnID)
}

func (s *stubTransactionRepo) HasCompletedTransaction(ctx context.Context, customerID, listingID string, transitions []string) (bool, error) {
	if s.hasCompletedFn != nil {
		return s.hasCompletedFn(ctx, customerID, listingID, transitions)
	}
	return s.hasCompleted, nil
}

func (s *stubTransactionRepo) UpdateTransition(ctx context.Context, txnID, transition string) error {
	if s.transitionErr != nil {
		return s.transitionErr
	}
	if s.transitions == nil {
		s.transitions = make(map[string]string)
	}
	s.transitions[txnID] = transition
	return nil
}

func (s *stubTransactionRepo) MergeMetadata(ctx context.Context, txnID string, metadata map[string]any) error {
	if s.metadata == nil {
		s.metadata = make(map[string]map[string]any)
	}
	s.metadata[txnID] = metadata
	return nil
}

type stubGeocoder struct {
	region geocode.Region
	err    error
	calls  []string
}

func (s *stubGeocoder) Geocode(ctx context.Context, address string) (geocode.Region, error) {
	s.calls = append(s.calls, address)
	return s.region, s.err
}

type stubEventPublisher struct {
	events []TransactionEvent
	err    error
}

func (s *stubEventPublisher) PublishTransactionEvent(ctx context.Context, event TransactionEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type stubPaymentProvider struct {
	createFn  func(ctx context.Context, req payments.CreateIntentRequest) (payments.Intent, error)
	confirmFn func(ctx context.Context, req payments.ConfirmRequest) (payments.PaymentDetails, error)
}

func (s *stubPaymentProvider) CreateIntent(ctx context.Context, req payments.CreateIntentRequest) (payments.Intent, error) {
	if s.createFn == nil {
		return payments.Intent{}, errors.New("unexpected CreateIntent call")
	}
	return s.createFn(ctx, req)
}

func (s *stubPaymentProvider) Confirm(ctx context.Context, req payments.ConfirmRequest) (payments.PaymentDetails, error) {
	if s.confirmFn == nil {
		return payments.PaymentDetails{}, errors.New("unexpected Confirm call")
	}
	return s.confirmFn(ctx, req)
}

func (s *stubPaymentProvider) Refund(ctx context.Context, req payments.RefundRequest) (payments.PaymentDetails, error) {
	return payments.PaymentDetails{}, errors.New("unexpected Refund call")
}

func (s *stubPaymentProvider) LookupPayment(ctx context.Context, req payments.LookupRequest) (payments.PaymentDetails, error) {
	return payments.PaymentDetails{}, errors.New("unexpected LookupPayment call")
}

func bookableListing(unitType domain.UnitType, priceAmount int64) domain.Listing {
	return domain.Listing{
		ID:         "listing-1",
		ProviderID: "provider-1",
		Price:      domain.NewMoney(priceAmount, "CAD"),
		PublicData: domain.ListingPublicData{UnitType: unitType},
	}
}
