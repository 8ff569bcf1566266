package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/harborstay/api/internal/domain"
)

var couponTestNow = time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)

func newTestCouponService(t *testing.T, coupons *stubCouponRepo, listings *stubListingRepo) CouponService {
	t.Helper()
	svc, err := NewCouponService(CouponServiceDeps{
		Coupons:  coupons,
		Listings: listings,
		Clock:    func() time.Time { return couponTestNow },
		NewID:    func() string { return "coupon-id-1" },
	})
	if err != nil {
		t.Fatalf("NewCouponService: %v", err)
	}
	return svc
}

func TestCreateCoupon_Success(t *testing.T) {
	var stored Coupon
	coupons := &stubCouponRepo{
		createFn: func(_ context.Context, coupon domain.Coupon) error {
			stored = coupon
			return nil
		},
	}
	svc := newTestCouponService(t, coupons, &stubListingRepo{})

	expires := couponTestNow.AddDate(0, 1, 0)
	cap := int64(100)
	coupon, err := svc.CreateCoupon(context.Background(), CreateCouponCommand{
		ProviderID:     "provider-1",
		Code:           " summer10 ",
		Type:           domain.CouponTypeFixed,
		Amount:         25,
		Currency:       "cad",
		ExpiresAt:      &expires,
		MaxRedemptions: &cap,
	})
	if err != nil {
		t.Fatalf("CreateCoupon: %v", err)
	}
	if coupon.Code != "SUMMER10" {
		t.Fatalf("code must be stored uppercase, got %q", coupon.Code)
	}
	if coupon.Currency != "CAD" {
		t.Fatalf("currency must be uppercased, got %q", coupon.Currency)
	}
	if !coupon.IsActive || coupon.UsedCount != 0 {
		t.Fatalf("new coupons start active and unused: %+v", coupon)
	}
	if stored.ID != "coupon-id-1" {
		t.Fatalf("expected minted id, got %q", stored.ID)
	}
}

func TestCreateCoupon_ValidationFailures(t *testing.T) {
	svc := newTestCouponService(t, &stubCouponRepo{}, &stubListingRepo{})
	past := couponTestNow.AddDate(0, 0, -1)
	zeroCap := int64(0)

	cases := []struct {
		name string
		cmd  CreateCouponCommand
		want string
	}{
		{
			name: "short code",
			cmd:  CreateCouponCommand{ProviderID: "p", Code: "AB", Type: domain.CouponTypePercentage, Amount: 10},
			want: "at least 3 characters",
		},
		{
			name: "bad type",
			cmd:  CreateCouponCommand{ProviderID: "p", Code: "SAVE", Type: "bogo", Amount: 10},
			want: `"fixed" or "percentage"`,
		},
		{
			name: "non-positive amount",
			cmd:  CreateCouponCommand{ProviderID: "p", Code: "SAVE", Type: domain.CouponTypePercentage, Amount: 0},
			want: "positive number",
		},
		{
			name: "percentage over 100",
			cmd:  CreateCouponCommand{ProviderID: "p", Code: "SAVE", Type: domain.CouponTypePercentage, Amount: 150},
			want: "cannot exceed 100%",
		},
		{
			name: "fixed without currency",
			cmd:  CreateCouponCommand{ProviderID: "p", Code: "SAVE", Type: domain.CouponTypeFixed, Amount: 10},
			want: "currency is required",
		},
		{
			name: "past expiry",
			cmd:  CreateCouponCommand{ProviderID: "p", Code: "SAVE", Type: domain.CouponTypePercentage, Amount: 10, ExpiresAt: &past},
			want: "in the future",
		},
		{
			name: "zero max redemptions",
			cmd:  CreateCouponCommand{ProviderID: "p", Code: "SAVE", Type: domain.CouponTypePercentage, Amount: 10, MaxRedemptions: &zeroCap},
			want: "max redemptions",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateCoupon(context.Background(), tc.cmd)
			var inputErr *CouponInputError
			if !errors.As(err, &inputErr) {
				t.Fatalf("expected CouponInputError got %v", err)
			}
			if !strings.Contains(inputErr.Error(), tc.want) {
				t.Fatalf("expected detail containing %q, got %q", tc.want, inputErr.Error())
			}
		})
	}
}

func TestCreateCoupon_DuplicateCode(t *testing.T) {
	coupons := &stubCouponRepo{
		createFn: func(context.Context, domain.Coupon) error {
			return &stubRepoError{conflict: true}
		},
	}
	svc := newTestCouponService(t, coupons, &stubListingRepo{})

	_, err := svc.CreateCoupon(context.Background(), CreateCouponCommand{
		ProviderID: "provider-1",
		Code:       "SUMMER10",
		Type:       domain.CouponTypePercentage,
		Amount:     10,
	})
	if !errors.Is(err, ErrCouponDuplicateCode) {
		t.Fatalf("expected ErrCouponDuplicateCode got %v", err)
	}
}

func validTestCoupon() domain.Coupon {
	return domain.Coupon{
		ID:         "coupon-1",
		ProviderID: "provider-1",
		Code:       "SAVE20",
		Type:       domain.CouponTypePercentage,
		Amount:     20,
		IsActive:   true,
	}
}

func TestValidateCoupon_DiscountPreview(t *testing.T) {
	listings := &stubListingRepo{findFn: func(context.Context, string) (domain.Listing, error) {
		return bookableListing(domain.UnitTypeDay, 10000), nil
	}}
	coupons := &stubCouponRepo{findByCodeFn: func(_ context.Context, providerID, code string) (domain.Coupon, error) {
		if providerID != "provider-1" || code != "SAVE20" {
			return domain.Coupon{}, &stubRepoError{notFound: true}
		}
		return validTestCoupon(), nil
	}}
	svc := newTestCouponService(t, coupons, listings)

	result, err := svc.ValidateCoupon(context.Background(), ValidateCouponCommand{
		ListingID:  "listing-1",
		Code:       "save20",
		OrderTotal: 10000,
		Currency:   "CAD",
	})
	if err != nil {
		t.Fatalf("ValidateCoupon: %v", err)
	}
	if result.DiscountAmount != 2000 || result.FinalTotal != 8000 {
		t.Fatalf("expected 2000 discount on 10000, got %+v", result)
	}
}

func TestValidateCoupon_RejectionReasons(t *testing.T) {
	expired := couponTestNow.AddDate(0, 0, -1)
	cap := int64(5)

	cases := []struct {
		name   string
		mutate func(*domain.Coupon)
		want   CouponRejectionReason
	}{
		{name: "inactive", mutate: func(c *domain.Coupon) { c.IsActive = false }, want: CouponRejectionInactive},
		{name: "expired", mutate: func(c *domain.Coupon) { c.ExpiresAt = &expired }, want: CouponRejectionExpired},
		{
			name: "exhausted",
			mutate: func(c *domain.Coupon) {
				c.MaxRedemptions = &cap
				c.UsedCount = 5
			},
			want: CouponRejectionExhausted,
		},
		{
			name:   "not applicable",
			mutate: func(c *domain.Coupon) { c.ApplicableListingIDs = []string{"other-listing"} },
			want:   CouponRejectionNotApplicable,
		},
		{
			name: "currency mismatch",
			mutate: func(c *domain.Coupon) {
				c.Type = domain.CouponTypeFixed
				c.Currency = "USD"
			},
			want: CouponRejectionCurrencyMismatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			coupon := validTestCoupon()
			tc.mutate(&coupon)

			listings := &stubListingRepo{findFn: func(context.Context, string) (domain.Listing, error) {
				return bookableListing(domain.UnitTypeDay, 10000), nil
			}}
			coupons := &stubCouponRepo{findByCodeFn: func(context.Context, string, string) (domain.Coupon, error) {
				return coupon, nil
			}}
			svc := newTestCouponService(t, coupons, listings)

			_, err := svc.ValidateCoupon(context.Background(), ValidateCouponCommand{
				ListingID:  "listing-1",
				Code:       "SAVE20",
				OrderTotal: 10000,
				Currency:   "CAD",
			})
			var rejected *CouponRejectedError
			if !errors.As(err, &rejected) {
				t.Fatalf("expected CouponRejectedError got %v", err)
			}
			if rejected.Reason != tc.want {
				t.Fatalf("expected reason %q got %q", tc.want, rejected.Reason)
			}
		})
	}
}

func TestValidateCoupon_UnknownCode(t *testing.T) {
	listings := &stubListingRepo{findFn: func(context.Context, string) (domain.Listing, error) {
		return bookableListing(domain.UnitTypeDay, 10000), nil
	}}
	coupons := &stubCouponRepo{findByCodeFn: func(context.Context, string, string) (domain.Coupon, error) {
		return domain.Coupon{}, &stubRepoError{notFound: true}
	}}
	svc := newTestCouponService(t, coupons, listings)

	_, err := svc.ValidateCoupon(context.Background(), ValidateCouponCommand{
		ListingID:  "listing-1",
		Code:       "NOPE",
		OrderTotal: 10000,
	})
	var rejected *CouponRejectedError
	if !errors.As(err, &rejected) || rejected.Reason != CouponRejectionNotFound {
		t.Fatalf("expected not_found rejection got %v", err)
	}
}

func TestRedeemCoupon_MapsRepositoryErrors(t *testing.T) {
	t.Run("exhausted", func(t *testing.T) {
		coupons := &stubCouponRepo{redeemFn: func(context.Context, string) (domain.Coupon, error) {
			return domain.Coupon{}, &stubRepoError{conflict: true}
		}}
		svc := newTestCouponService(t, coupons, &stubListingRepo{})

		_, err := svc.RedeemCoupon(context.Background(), "coupon-1")
		var rejected *CouponRejectedError
		if !errors.As(err, &rejected) || rejected.Reason != CouponRejectionExhausted {
			t.Fatalf("expected exhausted rejection got %v", err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		coupons := &stubCouponRepo{redeemFn: func(context.Context, string) (domain.Coupon, error) {
			return domain.Coupon{}, &stubRepoError{notFound: true}
		}}
		svc := newTestCouponService(t, coupons, &stubListingRepo{})

		if _, err := svc.RedeemCoupon(context.Background(), "coupon-1"); !errors.Is(err, ErrCouponNotFound) {
			t.Fatalf("expected ErrCouponNotFound got %v", err)
		}
	})
}

func TestUpdateCoupon_RejectsConflictingExpiry(t *testing.T) {
	svc := newTestCouponService(t, &stubCouponRepo{}, &stubListingRepo{})
	future := couponTestNow.AddDate(0, 1, 0)

	_, err := svc.UpdateCoupon(context.Background(), UpdateCouponCommand{
		CouponID:    "coupon-1",
		ExpiresAt:   &future,
		ClearExpiry: true,
	})
	var inputErr *CouponInputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected CouponInputError got %v", err)
	}
}
