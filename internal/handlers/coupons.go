package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/harborstay/api/internal/domain"
	"github.com/harborstay/api/internal/platform/httpx"
	"github.com/harborstay/api/internal/services"
)

const maxCouponRequestBody = 16 * 1024

// CouponHandlers exposes provider coupon management and checkout-time validation.
type CouponHandlers struct {
	coupons services.CouponService
}

// NewCouponHandlers constructs handlers backed by the coupon service.
func NewCouponHandlers(coupons services.CouponService) *CouponHandlers {
	return &CouponHandlers{coupons: coupons}
}

// Routes wires the coupon endpoints onto the provided router.
func (h *CouponHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createCoupon)
	r.Get("/", h.listCoupons)
	r.Post("/validate", h.validateCoupon)
	r.Get("/{couponID}", h.getCoupon)
	r.Patch("/{couponID}", h.updateCoupon)
	r.Delete("/{couponID}", h.deleteCoupon)
}

type createCouponRequest struct {
	ProviderID           string     `json:"providerId"`
	Code                 string     `json:"code"`
	Type                 string     `json:"type"`
	Amount               float64    `json:"amount"`
	Currency             string     `json:"currency"`
	ExpiresAt            *time.Time `json:"expiresAt"`
	MaxRedemptions       *int64     `json:"maxRedemptions"`
	ApplicableListingIDs []string   `json:"applicableListingIds"`
	IsActive             *bool      `json:"isActive"`
}

type updateCouponRequest struct {
	Type                 *string    `json:"type"`
	Amount               *float64   `json:"amount"`
	Currency             *string    `json:"currency"`
	ExpiresAt            *time.Time `json:"expiresAt"`
	ClearExpiry          bool       `json:"clearExpiry"`
	MaxRedemptions       *int64     `json:"maxRedemptions"`
	ClearMaxRedemptions  bool       `json:"clearMaxRedemptions"`
	ApplicableListingIDs *[]string  `json:"applicableListingIds"`
	IsActive             *bool      `json:"isActive"`
}

type validateCouponRequest struct {
	ListingID  string `json:"listingId"`
	Code       string `json:"code"`
	OrderTotal int64  `json:"orderTotal"`
	Currency   string `json:"currency"`
}

type couponListResponse struct {
	Coupons []domain.Coupon `json:"coupons"`
}

func (h *CouponHandlers) createCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		writeCouponUnavailable(ctx, w)
		return
	}

	var req createCouponRequest
	if !decodeCouponBody(ctx, w, r, &req) {
		return
	}

	coupon, err := h.coupons.CreateCoupon(ctx, services.CreateCouponCommand{
		ProviderID:           strings.TrimSpace(req.ProviderID),
		Code:                 req.Code,
		Type:                 domain.CouponType(req.Type),
		Amount:               req.Amount,
		Currency:             req.Currency,
		ExpiresAt:            req.ExpiresAt,
		MaxRedemptions:       req.MaxRedemptions,
		ApplicableListingIDs: req.ApplicableListingIDs,
		IsActive:             req.IsActive,
	})
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, coupon)
}

func (h *CouponHandlers) listCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		writeCouponUnavailable(ctx, w)
		return
	}

	providerID := strings.TrimSpace(r.URL.Query().Get("providerId"))
	if providerID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "providerId query parameter is required", http.StatusBadRequest))
		return
	}
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("includeInactive"))

	coupons, err := h.coupons.ListCoupons(ctx, services.ListCouponsCommand{
		ProviderID:      providerID,
		IncludeInactive: includeInactive,
	})
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}
	if coupons == nil {
		coupons = []domain.Coupon{}
	}
	writeJSONResponse(w, http.StatusOK, couponListResponse{Coupons: coupons})
}

func (h *CouponHandlers) getCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		writeCouponUnavailable(ctx, w)
		return
	}

	coupon, err := h.coupons.GetCoupon(ctx, chi.URLParam(r, "couponID"))
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, coupon)
}

func (h *CouponHandlers) updateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		writeCouponUnavailable(ctx, w)
		return
	}

	var req updateCouponRequest
	if !decodeCouponBody(ctx, w, r, &req) {
		return
	}

	cmd := services.UpdateCouponCommand{
		CouponID:             chi.URLParam(r, "couponID"),
		Amount:               req.Amount,
		Currency:             req.Currency,
		ExpiresAt:            req.ExpiresAt,
		ClearExpiry:          req.ClearExpiry,
		MaxRedemptions:       req.MaxRedemptions,
		ClearMaxRedemptions:  req.ClearMaxRedemptions,
		ApplicableListingIDs: req.ApplicableListingIDs,
		IsActive:             req.IsActive,
	}
	if req.Type != nil {
		couponType := domain.CouponType(*req.Type)
		cmd.Type = &couponType
	}

	coupon, err := h.coupons.UpdateCoupon(ctx, cmd)
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, coupon)
}

func (h *CouponHandlers) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		writeCouponUnavailable(ctx, w)
		return
	}

	if err := h.coupons.DeleteCoupon(ctx, chi.URLParam(r, "couponID")); err != nil {
		writeCouponError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CouponHandlers) validateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		writeCouponUnavailable(ctx, w)
		return
	}

	var req validateCouponRequest
	if !decodeCouponBody(ctx, w, r, &req) {
		return
	}

	result, err := h.coupons.ValidateCoupon(ctx, services.ValidateCouponCommand{
		ListingID:  strings.TrimSpace(req.ListingID),
		Code:       req.Code,
		OrderTotal: req.OrderTotal,
		Currency:   req.Currency,
	})
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, result)
}

func decodeCouponBody(ctx context.Context, w http.ResponseWriter, r *http.Request, target any) bool {
	body, err := readLimitedBody(r, maxCouponRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return false
	}
	if err := json.Unmarshal(body, target); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

func writeCouponUnavailable(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("coupon_unavailable", "coupon service is unavailable", http.StatusServiceUnavailable))
}

func writeCouponError(ctx context.Context, w http.ResponseWriter, err error) {
	var inputErr *services.CouponInputError
	var rejected *services.CouponRejectedError
	switch {
	case errors.As(err, &inputErr):
		details := make([]any, 0, len(inputErr.Details))
		for _, detail := range inputErr.Details {
			details = append(details, detail)
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_coupon", "coupon validation failed", http.StatusBadRequest).
			WithDetails(map[string]any{"details": details}))
	case errors.As(err, &rejected):
		status := http.StatusBadRequest
		if rejected.Reason == services.CouponRejectionNotFound {
			status = http.StatusNotFound
		}
		httpx.WriteError(ctx, w, httpx.NewError("coupon_rejected", rejected.Error(), status).
			WithDetails(map[string]any{"reason": string(rejected.Reason)}))
	case errors.Is(err, services.ErrCouponNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_not_found", "coupon not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCouponDuplicateCode):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_code_conflict", "a coupon with this code already exists", http.StatusConflict))
	case errors.Is(err, services.ErrCouponListingNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("listing_not_found", "listing not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "coupon operation failed", http.StatusInternalServerError))
	}
}
