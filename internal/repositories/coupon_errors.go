package repositories

import "fmt"

// CouponErrorCode enumerates repository error causes for coupon operations.
type CouponErrorCode string

const (
	// CouponErrorUnknown represents an unspecified failure.
	CouponErrorUnknown CouponErrorCode = "coupon_unknown"
	// CouponErrorInvalidInput indicates malformed input to a coupon operation.
	CouponErrorInvalidInput CouponErrorCode = "coupon_invalid_input"
	// CouponErrorNotFound indicates the coupon document is missing.
	CouponErrorNotFound CouponErrorCode = "coupon_not_found"
	// CouponErrorDuplicateCode indicates the provider already has a coupon with the code.
	CouponErrorDuplicateCode CouponErrorCode = "coupon_duplicate_code"
	// CouponErrorExhausted indicates the redemption cap has been reached.
	CouponErrorExhausted CouponErrorCode = "coupon_exhausted"
)

// CouponError wraps coupon-specific failures with machine readable codes.
type CouponError struct {
	Op      string
	Code    CouponErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CouponError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *CouponError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound reports whether the error represents a missing coupon.
func (e *CouponError) IsNotFound() bool {
	return e != nil && e.Code == CouponErrorNotFound
}

// IsConflict reports whether the error represents a duplicate code or an exhausted cap.
func (e *CouponError) IsConflict() bool {
	return e != nil && (e.Code == CouponErrorDuplicateCode || e.Code == CouponErrorExhausted)
}

// IsUnavailable reports whether the error represents a transient backend outage.
func (e *CouponError) IsUnavailable() bool {
	return false
}

// NewCouponError constructs a typed coupon error.
func NewCouponError(code CouponErrorCode, message string, err error) *CouponError {
	if message == "" {
		message = string(code)
	}
	return &CouponError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
