package payments

import (
	"context"
	"time"
)

// Status enumerates the normalised payment states shared across providers.
type Status string

const (
	// StatusPending indicates the payment is awaiting customer action or PSP confirmation.
	StatusPending Status = "pending"
	// StatusSucceeded indicates the PSP reports the payment as successfully captured.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the PSP reports a failure and no further action is possible.
	StatusFailed Status = "failed"
	// StatusRefunded indicates the payment has been refunded (partially or fully).
	StatusRefunded Status = "refunded"
)

// CreateIntentRequest captures the payload required to create a payment intent.
// OnBehalfOf and TransferDestination route funds to a connected account when
// set (tip payments); both empty means a platform-owned charge.
type CreateIntentRequest struct {
	Amount              int64
	Currency            string
	Description         string
	ReceiptEmail        string
	OnBehalfOf          string
	TransferDestination string
	ManualConfirmation  bool
	Metadata            map[string]string
	IdempotencyKey      string
}

// Intent is the PSP payment intent returned to the client for confirmation.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
	Status       Status
}

// ConfirmRequest contains the data required to confirm a payment intent.
type ConfirmRequest struct {
	IntentID        string
	PaymentMethodID string
	ReturnURL       string
	IdempotencyKey  string
	Metadata        map[string]string
}

// RefundRequest defines a PSP refund attempt, optionally for a partial amount.
type RefundRequest struct {
	IntentID       string
	Amount         *int64
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string
}

// LookupRequest returns provider specific payment details for reconciliation.
type LookupRequest struct {
	IntentID string
}

// PaymentDetails normalises PSP specific fields for storage.
type PaymentDetails struct {
	Provider   string
	IntentID   string
	Status     Status
	Amount     int64
	Currency   string
	Captured   bool
	CapturedAt *time.Time
	RefundedAt *time.Time
	Raw        map[string]any
}

// Provider defines the contract for PSP adapters to implement.
type Provider interface {
	CreateIntent(ctx context.Context, req CreateIntentRequest) (Intent, error)
	Confirm(ctx context.Context, req ConfirmRequest) (PaymentDetails, error)
	Refund(ctx context.Context, req RefundRequest) (PaymentDetails, error)
	LookupPayment(ctx context.Context, req LookupRequest) (PaymentDetails, error)
}
