package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78"
)

type fakeIntentAPI struct {
	newParams     *stripe.PaymentIntentParams
	newResult     *stripe.PaymentIntent
	newErr        error
	confirmID     string
	confirmParams *stripe.PaymentIntentConfirmParams
	confirmResult *stripe.PaymentIntent
	confirmErr    error
	getResult     *stripe.PaymentIntent
	getErr        error
}

func (f *fakeIntentAPI) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.newParams = params
	return f.newResult, f.newErr
}

func (f *fakeIntentAPI) Confirm(id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
	f.confirmID = id
	f.confirmParams = params
	return f.confirmResult, f.confirmErr
}

func (f *fakeIntentAPI) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return f.getResult, f.getErr
}

type fakeRefundAPI struct {
	params *stripe.RefundParams
	err    error
}

func (f *fakeRefundAPI) New(params *stripe.RefundParams) (*stripe.Refund, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.Refund{ID: "re_1"}, nil
}

func newTestProvider(t *testing.T, intents *fakeIntentAPI, refunds *fakeRefundAPI) *StripeProvider {
	t.Helper()
	provider, err := NewStripeProvider(StripeProviderConfig{
		Clients: &stripeClients{intents: intents, refunds: refunds},
		Clock:   func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewStripeProvider: %v", err)
	}
	return provider
}

func TestCreateIntentTipRouting(t *testing.T) {
	intents := &fakeIntentAPI{
		newResult: &stripe.PaymentIntent{
			ID:           "pi_tip",
			ClientSecret: "pi_tip_secret",
			Amount:       2500,
			Currency:     stripe.CurrencyCAD,
			Status:       stripe.PaymentIntentStatusRequiresConfirmation,
		},
	}
	provider := newTestProvider(t, intents, &fakeRefundAPI{})

	intent, err := provider.CreateIntent(context.Background(), CreateIntentRequest{
		Amount:              2500,
		Currency:            "CAD",
		Description:         "Tip to provider",
		ReceiptEmail:        "guest@example.com",
		OnBehalfOf:          "acct_123",
		TransferDestination: "acct_123",
		ManualConfirmation:  true,
		Metadata:            map[string]string{"type": "tip"},
	})
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}

	if intent.ID != "pi_tip" || intent.ClientSecret != "pi_tip_secret" {
		t.Fatalf("unexpected intent: %+v", intent)
	}
	if intent.Status != StatusPending {
		t.Fatalf("expected pending status, got %s", intent.Status)
	}
	if intent.Currency != "CAD" {
		t.Fatalf("expected upper-cased currency, got %s", intent.Currency)
	}

	params := intents.newParams
	if params == nil {
		t.Fatal("expected intent params to be recorded")
	}
	if got := stripe.StringValue(params.Currency); got != "cad" {
		t.Errorf("currency should be lower-cased for stripe, got %s", got)
	}
	if got := stripe.StringValue(params.OnBehalfOf); got != "acct_123" {
		t.Errorf("unexpected on_behalf_of: %s", got)
	}
	if params.TransferData == nil || stripe.StringValue(params.TransferData.Destination) != "acct_123" {
		t.Errorf("unexpected transfer data: %+v", params.TransferData)
	}
	if got := stripe.StringValue(params.ConfirmationMethod); got != string(stripe.PaymentIntentConfirmationMethodManual) {
		t.Errorf("expected manual confirmation, got %s", got)
	}
	if params.Metadata["type"] != "tip" {
		t.Errorf("metadata not forwarded: %v", params.Metadata)
	}
}

func TestCreateIntentValidatesInput(t *testing.T) {
	provider := newTestProvider(t, &fakeIntentAPI{}, &fakeRefundAPI{})

	if _, err := provider.CreateIntent(context.Background(), CreateIntentRequest{Amount: 0, Currency: "CAD"}); err == nil {
		t.Error("expected error for non-positive amount")
	}
	if _, err := provider.CreateIntent(context.Background(), CreateIntentRequest{Amount: 100}); err == nil {
		t.Error("expected error for missing currency")
	}
}

func TestConfirmForwardsPaymentMethod(t *testing.T) {
	intents := &fakeIntentAPI{
		confirmResult: &stripe.PaymentIntent{
			ID:       "pi_1",
			Amount:   10000,
			Currency: stripe.CurrencyCAD,
			Status:   stripe.PaymentIntentStatusSucceeded,
		},
	}
	provider := newTestProvider(t, intents, &fakeRefundAPI{})

	details, err := provider.Confirm(context.Background(), ConfirmRequest{
		IntentID:        "pi_1",
		PaymentMethodID: "pm_card",
		ReturnURL:       "https://example.com/return",
	})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if intents.confirmID != "pi_1" {
		t.Errorf("unexpected intent id: %s", intents.confirmID)
	}
	if got := stripe.StringValue(intents.confirmParams.PaymentMethod); got != "pm_card" {
		t.Errorf("unexpected payment method: %s", got)
	}
	if got := stripe.StringValue(intents.confirmParams.ReturnURL); got != "https://example.com/return" {
		t.Errorf("unexpected return url: %s", got)
	}
	if details.Status != StatusSucceeded || !details.Captured {
		t.Fatalf("unexpected details: %+v", details)
	}
}

func TestConfirmPropagatesError(t *testing.T) {
	intents := &fakeIntentAPI{confirmErr: errors.New("card declined")}
	provider := newTestProvider(t, intents, &fakeRefundAPI{})

	if _, err := provider.Confirm(context.Background(), ConfirmRequest{IntentID: "pi_1"}); err == nil {
		t.Fatal("expected confirm error")
	}
}

func TestRefundMarksFullyRefundedIntent(t *testing.T) {
	refunds := &fakeRefundAPI{}
	intents := &fakeIntentAPI{
		getResult: &stripe.PaymentIntent{
			ID:       "pi_1",
			Amount:   10000,
			Currency: stripe.CurrencyCAD,
			Status:   stripe.PaymentIntentStatusSucceeded,
			LatestCharge: &stripe.Charge{
				Amount:         10000,
				AmountRefunded: 10000,
				Refunded:       true,
				Paid:           true,
				Created:        time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC).Unix(),
			},
		},
	}
	provider := newTestProvider(t, intents, refunds)

	details, err := provider.Refund(context.Background(), RefundRequest{
		IntentID: "pi_1",
		Reason:   "requested_by_customer",
	})
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if refunds.params == nil || stripe.StringValue(refunds.params.PaymentIntent) != "pi_1" {
		t.Fatalf("refund params not recorded: %+v", refunds.params)
	}
	if got := stripe.StringValue(refunds.params.Reason); got != string(stripe.RefundReasonRequestedByCustomer) {
		t.Errorf("unexpected refund reason: %s", got)
	}
	if details.Status != StatusRefunded {
		t.Fatalf("expected refunded status, got %s", details.Status)
	}
	if details.RefundedAt == nil {
		t.Fatal("expected refunded timestamp")
	}
}

func TestNewStripeProviderRequiresKeyOrClients(t *testing.T) {
	if _, err := NewStripeProvider(StripeProviderConfig{}); err == nil {
		t.Fatal("expected error without api key or clients")
	}
}
