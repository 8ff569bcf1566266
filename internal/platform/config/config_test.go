package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "harborstay-dev",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Marketplace.Currency != "CAD" {
		t.Errorf("expected default currency CAD, got %s", cfg.Marketplace.Currency)
	}
	if cfg.Marketplace.ProviderCommissionPercentage != defaultProviderCommissionPct {
		t.Errorf("unexpected default provider commission: %v", cfg.Marketplace.ProviderCommissionPercentage)
	}
	if cfg.Marketplace.RecurringTier.Enabled {
		t.Error("recurring tier should be disabled by default")
	}
	if !cfg.Marketplace.RecurringTier.ApplyToCustomer {
		t.Error("recurring tier should apply to customer by default")
	}
	if cfg.Events.ProjectID != "harborstay-dev" {
		t.Errorf("expected events project to default to firestore project, got %s", cfg.Events.ProjectID)
	}
	if !cfg.Features.EnableCoupons || !cfg.Features.EnableSalesTax {
		t.Errorf("expected coupon and sales-tax features enabled by default, got %+v", cfg.Features)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                           "9090",
		"API_SERVER_READ_TIMEOUT":                   "20s",
		"API_SERVER_WRITE_TIMEOUT":                  "25s",
		"API_SERVER_IDLE_TIMEOUT":                   "2m",
		"API_FIRESTORE_PROJECT_ID":                  "harborstay-prod",
		"API_FIRESTORE_EMULATOR_HOST":               "localhost:8200",
		"API_STRIPE_API_KEY":                        "sk_test_123",
		"API_STRIPE_WEBHOOK_SECRET":                 "whsec_456",
		"API_GOOGLE_MAPS_API_KEY":                   "maps-key",
		"API_MAPBOX_ACCESS_TOKEN":                   "pk.mapbox",
		"API_EVENTS_PROJECT_ID":                     "harborstay-events",
		"API_EVENTS_TOPIC":                          "transaction-events",
		"API_MARKETPLACE_CURRENCY":                  "usd",
		"API_COMMISSION_PROVIDER_PCT":               "12.5",
		"API_COMMISSION_PROVIDER_MIN":               "500",
		"API_COMMISSION_CUSTOMER_PCT":               "5",
		"API_COMMISSION_RECURRING_ENABLED":          "true",
		"API_COMMISSION_RECURRING_VERSION":          "2024-06",
		"API_COMMISSION_RECURRING_PROVIDER_PCT":     "7",
		"API_COMMISSION_RECURRING_CUSTOMER_PCT":     "2",
		"API_COMMISSION_RECURRING_APPLY_TO_CUSTOMER": "false",
		"API_FEATURE_COUPONS":                       "false",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("unexpected port: %s", cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout != 25*time.Second {
		t.Errorf("unexpected write timeout: %s", cfg.Server.WriteTimeout)
	}
	if cfg.Firestore.EmulatorHost != "localhost:8200" {
		t.Errorf("unexpected emulator host: %s", cfg.Firestore.EmulatorHost)
	}
	if cfg.Stripe.APIKey != "sk_test_123" {
		t.Errorf("unexpected stripe key: %s", cfg.Stripe.APIKey)
	}
	if cfg.Geocoding.MapboxToken != "pk.mapbox" {
		t.Errorf("unexpected mapbox token: %s", cfg.Geocoding.MapboxToken)
	}
	if cfg.Events.ProjectID != "harborstay-events" || cfg.Events.TopicID != "transaction-events" {
		t.Errorf("unexpected events config: %+v", cfg.Events)
	}
	if cfg.Marketplace.Currency != "USD" {
		t.Errorf("currency should be upper-cased, got %s", cfg.Marketplace.Currency)
	}
	if cfg.Marketplace.ProviderCommissionPercentage != 12.5 {
		t.Errorf("unexpected provider commission pct: %v", cfg.Marketplace.ProviderCommissionPercentage)
	}
	if cfg.Marketplace.ProviderCommissionMinimum != 500 {
		t.Errorf("unexpected provider commission min: %d", cfg.Marketplace.ProviderCommissionMinimum)
	}
	tier := cfg.Marketplace.RecurringTier
	if !tier.Enabled || tier.Version != "2024-06" || tier.ProviderPercentage != 7 || tier.CustomerPercentage != 2 {
		t.Errorf("unexpected recurring tier: %+v", tier)
	}
	if tier.ApplyToCustomer {
		t.Error("recurring tier should not apply to customer")
	}
	if cfg.Features.EnableCoupons {
		t.Error("coupons feature should be disabled")
	}
}

func TestLoadValidation(t *testing.T) {
	env := map[string]string{
		"API_COMMISSION_PROVIDER_PCT": "150",
	}

	_, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error")
	}

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	fields := validationErr.Fields()
	want := map[string]bool{
		"Firestore.ProjectID":                      false,
		"Marketplace.ProviderCommissionPercentage": false,
	}
	for _, field := range fields {
		if _, ok := want[field]; ok {
			want[field] = true
		}
	}
	for field, seen := range want {
		if !seen {
			t.Errorf("expected %s in validation fields %v", field, fields)
		}
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	contents := "# local overrides\nAPI_FIRESTORE_PROJECT_ID=harborstay-local\nexport API_SERVER_PORT=7000\nAPI_MARKETPLACE_CURRENCY=\"eur\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := Load(WithEnvFile(path), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Firestore.ProjectID != "harborstay-local" {
		t.Errorf("unexpected project id: %s", cfg.Firestore.ProjectID)
	}
	if cfg.Server.Port != "7000" {
		t.Errorf("unexpected port: %s", cfg.Server.Port)
	}
	if cfg.Marketplace.Currency != "EUR" {
		t.Errorf("unexpected currency: %s", cfg.Marketplace.Currency)
	}
}

func TestEnvMapPrecedenceOverDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("API_SERVER_PORT=7000\nAPI_FIRESTORE_PROJECT_ID=from-file\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := Load(
		WithEnvFile(path),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{"API_SERVER_PORT": "9999"}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "9999" {
		t.Errorf("explicit env map should win over .env, got %s", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "from-file" {
		t.Errorf("unexpected project id: %s", cfg.Firestore.ProjectID)
	}
}
