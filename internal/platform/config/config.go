package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile      = ".env"
	defaultPort         = "8080"
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 120 * time.Second

	defaultCurrency = "CAD"

	defaultProviderCommissionPct = 10
	defaultProviderCommissionMin = 0
	defaultCustomerCommissionPct = 0
	defaultCustomerCommissionMin = 0

	defaultRecurringTierVersion = "v1"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firestore   FirestoreConfig
	Stripe      StripeConfig
	Geocoding   GeocodingConfig
	Events      EventsConfig
	Marketplace MarketplaceConfig
	Features    FeatureFlags
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// StripeConfig collects payment provider credentials.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
}

// GeocodingConfig carries credentials for the address-to-region lookup chain.
// Either key may be empty; the corresponding resolver is skipped.
type GeocodingConfig struct {
	GoogleMapsAPIKey string
	MapboxToken      string
}

// EventsConfig configures the transaction event publisher. An empty topic
// disables publishing entirely.
type EventsConfig struct {
	ProjectID string
	TopicID   string
}

// MarketplaceConfig holds pricing policy: default commissions and the
// recurring-customer override tier.
type MarketplaceConfig struct {
	Currency string

	ProviderCommissionPercentage float64
	ProviderCommissionMinimum    int64
	CustomerCommissionPercentage float64
	CustomerCommissionMinimum    int64

	RecurringTier RecurringTierConfig
}

// RecurringTierConfig describes the commission tier applied to repeat
// customers. Enabled toggles the override without removing its values.
type RecurringTierConfig struct {
	Enabled            bool
	Version            string
	ProviderPercentage float64
	ProviderMinimum    int64
	CustomerPercentage float64
	CustomerMinimum    int64
	ApplyToCustomer    bool
}

// FeatureFlags toggle optional behaviour without redeploying.
type FeatureFlags struct {
	EnableCoupons  bool
	EnableSalesTax bool
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// and environment variables.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Stripe: StripeConfig{
			APIKey:        stringWithDefault(lookup, "API_STRIPE_API_KEY", ""),
			WebhookSecret: stringWithDefault(lookup, "API_STRIPE_WEBHOOK_SECRET", ""),
		},
		Geocoding: GeocodingConfig{
			GoogleMapsAPIKey: stringWithDefault(lookup, "API_GOOGLE_MAPS_API_KEY", ""),
			MapboxToken:      stringWithDefault(lookup, "API_MAPBOX_ACCESS_TOKEN", ""),
		},
		Events: EventsConfig{
			ProjectID: stringWithDefault(lookup, "API_EVENTS_PROJECT_ID", ""),
			TopicID:   stringWithDefault(lookup, "API_EVENTS_TOPIC", ""),
		},
		Marketplace: MarketplaceConfig{
			Currency:                     strings.ToUpper(stringWithDefault(lookup, "API_MARKETPLACE_CURRENCY", defaultCurrency)),
			ProviderCommissionPercentage: floatWithDefault(lookup, "API_COMMISSION_PROVIDER_PCT", defaultProviderCommissionPct),
			ProviderCommissionMinimum:    int64WithDefault(lookup, "API_COMMISSION_PROVIDER_MIN", defaultProviderCommissionMin),
			CustomerCommissionPercentage: floatWithDefault(lookup, "API_COMMISSION_CUSTOMER_PCT", defaultCustomerCommissionPct),
			CustomerCommissionMinimum:    int64WithDefault(lookup, "API_COMMISSION_CUSTOMER_MIN", defaultCustomerCommissionMin),
			RecurringTier: RecurringTierConfig{
				Enabled:            boolWithDefault(lookup, "API_COMMISSION_RECURRING_ENABLED", false),
				Version:            stringWithDefault(lookup, "API_COMMISSION_RECURRING_VERSION", defaultRecurringTierVersion),
				ProviderPercentage: floatWithDefault(lookup, "API_COMMISSION_RECURRING_PROVIDER_PCT", 0),
				ProviderMinimum:    int64WithDefault(lookup, "API_COMMISSION_RECURRING_PROVIDER_MIN", 0),
				CustomerPercentage: floatWithDefault(lookup, "API_COMMISSION_RECURRING_CUSTOMER_PCT", 0),
				CustomerMinimum:    int64WithDefault(lookup, "API_COMMISSION_RECURRING_CUSTOMER_MIN", 0),
				ApplyToCustomer:    boolWithDefault(lookup, "API_COMMISSION_RECURRING_APPLY_TO_CUSTOMER", true),
			},
		},
		Features: FeatureFlags{
			EnableCoupons:  boolWithDefault(lookup, "API_FEATURE_COUPONS", true),
			EnableSalesTax: boolWithDefault(lookup, "API_FEATURE_SALES_TAX", true),
		},
	}

	if cfg.Events.ProjectID == "" {
		cfg.Events.ProjectID = cfg.Firestore.ProjectID
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if cfg.Marketplace.Currency == "" {
		missing = append(missing, "Marketplace.Currency")
	}
	if cfg.Marketplace.ProviderCommissionPercentage < 0 || cfg.Marketplace.ProviderCommissionPercentage > 100 {
		missing = append(missing, "Marketplace.ProviderCommissionPercentage")
	}
	if cfg.Marketplace.CustomerCommissionPercentage < 0 || cfg.Marketplace.CustomerCommissionPercentage > 100 {
		missing = append(missing, "Marketplace.CustomerCommissionPercentage")
	}
	if tier := cfg.Marketplace.RecurringTier; tier.Enabled {
		if tier.ProviderPercentage < 0 || tier.ProviderPercentage > 100 {
			missing = append(missing, "Marketplace.RecurringTier.ProviderPercentage")
		}
		if tier.CustomerPercentage < 0 || tier.CustomerPercentage > 100 {
			missing = append(missing, "Marketplace.RecurringTier.CustomerPercentage")
		}
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func int64WithDefault(lookup func(string) (string, bool), key string, fallback int64) int64 {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func floatWithDefault(lookup func(string) (string, bool), key string, fallback float64) float64 {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
