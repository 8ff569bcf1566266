package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/harborstay/api/internal/di"
	"github.com/harborstay/api/internal/geocode"
	"github.com/harborstay/api/internal/handlers"
	"github.com/harborstay/api/internal/payments"
	"github.com/harborstay/api/internal/platform/config"
	"github.com/harborstay/api/internal/platform/events"
	pfirestore "github.com/harborstay/api/internal/platform/firestore"
	"github.com/harborstay/api/internal/platform/idempotency"
	"github.com/harborstay/api/internal/platform/observability"
	"github.com/harborstay/api/internal/platform/requestctx"
	firestoreRepo "github.com/harborstay/api/internal/repositories/firestore"
	"github.com/harborstay/api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	registry, err := firestoreRepo.NewRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to build repositories", zap.Error(err))
	}

	eventLogger := zapEventLogger(logger.Named("services"))

	stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
		APIKey: cfg.Stripe.APIKey,
		Logger: eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise stripe provider", zap.Error(err))
	}

	var geocoders []geocode.Geocoder
	if google := geocode.NewGoogleGeocoder(cfg.Geocoding.GoogleMapsAPIKey); google != nil {
		geocoders = append(geocoders, google)
	}
	if mapbox := geocode.NewMapboxGeocoder(cfg.Geocoding.MapboxToken); mapbox != nil {
		geocoders = append(geocoders, mapbox)
	}
	if len(geocoders) == 0 {
		logger.Warn("no geocoding credentials configured; provider-location tax lookups are disabled")
	}
	geocoderChain := geocode.NewChain(geocoders...)

	var publisher services.TransactionEventPublisher
	if topicID := strings.TrimSpace(cfg.Events.TopicID); topicID != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()

		topic := pubsubClient.Topic(topicID)
		defer topic.Stop()

		publisher, err = events.NewPubSubTransactionPublisher(topic)
		if err != nil {
			logger.Fatal("failed to initialise event publisher", zap.Error(err))
		}
	} else {
		logger.Info("transaction event publishing disabled; no topic configured")
	}

	container, err := di.NewContainer(ctx, di.Deps{
		Config:   cfg,
		Registry: registry,
		Payments: stripeProvider,
		Geocoder: geocoderChain,
		TaxRates: services.CanadianTaxTable(),
		Events:   publisher,
		Logger:   eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to build services", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	projectID := cfg.Firestore.ProjectID
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthReadiness(registry.Health()),
		handlers.WithHealthBuildInfo(buildVersion(), buildEnvironment(), startedAt),
	)

	quoteHandlers := handlers.NewQuoteHandlers(container.Services.Quotes)
	checkoutHandlers := handlers.NewCheckoutHandlers(container.Services.Checkout)
	paymentHandlers := handlers.NewPaymentHandlers(container.Services.Checkout)

	// Payment-mutating groups require an Idempotency-Key so client retries
	// replay the stored response instead of double charging.
	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(idempotencyStore,
		idempotency.WithMethods(http.MethodPost),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithQuoteRoutes(quoteHandlers.Routes),
		handlers.WithCheckoutRoutes(func(r chi.Router) {
			r.Use(idempotencyMiddleware)
			checkoutHandlers.Routes(r)
		}),
		handlers.WithPaymentRoutes(func(r chi.Router) {
			r.Use(idempotencyMiddleware)
			paymentHandlers.Routes(r)
		}),
	}
	if container.Services.Coupons != nil {
		couponHandlers := handlers.NewCouponHandlers(container.Services.Coupons)
		opts = append(opts, handlers.WithCouponRoutes(func(r chi.Router) { couponHandlers.Routes(r) }))
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("harborstay api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// zapEventLogger adapts the request-scoped zap logger to the event/fields
// logging hook the services layer expects.
func zapEventLogger(fallback *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	if fallback == nil {
		fallback = zap.NewNop()
	}
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := requestctx.Logger(ctx)
		if logger == requestctx.NoopLogger() {
			logger = fallback
		}
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Info(event, zapFields...)
	}
}

func buildVersion() string {
	if version := strings.TrimSpace(os.Getenv("API_BUILD_VERSION")); version != "" {
		return version
	}
	return "dev"
}

func buildEnvironment() string {
	if env := strings.TrimSpace(os.Getenv("API_ENVIRONMENT")); env != "" {
		return env
	}
	return "local"
}
