package bootstrap

import (
	"affiliate-server/internal/config"
	"affiliate-server/internal/observability"
	"affiliate-server/internal/store"
	"context"
	"fmt"

	affiliateHandler "affiliate-server/internal/affiliate/handler"
	affiliateProcessor "affiliate-server/internal/affiliate/processor"
	authHandler "affiliate-server/internal/auth/handler"
	authProcessor "affiliate-server/internal/auth/processor"
	"affiliate-server/internal/clients/platform"
	creativeHandler "affiliate-server/internal/creative/handler"
	creativeProcessor "affiliate-server/internal/creative/processor"
	earningsHandler "affiliate-server/internal/earnings/handler"
	earningsProcessor "affiliate-server/internal/earnings/processor"
	"affiliate-server/internal/notifications"
	offerHandler "affiliate-server/internal/offer/handler"
	offerProcessor "affiliate-server/internal/offer/processor"
	payoutHandler "affiliate-server/internal/payouts/handler"
	payoutProcessor "affiliate-server/internal/payouts/processor"
	programHandler "affiliate-server/internal/program/handler"
	programProcessor "affiliate-server/internal/program/processor"
	webhookHandler "affiliate-server/internal/webhooks/handler"
	webhookProcessor "affiliate-server/internal/webhooks/processor"
)

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	// Core
	Store  store.Store
	Logger *observability.Logger

	// Platform API client
	Platform *platform.Client

	// Handlers
	AuthHandler      authHandler.Handler
	ProgramHandler   programHandler.Handler
	OfferHandler     offerHandler.Handler
	CreativeHandler  creativeHandler.Handler
	AffiliateHandler affiliateHandler.Handler
	EarningsHandler  earningsHandler.Handler
	PayoutHandler    payoutHandler.Handler
	WebhookHandler   webhookHandler.Handler

	// Background workers
	NotificationDispatcher *notifications.Dispatcher
}

// Initialize sets up all application dependencies
func Initialize(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Logger: logger,
	}

	// Initialize database store
	var err error
	deps.Store, err = store.New(cfg.Database.ConnectionString(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db := &deps.Store

	// Initialize platform API client
	deps.Platform = platform.NewClient(
		cfg.Platform.APIBaseURL,
		cfg.Platform.AppID,
		cfg.Platform.APIKey,
		cfg.Platform.TokenJWTSecret,
		logger,
	)

	// Initialize notification dispatcher (started by the server)
	emailer, err := notifications.NewResendEmailer(cfg.Services.ResendAPIKey, cfg.Services.DefaultEmailSender, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create resend client: %w", err)
	}
	deps.NotificationDispatcher = notifications.New(deps.Platform, emailer, logger, cfg.Server.NotificationQueueSize)

	// Initialize access guard
	accessProc := authProcessor.New(deps.Platform, logger)
	deps.AuthHandler = authHandler.New(accessProc, logger)

	// Initialize program processor and handler
	programProc := programProcessor.New(db, logger)
	deps.ProgramHandler = programHandler.New(programProc, &accessProc, logger)

	// Initialize offer processor and handler
	offerProc := offerProcessor.New(db, deps.NotificationDispatcher, logger)
	deps.OfferHandler = offerHandler.New(offerProc, &accessProc, logger)

	// Initialize creative processor and handler
	creativeProc := creativeProcessor.New(db, deps.Platform, deps.NotificationDispatcher, logger)
	deps.CreativeHandler = creativeHandler.New(creativeProc, &accessProc, logger)

	// Initialize affiliate processor and handler
	affiliateProc := affiliateProcessor.New(db, deps.NotificationDispatcher, logger)
	deps.AffiliateHandler = affiliateHandler.New(affiliateProc, &accessProc, logger)

	// Initialize earnings processor and handler
	earningsProc := earningsProcessor.New(db, logger)
	deps.EarningsHandler = earningsHandler.New(earningsProc, &accessProc, logger)

	// Initialize settlement engine
	payoutProc := payoutProcessor.New(
		db,
		payoutProcessor.NewStoreSettler(db),
		deps.Platform,
		deps.NotificationDispatcher,
		logger,
	)
	deps.PayoutHandler = payoutHandler.New(payoutProc, &accessProc, logger)

	// Initialize inbound webhook processor and handler
	webhookProc := webhookProcessor.New(db, logger)
	deps.WebhookHandler = webhookHandler.New(webhookProc, cfg.Platform.WebhookSecret, logger)

	return deps, nil
}

// Cleanup closes all resources that need cleanup
func (d *Dependencies) Cleanup() {
	if d.NotificationDispatcher != nil {
		d.NotificationDispatcher.Stop()
	}
	if err := d.Store.Close(); err != nil {
		d.Logger.InfoWithError(context.Background(), "failed to close database", err)
	}
}
