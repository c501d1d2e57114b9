package processor

import (
	affiliateProcessor "affiliate-server/internal/affiliate/processor"
	"affiliate-server/internal/clients/platform"
	"affiliate-server/internal/observability"
	"affiliate-server/internal/store"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WebhookStore defines the database operations required by WebhookProcessor
type WebhookStore interface {
	GetProgramByID(ctx context.Context, programID uuid.UUID) (store.Program, error)
	GetOfferByID(ctx context.Context, offerID uuid.UUID) (store.Offer, error)
	GetAffiliateByID(ctx context.Context, affiliateID uuid.UUID) (store.Affiliate, error)
	CreateEarningsEvent(ctx context.Context, params store.CreateEarningsEventParams) (store.EarningsEvent, error)
	HasConversionForSource(ctx context.Context, sourceRef string) (bool, error)
}

const actionPaymentSucceeded = "payment.succeeded"

type WebhookProcessor struct {
	store  WebhookStore
	logger *observability.Logger
}

func New(store WebhookStore, logger *observability.Logger) WebhookProcessor {
	return WebhookProcessor{
		store:  store,
		logger: logger,
	}
}

// ProcessEvent runs the follow-up for one validated webhook event. It is
// called after the 200 has gone out: failures here are logged and dropped,
// never retried by the sender.
func (p *WebhookProcessor) ProcessEvent(ctx context.Context, event platform.WebhookEvent) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "webhook_action", Value: event.Action},
		observability.Field{Key: "payment_id", Value: event.Data.ID},
	)

	switch event.Action {
	case actionPaymentSucceeded:
		if err := p.recordConversion(ctx, event); err != nil {
			p.logger.InfoWithError(ctx, "dropping payment webhook", err)
			return
		}
		p.logger.Info(ctx, "conversion recorded from payment webhook")
	default:
		p.logger.Info(ctx, "ignoring webhook action")
	}
}

// recordConversion credits the referring affiliate with their commission on
// a succeeded payment: amount × effective rate / 100, sourceRef'd to the
// payment id.
func (p *WebhookProcessor) recordConversion(ctx context.Context, event platform.WebhookEvent) error {
	programID, err := uuid.Parse(event.Data.Metadata["programId"])
	if err != nil {
		return fmt.Errorf("metadata has no usable programId: %w", err)
	}
	affiliateID, err := uuid.Parse(event.Data.Metadata["affiliateId"])
	if err != nil {
		return fmt.Errorf("metadata has no usable affiliateId: %w", err)
	}

	affiliate, err := p.store.GetAffiliateByID(ctx, affiliateID)
	if err != nil {
		return fmt.Errorf("referring affiliate not found: %w", err)
	}
	if affiliate.ProgramID != programID {
		return errors.New("referring affiliate does not belong to the named program")
	}
	if affiliate.Status != store.AffiliateStatusApproved {
		return errors.New("referring affiliate is not approved")
	}

	program, err := p.store.GetProgramByID(ctx, programID)
	if err != nil {
		return fmt.Errorf("program not found: %w", err)
	}

	// The offer reference is best-effort: a bad or foreign offer id falls
	// back to the program rate rather than dropping the conversion.
	var offer *store.Offer
	if raw, ok := event.Data.Metadata["offerId"]; ok {
		if offerID, parseErr := uuid.Parse(raw); parseErr == nil {
			if loaded, loadErr := p.store.GetOfferByID(ctx, offerID); loadErr == nil && loaded.ProgramID == programID {
				offer = &loaded
			}
		}
	}

	rate := affiliateProcessor.EffectiveRate(affiliate, offer, program, time.Now())
	commission := event.Data.FinalAmount * rate / 100
	if commission <= 0 {
		return fmt.Errorf("no commission for amount %v at rate %v", event.Data.FinalAmount, rate)
	}

	currency := event.Data.Currency
	if currency == "" {
		currency = "usd"
	}
	// The platform redelivers events it considers unacknowledged; the same
	// payment must never credit the affiliate twice.
	sourceRef := event.Data.ID
	exists, err := p.store.HasConversionForSource(ctx, sourceRef)
	if err != nil {
		return fmt.Errorf("failed to check for prior conversion: %w", err)
	}
	if exists {
		return fmt.Errorf("conversion already recorded for payment %s", sourceRef)
	}

	_, err = p.store.CreateEarningsEvent(ctx, store.CreateEarningsEventParams{
		AffiliateID: affiliate.ID,
		Type:        store.EventTypeConversion,
		Amount:      commission,
		Currency:    currency,
		SourceRef:   &sourceRef,
	})
	if err != nil {
		return fmt.Errorf("failed to record conversion: %w", err)
	}
	return nil
}
