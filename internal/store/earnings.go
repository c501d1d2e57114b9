package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreateEarningsEventParams represents parameters for appending a ledger event
type CreateEarningsEventParams struct {
	AffiliateID uuid.UUID
	Type        string
	Amount      float64
	Currency    string
	SourceRef   *string
}

const sqlCreateEarningsEvent = `
INSERT INTO earnings_events (affiliate_id, type, amount, currency, source_ref)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, affiliate_id, type, amount, currency, source_ref, settled_at, created_at
`

// CreateEarningsEvent appends one immutable event to an affiliate's ledger
func (s *Store) CreateEarningsEvent(ctx context.Context, params CreateEarningsEventParams) (EarningsEvent, error) {
	var event EarningsEvent
	err := s.db.GetContext(ctx, &event, sqlCreateEarningsEvent,
		params.AffiliateID,
		params.Type,
		params.Amount,
		params.Currency,
		params.SourceRef)
	if err != nil {
		s.logger.Error(ctx, "failed to create earnings event", err)
		return EarningsEvent{}, fmt.Errorf("failed to create earnings event: %w", err)
	}
	return event, nil
}

const sqlConversionExistsForSource = `
SELECT EXISTS (
	SELECT 1 FROM earnings_events WHERE type = 'conversion' AND source_ref = $1
)
`

// HasConversionForSource reports whether a conversion has already been
// recorded for a payment source reference. The platform redelivers webhooks
// it considers unacknowledged; this keeps a redelivery from double-crediting
// an affiliate.
func (s *Store) HasConversionForSource(ctx context.Context, sourceRef string) (bool, error) {
	var exists bool
	if err := s.db.GetContext(ctx, &exists, sqlConversionExistsForSource, sourceRef); err != nil {
		s.logger.Error(ctx, "failed to check for existing conversion", err)
		return false, fmt.Errorf("failed to check for existing conversion: %w", err)
	}
	return exists, nil
}

const sqlListEventsByAffiliate = `
SELECT id, affiliate_id, type, amount, currency, source_ref, settled_at, created_at
FROM earnings_events
WHERE affiliate_id = $1
  AND ($2::text IS NULL OR type = $2)
ORDER BY created_at DESC
`

// ListEventsByAffiliate retrieves an affiliate's full event history, newest
// first, optionally filtered by event type
func (s *Store) ListEventsByAffiliate(ctx context.Context, affiliateID uuid.UUID, eventType *string) ([]EarningsEvent, error) {
	var events []EarningsEvent
	err := s.db.SelectContext(ctx, &events, sqlListEventsByAffiliate, affiliateID, eventType)
	if err != nil {
		s.logger.Error(ctx, "failed to list events by affiliate", err)
		return nil, fmt.Errorf("failed to list events by affiliate: %w", err)
	}
	return events, nil
}

const sqlGetEarningsTypeSummary = `
SELECT type, COUNT(*)::int AS count, COALESCE(SUM(amount), 0) AS amount
FROM earnings_events
WHERE affiliate_id = $1
GROUP BY type
`

// GetEarningsTypeSummary returns per-type event counts and amount sums for
// one affiliate
func (s *Store) GetEarningsTypeSummary(ctx context.Context, affiliateID uuid.UUID) ([]EarningsTypeSummary, error) {
	var summary []EarningsTypeSummary
	err := s.db.SelectContext(ctx, &summary, sqlGetEarningsTypeSummary, affiliateID)
	if err != nil {
		s.logger.Error(ctx, "failed to get earnings type summary", err)
		return nil, fmt.Errorf("failed to get earnings type summary: %w", err)
	}
	return summary, nil
}
