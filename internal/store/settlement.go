package store

import (
	"affiliate-server/internal/observability"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Settlement is one in-flight settlement attempt for a single affiliate.
// It holds an open transaction with a per-affiliate advisory lock, so two
// concurrent batches naming the same affiliate are serialized: the second
// blocks until the first commits, then sees zero pending conversions.
type Settlement struct {
	tx          *sqlx.Tx
	logger      *observability.Logger
	affiliateID uuid.UUID
	pending     float64
	eventIDs    []uuid.UUID
	done        bool
}

const sqlAdvisoryLockAffiliate = `
SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))
`

const sqlSelectUnsettledConversions = `
SELECT id, amount
FROM earnings_events
WHERE affiliate_id = $1 AND type = 'conversion' AND settled_at IS NULL
FOR UPDATE
`

// BeginSettlement opens a settlement transaction for one affiliate: it takes
// the affiliate's advisory lock, row-locks the unsettled conversions and
// computes the pending balance from those rows. Commit marks settled by id,
// so a conversion that lands after this snapshot can never be swept into the
// settled set without being part of the paid amount.
func (s *Store) BeginSettlement(ctx context.Context, affiliateID uuid.UUID) (*Settlement, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.Error(ctx, "failed to begin settlement transaction", err)
		return nil, fmt.Errorf("failed to begin settlement transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, sqlAdvisoryLockAffiliate, affiliateID); err != nil {
		_ = tx.Rollback()
		s.logger.Error(ctx, "failed to take settlement lock", err)
		return nil, fmt.Errorf("failed to take settlement lock: %w", err)
	}

	var rows []struct {
		ID     uuid.UUID `db:"id"`
		Amount float64   `db:"amount"`
	}
	if err := tx.SelectContext(ctx, &rows, sqlSelectUnsettledConversions, affiliateID); err != nil {
		_ = tx.Rollback()
		s.logger.Error(ctx, "failed to select unsettled conversions", err)
		return nil, fmt.Errorf("failed to select unsettled conversions: %w", err)
	}

	var pending float64
	eventIDs := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		pending += row.Amount
		eventIDs = append(eventIDs, row.ID)
	}

	return &Settlement{
		tx:          tx,
		logger:      s.logger,
		affiliateID: affiliateID,
		pending:     pending,
		eventIDs:    eventIDs,
	}, nil
}

// Pending returns the unsettled conversion total covered by this settlement
func (st *Settlement) Pending() float64 {
	return st.pending
}

const sqlInsertPayoutEvent = `
INSERT INTO earnings_events (affiliate_id, type, amount, currency, source_ref)
VALUES ($1, 'payout', $2, $3, $4)
RETURNING id, affiliate_id, type, amount, currency, source_ref, settled_at, created_at
`

const sqlMarkConversionsSettled = `
UPDATE earnings_events
SET settled_at = now()
WHERE id IN (?)
`

// Commit records the payout event for the pending amount, marks exactly the
// conversions covered by the pending sum settled and commits. The payout and
// the settled markers land atomically: a later run cannot re-pay these
// conversions.
func (st *Settlement) Commit(ctx context.Context, currency string, sourceRef string) (EarningsEvent, error) {
	if st.done {
		return EarningsEvent{}, fmt.Errorf("settlement already finished")
	}

	var event EarningsEvent
	err := st.tx.GetContext(ctx, &event, sqlInsertPayoutEvent,
		st.affiliateID, st.pending, currency, sourceRef)
	if err != nil {
		_ = st.tx.Rollback()
		st.done = true
		st.logger.Error(ctx, "failed to insert payout event", err)
		return EarningsEvent{}, fmt.Errorf("failed to insert payout event: %w", err)
	}

	if len(st.eventIDs) > 0 {
		query, args, err := sqlx.In(sqlMarkConversionsSettled, st.eventIDs)
		if err != nil {
			_ = st.tx.Rollback()
			st.done = true
			st.logger.Error(ctx, "failed to build settled marker query", err)
			return EarningsEvent{}, fmt.Errorf("failed to build settled marker query: %w", err)
		}
		if _, err := st.tx.ExecContext(ctx, st.tx.Rebind(query), args...); err != nil {
			_ = st.tx.Rollback()
			st.done = true
			st.logger.Error(ctx, "failed to mark conversions settled", err)
			return EarningsEvent{}, fmt.Errorf("failed to mark conversions settled: %w", err)
		}
	}

	if err := st.tx.Commit(); err != nil {
		st.done = true
		st.logger.Error(ctx, "failed to commit settlement", err)
		return EarningsEvent{}, fmt.Errorf("failed to commit settlement: %w", err)
	}
	st.done = true
	return event, nil
}

// Rollback abandons the settlement and releases the affiliate's lock
func (st *Settlement) Rollback() error {
	if st.done {
		return nil
	}
	st.done = true
	return st.tx.Rollback()
}
