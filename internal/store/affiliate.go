package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateAffiliateParams represents parameters for creating an affiliate application
type CreateAffiliateParams struct {
	ProgramID uuid.UUID
	UserID    string
}

// UpdateAffiliateTermsParams represents parameters for updating an
// affiliate's commission terms. Nil fields are left unchanged.
type UpdateAffiliateTermsParams struct {
	CustomRate *float64
	Tier       *string
	RateExpiry *time.Time
}

const sqlCreateAffiliate = `
INSERT INTO affiliates (program_id, user_id, status)
VALUES ($1, $2, 'pending')
RETURNING id, program_id, user_id, status, custom_rate, tier, rate_expiry,
    applied_at, approved_at, rejected_at, 0 AS event_count, created_at, updated_at
`

// CreateAffiliate creates a pending affiliate application
func (s *Store) CreateAffiliate(ctx context.Context, params CreateAffiliateParams) (Affiliate, error) {
	var affiliate Affiliate
	err := s.db.GetContext(ctx, &affiliate, sqlCreateAffiliate, params.ProgramID, params.UserID)
	if err != nil {
		s.logger.Error(ctx, "failed to create affiliate", err)
		return Affiliate{}, fmt.Errorf("failed to create affiliate: %w", err)
	}
	return affiliate, nil
}

const sqlGetAffiliateByID = `
SELECT a.id, a.program_id, a.user_id, a.status, a.custom_rate, a.tier, a.rate_expiry,
    a.applied_at, a.approved_at, a.rejected_at,
    COALESCE(COUNT(e.id), 0)::int AS event_count,
    a.created_at, a.updated_at
FROM affiliates a
LEFT JOIN earnings_events e ON e.affiliate_id = a.id
WHERE a.id = $1
GROUP BY a.id
`

// GetAffiliateByID retrieves an affiliate by ID with its event count
func (s *Store) GetAffiliateByID(ctx context.Context, affiliateID uuid.UUID) (Affiliate, error) {
	var affiliate Affiliate
	err := s.db.GetContext(ctx, &affiliate, sqlGetAffiliateByID, affiliateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Affiliate{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get affiliate by id", err)
		return Affiliate{}, fmt.Errorf("failed to get affiliate by id: %w", err)
	}
	return affiliate, nil
}

const sqlGetAffiliateByProgramAndUser = `
SELECT id, program_id, user_id, status, custom_rate, tier, rate_expiry,
    applied_at, approved_at, rejected_at, 0 AS event_count, created_at, updated_at
FROM affiliates
WHERE program_id = $1 AND user_id = $2
`

// GetAffiliateByProgramAndUser retrieves the unique enrollment record for a
// (program, user) pair
func (s *Store) GetAffiliateByProgramAndUser(ctx context.Context, programID uuid.UUID, userID string) (Affiliate, error) {
	var affiliate Affiliate
	err := s.db.GetContext(ctx, &affiliate, sqlGetAffiliateByProgramAndUser, programID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Affiliate{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get affiliate by program and user", err)
		return Affiliate{}, fmt.Errorf("failed to get affiliate by program and user: %w", err)
	}
	return affiliate, nil
}

const sqlListAffiliatesByProgram = `
SELECT a.id, a.program_id, a.user_id, a.status, a.custom_rate, a.tier, a.rate_expiry,
    a.applied_at, a.approved_at, a.rejected_at,
    COALESCE(COUNT(e.id), 0)::int AS event_count,
    a.created_at, a.updated_at
FROM affiliates a
LEFT JOIN earnings_events e ON e.affiliate_id = a.id
WHERE a.program_id = $1
  AND ($2::text IS NULL OR a.status = $2)
GROUP BY a.id
ORDER BY a.applied_at DESC
`

// ListAffiliatesByProgram retrieves affiliates for a program, most recently
// applied first, optionally filtered by status
func (s *Store) ListAffiliatesByProgram(ctx context.Context, programID uuid.UUID, status *string) ([]Affiliate, error) {
	var affiliates []Affiliate
	err := s.db.SelectContext(ctx, &affiliates, sqlListAffiliatesByProgram, programID, status)
	if err != nil {
		s.logger.Error(ctx, "failed to list affiliates by program", err)
		return nil, fmt.Errorf("failed to list affiliates by program: %w", err)
	}
	return affiliates, nil
}

const sqlApproveAffiliate = `
UPDATE affiliates SET
    status = 'approved',
    approved_at = now(),
    custom_rate = COALESCE($2, custom_rate),
    tier = COALESCE($3, tier),
    updated_at = now()
WHERE id = $1
RETURNING id, program_id, user_id, status, custom_rate, tier, rate_expiry,
    applied_at, approved_at, rejected_at, 0 AS event_count, created_at, updated_at
`

// ApproveAffiliate marks an affiliate approved, optionally setting a custom
// rate and tier
func (s *Store) ApproveAffiliate(ctx context.Context, affiliateID uuid.UUID, customRate *float64, tier *string) (Affiliate, error) {
	var affiliate Affiliate
	err := s.db.GetContext(ctx, &affiliate, sqlApproveAffiliate, affiliateID, customRate, tier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Affiliate{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to approve affiliate", err)
		return Affiliate{}, fmt.Errorf("failed to approve affiliate: %w", err)
	}
	return affiliate, nil
}

const sqlRejectAffiliate = `
UPDATE affiliates SET
    status = 'rejected',
    rejected_at = now(),
    updated_at = now()
WHERE id = $1
RETURNING id, program_id, user_id, status, custom_rate, tier, rate_expiry,
    applied_at, approved_at, rejected_at, 0 AS event_count, created_at, updated_at
`

// RejectAffiliate marks an affiliate rejected
func (s *Store) RejectAffiliate(ctx context.Context, affiliateID uuid.UUID) (Affiliate, error) {
	var affiliate Affiliate
	err := s.db.GetContext(ctx, &affiliate, sqlRejectAffiliate, affiliateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Affiliate{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to reject affiliate", err)
		return Affiliate{}, fmt.Errorf("failed to reject affiliate: %w", err)
	}
	return affiliate, nil
}

const sqlUpdateAffiliateTerms = `
UPDATE affiliates SET
    custom_rate = COALESCE($2, custom_rate),
    tier = COALESCE($3, tier),
    rate_expiry = COALESCE($4, rate_expiry),
    updated_at = now()
WHERE id = $1
RETURNING id, program_id, user_id, status, custom_rate, tier, rate_expiry,
    applied_at, approved_at, rejected_at, 0 AS event_count, created_at, updated_at
`

// UpdateAffiliateTerms updates an affiliate's commission terms
func (s *Store) UpdateAffiliateTerms(ctx context.Context, affiliateID uuid.UUID, params UpdateAffiliateTermsParams) (Affiliate, error) {
	var affiliate Affiliate
	err := s.db.GetContext(ctx, &affiliate, sqlUpdateAffiliateTerms,
		affiliateID,
		params.CustomRate,
		params.Tier,
		params.RateExpiry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Affiliate{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to update affiliate terms", err)
		return Affiliate{}, fmt.Errorf("failed to update affiliate terms: %w", err)
	}
	return affiliate, nil
}
