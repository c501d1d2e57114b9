package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// UpsertProgramParams represents parameters for creating or replacing a program
type UpsertProgramParams struct {
	CompanyID       string
	DefaultRate     float64
	PayoutFrequency string
	CookieWindow    int
	Status          string
}

const sqlUpsertProgram = `
INSERT INTO programs (company_id, default_rate, payout_frequency, cookie_window, status)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (company_id) DO UPDATE SET
    default_rate = EXCLUDED.default_rate,
    payout_frequency = EXCLUDED.payout_frequency,
    cookie_window = EXCLUDED.cookie_window,
    status = EXCLUDED.status,
    updated_at = now()
RETURNING id, company_id, default_rate, payout_frequency, cookie_window, status,
    0 AS offer_count, 0 AS affiliate_count, created_at, updated_at
`

// UpsertProgram creates the company's program or overwrites all of its fields.
// No history of prior configurations is kept.
func (s *Store) UpsertProgram(ctx context.Context, params UpsertProgramParams) (Program, error) {
	var program Program
	err := s.db.GetContext(ctx, &program, sqlUpsertProgram,
		params.CompanyID,
		params.DefaultRate,
		params.PayoutFrequency,
		params.CookieWindow,
		params.Status)
	if err != nil {
		s.logger.Error(ctx, "failed to upsert program", err)
		return Program{}, fmt.Errorf("failed to upsert program: %w", err)
	}
	return program, nil
}

const sqlGetProgramByCompanyID = `
SELECT
    p.id, p.company_id, p.default_rate, p.payout_frequency, p.cookie_window, p.status,
    COALESCE(COUNT(DISTINCT o.id), 0)::int AS offer_count,
    COALESCE(COUNT(DISTINCT a.id), 0)::int AS affiliate_count,
    p.created_at, p.updated_at
FROM programs p
LEFT JOIN offers o ON o.program_id = p.id
LEFT JOIN affiliates a ON a.program_id = p.id
WHERE p.company_id = $1
GROUP BY p.id
`

// GetProgramByCompanyID retrieves the program for a company with offer and
// affiliate counts
func (s *Store) GetProgramByCompanyID(ctx context.Context, companyID string) (Program, error) {
	var program Program
	err := s.db.GetContext(ctx, &program, sqlGetProgramByCompanyID, companyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Program{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get program by company id", err)
		return Program{}, fmt.Errorf("failed to get program by company id: %w", err)
	}
	return program, nil
}

const sqlGetProgramByID = `
SELECT id, company_id, default_rate, payout_frequency, cookie_window, status,
    0 AS offer_count, 0 AS affiliate_count, created_at, updated_at
FROM programs
WHERE id = $1
`

// GetProgramByID retrieves a program by ID
func (s *Store) GetProgramByID(ctx context.Context, programID uuid.UUID) (Program, error) {
	var program Program
	err := s.db.GetContext(ctx, &program, sqlGetProgramByID, programID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Program{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get program by id", err)
		return Program{}, fmt.Errorf("failed to get program by id: %w", err)
	}
	return program, nil
}
