package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateOfferParams represents parameters for creating an offer
type CreateOfferParams struct {
	ProgramID    uuid.UUID
	ExperienceID *string
	Name         string
	Description  string
	Terms        *string
	Visibility   string
	StartAt      *time.Time
	EndAt        *time.Time
	RateOverride *float64
}

// UpdateOfferParams represents parameters for updating an offer.
// Nil fields are left unchanged.
type UpdateOfferParams struct {
	Name         *string
	Description  *string
	Terms        *string
	Visibility   *string
	StartAt      *time.Time
	EndAt        *time.Time
	RateOverride *float64
	IsPublished  *bool
	ExperienceID *string
}

const sqlCreateOffer = `
INSERT INTO offers (program_id, experience_id, name, description, terms, visibility, start_at, end_at, rate_override)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, program_id, experience_id, name, description, terms, visibility, start_at, end_at,
    rate_override, is_published, 0 AS creative_count, created_at, updated_at
`

// CreateOffer creates a new offer under a program
func (s *Store) CreateOffer(ctx context.Context, params CreateOfferParams) (Offer, error) {
	var offer Offer
	err := s.db.GetContext(ctx, &offer, sqlCreateOffer,
		params.ProgramID,
		params.ExperienceID,
		params.Name,
		params.Description,
		params.Terms,
		params.Visibility,
		params.StartAt,
		params.EndAt,
		params.RateOverride)
	if err != nil {
		s.logger.Error(ctx, "failed to create offer", err)
		return Offer{}, fmt.Errorf("failed to create offer: %w", err)
	}
	return offer, nil
}

const sqlGetOfferByID = `
SELECT o.id, o.program_id, o.experience_id, o.name, o.description, o.terms, o.visibility,
    o.start_at, o.end_at, o.rate_override, o.is_published,
    COALESCE(COUNT(c.id), 0)::int AS creative_count,
    o.created_at, o.updated_at
FROM offers o
LEFT JOIN creatives c ON c.offer_id = o.id
WHERE o.id = $1
GROUP BY o.id
`

// GetOfferByID retrieves an offer by ID with its creative count
func (s *Store) GetOfferByID(ctx context.Context, offerID uuid.UUID) (Offer, error) {
	var offer Offer
	err := s.db.GetContext(ctx, &offer, sqlGetOfferByID, offerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Offer{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get offer by id", err)
		return Offer{}, fmt.Errorf("failed to get offer by id: %w", err)
	}
	return offer, nil
}

const sqlListOffersByProgram = `
SELECT o.id, o.program_id, o.experience_id, o.name, o.description, o.terms, o.visibility,
    o.start_at, o.end_at, o.rate_override, o.is_published,
    COALESCE(COUNT(c.id), 0)::int AS creative_count,
    o.created_at, o.updated_at
FROM offers o
LEFT JOIN creatives c ON c.offer_id = o.id
WHERE o.program_id = $1
  AND ($2::text IS NULL OR o.visibility = $2)
GROUP BY o.id
ORDER BY o.created_at DESC
`

// ListOffersByProgram retrieves all offers for a program, newest first,
// optionally filtered by visibility
func (s *Store) ListOffersByProgram(ctx context.Context, programID uuid.UUID, visibility *string) ([]Offer, error) {
	var offers []Offer
	err := s.db.SelectContext(ctx, &offers, sqlListOffersByProgram, programID, visibility)
	if err != nil {
		s.logger.Error(ctx, "failed to list offers by program", err)
		return nil, fmt.Errorf("failed to list offers by program: %w", err)
	}
	return offers, nil
}

const sqlUpdateOffer = `
UPDATE offers SET
    name = COALESCE($2, name),
    description = COALESCE($3, description),
    terms = COALESCE($4, terms),
    visibility = COALESCE($5, visibility),
    start_at = COALESCE($6, start_at),
    end_at = COALESCE($7, end_at),
    rate_override = COALESCE($8, rate_override),
    is_published = COALESCE($9, is_published),
    experience_id = COALESCE($10, experience_id),
    updated_at = now()
WHERE id = $1
RETURNING id, program_id, experience_id, name, description, terms, visibility, start_at, end_at,
    rate_override, is_published, 0 AS creative_count, created_at, updated_at
`

// UpdateOffer updates the non-nil fields of an offer
func (s *Store) UpdateOffer(ctx context.Context, offerID uuid.UUID, params UpdateOfferParams) (Offer, error) {
	var offer Offer
	err := s.db.GetContext(ctx, &offer, sqlUpdateOffer,
		offerID,
		params.Name,
		params.Description,
		params.Terms,
		params.Visibility,
		params.StartAt,
		params.EndAt,
		params.RateOverride,
		params.IsPublished,
		params.ExperienceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Offer{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to update offer", err)
		return Offer{}, fmt.Errorf("failed to update offer: %w", err)
	}
	return offer, nil
}

const sqlDeleteOffer = `
DELETE FROM offers WHERE id = $1
`

// DeleteOffer hard-deletes an offer. Creatives cascade via foreign key.
func (s *Store) DeleteOffer(ctx context.Context, offerID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, sqlDeleteOffer, offerID)
	if err != nil {
		s.logger.Error(ctx, "failed to delete offer", err)
		return fmt.Errorf("failed to delete offer: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
