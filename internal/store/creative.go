package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CreateCreativeParams represents parameters for creating a creative
type CreateCreativeParams struct {
	OfferID  uuid.UUID
	Type     string
	URL      string
	Title    string
	Notes    *string
	Metadata JSONB
}

const sqlCreateCreative = `
INSERT INTO creatives (offer_id, type, url, title, notes, metadata)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, offer_id, type, url, title, notes, metadata, '' AS offer_name, created_at
`

// CreateCreative binds an uploaded asset reference to an offer
func (s *Store) CreateCreative(ctx context.Context, params CreateCreativeParams) (Creative, error) {
	var creative Creative
	err := s.db.GetContext(ctx, &creative, sqlCreateCreative,
		params.OfferID,
		params.Type,
		params.URL,
		params.Title,
		params.Notes,
		params.Metadata)
	if err != nil {
		s.logger.Error(ctx, "failed to create creative", err)
		return Creative{}, fmt.Errorf("failed to create creative: %w", err)
	}
	return creative, nil
}

const sqlGetCreativeByID = `
SELECT c.id, c.offer_id, c.type, c.url, c.title, c.notes, c.metadata, o.name AS offer_name, c.created_at
FROM creatives c
JOIN offers o ON o.id = c.offer_id
WHERE c.id = $1
`

// GetCreativeByID retrieves a creative by ID
func (s *Store) GetCreativeByID(ctx context.Context, creativeID uuid.UUID) (Creative, error) {
	var creative Creative
	err := s.db.GetContext(ctx, &creative, sqlGetCreativeByID, creativeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Creative{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get creative by id", err)
		return Creative{}, fmt.Errorf("failed to get creative by id: %w", err)
	}
	return creative, nil
}

const sqlListCreativesByOffer = `
SELECT c.id, c.offer_id, c.type, c.url, c.title, c.notes, c.metadata, o.name AS offer_name, c.created_at
FROM creatives c
JOIN offers o ON o.id = c.offer_id
WHERE c.offer_id = $1
ORDER BY c.created_at DESC
`

// ListCreativesByOffer retrieves all creatives for an offer, newest first
func (s *Store) ListCreativesByOffer(ctx context.Context, offerID uuid.UUID) ([]Creative, error) {
	var creatives []Creative
	err := s.db.SelectContext(ctx, &creatives, sqlListCreativesByOffer, offerID)
	if err != nil {
		s.logger.Error(ctx, "failed to list creatives by offer", err)
		return nil, fmt.Errorf("failed to list creatives by offer: %w", err)
	}
	return creatives, nil
}

const sqlListCreativesByProgram = `
SELECT c.id, c.offer_id, c.type, c.url, c.title, c.notes, c.metadata, o.name AS offer_name, c.created_at
FROM creatives c
JOIN offers o ON o.id = c.offer_id
WHERE o.program_id = $1
ORDER BY c.created_at DESC
`

// ListCreativesByProgram retrieves all creatives across a program's offers,
// newest first
func (s *Store) ListCreativesByProgram(ctx context.Context, programID uuid.UUID) ([]Creative, error) {
	var creatives []Creative
	err := s.db.SelectContext(ctx, &creatives, sqlListCreativesByProgram, programID)
	if err != nil {
		s.logger.Error(ctx, "failed to list creatives by program", err)
		return nil, fmt.Errorf("failed to list creatives by program: %w", err)
	}
	return creatives, nil
}

const sqlDeleteCreative = `
DELETE FROM creatives WHERE id = $1
`

// DeleteCreative hard-deletes a creative
func (s *Store) DeleteCreative(ctx context.Context, creativeID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, sqlDeleteCreative, creativeID)
	if err != nil {
		s.logger.Error(ctx, "failed to delete creative", err)
		return fmt.Errorf("failed to delete creative: %w", err)
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
