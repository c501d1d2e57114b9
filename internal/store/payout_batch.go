package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreatePayoutBatchParams represents parameters for recording a settlement run
type CreatePayoutBatchParams struct {
	ProgramID uuid.UUID
	Total     float64
	Count     int
	Status    string
	Metadata  JSONB
}

const sqlCreatePayoutBatch = `
INSERT INTO payout_batches (program_id, total, count, status, metadata, processed_at)
VALUES ($1, $2, $3, $4, $5, now())
RETURNING id, program_id, total, count, status, metadata, processed_at, created_at
`

// CreatePayoutBatch records the summary of one settlement run. Batches are
// immutable once created.
func (s *Store) CreatePayoutBatch(ctx context.Context, params CreatePayoutBatchParams) (PayoutBatch, error) {
	var batch PayoutBatch
	err := s.db.GetContext(ctx, &batch, sqlCreatePayoutBatch,
		params.ProgramID,
		params.Total,
		params.Count,
		params.Status,
		params.Metadata)
	if err != nil {
		s.logger.Error(ctx, "failed to create payout batch", err)
		return PayoutBatch{}, fmt.Errorf("failed to create payout batch: %w", err)
	}
	return batch, nil
}

const sqlListPayoutBatchesByProgram = `
SELECT id, program_id, total, count, status, metadata, processed_at, created_at
FROM payout_batches
WHERE program_id = $1
ORDER BY processed_at DESC
LIMIT $2
`

// ListPayoutBatchesByProgram retrieves recent settlement runs, newest first
func (s *Store) ListPayoutBatchesByProgram(ctx context.Context, programID uuid.UUID, limit int) ([]PayoutBatch, error) {
	var batches []PayoutBatch
	err := s.db.SelectContext(ctx, &batches, sqlListPayoutBatchesByProgram, programID, limit)
	if err != nil {
		s.logger.Error(ctx, "failed to list payout batches", err)
		return nil, fmt.Errorf("failed to list payout batches: %w", err)
	}
	return batches, nil
}
