package processor

import (
	"affiliate-server/internal/observability"
	"affiliate-server/internal/store"
	"context"
	"errors"
	"fmt"
)

// ProgramStore defines the database operations required by ProgramProcessor
type ProgramStore interface {
	UpsertProgram(ctx context.Context, params store.UpsertProgramParams) (store.Program, error)
	GetProgramByCompanyID(ctx context.Context, companyID string) (store.Program, error)
}

var (
	ErrProgramNotFound        = errors.New("program not found")
	ErrInvalidRate            = errors.New("commission rate must be between 0 and 100")
	ErrInvalidPayoutFrequency = errors.New("invalid payout frequency")
)

const (
	defaultCookieWindowDays = 30
)

type ProgramProcessor struct {
	store  ProgramStore
	logger *observability.Logger
}

func New(store ProgramStore, logger *observability.Logger) ProgramProcessor {
	return ProgramProcessor{
		store:  store,
		logger: logger,
	}
}

// UpsertProgramParams carries the company's desired program configuration.
// Nil fields fall back to defaults rather than preserving prior values: an
// upsert always writes the full configuration.
type UpsertProgramParams struct {
	DefaultRate     float64
	PayoutFrequency *string
	CookieWindow    *int
	Status          *string
}

// UpsertProgram creates or fully replaces the company's program configuration
func (p *ProgramProcessor) UpsertProgram(ctx context.Context, companyID string, params UpsertProgramParams) (store.Program, error) {
	if params.DefaultRate < 0 || params.DefaultRate > 100 {
		return store.Program{}, ErrInvalidRate
	}

	frequency := store.PayoutFrequencyMonthly
	if params.PayoutFrequency != nil {
		frequency = *params.PayoutFrequency
	}
	if frequency != store.PayoutFrequencyWeekly && frequency != store.PayoutFrequencyMonthly {
		return store.Program{}, ErrInvalidPayoutFrequency
	}

	cookieWindow := defaultCookieWindowDays
	if params.CookieWindow != nil && *params.CookieWindow > 0 {
		cookieWindow = *params.CookieWindow
	}

	status := store.ProgramStatusActive
	if params.Status != nil &&
		(*params.Status == store.ProgramStatusActive || *params.Status == store.ProgramStatusInactive) {
		status = *params.Status
	}

	_, err := p.store.UpsertProgram(ctx, store.UpsertProgramParams{
		CompanyID:       companyID,
		DefaultRate:     params.DefaultRate,
		PayoutFrequency: frequency,
		CookieWindow:    cookieWindow,
		Status:          status,
	})
	if err != nil {
		p.logger.Error(ctx, "failed to upsert program", err)
		return store.Program{}, fmt.Errorf("failed to upsert program: %w", err)
	}

	// Re-read so the response carries the offer and affiliate counts
	program, err := p.store.GetProgramByCompanyID(ctx, companyID)
	if err != nil {
		p.logger.Error(ctx, "failed to load program after upsert", err)
		return store.Program{}, fmt.Errorf("failed to load program: %w", err)
	}

	p.logger.Info(ctx, "program configuration saved")
	return program, nil
}

// GetProgram returns the company's program with offer and affiliate counts
func (p *ProgramProcessor) GetProgram(ctx context.Context, companyID string) (store.Program, error) {
	program, err := p.store.GetProgramByCompanyID(ctx, companyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Program{}, ErrProgramNotFound
		}
		p.logger.Error(ctx, "failed to get program", err)
		return store.Program{}, fmt.Errorf("failed to get program: %w", err)
	}
	return program, nil
}
