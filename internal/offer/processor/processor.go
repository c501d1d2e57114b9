package processor

import (
	"affiliate-server/internal/notifications"
	"affiliate-server/internal/observability"
	"affiliate-server/internal/store"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OfferStore defines the database operations required by OfferProcessor
type OfferStore interface {
	GetProgramByID(ctx context.Context, programID uuid.UUID) (store.Program, error)
	CreateOffer(ctx context.Context, params store.CreateOfferParams) (store.Offer, error)
	GetOfferByID(ctx context.Context, offerID uuid.UUID) (store.Offer, error)
	ListOffersByProgram(ctx context.Context, programID uuid.UUID, visibility *string) ([]store.Offer, error)
	UpdateOffer(ctx context.Context, offerID uuid.UUID, params store.UpdateOfferParams) (store.Offer, error)
	DeleteOffer(ctx context.Context, offerID uuid.UUID) error
}

// Notifier enqueues best-effort notifications
type Notifier interface {
	Dispatch(ctx context.Context, notification notifications.Notification)
}

var (
	ErrOfferNotFound   = errors.New("offer not found")
	ErrProgramMismatch = errors.New("program does not belong to company")
)

type OfferProcessor struct {
	store    OfferStore
	notifier Notifier
	logger   *observability.Logger
}

func New(store OfferStore, notifier Notifier, logger *observability.Logger) OfferProcessor {
	return OfferProcessor{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// CreateOfferParams carries a new offer's fields. Offers start unpublished.
type CreateOfferParams struct {
	ProgramID    uuid.UUID
	ExperienceID *string
	Name         string
	Description  string
	Terms        *string
	Visibility   *string
	StartAt      *time.Time
	EndAt        *time.Time
	RateOverride *float64
}

// UpdateOfferParams carries a partial offer update. Nil fields are unchanged.
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

// requireProgram verifies the program exists and belongs to the company
func (p *OfferProcessor) requireProgram(ctx context.Context, companyID string, programID uuid.UUID) (store.Program, error) {
	program, err := p.store.GetProgramByID(ctx, programID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Program{}, ErrProgramMismatch
		}
		p.logger.Error(ctx, "failed to load program", err)
		return store.Program{}, fmt.Errorf("failed to load program: %w", err)
	}
	if program.CompanyID != companyID {
		return store.Program{}, ErrProgramMismatch
	}
	return program, nil
}

// requireOffer loads an offer and verifies the offer→program→company chain.
// Offers outside the company's program read as not found rather than
// forbidden so they do not leak across tenants.
func (p *OfferProcessor) requireOffer(ctx context.Context, companyID string, offerID uuid.UUID) (store.Offer, error) {
	offer, err := p.store.GetOfferByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Offer{}, ErrOfferNotFound
		}
		p.logger.Error(ctx, "failed to load offer", err)
		return store.Offer{}, fmt.Errorf("failed to load offer: %w", err)
	}
	if _, err := p.requireProgram(ctx, companyID, offer.ProgramID); err != nil {
		if errors.Is(err, ErrProgramMismatch) {
			return store.Offer{}, ErrOfferNotFound
		}
		return store.Offer{}, err
	}
	return offer, nil
}

func (p *OfferProcessor) CreateOffer(ctx context.Context, companyID string, params CreateOfferParams) (store.Offer, error) {
	if _, err := p.requireProgram(ctx, companyID, params.ProgramID); err != nil {
		return store.Offer{}, err
	}

	visibility := store.OfferVisibilityPublic
	if params.Visibility != nil {
		visibility = *params.Visibility
	}

	offer, err := p.store.CreateOffer(ctx, store.CreateOfferParams{
		ProgramID:    params.ProgramID,
		ExperienceID: params.ExperienceID,
		Name:         params.Name,
		Description:  params.Description,
		Terms:        params.Terms,
		Visibility:   visibility,
		StartAt:      params.StartAt,
		EndAt:        params.EndAt,
		RateOverride: params.RateOverride,
	})
	if err != nil {
		p.logger.Error(ctx, "failed to create offer", err)
		return store.Offer{}, fmt.Errorf("failed to create offer: %w", err)
	}

	p.logger.Info(ctx, "offer created")
	return offer, nil
}

func (p *OfferProcessor) ListOffers(ctx context.Context, companyID string, programID uuid.UUID, visibility *string) ([]store.Offer, error) {
	if _, err := p.requireProgram(ctx, companyID, programID); err != nil {
		return nil, err
	}

	offers, err := p.store.ListOffersByProgram(ctx, programID, visibility)
	if err != nil {
		p.logger.Error(ctx, "failed to list offers", err)
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	return offers, nil
}

func (p *OfferProcessor) GetOffer(ctx context.Context, companyID string, offerID uuid.UUID) (store.Offer, error) {
	return p.requireOffer(ctx, companyID, offerID)
}

// UpdateOffer applies a partial update. Publishing an offer (isPublished
// false→true) announces it once to the offer's experience; re-saving an
// already published offer announces nothing.
func (p *OfferProcessor) UpdateOffer(ctx context.Context, companyID string, offerID uuid.UUID, params UpdateOfferParams) (store.Offer, error) {
	offer, err := p.requireOffer(ctx, companyID, offerID)
	if err != nil {
		return store.Offer{}, err
	}
	wasPublished := offer.IsPublished

	updated, err := p.store.UpdateOffer(ctx, offerID, store.UpdateOfferParams{
		Name:         params.Name,
		Description:  params.Description,
		Terms:        params.Terms,
		Visibility:   params.Visibility,
		StartAt:      params.StartAt,
		EndAt:        params.EndAt,
		RateOverride: params.RateOverride,
		IsPublished:  params.IsPublished,
		ExperienceID: params.ExperienceID,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Offer{}, ErrOfferNotFound
		}
		p.logger.Error(ctx, "failed to update offer", err)
		return store.Offer{}, fmt.Errorf("failed to update offer: %w", err)
	}

	if !wasPublished && updated.IsPublished && updated.ExperienceID != nil {
		p.notifier.Dispatch(ctx, notifications.OfferPublished(*updated.ExperienceID, updated.Name))
	}

	return updated, nil
}

func (p *OfferProcessor) DeleteOffer(ctx context.Context, companyID string, offerID uuid.UUID) error {
	if _, err := p.requireOffer(ctx, companyID, offerID); err != nil {
		return err
	}

	if err := p.store.DeleteOffer(ctx, offerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrOfferNotFound
		}
		p.logger.Error(ctx, "failed to delete offer", err)
		return fmt.Errorf("failed to delete offer: %w", err)
	}

	p.logger.Info(ctx, "offer deleted")
	return nil
}
