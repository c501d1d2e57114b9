package processor

import (
	"affiliate-server/internal/clients/platform"
	"affiliate-server/internal/notifications"
	"affiliate-server/internal/observability"
	"affiliate-server/internal/store"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CreativeStore defines the database operations required by CreativeProcessor
type CreativeStore interface {
	GetProgramByID(ctx context.Context, programID uuid.UUID) (store.Program, error)
	GetOfferByID(ctx context.Context, offerID uuid.UUID) (store.Offer, error)
	CreateCreative(ctx context.Context, params store.CreateCreativeParams) (store.Creative, error)
	GetCreativeByID(ctx context.Context, creativeID uuid.UUID) (store.Creative, error)
	ListCreativesByOffer(ctx context.Context, offerID uuid.UUID) ([]store.Creative, error)
	ListCreativesByProgram(ctx context.Context, programID uuid.UUID) ([]store.Creative, error)
	DeleteCreative(ctx context.Context, creativeID uuid.UUID) error
}

// Uploader stores files in the platform's attachment storage
type Uploader interface {
	UploadAttachment(ctx context.Context, fileName, contentType string, data []byte) (platform.Attachment, error)
}

// Notifier enqueues best-effort notifications
type Notifier interface {
	Dispatch(ctx context.Context, notification notifications.Notification)
}

var (
	ErrCreativeNotFound = errors.New("creative not found")
	ErrOfferNotFound    = errors.New("offer not found")
	ErrUploadFailed     = errors.New("attachment upload failed")
)

type CreativeProcessor struct {
	store    CreativeStore
	uploader Uploader
	notifier Notifier
	logger   *observability.Logger
}

func New(store CreativeStore, uploader Uploader, notifier Notifier, logger *observability.Logger) CreativeProcessor {
	return CreativeProcessor{
		store:    store,
		uploader: uploader,
		notifier: notifier,
		logger:   logger,
	}
}

// UploadCreativeParams carries the uploaded file and its placement
type UploadCreativeParams struct {
	OfferID      uuid.UUID
	Title        string
	Type         string
	Notes        *string
	ExperienceID *string
	FileName     string
	ContentType  string
	Data         []byte
}

// requireOffer loads the offer and verifies the offer→program→company chain
func (p *CreativeProcessor) requireOffer(ctx context.Context, companyID string, offerID uuid.UUID) (store.Offer, error) {
	offer, err := p.store.GetOfferByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Offer{}, ErrOfferNotFound
		}
		p.logger.Error(ctx, "failed to load offer", err)
		return store.Offer{}, fmt.Errorf("failed to load offer: %w", err)
	}

	program, err := p.store.GetProgramByID(ctx, offer.ProgramID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Offer{}, ErrOfferNotFound
		}
		p.logger.Error(ctx, "failed to load program", err)
		return store.Offer{}, fmt.Errorf("failed to load program: %w", err)
	}
	if program.CompanyID != companyID {
		return store.Offer{}, ErrOfferNotFound
	}
	return offer, nil
}

// UploadCreative stores the file with the platform, records the creative, and
// announces it to the offer's experience.
func (p *CreativeProcessor) UploadCreative(ctx context.Context, companyID string, params UploadCreativeParams) (store.Creative, error) {
	offer, err := p.requireOffer(ctx, companyID, params.OfferID)
	if err != nil {
		return store.Creative{}, err
	}

	attachment, err := p.uploader.UploadAttachment(ctx, params.FileName, params.ContentType, params.Data)
	if err != nil {
		p.logger.InfoWithError(ctx, "attachment upload failed", err)
		return store.Creative{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	creative, err := p.store.CreateCreative(ctx, store.CreateCreativeParams{
		OfferID: params.OfferID,
		Type:    params.Type,
		URL:     attachment.URL,
		Title:   params.Title,
		Notes:   params.Notes,
		Metadata: store.JSONB{
			"direct_upload_id": attachment.DirectUploadID,
			"file_name":        params.FileName,
			"content_type":     params.ContentType,
			"size_bytes":       len(params.Data),
		},
	})
	if err != nil {
		p.logger.Error(ctx, "failed to record creative", err)
		return store.Creative{}, fmt.Errorf("failed to record creative: %w", err)
	}

	experienceID := params.ExperienceID
	if experienceID == nil {
		experienceID = offer.ExperienceID
	}
	if experienceID != nil {
		p.notifier.Dispatch(ctx, notifications.CreativeUploaded(*experienceID, offer.Name, creative.Title))
	}

	p.logger.Info(ctx, "creative uploaded")
	return creative, nil
}

// ListCreatives lists creatives for one offer or a whole program, newest
// first. Exactly one of offerID or programID is set; the handler enforces it.
func (p *CreativeProcessor) ListCreatives(ctx context.Context, companyID string, offerID, programID *uuid.UUID) ([]store.Creative, error) {
	if offerID != nil {
		if _, err := p.requireOffer(ctx, companyID, *offerID); err != nil {
			return nil, err
		}
		creatives, err := p.store.ListCreativesByOffer(ctx, *offerID)
		if err != nil {
			p.logger.Error(ctx, "failed to list creatives", err)
			return nil, fmt.Errorf("failed to list creatives: %w", err)
		}
		return creatives, nil
	}

	program, err := p.store.GetProgramByID(ctx, *programID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOfferNotFound
		}
		p.logger.Error(ctx, "failed to load program", err)
		return nil, fmt.Errorf("failed to load program: %w", err)
	}
	if program.CompanyID != companyID {
		return nil, ErrOfferNotFound
	}

	creatives, err := p.store.ListCreativesByProgram(ctx, *programID)
	if err != nil {
		p.logger.Error(ctx, "failed to list creatives", err)
		return nil, fmt.Errorf("failed to list creatives: %w", err)
	}
	return creatives, nil
}

// DeleteCreative hard-deletes a creative after the
// creative→offer→program→company ownership check.
func (p *CreativeProcessor) DeleteCreative(ctx context.Context, companyID string, creativeID uuid.UUID) error {
	creative, err := p.store.GetCreativeByID(ctx, creativeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrCreativeNotFound
		}
		p.logger.Error(ctx, "failed to load creative", err)
		return fmt.Errorf("failed to load creative: %w", err)
	}

	if _, err := p.requireOffer(ctx, companyID, creative.OfferID); err != nil {
		if errors.Is(err, ErrOfferNotFound) {
			return ErrCreativeNotFound
		}
		return err
	}

	if err := p.store.DeleteCreative(ctx, creativeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrCreativeNotFound
		}
		p.logger.Error(ctx, "failed to delete creative", err)
		return fmt.Errorf("failed to delete creative: %w", err)
	}

	p.logger.Info(ctx, "creative deleted")
	return nil
}
