package processor

import (
	earningsProcessor "affiliate-server/internal/earnings/processor"
	"affiliate-server/internal/notifications"
	"affiliate-server/internal/observability"
	"affiliate-server/internal/store"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AffiliateStore defines the database operations required by
// AffiliateProcessor.
type AffiliateStore interface {
	GetProgramByID(ctx context.Context, programID uuid.UUID) (store.Program, error)
	CreateAffiliate(ctx context.Context, params store.CreateAffiliateParams) (store.Affiliate, error)
	GetAffiliateByID(ctx context.Context, affiliateID uuid.UUID) (store.Affiliate, error)
	GetAffiliateByProgramAndUser(ctx context.Context, programID uuid.UUID, userID string) (store.Affiliate, error)
	ListAffiliatesByProgram(ctx context.Context, programID uuid.UUID, status *string) ([]store.Affiliate, error)
	ApproveAffiliate(ctx context.Context, affiliateID uuid.UUID, customRate *float64, tier *string) (store.Affiliate, error)
	RejectAffiliate(ctx context.Context, affiliateID uuid.UUID) (store.Affiliate, error)
	UpdateAffiliateTerms(ctx context.Context, affiliateID uuid.UUID, params store.UpdateAffiliateTermsParams) (store.Affiliate, error)
	ListEventsByAffiliate(ctx context.Context, affiliateID uuid.UUID, eventType *string) ([]store.EarningsEvent, error)
	GetEarningsTypeSummary(ctx context.Context, affiliateID uuid.UUID) ([]store.EarningsTypeSummary, error)
}

// Notifier enqueues best-effort notifications
type Notifier interface {
	Dispatch(ctx context.Context, notification notifications.Notification)
}

var (
	ErrProgramNotFound   = errors.New("program not found")
	ErrProgramInactive   = errors.New("program not found or inactive")
	ErrAlreadyApplied    = errors.New("already applied to this program")
	ErrAffiliateNotFound = errors.New("affiliate not found")
	ErrNoAffiliateRecord = errors.New("no affiliate record for this user")
	ErrNotPending        = errors.New("affiliate application already decided")
)

const recentEventsLimit = 20

type AffiliateProcessor struct {
	store    AffiliateStore
	notifier Notifier
	logger   *observability.Logger
}

func New(store AffiliateStore, notifier Notifier, logger *observability.Logger) AffiliateProcessor {
	return AffiliateProcessor{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// EffectiveRate resolves the commission rate for one affiliate: an unexpired
// custom rate wins, then the offer's override, then the program default.
func EffectiveRate(affiliate store.Affiliate, offer *store.Offer, program store.Program, now time.Time) float64 {
	if affiliate.CustomRate != nil &&
		(affiliate.RateExpiry == nil || affiliate.RateExpiry.After(now)) {
		return *affiliate.CustomRate
	}
	if offer != nil && offer.RateOverride != nil {
		return *offer.RateOverride
	}
	return program.DefaultRate
}

// Apply enrolls the user in the program as a pending affiliate. Applying
// twice returns the existing record wrapped in ErrAlreadyApplied so callers
// can echo it back.
func (p *AffiliateProcessor) Apply(ctx context.Context, userID string, programID uuid.UUID) (store.Affiliate, error) {
	program, err := p.store.GetProgramByID(ctx, programID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Affiliate{}, ErrProgramInactive
		}
		p.logger.Error(ctx, "failed to load program", err)
		return store.Affiliate{}, fmt.Errorf("failed to load program: %w", err)
	}
	if program.Status != store.ProgramStatusActive {
		return store.Affiliate{}, ErrProgramInactive
	}

	existing, err := p.store.GetAffiliateByProgramAndUser(ctx, programID, userID)
	if err == nil {
		return existing, ErrAlreadyApplied
	}
	if !errors.Is(err, store.ErrNotFound) {
		p.logger.Error(ctx, "failed to check for existing application", err)
		return store.Affiliate{}, fmt.Errorf("failed to check for existing application: %w", err)
	}

	affiliate, err := p.store.CreateAffiliate(ctx, store.CreateAffiliateParams{
		ProgramID: programID,
		UserID:    userID,
	})
	if err != nil {
		p.logger.Error(ctx, "failed to create affiliate application", err)
		return store.Affiliate{}, fmt.Errorf("failed to create affiliate application: %w", err)
	}

	p.logger.Info(ctx, "affiliate application created")
	return affiliate, nil
}

// requireAffiliate loads an affiliate and verifies it belongs to the
// company's program. Foreign affiliates read as not found.
func (p *AffiliateProcessor) requireAffiliate(ctx context.Context, companyID string, affiliateID uuid.UUID) (store.Affiliate, error) {
	affiliate, err := p.store.GetAffiliateByID(ctx, affiliateID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Affiliate{}, ErrAffiliateNotFound
		}
		p.logger.Error(ctx, "failed to load affiliate", err)
		return store.Affiliate{}, fmt.Errorf("failed to load affiliate: %w", err)
	}

	program, err := p.store.GetProgramByID(ctx, affiliate.ProgramID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Affiliate{}, ErrAffiliateNotFound
		}
		p.logger.Error(ctx, "failed to load program", err)
		return store.Affiliate{}, fmt.Errorf("failed to load program: %w", err)
	}
	if program.CompanyID != companyID {
		return store.Affiliate{}, ErrAffiliateNotFound
	}
	return affiliate, nil
}

// Approve moves a pending application to approved, optionally setting a
// custom rate and tier. Decided applications stay decided.
func (p *AffiliateProcessor) Approve(ctx context.Context, companyID string, affiliateID uuid.UUID, customRate *float64, tier *string, experienceID *string) (store.Affiliate, error) {
	affiliate, err := p.requireAffiliate(ctx, companyID, affiliateID)
	if err != nil {
		return store.Affiliate{}, err
	}
	if affiliate.Status != store.AffiliateStatusPending {
		return store.Affiliate{}, ErrNotPending
	}

	approved, err := p.store.ApproveAffiliate(ctx, affiliateID, customRate, tier)
	if err != nil {
		p.logger.Error(ctx, "failed to approve affiliate", err)
		return store.Affiliate{}, fmt.Errorf("failed to approve affiliate: %w", err)
	}

	if experienceID != nil {
		p.notifier.Dispatch(ctx, notifications.ApplicationApproved(*experienceID, approved.UserID))
	}

	p.logger.Info(ctx, "affiliate approved")
	return approved, nil
}

// Reject moves a pending application to rejected
func (p *AffiliateProcessor) Reject(ctx context.Context, companyID string, affiliateID uuid.UUID, experienceID *string) (store.Affiliate, error) {
	affiliate, err := p.requireAffiliate(ctx, companyID, affiliateID)
	if err != nil {
		return store.Affiliate{}, err
	}
	if affiliate.Status != store.AffiliateStatusPending {
		return store.Affiliate{}, ErrNotPending
	}

	rejected, err := p.store.RejectAffiliate(ctx, affiliateID)
	if err != nil {
		p.logger.Error(ctx, "failed to reject affiliate", err)
		return store.Affiliate{}, fmt.Errorf("failed to reject affiliate: %w", err)
	}

	if experienceID != nil {
		p.notifier.Dispatch(ctx, notifications.ApplicationRejected(*experienceID, rejected.UserID))
	}

	p.logger.Info(ctx, "affiliate rejected")
	return rejected, nil
}

// UpdateTermsParams carries a partial update of an affiliate's commission
// terms. Nil fields are unchanged.
type UpdateTermsParams struct {
	CustomRate *float64
	Tier       *string
	RateExpiry *time.Time
}

// UpdateTerms changes an affiliate's commission terms
func (p *AffiliateProcessor) UpdateTerms(ctx context.Context, companyID string, affiliateID uuid.UUID, params UpdateTermsParams) (store.Affiliate, error) {
	if _, err := p.requireAffiliate(ctx, companyID, affiliateID); err != nil {
		return store.Affiliate{}, err
	}

	updated, err := p.store.UpdateAffiliateTerms(ctx, affiliateID, store.UpdateAffiliateTermsParams{
		CustomRate: params.CustomRate,
		Tier:       params.Tier,
		RateExpiry: params.RateExpiry,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Affiliate{}, ErrAffiliateNotFound
		}
		p.logger.Error(ctx, "failed to update affiliate terms", err)
		return store.Affiliate{}, fmt.Errorf("failed to update affiliate terms: %w", err)
	}
	return updated, nil
}

// List returns the program's affiliates, most recent application first
func (p *AffiliateProcessor) List(ctx context.Context, companyID string, programID uuid.UUID, status *string) ([]store.Affiliate, error) {
	program, err := p.store.GetProgramByID(ctx, programID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProgramNotFound
		}
		p.logger.Error(ctx, "failed to load program", err)
		return nil, fmt.Errorf("failed to load program: %w", err)
	}
	if program.CompanyID != companyID {
		return nil, ErrProgramNotFound
	}

	affiliates, err := p.store.ListAffiliatesByProgram(ctx, programID, status)
	if err != nil {
		p.logger.Error(ctx, "failed to list affiliates", err)
		return nil, fmt.Errorf("failed to list affiliates: %w", err)
	}
	return affiliates, nil
}

// GetDetail returns one affiliate with its per-event-type earnings summary
func (p *AffiliateProcessor) GetDetail(ctx context.Context, companyID string, affiliateID uuid.UUID) (store.Affiliate, []store.EarningsTypeSummary, error) {
	affiliate, err := p.requireAffiliate(ctx, companyID, affiliateID)
	if err != nil {
		return store.Affiliate{}, nil, err
	}

	summary, err := p.store.GetEarningsTypeSummary(ctx, affiliateID)
	if err != nil {
		p.logger.Error(ctx, "failed to load earnings summary", err)
		return store.Affiliate{}, nil, fmt.Errorf("failed to load earnings summary: %w", err)
	}
	return affiliate, summary, nil
}

// MyEarnings is the member-facing earnings view
type MyEarnings struct {
	Clicks           int                   `json:"clicks"`
	ConversionsCount int                   `json:"conversionsCount"`
	PendingAmount    float64               `json:"pendingAmount"`
	PaidAmount       float64               `json:"paidAmount"`
	TotalEarned      float64               `json:"totalEarned"`
	CommissionRate   float64               `json:"commissionRate"`
	Tier             string                `json:"tier"`
	Status           string                `json:"status"`
	RecentEvents     []store.EarningsEvent `json:"recentEvents"`
}

// GetMyEarnings builds the member's own earnings summary plus their most
// recent ledger events.
func (p *AffiliateProcessor) GetMyEarnings(ctx context.Context, userID string, programID uuid.UUID) (MyEarnings, error) {
	program, err := p.store.GetProgramByID(ctx, programID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return MyEarnings{}, ErrProgramNotFound
		}
		p.logger.Error(ctx, "failed to load program", err)
		return MyEarnings{}, fmt.Errorf("failed to load program: %w", err)
	}

	affiliate, err := p.store.GetAffiliateByProgramAndUser(ctx, programID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return MyEarnings{}, ErrNoAffiliateRecord
		}
		p.logger.Error(ctx, "failed to load affiliate record", err)
		return MyEarnings{}, fmt.Errorf("failed to load affiliate record: %w", err)
	}

	events, err := p.store.ListEventsByAffiliate(ctx, affiliate.ID, nil)
	if err != nil {
		p.logger.Error(ctx, "failed to list earnings events", err)
		return MyEarnings{}, fmt.Errorf("failed to list earnings events: %w", err)
	}

	summary := earningsProcessor.Summarize(events)

	recent := events
	if len(recent) > recentEventsLimit {
		recent = recent[:recentEventsLimit]
	}

	return MyEarnings{
		Clicks:           summary.Clicks,
		ConversionsCount: summary.ConversionsCount,
		PendingAmount:    summary.PendingAmount,
		PaidAmount:       summary.PaidAmount,
		TotalEarned:      summary.TotalEarned,
		CommissionRate:   EffectiveRate(affiliate, nil, program, time.Now()),
		Tier:             affiliate.Tier,
		Status:           affiliate.Status,
		RecentEvents:     recent,
	}, nil
}
