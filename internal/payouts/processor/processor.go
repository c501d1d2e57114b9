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

// PayoutStore defines the database operations required by PayoutProcessor
type PayoutStore interface {
	GetProgramByID(ctx context.Context, programID uuid.UUID) (store.Program, error)
	GetAffiliateByID(ctx context.Context, affiliateID uuid.UUID) (store.Affiliate, error)
	CreatePayoutBatch(ctx context.Context, params store.CreatePayoutBatchParams) (store.PayoutBatch, error)
	ListPayoutBatchesByProgram(ctx context.Context, programID uuid.UUID, limit int) ([]store.PayoutBatch, error)
}

// Settlement is one open settlement attempt for a single affiliate
type Settlement interface {
	Pending() float64
	Commit(ctx context.Context, currency string, sourceRef string) (store.EarningsEvent, error)
	Rollback() error
}

// Settler opens settlement transactions
type Settler interface {
	BeginSettlement(ctx context.Context, affiliateID uuid.UUID) (Settlement, error)
}

// NewStoreSettler adapts the store's settlement transaction to the Settler
// interface.
func NewStoreSettler(s *store.Store) Settler {
	return storeSettler{store: s}
}

type storeSettler struct {
	store *store.Store
}

func (a storeSettler) BeginSettlement(ctx context.Context, affiliateID uuid.UUID) (Settlement, error) {
	return a.store.BeginSettlement(ctx, affiliateID)
}

// PaymentClient is the slice of the platform API the settlement engine needs
type PaymentClient interface {
	GetCompanyLedgerAccount(ctx context.Context, companyID string) (platform.LedgerAccount, error)
	PayUser(ctx context.Context, params platform.PayUserParams) error
}

// Notifier enqueues best-effort notifications
type Notifier interface {
	Dispatch(ctx context.Context, notification notifications.Notification)
}

var (
	ErrProgramNotFound       = errors.New("program not found")
	ErrLedgerAccountNotFound = errors.New("company ledger account not found")
)

const batchHistoryLimit = 50

type PayoutProcessor struct {
	store    PayoutStore
	settler  Settler
	payments PaymentClient
	notifier Notifier
	logger   *observability.Logger
}

func New(store PayoutStore, settler Settler, payments PaymentClient, notifier Notifier, logger *observability.Logger) PayoutProcessor {
	return PayoutProcessor{
		store:    store,
		settler:  settler,
		payments: payments,
		notifier: notifier,
		logger:   logger,
	}
}

// ProcessParams names the affiliates one settlement run should pay
type ProcessParams struct {
	CompanyID    string
	ProgramID    uuid.UUID
	ExperienceID *string
	AffiliateIDs []uuid.UUID
	Currency     string
}

// PayoutResult is the per-affiliate outcome of a settlement run
type PayoutResult struct {
	AffiliateID uuid.UUID `json:"affiliateId"`
	UserID      string    `json:"userId,omitempty"`
	Amount      float64   `json:"amount,omitempty"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
}

// ProcessOutcome is the response of one settlement run
type ProcessOutcome struct {
	Batch        store.PayoutBatch `json:"batch"`
	Results      []PayoutResult    `json:"results"`
	SuccessCount int               `json:"successCount"`
	TotalAmount  float64           `json:"totalAmount"`
}

// Process pays out each named affiliate's pending balance sequentially.
// Per-affiliate failures are recorded and never abort the run; only the
// preconditions (program ownership, ledger account) abort before any
// affiliate is touched. Each successful payment is committed together with
// the settled markers for the conversions it covers, under the affiliate's
// advisory lock, so a concurrent run cannot pay the same conversions twice.
func (p *PayoutProcessor) Process(ctx context.Context, params ProcessParams) (ProcessOutcome, error) {
	program, err := p.store.GetProgramByID(ctx, params.ProgramID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ProcessOutcome{}, ErrProgramNotFound
		}
		p.logger.Error(ctx, "failed to load program", err)
		return ProcessOutcome{}, fmt.Errorf("failed to load program: %w", err)
	}
	if program.CompanyID != params.CompanyID {
		return ProcessOutcome{}, ErrProgramNotFound
	}

	ledger, err := p.payments.GetCompanyLedgerAccount(ctx, params.CompanyID)
	if err != nil {
		p.logger.InfoWithError(ctx, "ledger account lookup failed", err)
		return ProcessOutcome{}, fmt.Errorf("%w: %v", ErrLedgerAccountNotFound, err)
	}

	currency := params.Currency
	if currency == "" {
		currency = "usd"
	}

	// One reference ties the run's payout events to its batch record
	runRef := "payout_run:" + uuid.NewString()

	results := make([]PayoutResult, 0, len(params.AffiliateIDs))
	successCount := 0
	totalAmount := 0.0

	for _, affiliateID := range params.AffiliateIDs {
		result := p.settleOne(ctx, program, ledger, affiliateID, currency, runRef, params.ExperienceID)
		if result.Success {
			successCount++
			totalAmount += result.Amount
		}
		results = append(results, result)
	}

	status := store.BatchStatusCompleted
	if successCount < len(params.AffiliateIDs) {
		status = store.BatchStatusPartial
	}

	batch, err := p.store.CreatePayoutBatch(ctx, store.CreatePayoutBatchParams{
		ProgramID: params.ProgramID,
		Total:     totalAmount,
		Count:     successCount,
		Status:    status,
		Metadata: store.JSONB{
			"source_ref": runRef,
			"results":    results,
		},
	})
	if err != nil {
		p.logger.Error(ctx, "failed to record payout batch", err)
		return ProcessOutcome{}, fmt.Errorf("failed to record payout batch: %w", err)
	}

	p.logger.Info(observability.WithFields(ctx,
		observability.Field{Key: "batch_id", Value: batch.ID.String()},
		observability.Field{Key: "success_count", Value: successCount},
		observability.Field{Key: "total_amount", Value: totalAmount},
	), "settlement run recorded")

	return ProcessOutcome{
		Batch:        batch,
		Results:      results,
		SuccessCount: successCount,
		TotalAmount:  totalAmount,
	}, nil
}

// settleOne runs steps 1-5 for one affiliate and reports the outcome. Every
// failure path is converted to a per-item error.
func (p *PayoutProcessor) settleOne(ctx context.Context, program store.Program, ledger platform.LedgerAccount, affiliateID uuid.UUID, currency, runRef string, experienceID *string) PayoutResult {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "affiliate_id", Value: affiliateID.String()},
	)

	affiliate, err := p.store.GetAffiliateByID(ctx, affiliateID)
	if err != nil || affiliate.ProgramID != program.ID {
		return PayoutResult{AffiliateID: affiliateID, Error: "Affiliate not found"}
	}

	settlement, err := p.settler.BeginSettlement(ctx, affiliateID)
	if err != nil {
		p.logger.InfoWithError(ctx, "failed to open settlement", err)
		return PayoutResult{AffiliateID: affiliateID, UserID: affiliate.UserID, Error: "Failed to open settlement"}
	}

	pending := settlement.Pending()
	if pending <= 0 {
		_ = settlement.Rollback()
		return PayoutResult{AffiliateID: affiliateID, UserID: affiliate.UserID, Error: "No pending earnings"}
	}

	err = p.payments.PayUser(ctx, platform.PayUserParams{
		Amount:          pending,
		Currency:        currency,
		DestinationID:   affiliate.UserID,
		LedgerAccountID: ledger.ID,
		TransferFee:     ledger.TransferFee,
	})
	if err != nil {
		_ = settlement.Rollback()
		p.logger.InfoWithError(ctx, "payment failed", err)
		return PayoutResult{AffiliateID: affiliateID, UserID: affiliate.UserID, Error: "Payment failed"}
	}

	if _, err := settlement.Commit(ctx, currency, runRef); err != nil {
		// The transfer went out but the ledger update failed: the pending
		// balance still shows unsettled. Flag it for reconciliation.
		p.logger.Error(ctx, "payment sent but settlement commit failed, needs reconciliation", err)
		return PayoutResult{AffiliateID: affiliateID, UserID: affiliate.UserID, Error: "Failed to record payout"}
	}

	if experienceID != nil {
		p.notifier.Dispatch(ctx, notifications.PayoutIssued(*experienceID, affiliate.UserID, pending, currency))
	}

	return PayoutResult{
		AffiliateID: affiliateID,
		UserID:      affiliate.UserID,
		Amount:      pending,
		Success:     true,
	}
}

// ListBatches returns the program's most recent settlement runs
func (p *PayoutProcessor) ListBatches(ctx context.Context, companyID string, programID uuid.UUID) ([]store.PayoutBatch, error) {
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

	batches, err := p.store.ListPayoutBatchesByProgram(ctx, programID, batchHistoryLimit)
	if err != nil {
		p.logger.Error(ctx, "failed to list payout batches", err)
		return nil, fmt.Errorf("failed to list payout batches: %w", err)
	}
	return batches, nil
}
