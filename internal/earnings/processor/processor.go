package processor

import (
	"affiliate-server/internal/observability"
	"affiliate-server/internal/store"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// EarningsStore defines the database operations required by EarningsProcessor
type EarningsStore interface {
	GetProgramByID(ctx context.Context, programID uuid.UUID) (store.Program, error)
	ListAffiliatesByProgram(ctx context.Context, programID uuid.UUID, status *string) ([]store.Affiliate, error)
	ListEventsByAffiliate(ctx context.Context, affiliateID uuid.UUID, eventType *string) ([]store.EarningsEvent, error)
}

var ErrProgramNotFound = errors.New("program not found")

type EarningsProcessor struct {
	store  EarningsStore
	logger *observability.Logger
}

func New(store EarningsStore, logger *observability.Logger) EarningsProcessor {
	return EarningsProcessor{
		store:  store,
		logger: logger,
	}
}

// Summary is one affiliate's ledger rolled up by event type. Pending counts
// only conversions no payout run has covered yet.
type Summary struct {
	Clicks           int     `json:"clicks"`
	ConversionsCount int     `json:"conversionsCount"`
	PendingAmount    float64 `json:"pendingAmount"`
	PaidAmount       float64 `json:"paidAmount"`
	TotalEarned      float64 `json:"totalEarned"`
}

// Summarize partitions a ledger slice by event type in one pass
func Summarize(events []store.EarningsEvent) Summary {
	var summary Summary
	for _, event := range events {
		switch event.Type {
		case store.EventTypeClick:
			summary.Clicks++
		case store.EventTypeConversion:
			summary.ConversionsCount++
			if event.SettledAt == nil {
				summary.PendingAmount += event.Amount
			}
		case store.EventTypePayout:
			summary.PaidAmount += event.Amount
		}
	}
	summary.TotalEarned = summary.PendingAmount + summary.PaidAmount
	return summary
}

// AffiliateEarnings is one row of the admin earnings aggregation
type AffiliateEarnings struct {
	AffiliateID   uuid.UUID `json:"affiliateId"`
	UserID        string    `json:"userId"`
	Status        string    `json:"status"`
	Tier          string    `json:"tier"`
	Clicks        int       `json:"clicks"`
	Conversions   int       `json:"conversions"`
	PendingAmount float64   `json:"pendingAmount"`
	PaidAmount    float64   `json:"paidAmount"`
	TotalAmount   float64   `json:"totalAmount"`
}

// AggregateTotals sums the aggregation across affiliates
type AggregateTotals struct {
	Affiliates  int     `json:"affiliates"`
	Clicks      int     `json:"clicks"`
	Conversions int     `json:"conversions"`
	Pending     float64 `json:"pending"`
	Paid        float64 `json:"paid"`
}

// Aggregation is the admin earnings view for one program
type Aggregation struct {
	Affiliates []AffiliateEarnings `json:"affiliates"`
	Totals     AggregateTotals     `json:"totals"`
}

// statusEventType maps the earnings status filter to the ledger event type it
// restricts the listing to.
func statusEventType(status *string) *string {
	if status == nil {
		return nil
	}
	var eventType string
	switch *status {
	case "pending":
		eventType = store.EventTypeConversion
	case "paid":
		eventType = store.EventTypePayout
	default:
		return nil
	}
	return &eventType
}

// Aggregate rolls up every affiliate's ledger for the program, sorted by
// total earned descending.
func (p *EarningsProcessor) Aggregate(ctx context.Context, companyID string, programID uuid.UUID, status *string) (Aggregation, error) {
	program, err := p.store.GetProgramByID(ctx, programID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Aggregation{}, ErrProgramNotFound
		}
		p.logger.Error(ctx, "failed to load program", err)
		return Aggregation{}, fmt.Errorf("failed to load program: %w", err)
	}
	if program.CompanyID != companyID {
		return Aggregation{}, ErrProgramNotFound
	}

	affiliates, err := p.store.ListAffiliatesByProgram(ctx, programID, nil)
	if err != nil {
		p.logger.Error(ctx, "failed to list affiliates", err)
		return Aggregation{}, fmt.Errorf("failed to list affiliates: %w", err)
	}

	eventType := statusEventType(status)

	aggregation := Aggregation{Affiliates: make([]AffiliateEarnings, 0, len(affiliates))}
	for _, affiliate := range affiliates {
		events, err := p.store.ListEventsByAffiliate(ctx, affiliate.ID, eventType)
		if err != nil {
			p.logger.Error(ctx, "failed to list earnings events", err)
			return Aggregation{}, fmt.Errorf("failed to list earnings events: %w", err)
		}
		summary := Summarize(events)

		aggregation.Affiliates = append(aggregation.Affiliates, AffiliateEarnings{
			AffiliateID:   affiliate.ID,
			UserID:        affiliate.UserID,
			Status:        affiliate.Status,
			Tier:          affiliate.Tier,
			Clicks:        summary.Clicks,
			Conversions:   summary.ConversionsCount,
			PendingAmount: summary.PendingAmount,
			PaidAmount:    summary.PaidAmount,
			TotalAmount:   summary.TotalEarned,
		})

		aggregation.Totals.Clicks += summary.Clicks
		aggregation.Totals.Conversions += summary.ConversionsCount
		aggregation.Totals.Pending += summary.PendingAmount
		aggregation.Totals.Paid += summary.PaidAmount
	}
	aggregation.Totals.Affiliates = len(affiliates)

	sort.SliceStable(aggregation.Affiliates, func(i, j int) bool {
		return aggregation.Affiliates[i].TotalAmount > aggregation.Affiliates[j].TotalAmount
	})

	return aggregation, nil
}
