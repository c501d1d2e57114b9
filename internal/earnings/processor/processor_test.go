package processor

import (
	"affiliate-server/internal/observability"
	"affiliate-server/internal/store"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeEarningsStore struct {
	program store.Program
	getErr  error

	affiliates []store.Affiliate
	events     map[uuid.UUID][]store.EarningsEvent

	requestedEventType *string
}

func (f *fakeEarningsStore) GetProgramByID(ctx context.Context, programID uuid.UUID) (store.Program, error) {
	if f.getErr != nil {
		return store.Program{}, f.getErr
	}
	return f.program, nil
}

func (f *fakeEarningsStore) ListAffiliatesByProgram(ctx context.Context, programID uuid.UUID, status *string) ([]store.Affiliate, error) {
	return f.affiliates, nil
}

func (f *fakeEarningsStore) ListEventsByAffiliate(ctx context.Context, affiliateID uuid.UUID, eventType *string) ([]store.EarningsEvent, error) {
	f.requestedEventType = eventType
	events := f.events[affiliateID]
	if eventType == nil {
		return events, nil
	}
	var filtered []store.EarningsEvent
	for _, event := range events {
		if event.Type == *eventType {
			filtered = append(filtered, event)
		}
	}
	return filtered, nil
}

func event(eventType string, amount float64, settled bool) store.EarningsEvent {
	e := store.EarningsEvent{ID: uuid.New(), Type: eventType, Amount: amount}
	if settled {
		now := time.Now()
		e.SettledAt = &now
	}
	return e
}

func TestSummarizePartitionsByType(t *testing.T) {
	events := []store.EarningsEvent{
		event(store.EventTypeClick, 0, false),
		event(store.EventTypeClick, 0, false),
		event(store.EventTypeConversion, 50, false),
		event(store.EventTypeConversion, 30, true),
		event(store.EventTypePayout, 30, false),
	}

	summary := Summarize(events)

	if summary.Clicks != 2 {
		t.Errorf("expected 2 clicks, got %d", summary.Clicks)
	}
	if summary.ConversionsCount != 2 {
		t.Errorf("expected 2 conversions, got %d", summary.ConversionsCount)
	}
	if summary.PendingAmount != 50 {
		t.Errorf("expected pending 50 (settled conversions excluded), got %v", summary.PendingAmount)
	}
	if summary.PaidAmount != 30 {
		t.Errorf("expected paid 30, got %v", summary.PaidAmount)
	}
	if summary.TotalEarned != 80 {
		t.Errorf("expected total 80, got %v", summary.TotalEarned)
	}
}

func TestSummarizeEmptyLedger(t *testing.T) {
	summary := Summarize(nil)
	if summary != (Summary{}) {
		t.Errorf("expected zero summary, got %+v", summary)
	}
}

func TestAggregateSortsByTotalDesc(t *testing.T) {
	programID := uuid.New()
	low := store.Affiliate{ID: uuid.New(), ProgramID: programID, UserID: "user_low"}
	high := store.Affiliate{ID: uuid.New(), ProgramID: programID, UserID: "user_high"}

	fake := &fakeEarningsStore{
		program:    store.Program{ID: programID, CompanyID: "biz_1"},
		affiliates: []store.Affiliate{low, high},
		events: map[uuid.UUID][]store.EarningsEvent{
			low.ID:  {event(store.EventTypeConversion, 10, false)},
			high.ID: {event(store.EventTypeConversion, 100, false), event(store.EventTypeClick, 0, false)},
		},
	}
	p := New(fake, observability.NewLogger())

	aggregation, err := p.Aggregate(context.Background(), "biz_1", programID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(aggregation.Affiliates) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(aggregation.Affiliates))
	}
	if aggregation.Affiliates[0].UserID != "user_high" {
		t.Errorf("expected highest earner first, got %q", aggregation.Affiliates[0].UserID)
	}
	if aggregation.Totals.Affiliates != 2 || aggregation.Totals.Clicks != 1 ||
		aggregation.Totals.Conversions != 2 || aggregation.Totals.Pending != 110 {
		t.Errorf("unexpected totals: %+v", aggregation.Totals)
	}
}

func TestAggregateStatusFilterMapsToEventType(t *testing.T) {
	programID := uuid.New()
	affiliate := store.Affiliate{ID: uuid.New(), ProgramID: programID, UserID: "user_1"}
	fake := &fakeEarningsStore{
		program:    store.Program{ID: programID, CompanyID: "biz_1"},
		affiliates: []store.Affiliate{affiliate},
		events: map[uuid.UUID][]store.EarningsEvent{
			affiliate.ID: {
				event(store.EventTypeConversion, 40, false),
				event(store.EventTypePayout, 25, false),
			},
		},
	}
	p := New(fake, observability.NewLogger())

	status := "paid"
	aggregation, err := p.Aggregate(context.Background(), "biz_1", programID, &status)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.requestedEventType == nil || *fake.requestedEventType != store.EventTypePayout {
		t.Errorf("expected payout event filter, got %v", fake.requestedEventType)
	}
	if aggregation.Affiliates[0].PaidAmount != 25 || aggregation.Affiliates[0].PendingAmount != 0 {
		t.Errorf("unexpected filtered row: %+v", aggregation.Affiliates[0])
	}
}

func TestAggregateTenantMismatch(t *testing.T) {
	programID := uuid.New()
	fake := &fakeEarningsStore{program: store.Program{ID: programID, CompanyID: "biz_other"}}
	p := New(fake, observability.NewLogger())

	if _, err := p.Aggregate(context.Background(), "biz_1", programID, nil); !errors.Is(err, ErrProgramNotFound) {
		t.Errorf("expected ErrProgramNotFound, got %v", err)
	}

	fake.getErr = store.ErrNotFound
	if _, err := p.Aggregate(context.Background(), "biz_1", programID, nil); !errors.Is(err, ErrProgramNotFound) {
		t.Errorf("expected ErrProgramNotFound for missing program, got %v", err)
	}
}
