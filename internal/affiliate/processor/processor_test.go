package processor

import (
	"affiliate-server/internal/notifications"
	"affiliate-server/internal/observability"
	"affiliate-server/internal/store"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeAffiliateStore struct {
	programs   map[uuid.UUID]store.Program
	affiliates map[uuid.UUID]store.Affiliate
	events     map[uuid.UUID][]store.EarningsEvent
	summaries  map[uuid.UUID][]store.EarningsTypeSummary

	approvedWith *float64
	approvedTier *string
}

func newFakeAffiliateStore() *fakeAffiliateStore {
	return &fakeAffiliateStore{
		programs:   make(map[uuid.UUID]store.Program),
		affiliates: make(map[uuid.UUID]store.Affiliate),
		events:     make(map[uuid.UUID][]store.EarningsEvent),
		summaries:  make(map[uuid.UUID][]store.EarningsTypeSummary),
	}
}

func (f *fakeAffiliateStore) GetProgramByID(ctx context.Context, programID uuid.UUID) (store.Program, error) {
	program, ok := f.programs[programID]
	if !ok {
		return store.Program{}, store.ErrNotFound
	}
	return program, nil
}

func (f *fakeAffiliateStore) CreateAffiliate(ctx context.Context, params store.CreateAffiliateParams) (store.Affiliate, error) {
	affiliate := store.Affiliate{
		ID:        uuid.New(),
		ProgramID: params.ProgramID,
		UserID:    params.UserID,
		Status:    store.AffiliateStatusPending,
		Tier:      "standard",
		AppliedAt: time.Now(),
	}
	f.affiliates[affiliate.ID] = affiliate
	return affiliate, nil
}

func (f *fakeAffiliateStore) GetAffiliateByID(ctx context.Context, affiliateID uuid.UUID) (store.Affiliate, error) {
	affiliate, ok := f.affiliates[affiliateID]
	if !ok {
		return store.Affiliate{}, store.ErrNotFound
	}
	return affiliate, nil
}

func (f *fakeAffiliateStore) GetAffiliateByProgramAndUser(ctx context.Context, programID uuid.UUID, userID string) (store.Affiliate, error) {
	for _, affiliate := range f.affiliates {
		if affiliate.ProgramID == programID && affiliate.UserID == userID {
			return affiliate, nil
		}
	}
	return store.Affiliate{}, store.ErrNotFound
}

func (f *fakeAffiliateStore) ListAffiliatesByProgram(ctx context.Context, programID uuid.UUID, status *string) ([]store.Affiliate, error) {
	var out []store.Affiliate
	for _, affiliate := range f.affiliates {
		if affiliate.ProgramID != programID {
			continue
		}
		if status != nil && affiliate.Status != *status {
			continue
		}
		out = append(out, affiliate)
	}
	return out, nil
}

func (f *fakeAffiliateStore) ApproveAffiliate(ctx context.Context, affiliateID uuid.UUID, customRate *float64, tier *string) (store.Affiliate, error) {
	f.approvedWith = customRate
	f.approvedTier = tier
	affiliate := f.affiliates[affiliateID]
	now := time.Now()
	affiliate.Status = store.AffiliateStatusApproved
	affiliate.ApprovedAt = &now
	affiliate.CustomRate = customRate
	if tier != nil {
		affiliate.Tier = *tier
	}
	f.affiliates[affiliateID] = affiliate
	return affiliate, nil
}

func (f *fakeAffiliateStore) RejectAffiliate(ctx context.Context, affiliateID uuid.UUID) (store.Affiliate, error) {
	affiliate := f.affiliates[affiliateID]
	now := time.Now()
	affiliate.Status = store.AffiliateStatusRejected
	affiliate.RejectedAt = &now
	f.affiliates[affiliateID] = affiliate
	return affiliate, nil
}

func (f *fakeAffiliateStore) UpdateAffiliateTerms(ctx context.Context, affiliateID uuid.UUID, params store.UpdateAffiliateTermsParams) (store.Affiliate, error) {
	affiliate, ok := f.affiliates[affiliateID]
	if !ok {
		return store.Affiliate{}, store.ErrNotFound
	}
	if params.CustomRate != nil {
		affiliate.CustomRate = params.CustomRate
	}
	if params.Tier != nil {
		affiliate.Tier = *params.Tier
	}
	if params.RateExpiry != nil {
		affiliate.RateExpiry = params.RateExpiry
	}
	f.affiliates[affiliateID] = affiliate
	return affiliate, nil
}

func (f *fakeAffiliateStore) ListEventsByAffiliate(ctx context.Context, affiliateID uuid.UUID, eventType *string) ([]store.EarningsEvent, error) {
	return f.events[affiliateID], nil
}

func (f *fakeAffiliateStore) GetEarningsTypeSummary(ctx context.Context, affiliateID uuid.UUID) ([]store.EarningsTypeSummary, error) {
	return f.summaries[affiliateID], nil
}

type fakeNotifier struct {
	dispatched []notifications.Notification
}

func (f *fakeNotifier) Dispatch(ctx context.Context, notification notifications.Notification) {
	f.dispatched = append(f.dispatched, notification)
}

func floatPtr(v float64) *float64 { return &v }
func strPtr(s string) *string     { return &s }

func seedProgram(f *fakeAffiliateStore, companyID, status string) store.Program {
	program := store.Program{ID: uuid.New(), CompanyID: companyID, Status: status, DefaultRate: 10}
	f.programs[program.ID] = program
	return program
}

func TestApplyCreatesPendingApplication(t *testing.T) {
	fake := newFakeAffiliateStore()
	program := seedProgram(fake, "biz_1", store.ProgramStatusActive)
	p := New(fake, &fakeNotifier{}, observability.NewLogger())

	affiliate, err := p.Apply(context.Background(), "user_1", program.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if affiliate.Status != store.AffiliateStatusPending {
		t.Errorf("expected pending, got %q", affiliate.Status)
	}
}

func TestApplyTwiceReturnsExistingRecord(t *testing.T) {
	fake := newFakeAffiliateStore()
	program := seedProgram(fake, "biz_1", store.ProgramStatusActive)
	p := New(fake, &fakeNotifier{}, observability.NewLogger())

	first, err := p.Apply(context.Background(), "user_1", program.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := p.Apply(context.Background(), "user_1", program.ID)
	if !errors.Is(err, ErrAlreadyApplied) {
		t.Fatalf("expected ErrAlreadyApplied, got %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected the existing record back, got %v", second.ID)
	}
}

func TestApplyInactiveOrMissingProgram(t *testing.T) {
	fake := newFakeAffiliateStore()
	inactive := seedProgram(fake, "biz_1", store.ProgramStatusInactive)
	p := New(fake, &fakeNotifier{}, observability.NewLogger())

	if _, err := p.Apply(context.Background(), "user_1", inactive.ID); !errors.Is(err, ErrProgramInactive) {
		t.Errorf("inactive program: expected ErrProgramInactive, got %v", err)
	}
	if _, err := p.Apply(context.Background(), "user_1", uuid.New()); !errors.Is(err, ErrProgramInactive) {
		t.Errorf("missing program: expected ErrProgramInactive, got %v", err)
	}
}

func TestApproveSetsTermsAndNotifies(t *testing.T) {
	fake := newFakeAffiliateStore()
	program := seedProgram(fake, "biz_1", store.ProgramStatusActive)
	notifier := &fakeNotifier{}
	p := New(fake, notifier, observability.NewLogger())

	affiliate, _ := p.Apply(context.Background(), "user_1", program.ID)

	experienceID := "exp_1"
	approved, err := p.Approve(context.Background(), "biz_1", affiliate.ID, floatPtr(15), strPtr("gold"), &experienceID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if approved.Status != store.AffiliateStatusApproved || approved.ApprovedAt == nil {
		t.Errorf("expected approved with timestamp, got %+v", approved)
	}
	if fake.approvedWith == nil || *fake.approvedWith != 15 || fake.approvedTier == nil || *fake.approvedTier != "gold" {
		t.Errorf("expected custom terms passed through, got rate=%v tier=%v", fake.approvedWith, fake.approvedTier)
	}
	if len(notifier.dispatched) != 1 || notifier.dispatched[0].Kind != notifications.KindApplicationStatus {
		t.Errorf("expected one status notification, got %v", notifier.dispatched)
	}
}

func TestApproveIsOneWay(t *testing.T) {
	fake := newFakeAffiliateStore()
	program := seedProgram(fake, "biz_1", store.ProgramStatusActive)
	p := New(fake, &fakeNotifier{}, observability.NewLogger())

	affiliate, _ := p.Apply(context.Background(), "user_1", program.ID)
	if _, err := p.Approve(context.Background(), "biz_1", affiliate.ID, nil, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := p.Approve(context.Background(), "biz_1", affiliate.ID, nil, nil, nil); !errors.Is(err, ErrNotPending) {
		t.Errorf("second approve: expected ErrNotPending, got %v", err)
	}
	if _, err := p.Reject(context.Background(), "biz_1", affiliate.ID, nil); !errors.Is(err, ErrNotPending) {
		t.Errorf("reject after approve: expected ErrNotPending, got %v", err)
	}
}

func TestApproveForeignTenant(t *testing.T) {
	fake := newFakeAffiliateStore()
	program := seedProgram(fake, "biz_1", store.ProgramStatusActive)
	p := New(fake, &fakeNotifier{}, observability.NewLogger())

	affiliate, _ := p.Apply(context.Background(), "user_1", program.ID)
	if _, err := p.Approve(context.Background(), "biz_other", affiliate.ID, nil, nil, nil); !errors.Is(err, ErrAffiliateNotFound) {
		t.Errorf("expected ErrAffiliateNotFound, got %v", err)
	}
}

func TestRejectSetsTimestamp(t *testing.T) {
	fake := newFakeAffiliateStore()
	program := seedProgram(fake, "biz_1", store.ProgramStatusActive)
	p := New(fake, &fakeNotifier{}, observability.NewLogger())

	affiliate, _ := p.Apply(context.Background(), "user_1", program.ID)
	rejected, err := p.Reject(context.Background(), "biz_1", affiliate.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rejected.Status != store.AffiliateStatusRejected || rejected.RejectedAt == nil {
		t.Errorf("expected rejected with timestamp, got %+v", rejected)
	}
}

func TestEffectiveRateResolution(t *testing.T) {
	program := store.Program{DefaultRate: 10}
	rateOverride := 20.0
	offer := store.Offer{RateOverride: &rateOverride}
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name      string
		affiliate store.Affiliate
		offer     *store.Offer
		want      float64
	}{
		{"program default", store.Affiliate{}, nil, 10},
		{"offer override", store.Affiliate{}, &offer, 20},
		{"custom rate wins", store.Affiliate{CustomRate: floatPtr(30)}, &offer, 30},
		{"unexpired custom rate", store.Affiliate{CustomRate: floatPtr(30), RateExpiry: &future}, &offer, 30},
		{"expired custom rate falls back", store.Affiliate{CustomRate: floatPtr(30), RateExpiry: &past}, &offer, 20},
		{"expired custom rate without offer", store.Affiliate{CustomRate: floatPtr(30), RateExpiry: &past}, nil, 10},
	}

	for _, tc := range cases {
		if got := EffectiveRate(tc.affiliate, tc.offer, program, now); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestGetMyEarnings(t *testing.T) {
	fake := newFakeAffiliateStore()
	program := seedProgram(fake, "biz_1", store.ProgramStatusActive)
	p := New(fake, &fakeNotifier{}, observability.NewLogger())

	affiliate, _ := p.Apply(context.Background(), "user_1", program.ID)
	now := time.Now()
	fake.events[affiliate.ID] = []store.EarningsEvent{
		{Type: store.EventTypeConversion, Amount: 40},
		{Type: store.EventTypeConversion, Amount: 25, SettledAt: &now},
		{Type: store.EventTypePayout, Amount: 25},
		{Type: store.EventTypeClick},
	}

	earnings, err := p.GetMyEarnings(context.Background(), "user_1", program.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if earnings.PendingAmount != 40 || earnings.PaidAmount != 25 || earnings.TotalEarned != 65 {
		t.Errorf("unexpected amounts: %+v", earnings)
	}
	if earnings.Clicks != 1 || earnings.ConversionsCount != 2 {
		t.Errorf("unexpected counts: %+v", earnings)
	}
	if earnings.CommissionRate != 10 {
		t.Errorf("expected program default rate, got %v", earnings.CommissionRate)
	}
	if len(earnings.RecentEvents) != 4 {
		t.Errorf("expected all 4 recent events, got %d", len(earnings.RecentEvents))
	}
}

func TestGetMyEarningsWithoutRecord(t *testing.T) {
	fake := newFakeAffiliateStore()
	program := seedProgram(fake, "biz_1", store.ProgramStatusActive)
	p := New(fake, &fakeNotifier{}, observability.NewLogger())

	if _, err := p.GetMyEarnings(context.Background(), "user_1", program.ID); !errors.Is(err, ErrNoAffiliateRecord) {
		t.Errorf("expected ErrNoAffiliateRecord, got %v", err)
	}
}

func TestGetMyEarningsCapsRecentEvents(t *testing.T) {
	fake := newFakeAffiliateStore()
	program := seedProgram(fake, "biz_1", store.ProgramStatusActive)
	p := New(fake, &fakeNotifier{}, observability.NewLogger())

	affiliate, _ := p.Apply(context.Background(), "user_1", program.ID)
	for i := 0; i < 30; i++ {
		fake.events[affiliate.ID] = append(fake.events[affiliate.ID], store.EarningsEvent{Type: store.EventTypeClick})
	}

	earnings, err := p.GetMyEarnings(context.Background(), "user_1", program.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(earnings.RecentEvents) != recentEventsLimit {
		t.Errorf("expected %d recent events, got %d", recentEventsLimit, len(earnings.RecentEvents))
	}
	if earnings.Clicks != 30 {
		t.Errorf("summary should cover the full ledger, got %d clicks", earnings.Clicks)
	}
}
