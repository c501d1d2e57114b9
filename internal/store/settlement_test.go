package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createSettlementAffiliate(t *testing.T, testDB *TestDB) Affiliate {
	t.Helper()
	ctx := context.Background()

	program, err := testDB.Store.UpsertProgram(ctx, UpsertProgramParams{
		CompanyID:       "biz_" + uuid.NewString(),
		DefaultRate:     10,
		PayoutFrequency: PayoutFrequencyMonthly,
		CookieWindow:    30,
		Status:          ProgramStatusActive,
	})
	require.NoError(t, err, "failed to create test program")

	affiliate, err := testDB.Store.CreateAffiliate(ctx, CreateAffiliateParams{
		ProgramID: program.ID,
		UserID:    "user_" + uuid.NewString(),
	})
	require.NoError(t, err, "failed to create test affiliate")
	return affiliate
}

func insertConversion(t *testing.T, testDB *TestDB, affiliateID uuid.UUID, amount float64) {
	t.Helper()
	_, err := testDB.Store.CreateEarningsEvent(context.Background(), CreateEarningsEventParams{
		AffiliateID: affiliateID,
		Type:        EventTypeConversion,
		Amount:      amount,
		Currency:    "usd",
	})
	require.NoError(t, err, "failed to insert conversion")
}

func TestSettlementCommitMarksCoveredConversions(t *testing.T) {
	t.Parallel()
	testDB := SetupTestDB(t)
	ctx := context.Background()

	affiliate := createSettlementAffiliate(t, testDB)
	insertConversion(t, testDB, affiliate.ID, 50)
	insertConversion(t, testDB, affiliate.ID, 30)

	settlement, err := testDB.Store.BeginSettlement(ctx, affiliate.ID)
	require.NoError(t, err)
	assert.Equal(t, 80.0, settlement.Pending())

	payout, err := settlement.Commit(ctx, "usd", "payout_run:"+uuid.NewString())
	require.NoError(t, err)
	assert.Equal(t, 80.0, payout.Amount)
	assert.Equal(t, EventTypePayout, payout.Type)

	second, err := testDB.Store.BeginSettlement(ctx, affiliate.ID)
	require.NoError(t, err)
	defer second.Rollback()
	assert.Zero(t, second.Pending(), "a committed settlement must leave nothing pending")
}

// A conversion that lands while a settlement is open must survive it
// unsettled, even when its created_at timestamp predates the settlement.
// The settled set is keyed on the ids summed at BeginSettlement, not on a
// timestamp cutoff, so a lagging insert can never be marked settled without
// being part of the paid amount.
func TestSettlementDoesNotSweepConversionLandingMidSettlement(t *testing.T) {
	t.Parallel()
	testDB := SetupTestDB(t)
	ctx := context.Background()

	affiliate := createSettlementAffiliate(t, testDB)
	insertConversion(t, testDB, affiliate.ID, 50)

	settlement, err := testDB.Store.BeginSettlement(ctx, affiliate.ID)
	require.NoError(t, err)
	require.Equal(t, 50.0, settlement.Pending())

	// Lands after the pending snapshot, backdated as if its insert had
	// started before the settlement began.
	_, err = testDB.GetDB().ExecContext(ctx,
		`INSERT INTO earnings_events (affiliate_id, type, amount, currency, created_at)
		 VALUES ($1, 'conversion', 30, 'usd', now() - interval '1 hour')`,
		affiliate.ID)
	require.NoError(t, err, "failed to insert late conversion")

	_, err = settlement.Commit(ctx, "usd", "payout_run:"+uuid.NewString())
	require.NoError(t, err)

	var lateSettled int
	err = testDB.GetDB().GetContext(ctx, &lateSettled,
		`SELECT COUNT(*) FROM earnings_events
		 WHERE affiliate_id = $1 AND type = 'conversion' AND amount = 30 AND settled_at IS NOT NULL`,
		affiliate.ID)
	require.NoError(t, err)
	assert.Zero(t, lateSettled, "the late conversion must not be marked settled by a payout that excluded it")

	next, err := testDB.Store.BeginSettlement(ctx, affiliate.ID)
	require.NoError(t, err)
	defer next.Rollback()
	assert.Equal(t, 30.0, next.Pending(), "the late conversion must stay payable on the next run")
}

func TestSettlementRollbackLeavesConversionsPending(t *testing.T) {
	t.Parallel()
	testDB := SetupTestDB(t)
	ctx := context.Background()

	affiliate := createSettlementAffiliate(t, testDB)
	insertConversion(t, testDB, affiliate.ID, 25)

	settlement, err := testDB.Store.BeginSettlement(ctx, affiliate.ID)
	require.NoError(t, err)
	require.Equal(t, 25.0, settlement.Pending())
	require.NoError(t, settlement.Rollback())

	retry, err := testDB.Store.BeginSettlement(ctx, affiliate.ID)
	require.NoError(t, err)
	defer retry.Rollback()
	assert.Equal(t, 25.0, retry.Pending())
}
