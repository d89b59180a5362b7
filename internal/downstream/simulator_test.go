package downstream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/agreement-orchestrator/internal/data/db"
	"github.com/yungbote/agreement-orchestrator/internal/domain/agreement"
)

func newTestSimulator(t *testing.T) *Simulator {
	t.Helper()
	gdb, err := db.Open(db.Config{Driver: db.DriverSQLite, DSN: db.MemoryDSN, LogLevel: "silent"}, nil)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrateAll(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewSimulator(gdb, nil)
}

func homeStd() agreement.Request {
	return agreement.Request{
		ProductCode:       "HOME-STD",
		CustomerReference: "CUST-1",
		Coverages:         []agreement.CoverageLine{{Type: "BUILDING", InsuredSum: 2_000_000, Deductible: 10_000}},
		StartDate:         time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPremium(t *testing.T) {
	cov := []agreement.CoverageLine{{Type: "BUILDING", InsuredSum: 2_000_000, Deductible: 10_000}}
	assert.Equal(t, int64(9500), Premium("HOME-STD", cov))
	assert.Equal(t, int64(12500), Premium("home-plus", cov))
	assert.Equal(t, int64(15500), Premium("BOAT", cov))
	assert.Equal(t, int64(minimumPremium), Premium("HOME-STD", []agreement.CoverageLine{{InsuredSum: 1000}}))
}

func TestFullLifecycle(t *testing.T) {
	s := newTestSimulator(t)
	ctx := context.Background()

	id, err := s.CreateDraft(ctx, homeStd())
	require.NoError(t, err)
	st, ok, err := s.GetStatus(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, agreement.StateDraft, st)

	_, err = s.PriceOffer(ctx, id)
	assert.ErrorIs(t, err, ErrNotEnriched)

	require.NoError(t, s.EnrichUnderwriting(ctx, id))
	premium, err := s.PriceOffer(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(9500), premium)
	require.NoError(t, s.ActivateAgreement(ctx, id))
	require.NoError(t, s.UpdateStatusToSent(ctx, id))

	st, _, err = s.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, agreement.StateSent, st)

	hist, err := s.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, hist, 4)
	assert.Equal(t, string(agreement.StateSent), hist[3].ToStatus)
	assert.Equal(t, string(agreement.StateActive), hist[3].FromStatus)

	// SENT is terminal for compensation.
	assert.ErrorIs(t, s.CancelActivation(ctx, id), ErrInvalidTransition)
}

func TestProgrammedFailures(t *testing.T) {
	s := newTestSimulator(t)
	ctx := context.Background()
	id, err := s.CreateDraft(ctx, homeStd())
	require.NoError(t, err)
	require.NoError(t, s.EnrichUnderwriting(ctx, id))
	_, err = s.PriceOffer(ctx, id)
	require.NoError(t, err)
	require.NoError(t, s.ActivateAgreement(ctx, id))

	s.ProgramDispatchFailures(2)
	assert.ErrorIs(t, s.UpdateStatusToSent(ctx, id), ErrDispatchUnavailable)
	assert.ErrorIs(t, s.UpdateStatusToSent(ctx, id), ErrDispatchUnavailable)

	s.ProgramCancelFailures(1)
	assert.ErrorIs(t, s.CancelActivation(ctx, id), ErrCancelRejected)
	require.NoError(t, s.CancelActivation(ctx, id))

	st, _, err := s.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, agreement.StateCancelled, st)
}

func TestUnknownAgreement(t *testing.T) {
	s := newTestSimulator(t)
	ctx := context.Background()
	_, ok, err := s.GetStatus(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, s.ActivateAgreement(ctx, "missing"), ErrNotFound)
}

func TestCountAgreements(t *testing.T) {
	s := newTestSimulator(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := s.CreateDraft(ctx, homeStd())
		require.NoError(t, err)
	}
	n, err := s.CountAgreements(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
