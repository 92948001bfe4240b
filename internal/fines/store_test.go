package fines

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linusjb/boedekassen/internal/database"
)

func setupTestStore(t *testing.T) Ledger {
	t.Helper()
	db, teardown, err := database.InitDB(":memory:", "", "", "../../migrations")
	require.NoError(t, err)
	t.Cleanup(teardown)
	return New(db)
}

func testFine(id string) Fine {
	return Fine{
		ID:            id,
		PlayerID:      "p1",
		PlayerName:    "Jonas Holm",
		EventID:       "e1",
		Kind:          ViolationMissingTraining,
		Amount:        50,
		PolicyVersion: "pol-abc",
		CreatedAt:     1000,
		Status:        StatusUnpaid,
	}
}

func TestUpsertFine_CreateAndReinsert(t *testing.T) {
	store := setupTestStore(t)

	created, err := store.UpsertFine(testFine("f1"))
	require.NoError(t, err)
	assert.True(t, created)

	// Identical re-insert is a no-op.
	created, err = store.UpsertFine(testFine("f1"))
	require.NoError(t, err)
	assert.False(t, created)

	has, err := store.HasFine("p1", "e1", ViolationMissingTraining)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestUpsertFine_ReinsertPreservesPaymentStatus(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.UpsertFine(testFine("f1"))
	require.NoError(t, err)
	_, err = store.MarkPaid("f1", 2000, "mobilepay")
	require.NoError(t, err)

	created, err := store.UpsertFine(testFine("f1"))
	require.NoError(t, err)
	assert.False(t, created)

	fine, err := store.GetFine("f1")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, fine.Status)
	require.NotNil(t, fine.PaidAt)
	assert.Equal(t, int64(2000), *fine.PaidAt)
}

func TestUpsertFine_DuplicateUnderDifferentID(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.UpsertFine(testFine("f1"))
	require.NoError(t, err)

	// A second run derived the same fine under a fresh id.
	dup := testFine("f2")
	created, err := store.UpsertFine(dup)
	assert.ErrorIs(t, err, ErrDuplicateFine)
	assert.False(t, created)

	// The existing fine wins even when the policy changed in between.
	dup.Amount = 75
	dup.PolicyVersion = "pol-def"
	_, err = store.UpsertFine(dup)
	assert.ErrorIs(t, err, ErrDuplicateFine)

	fine, err := store.GetFine("f1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), fine.Amount)
}

func TestUpsertFine_CorruptionOnImmutableFieldChange(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.UpsertFine(testFine("f1"))
	require.NoError(t, err)

	mutated := testFine("f1")
	mutated.Amount = 500
	_, err = store.UpsertFine(mutated)
	assert.ErrorIs(t, err, ErrLedgerCorruption)

	mutated = testFine("f1")
	mutated.EventID = "e2"
	_, err = store.UpsertFine(mutated)
	assert.ErrorIs(t, err, ErrLedgerCorruption)
}

func TestMarkPaid(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.UpsertFine(testFine("f1"))
	require.NoError(t, err)

	fine, err := store.MarkPaid("f1", 2000, "cash at training")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, fine.Status)
	require.NotNil(t, fine.PaidAt)
	assert.Equal(t, int64(2000), *fine.PaidAt)
	assert.Equal(t, "cash at training", fine.Note)

	// Paying twice fails and leaves the first payment untouched.
	_, err = store.MarkPaid("f1", 3000, "")
	assert.ErrorIs(t, err, ErrAlreadyPaid)

	fine, err = store.GetFine("f1")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), *fine.PaidAt)

	_, err = store.MarkPaid("nope", 2000, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQuery_Filters(t *testing.T) {
	store := setupTestStore(t)

	f1 := testFine("f1")
	f2 := Fine{ID: "f2", PlayerID: "p2", PlayerName: "Mads Krogh", EventID: "e1", Kind: ViolationMissingMatch, Amount: 100, PolicyVersion: "pol-abc", CreatedAt: 1500}
	f3 := Fine{ID: "f3", PlayerID: "p1", PlayerName: "Jonas Holm", EventID: "e2", Kind: ViolationLateResponse, Amount: 25, PolicyVersion: "pol-abc", CreatedAt: 2000}
	for _, f := range []Fine{f1, f2, f3} {
		_, err := store.UpsertFine(f)
		require.NoError(t, err)
	}
	_, err := store.MarkPaid("f3", 2500, "")
	require.NoError(t, err)

	all, err := store.Query(QueryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "f3", all[0].ID, "newest first")

	byPlayer, err := store.Query(QueryFilter{PlayerID: "p1"})
	require.NoError(t, err)
	assert.Len(t, byPlayer, 2)

	unpaid, err := store.Query(QueryFilter{Status: StatusUnpaid})
	require.NoError(t, err)
	assert.Len(t, unpaid, 2)

	windowed, err := store.Query(QueryFilter{From: 1400, To: 1600})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, "f2", windowed[0].ID)
}

func TestSummary(t *testing.T) {
	store := setupTestStore(t)

	fs := []Fine{
		{ID: "f1", PlayerID: "p1", PlayerName: "Jonas Holm", EventID: "e1", Kind: ViolationMissingTraining, Amount: 50, PolicyVersion: "pol-abc", CreatedAt: 1000},
		{ID: "f2", PlayerID: "p1", PlayerName: "Jonas Holm", EventID: "e2", Kind: ViolationMissingMatch, Amount: 100, PolicyVersion: "pol-abc", CreatedAt: 1100},
		{ID: "f3", PlayerID: "p2", PlayerName: "Mads Krogh", EventID: "e1", Kind: ViolationLateResponse, Amount: 25, PolicyVersion: "pol-abc", CreatedAt: 1200},
	}
	for _, f := range fs {
		_, err := store.UpsertFine(f)
		require.NoError(t, err)
	}
	_, err := store.MarkPaid("f3", 2000, "")
	require.NoError(t, err)

	summary, err := store.Summary()
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalFines)
	assert.Equal(t, int64(150), summary.TotalUnpaid)
	assert.Equal(t, int64(25), summary.TotalPaid)
	assert.Equal(t, int64(175), summary.TotalAmount)
	assert.Equal(t, 1, summary.ByViolation[ViolationMissingTraining])
	assert.Equal(t, 1, summary.ByViolation[ViolationMissingMatch])
	assert.Equal(t, 1, summary.ByViolation[ViolationLateResponse])

	require.Len(t, summary.PlayerTotals, 2)
	assert.Equal(t, "p1", summary.PlayerTotals[0].PlayerID, "highest debt first")
	assert.Equal(t, int64(150), summary.PlayerTotals[0].Unpaid)
	assert.Equal(t, int64(25), summary.PlayerTotals[1].Paid)
}

func TestSaveAndGetPolicy(t *testing.T) {
	store := setupTestStore(t)

	record := PolicyRecord{
		Version:           "pol-abc",
		MissingTraining:   50,
		MissingMatch:      100,
		LateResponse:      25,
		LateThresholdSecs: 86400,
		LateBasis:         "invitation",
		CreatedAt:         1000,
	}
	require.NoError(t, store.SavePolicy(record))
	// Re-saving the same version is a no-op.
	require.NoError(t, store.SavePolicy(record))

	got, err := store.GetPolicy("pol-abc")
	require.NoError(t, err)
	assert.Equal(t, record, *got)

	_, err = store.GetPolicy("pol-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSyncRuns(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.RecordSyncRun(SyncRun{StartedAt: 1000, FinishedAt: 1001, EventsSeen: 5, FinesCreated: 2, FinesSkipped: 1}))
	require.NoError(t, store.RecordSyncRun(SyncRun{StartedAt: 2000, FinishedAt: 2002, EventsSeen: 5, FinesCreated: 0, FinesSkipped: 3, DryRun: true}))

	runs, err := store.GetSyncRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, int64(2000), runs[0].StartedAt, "newest first")
	assert.True(t, runs[0].DryRun)
	assert.Equal(t, 2, runs[1].FinesCreated)
}

func TestClear(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.UpsertFine(testFine("f1"))
	require.NoError(t, err)
	require.NoError(t, store.RecordSyncRun(SyncRun{StartedAt: 1000, FinishedAt: 1001}))
	require.NoError(t, store.SavePolicy(PolicyRecord{Version: "pol-abc", CreatedAt: 1000}))

	require.NoError(t, store.Clear())

	all, err := store.Query(QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)

	runs, err := store.GetSyncRuns(10)
	require.NoError(t, err)
	assert.Empty(t, runs)

	// Policies survive a clear.
	_, err = store.GetPolicy("pol-abc")
	assert.NoError(t, err)
}
