package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linusjb/boedekassen/internal/database"
	"github.com/linusjb/boedekassen/internal/fines"
	"github.com/linusjb/boedekassen/internal/metrics"
	"github.com/linusjb/boedekassen/internal/notifier"
	"github.com/linusjb/boedekassen/internal/policy"
	"github.com/linusjb/boedekassen/internal/pubsub"
	"github.com/linusjb/boedekassen/internal/reconcile"
	"github.com/linusjb/boedekassen/internal/spond"
	"github.com/linusjb/boedekassen/internal/team"
)

type syncFixture struct {
	service  *Service
	source   *spond.MockClient
	ledger   fines.Ledger
	teamSt   team.Store
	notifier *notifier.Mock
	metrics  *metrics.Mock
	pubsub   *pubsub.MockPubSubClient
}

func testPolicy() policy.Policy {
	p := policy.Policy{
		MissingTrainingFine: 50,
		MissingMatchFine:    100,
		LateResponseFine:    25,
		LateThreshold:       24 * time.Hour,
		Basis:               policy.BasisInvitation,
	}
	p.Version = p.Fingerprint()
	return p
}

func setupSyncer(t *testing.T) *syncFixture {
	t.Helper()
	db, teardown, err := database.InitDB(":memory:", "", "", "../../migrations")
	require.NoError(t, err)
	t.Cleanup(teardown)

	f := &syncFixture{
		source:   spond.NewMockClient(),
		ledger:   fines.New(db),
		teamSt:   team.New(db),
		notifier: notifier.NewMock(),
		metrics:  metrics.NewMock(),
		pubsub:   pubsub.NewMock("test-project"),
	}
	f.service = New(f.source, f.teamSt, f.ledger, reconcile.New(), testPolicy(),
		f.notifier, f.metrics, f.pubsub, "group-1")
	f.service.now = func() int64 { return 100_000 }
	return f
}

func stubSource(f *syncFixture) {
	f.source.GetGroupMembersFunc = func(groupID string) ([]spond.Member, error) {
		return []spond.Member{{ID: "p1", Name: "Jonas Holm"}}, nil
	}
	f.source.GetEventsFunc = func(params *spond.SearchEventsParams) ([]spond.Event, []spond.AttendanceFact, error) {
		events := []spond.Event{{ID: "e1", Heading: "Tirsdagstræning", Kind: spond.EventKindTraining, Start: 90_000, InvitedAt: 10_000, GroupID: "group-1"}}
		facts := []spond.AttendanceFact{{EventID: "e1", PlayerID: "p1", Response: spond.ResponseDeclined}}
		return events, facts, nil
	}
}

func TestSync_CreatesAndPersistsFines(t *testing.T) {
	f := setupSyncer(t)
	stubSource(f)

	result, err := f.service.Sync(30, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.CreatedTotal)
	assert.Equal(t, 0, result.Skipped)
	require.Len(t, result.NewFines, 1)
	assert.Equal(t, "Jonas Holm", result.NewFines[0].PlayerName)

	// The fine is durable.
	stored, err := f.ledger.Query(fines.QueryFilter{PlayerID: "p1"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, fines.ViolationMissingTraining, stored[0].Kind)
	assert.Equal(t, int64(50), stored[0].Amount)

	// Members and events landed in the team store.
	members, err := f.teamSt.GetAllMembers()
	require.NoError(t, err)
	assert.Len(t, members, 1)
	events, err := f.teamSt.GetAllEvents()
	require.NoError(t, err)
	assert.Len(t, events, 1)

	// The policy version in effect was persisted.
	_, err = f.ledger.GetPolicy(testPolicy().Version)
	assert.NoError(t, err)

	// Audit, metrics, fan-out.
	runs, err := f.ledger.GetSyncRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].FinesCreated)
	assert.Equal(t, 1, f.metrics.SyncRuns())
	assert.Equal(t, 1, f.metrics.FinesCreated())
	require.Len(t, f.pubsub.SendMessageCalls, 1)
	assert.Equal(t, string(pubsub.EventFinesCreated), f.pubsub.SendMessageCalls[0].Topic)
	require.Len(t, f.notifier.SendNewFinesCalls, 1)
}

func TestSync_SecondRunIsIdempotent(t *testing.T) {
	f := setupSyncer(t)
	stubSource(f)

	_, err := f.service.Sync(30, false)
	require.NoError(t, err)
	f.notifier.Reset()
	f.pubsub.Reset()

	result, err := f.service.Sync(30, false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.CreatedTotal)
	assert.Equal(t, 1, result.Skipped)

	stored, err := f.ledger.Query(fines.QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	// Nothing new, nothing announced.
	assert.Empty(t, f.notifier.SendNewFinesCalls)
	assert.Empty(t, f.pubsub.SendMessageCalls)
}

func TestSync_DryRunWritesNothing(t *testing.T) {
	f := setupSyncer(t)
	stubSource(f)

	result, err := f.service.Sync(30, true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.CreatedTotal)

	stored, err := f.ledger.Query(fines.QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, stored)

	members, err := f.teamSt.GetAllMembers()
	require.NoError(t, err)
	assert.Empty(t, members)

	// No publish, but the notifier still gets the dry-run call.
	assert.Empty(t, f.pubsub.SendMessageCalls)
	require.Len(t, f.notifier.SendNewFinesCalls, 1)

	// The dry run still leaves an audit record.
	runs, err := f.ledger.GetSyncRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].DryRun)
}

func TestSync_CorruptionHaltsRun(t *testing.T) {
	f := setupSyncer(t)
	stubSource(f)

	mockLedger := fines.NewMockLedger()
	mockLedger.UpsertFineFunc = func(fine fines.Fine) (bool, error) {
		return false, fines.ErrLedgerCorruption
	}
	f.service.ledger = mockLedger

	_, err := f.service.Sync(30, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, fines.ErrLedgerCorruption)

	// The aborted run is still recorded, with its error.
	require.Len(t, mockLedger.RecordSyncRunCalls, 1)
	assert.Contains(t, mockLedger.RecordSyncRunCalls[0].Error, "ledger corruption")

	// Nothing was announced for the failed run.
	assert.Empty(t, f.notifier.SendNewFinesCalls)
	assert.Empty(t, f.pubsub.SendMessageCalls)
}

func TestSync_DuplicateFromConcurrentRunCountsAsSkipped(t *testing.T) {
	f := setupSyncer(t)
	stubSource(f)

	mockLedger := fines.NewMockLedger()
	mockLedger.UpsertFineFunc = func(fine fines.Fine) (bool, error) {
		return false, fines.ErrDuplicateFine
	}
	f.service.ledger = mockLedger

	result, err := f.service.Sync(30, false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.CreatedTotal)
	assert.Equal(t, 1, result.Skipped)
}

func TestSync_SourceErrorPropagates(t *testing.T) {
	f := setupSyncer(t)
	f.source.GetGroupMembersFunc = func(groupID string) ([]spond.Member, error) {
		return nil, assert.AnError
	}

	_, err := f.service.Sync(30, false)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSync_InvalidPolicyRejected(t *testing.T) {
	f := setupSyncer(t)
	stubSource(f)
	f.service.policy.MissingMatchFine = -1

	_, err := f.service.Sync(30, false)
	assert.ErrorIs(t, err, policy.ErrInvalidPolicy)
}

func TestSync_WindowPassedToSource(t *testing.T) {
	f := setupSyncer(t)
	stubSource(f)

	_, err := f.service.Sync(7, false)
	require.NoError(t, err)

	require.Len(t, f.source.GetEventsCalls, 1)
	params := f.source.GetEventsCalls[0]
	assert.Equal(t, "group-1", params.GroupID)
	assert.Equal(t, 7*24*60*60.0, params.MaxStart.Sub(params.MinStart).Seconds())
}
