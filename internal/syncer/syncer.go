package syncer

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/linusjb/boedekassen/internal/fines"
	"github.com/linusjb/boedekassen/internal/metrics"
	"github.com/linusjb/boedekassen/internal/notifier"
	"github.com/linusjb/boedekassen/internal/policy"
	"github.com/linusjb/boedekassen/internal/pubsub"
	"github.com/linusjb/boedekassen/internal/reconcile"
	"github.com/linusjb/boedekassen/internal/spond"
	"github.com/linusjb/boedekassen/internal/team"
)

// New creates a new sync Service.
func New(source spond.Client, teamStore team.Store, ledger fines.Ledger, engine *reconcile.Engine,
	pol policy.Policy, notif notifier.Notifier, metrics metrics.Metrics, pubsubC pubsub.PubSubClient,
	groupID string) *Service {
	return &Service{
		source:   source,
		team:     teamStore,
		ledger:   ledger,
		engine:   engine,
		policy:   pol,
		notifier: notif,
		metrics:  metrics,
		pubsub:   pubsubC,
		groupID:  groupID,
		now:      func() int64 { return time.Now().Unix() },
	}
}

var _ Syncer = (*Service)(nil)

// Sync fetches the last daysBack days of events from the attendance source,
// reconciles them against the ledger and persists the resulting fines. In
// dry-run mode nothing is written and notifications are logged instead of
// sent. A corruption error halts the run immediately.
func (s *Service) Sync(daysBack int, dryRun bool) (*reconcile.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if daysBack <= 0 {
		daysBack = 30
	}
	startedAt := s.now()
	s.metrics.IncSyncRuns()
	log.Info("Starting sync", "daysBack", daysBack, "dryRun", dryRun)

	if err := s.policy.Validate(); err != nil {
		return nil, err
	}

	members, err := s.source.GetGroupMembers(s.groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch group members: %w", err)
	}

	maxStart := time.Unix(startedAt, 0)
	events, facts, err := s.source.GetEvents(&spond.SearchEventsParams{
		GroupID:  s.groupID,
		MinStart: maxStart.AddDate(0, 0, -daysBack),
		MaxStart: maxStart,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}

	if !dryRun {
		if err := s.team.UpsertMembers(members); err != nil {
			return nil, fmt.Errorf("failed to store members: %w", err)
		}
		if err := s.team.UpsertEvents(events); err != nil {
			return nil, fmt.Errorf("failed to store events: %w", err)
		}
		if err := s.ledger.SavePolicy(s.policy.Record(startedAt)); err != nil {
			return nil, fmt.Errorf("failed to store policy: %w", err)
		}
	}

	reconcileStart := time.Now()
	result, err := s.engine.Reconcile(events, facts, s.policy, s.ledger)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveReconcileDuration(time.Since(reconcileStart).Seconds())

	namesByID := make(map[string]string, len(members))
	for _, m := range members {
		namesByID[m.ID] = m.Name
	}
	for i := range result.NewFines {
		result.NewFines[i].PlayerName = namesByID[result.NewFines[i].PlayerID]
	}

	persisted, err := s.persistFines(result, dryRun)
	if err != nil {
		s.recordRun(startedAt, result, dryRun, err)
		return nil, err
	}
	result.NewFines = persisted
	result.CreatedTotal = len(persisted)

	s.metrics.IncFinesCreated(result.CreatedTotal)
	s.metrics.IncFinesSkipped(result.Skipped)
	s.metrics.IncMalformedInputs(len(result.Malformed))
	for _, m := range result.Malformed {
		log.Warn("Malformed upstream record", "eventID", m.EventID, "playerID", m.PlayerID, "reason", m.Reason)
	}

	s.recordRun(startedAt, result, dryRun, nil)
	s.announce(result, dryRun)

	log.Info("Sync finished", "events", result.EventsSeen, "created", result.CreatedTotal,
		"skipped", result.Skipped, "malformed", len(result.Malformed), "dryRun", dryRun)
	return result, nil
}

// persistFines writes the engine's new fines to the ledger. A duplicate
// means a concurrent run won the race and counts as skipped, corruption
// aborts the whole run.
func (s *Service) persistFines(result *reconcile.Result, dryRun bool) ([]fines.Fine, error) {
	if dryRun {
		return result.NewFines, nil
	}

	persisted := make([]fines.Fine, 0, len(result.NewFines))
	for _, fine := range result.NewFines {
		created, err := s.ledger.UpsertFine(fine)
		if err != nil {
			if errors.Is(err, fines.ErrDuplicateFine) {
				result.Skipped++
				result.Created[fine.Kind]--
				continue
			}
			return nil, fmt.Errorf("failed to persist fine for player %s event %s violation %s: %w",
				fine.PlayerID, fine.EventID, fine.Kind, err)
		}
		if created {
			persisted = append(persisted, fine)
		}
	}
	return persisted, nil
}

func (s *Service) recordRun(startedAt int64, result *reconcile.Result, dryRun bool, runErr error) {
	run := fines.SyncRun{
		StartedAt:  startedAt,
		FinishedAt: s.now(),
		DryRun:     dryRun,
	}
	if result != nil {
		run.EventsSeen = result.EventsSeen
		run.FinesCreated = result.CreatedTotal
		run.FinesSkipped = result.Skipped
		run.Malformed = len(result.Malformed)
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := s.ledger.RecordSyncRun(run); err != nil {
		log.Error("Failed to record sync run", "error", err)
	}
}

// announce publishes and notifies about newly created fines. Neither is
// allowed to fail the sync, the fines are already durable.
func (s *Service) announce(result *reconcile.Result, dryRun bool) {
	if result.CreatedTotal == 0 {
		return
	}

	if !dryRun {
		fineIDs := make([]string, 0, len(result.NewFines))
		for _, fine := range result.NewFines {
			fineIDs = append(fineIDs, fine.ID)
		}
		event := pubsub.FinesCreatedEvent{
			FineIDs:      fineIDs,
			CreatedTotal: result.CreatedTotal,
			Skipped:      result.Skipped,
			DryRun:       dryRun,
		}
		if err := s.pubsub.SendMessage(pubsub.EventFinesCreated, event); err != nil {
			log.Error("Failed to publish fines-created event", "error", err)
		}
	}

	if err := s.notifier.SendNewFines(result.NewFines, dryRun); err != nil {
		log.Error("Failed to send new fines notification", "error", err)
	}
}
