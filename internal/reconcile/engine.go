package reconcile

import (
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/linusjb/boedekassen/internal/fines"
	"github.com/linusjb/boedekassen/internal/policy"
	"github.com/linusjb/boedekassen/internal/spond"
)

// Engine turns attendance facts into fine candidates. It is a pure
// computation over its inputs plus the ledger index, it performs no network
// or file I/O and never retries on its own.
type Engine struct {
	now   func() int64
	newID func() string
}

// New creates a reconciliation engine with wall-clock time and random ids.
func New() *Engine {
	return &Engine{
		now:   func() int64 { return time.Now().Unix() },
		newID: uuid.NewString,
	}
}

// playerFact is one player's effective response after deduplication.
type playerFact struct {
	fact  spond.AttendanceFact
	order int // ingestion order, breaks timestamp ties deterministically
}

// Reconcile derives fine candidates from the given events and facts under
// the given policy. Candidates already present in the ledger index are
// counted as skipped. Malformed records are collected in the result and do
// not stop reconciliation of the remaining input.
func (e *Engine) Reconcile(events []spond.Event, facts []spond.AttendanceFact, pol policy.Policy, index LedgerIndex) (*Result, error) {
	if err := pol.Validate(); err != nil {
		return nil, err
	}

	result := &Result{
		Created: make(map[fines.ViolationKind]int),
	}

	eventsByID := make(map[string]spond.Event, len(events))
	for _, event := range events {
		if event.ID == "" {
			result.Malformed = append(result.Malformed, MalformedInput{
				Reason: fmt.Sprintf("event %q has no id", event.Heading),
			})
			continue
		}
		eventsByID[event.ID] = event
		result.EventsSeen++
	}

	// At most one fact per (event, player): the latest response timestamp
	// wins, ties and absent timestamps fall back to ingestion order.
	effective := make(map[string]map[string]playerFact, len(eventsByID))
	for i, fact := range facts {
		if fact.PlayerID == "" {
			result.Malformed = append(result.Malformed, MalformedInput{
				EventID: fact.EventID,
				Reason:  "attendance fact has no player id",
			})
			continue
		}
		if _, ok := eventsByID[fact.EventID]; !ok {
			result.Malformed = append(result.Malformed, MalformedInput{
				EventID:  fact.EventID,
				PlayerID: fact.PlayerID,
				Reason:   "attendance fact references an unknown event",
			})
			continue
		}
		byPlayer, ok := effective[fact.EventID]
		if !ok {
			byPlayer = make(map[string]playerFact)
			effective[fact.EventID] = byPlayer
		}
		candidate := playerFact{fact: fact, order: i}
		if current, ok := byPlayer[fact.PlayerID]; ok && !candidate.beats(current) {
			continue
		}
		byPlayer[fact.PlayerID] = candidate
	}

	// Walk events by start time then id, players by id, so repeated runs
	// over the same input emit fines in the same order.
	orderedEvents := make([]spond.Event, 0, len(effective))
	for eventID := range effective {
		orderedEvents = append(orderedEvents, eventsByID[eventID])
	}
	sort.Slice(orderedEvents, func(i, j int) bool {
		if orderedEvents[i].Start != orderedEvents[j].Start {
			return orderedEvents[i].Start < orderedEvents[j].Start
		}
		return orderedEvents[i].ID < orderedEvents[j].ID
	})

	for _, event := range orderedEvents {
		byPlayer := effective[event.ID]
		playerIDs := make([]string, 0, len(byPlayer))
		for playerID := range byPlayer {
			playerIDs = append(playerIDs, playerID)
		}
		sort.Strings(playerIDs)

		for _, playerID := range playerIDs {
			fact := byPlayer[playerID].fact
			for _, kind := range candidateViolations(event, fact, pol) {
				if err := e.emit(result, event, fact, kind, pol, index); err != nil {
					return nil, err
				}
			}
		}
	}

	result.CreatedTotal = len(result.NewFines)
	log.Debug("Reconciliation pass complete",
		"events", result.EventsSeen, "created", result.CreatedTotal,
		"skipped", result.Skipped, "malformed", len(result.Malformed))
	return result, nil
}

// beats reports whether candidate c should replace current as the effective
// fact for a (event, player) pair.
func (c playerFact) beats(current playerFact) bool {
	switch {
	case c.fact.RespondedAt == nil && current.fact.RespondedAt == nil:
		return c.order > current.order
	case c.fact.RespondedAt == nil:
		return false
	case current.fact.RespondedAt == nil:
		return true
	case *c.fact.RespondedAt != *current.fact.RespondedAt:
		return *c.fact.RespondedAt > *current.fact.RespondedAt
	default:
		return c.order > current.order
	}
}

// candidateViolations applies the fine rules to one effective fact. A late
// answer fines independently of attendance, a player can be fined for
// answering late and still show up.
func candidateViolations(event spond.Event, fact spond.AttendanceFact, pol policy.Policy) []fines.ViolationKind {
	var kinds []fines.ViolationKind

	if fact.Response == spond.ResponseDeclined || fact.Response == spond.ResponseUnanswered {
		if event.Kind == spond.EventKindMatch {
			kinds = append(kinds, fines.ViolationMissingMatch)
		} else {
			kinds = append(kinds, fines.ViolationMissingTraining)
		}
	}

	if fact.RespondedAt != nil && pol.IsLate(*fact.RespondedAt, event.InvitedAt, event.Start) {
		kinds = append(kinds, fines.ViolationLateResponse)
	}

	return kinds
}

func (e *Engine) emit(result *Result, event spond.Event, fact spond.AttendanceFact, kind fines.ViolationKind, pol policy.Policy, index LedgerIndex) error {
	exists, err := index.HasFine(fact.PlayerID, event.ID, kind)
	if err != nil {
		return fmt.Errorf("failed to check ledger index for player %s event %s violation %s: %w",
			fact.PlayerID, event.ID, kind, err)
	}
	if exists {
		result.Skipped++
		return nil
	}

	result.NewFines = append(result.NewFines, fines.Fine{
		ID:            e.newID(),
		PlayerID:      fact.PlayerID,
		EventID:       event.ID,
		Kind:          kind,
		Amount:        pol.Resolve(kind),
		PolicyVersion: pol.Version,
		CreatedAt:     e.now(),
		Status:        fines.StatusUnpaid,
	})
	result.Created[kind]++
	return nil
}
