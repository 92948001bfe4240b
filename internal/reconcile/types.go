package reconcile

import (
	"fmt"

	"github.com/linusjb/boedekassen/internal/fines"
)

// MalformedInput identifies one upstream record that could not be
// reconciled. Malformed records are reported, never silently dropped.
type MalformedInput struct {
	EventID  string `json:"eventID,omitempty"`
	PlayerID string `json:"playerID,omitempty"`
	Reason   string `json:"reason"`
}

func (m MalformedInput) Error() string {
	return fmt.Sprintf("malformed input (event=%q player=%q): %s", m.EventID, m.PlayerID, m.Reason)
}

// Result summarizes one reconciliation pass. NewFines carries the fines the
// caller must persist, the engine itself writes nothing.
type Result struct {
	EventsSeen   int                         `json:"eventsSeen"`
	Created      map[fines.ViolationKind]int `json:"created"`
	CreatedTotal int                         `json:"createdTotal"`
	Skipped      int                         `json:"skipped"`
	NewFines     []fines.Fine                `json:"newFines"`
	Malformed    []MalformedInput            `json:"malformed"`
}

// LedgerIndex is the read side of the ledger the engine consults for
// duplicate detection. The ledger itself stays the write authority.
type LedgerIndex interface {
	HasFine(playerID, eventID string, kind fines.ViolationKind) (bool, error)
}
