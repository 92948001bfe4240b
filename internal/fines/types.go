package fines

import "errors"

// ViolationKind identifies the rule a fine was issued under.
type ViolationKind string

const (
	ViolationMissingTraining ViolationKind = "missing_training"
	ViolationMissingMatch    ViolationKind = "missing_match"
	ViolationLateResponse    ViolationKind = "late_response"
)

// PaymentStatus is the payment state of a fine. Fines move from unpaid to
// paid exactly once and never back.
type PaymentStatus string

const (
	StatusUnpaid PaymentStatus = "unpaid"
	StatusPaid   PaymentStatus = "paid"
)

var (
	// ErrNotFound is returned when a fine id does not exist in the ledger.
	ErrNotFound = errors.New("fine not found")
	// ErrAlreadyPaid is returned when marking a fine paid a second time.
	ErrAlreadyPaid = errors.New("fine already paid")
	// ErrDuplicateFine is returned when a fine for the same player, event
	// and violation already exists under a different fine id.
	ErrDuplicateFine = errors.New("duplicate fine for player, event and violation")
	// ErrLedgerCorruption is returned when a stored fine disagrees with a
	// re-derived fine on fields that are immutable after creation. The
	// caller must halt the sync rather than paper over it.
	ErrLedgerCorruption = errors.New("ledger corruption detected")
)

// Fine is one debt owed by one player for one violation at one event.
// Amount and PolicyVersion are frozen at creation, later policy changes
// never touch existing fines.
type Fine struct {
	ID            string        `json:"id"`
	PlayerID      string        `json:"playerID"`
	PlayerName    string        `json:"playerName"`
	EventID       string        `json:"eventID"`
	Kind          ViolationKind `json:"kind"`
	Amount        int64         `json:"amount"`
	PolicyVersion string        `json:"policyVersion"`
	CreatedAt     int64         `json:"createdAt"`
	Status        PaymentStatus `json:"status"`
	PaidAt        *int64        `json:"paidAt,omitempty"`
	Note          string        `json:"note,omitempty"`
}

// QueryFilter narrows a ledger query. Zero values mean "no constraint".
type QueryFilter struct {
	PlayerID string
	Status   PaymentStatus
	From     int64
	To       int64
}

// PlayerTotals is one player's rollup in a ledger summary.
type PlayerTotals struct {
	PlayerID   string `json:"playerID"`
	PlayerName string `json:"playerName"`
	Count      int    `json:"count"`
	Unpaid     int64  `json:"unpaid"`
	Paid       int64  `json:"paid"`
	Total      int64  `json:"total"`
}

// LedgerSummary is the aggregate view of the whole ledger.
type LedgerSummary struct {
	TotalFines   int                   `json:"totalFines"`
	TotalUnpaid  int64                 `json:"totalUnpaid"`
	TotalPaid    int64                 `json:"totalPaid"`
	TotalAmount  int64                 `json:"totalAmount"`
	ByViolation  map[ViolationKind]int `json:"byViolation"`
	PlayerTotals []PlayerTotals        `json:"playerTotals"`
}

// PolicyRecord is the persisted form of a fine policy version.
type PolicyRecord struct {
	Version           string `json:"version"`
	MissingTraining   int64  `json:"missingTraining"`
	MissingMatch      int64  `json:"missingMatch"`
	LateResponse      int64  `json:"lateResponse"`
	LateThresholdSecs int64  `json:"lateThresholdSecs"`
	LateBasis         string `json:"lateBasis"`
	CreatedAt         int64  `json:"createdAt"`
}

// SyncRun is the audit record of one reconciliation pass.
type SyncRun struct {
	ID           int64  `json:"id"`
	StartedAt    int64  `json:"startedAt"`
	FinishedAt   int64  `json:"finishedAt"`
	EventsSeen   int    `json:"eventsSeen"`
	FinesCreated int    `json:"finesCreated"`
	FinesSkipped int    `json:"finesSkipped"`
	Malformed    int    `json:"malformed"`
	DryRun       bool   `json:"dryRun"`
	Error        string `json:"error,omitempty"`
}
