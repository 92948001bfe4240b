package fines

// Ledger is the durable fine ledger. Writes are serialized behind a single
// lock, reads may run concurrently.
type Ledger interface {
	// UpsertFine inserts a fine if no fine exists for the same player,
	// event and violation. Re-inserting an identical fine is a no-op,
	// a clash that disagrees on immutable fields is ErrLedgerCorruption,
	// a clash under a different fine id is ErrDuplicateFine.
	UpsertFine(fine Fine) (created bool, err error)
	// MarkPaid transitions a fine from unpaid to paid.
	MarkPaid(fineID string, paidAt int64, note string) (*Fine, error)
	GetFine(fineID string) (*Fine, error)
	HasFine(playerID, eventID string, kind ViolationKind) (bool, error)
	Query(filter QueryFilter) ([]Fine, error)
	Summary() (*LedgerSummary, error)

	SavePolicy(record PolicyRecord) error
	GetPolicy(version string) (*PolicyRecord, error)

	RecordSyncRun(run SyncRun) error
	GetSyncRuns(limit int) ([]SyncRun, error)

	// Clear wipes all fines and sync runs. Players, events and policies
	// are kept so a following sync can rebuild the ledger.
	Clear() error
}
