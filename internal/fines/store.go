package fines

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

type store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new Ledger backed by the given database.
func New(db *sql.DB) Ledger {
	return &store{
		db: db,
	}
}

// UpsertFine inserts a fine unless one already exists for the same player,
// event and violation. The existing row wins every race: an identical
// re-insert is skipped, a re-insert that disagrees on immutable fields is
// corruption, and a unique-index clash under a different id is a duplicate.
func (s *store) UpsertFine(fine Fine) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}

	byID, err := scanFineRow(tx.QueryRow(`
		SELECT id, player_id, player_name, event_id, violation, amount, policy_version, created_at, status, paid_at, note
		FROM fines WHERE id = ?
	`, fine.ID))
	if err != nil && err != sql.ErrNoRows {
		tx.Rollback()
		return false, err
	}
	if byID != nil {
		tx.Rollback()
		if !sameImmutableFields(*byID, fine) {
			log.Error("Stored fine disagrees with incoming fine on immutable fields",
				"fineID", fine.ID, "playerID", fine.PlayerID, "eventID", fine.EventID, "violation", fine.Kind)
			return false, fmt.Errorf("%w: fine %s for player %s event %s violation %s",
				ErrLedgerCorruption, fine.ID, fine.PlayerID, fine.EventID, fine.Kind)
		}
		// Identical re-insert, keep the existing row untouched so the
		// payment status survives.
		return false, nil
	}

	var clash int
	err = tx.QueryRow(`
		SELECT COUNT(1) FROM fines WHERE player_id = ? AND event_id = ? AND violation = ?
	`, fine.PlayerID, fine.EventID, fine.Kind).Scan(&clash)
	if err != nil {
		tx.Rollback()
		return false, err
	}
	if clash > 0 {
		// Another run already wrote this fine under its own id. The
		// existing row wins, a changed policy never rewrites old fines.
		tx.Rollback()
		return false, ErrDuplicateFine
	}

	_, err = tx.Exec(`
		INSERT INTO fines (id, player_id, player_name, event_id, violation, amount, policy_version, created_at, status, paid_at, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)
	`, fine.ID, fine.PlayerID, fine.PlayerName, fine.EventID, fine.Kind, fine.Amount, fine.PolicyVersion, fine.CreatedAt, StatusUnpaid, fine.Note)
	if err != nil {
		tx.Rollback()
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return false, ErrDuplicateFine
		}
		return false, err
	}

	return true, tx.Commit()
}

// MarkPaid transitions a fine from unpaid to paid. Paying a paid fine is an
// error, the first payment always wins.
func (s *store) MarkPaid(fineID string, paidAt int64, note string) (*Fine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}

	fine, err := scanFineRow(tx.QueryRow(`
		SELECT id, player_id, player_name, event_id, violation, amount, policy_version, created_at, status, paid_at, note
		FROM fines WHERE id = ?
	`, fineID))
	if err == sql.ErrNoRows {
		tx.Rollback()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fineID)
	}
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if fine.Status == StatusPaid {
		tx.Rollback()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyPaid, fineID)
	}

	if note == "" {
		note = fine.Note
	}
	_, err = tx.Exec(`
		UPDATE fines SET status = ?, paid_at = ?, note = ? WHERE id = ?
	`, StatusPaid, paidAt, note, fineID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	fine.Status = StatusPaid
	fine.PaidAt = &paidAt
	fine.Note = note
	return fine, nil
}

func (s *store) GetFine(fineID string) (*Fine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fine, err := scanFineRow(s.db.QueryRow(`
		SELECT id, player_id, player_name, event_id, violation, amount, policy_version, created_at, status, paid_at, note
		FROM fines WHERE id = ?
	`, fineID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fineID)
	}
	if err != nil {
		return nil, err
	}
	return fine, nil
}

func (s *store) HasFine(playerID, eventID string, kind ViolationKind) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(1) FROM fines WHERE player_id = ? AND event_id = ? AND violation = ?
	`, playerID, eventID, kind).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Query returns fines matching the filter, newest first.
func (s *store) Query(filter QueryFilter) ([]Fine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, player_id, player_name, event_id, violation, amount, policy_version, created_at, status, paid_at, note
		FROM fines WHERE 1=1`
	var args []any
	if filter.PlayerID != "" {
		query += " AND player_id = ?"
		args = append(args, filter.PlayerID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.From > 0 {
		query += " AND created_at >= ?"
		args = append(args, filter.From)
	}
	if filter.To > 0 {
		query += " AND created_at <= ?"
		args = append(args, filter.To)
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Fine
	for rows.Next() {
		fine, err := scanFineRow(rows)
		if err != nil {
			log.Error("Failed to scan fine row", "error", err)
			continue
		}
		result = append(result, *fine)
	}
	return result, rows.Err()
}

// Summary aggregates the whole ledger into per-player and per-violation
// rollups. Players are ordered by total owed, highest debt first.
func (s *store) Summary() (*LedgerSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &LedgerSummary{
		ByViolation: make(map[ViolationKind]int),
	}

	rows, err := s.db.Query(`
		SELECT violation, COUNT(1),
			COALESCE(SUM(CASE WHEN status = 'unpaid' THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'paid' THEN amount ELSE 0 END), 0)
		FROM fines GROUP BY violation
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var kind ViolationKind
		var count int
		var unpaid, paid int64
		if err := rows.Scan(&kind, &count, &unpaid, &paid); err != nil {
			return nil, err
		}
		summary.ByViolation[kind] = count
		summary.TotalFines += count
		summary.TotalUnpaid += unpaid
		summary.TotalPaid += paid
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	summary.TotalAmount = summary.TotalUnpaid + summary.TotalPaid

	playerRows, err := s.db.Query(`
		SELECT player_id, MAX(player_name), COUNT(1),
			COALESCE(SUM(CASE WHEN status = 'unpaid' THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'paid' THEN amount ELSE 0 END), 0)
		FROM fines
		GROUP BY player_id
		ORDER BY SUM(amount) DESC, player_id
	`)
	if err != nil {
		return nil, err
	}
	defer playerRows.Close()
	for playerRows.Next() {
		var totals PlayerTotals
		if err := playerRows.Scan(&totals.PlayerID, &totals.PlayerName, &totals.Count, &totals.Unpaid, &totals.Paid); err != nil {
			return nil, err
		}
		totals.Total = totals.Unpaid + totals.Paid
		summary.PlayerTotals = append(summary.PlayerTotals, totals)
	}
	return summary, playerRows.Err()
}

// SavePolicy persists a policy version. Versions are content-addressed so a
// re-save of the same version is a no-op.
func (s *store) SavePolicy(record PolicyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO fine_policies (version, missing_training, missing_match, late_response, late_threshold_secs, late_basis, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(version) DO NOTHING
	`, record.Version, record.MissingTraining, record.MissingMatch, record.LateResponse, record.LateThresholdSecs, record.LateBasis, record.CreatedAt)
	return err
}

func (s *store) GetPolicy(version string) (*PolicyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var record PolicyRecord
	err := s.db.QueryRow(`
		SELECT version, missing_training, missing_match, late_response, late_threshold_secs, late_basis, created_at
		FROM fine_policies WHERE version = ?
	`, version).Scan(&record.Version, &record.MissingTraining, &record.MissingMatch, &record.LateResponse, &record.LateThresholdSecs, &record.LateBasis, &record.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: policy %s", ErrNotFound, version)
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *store) RecordSyncRun(run SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO sync_runs (started_at, finished_at, events_seen, fines_created, fines_skipped, malformed, dry_run, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.StartedAt, run.FinishedAt, run.EventsSeen, run.FinesCreated, run.FinesSkipped, run.Malformed, run.DryRun, run.Error)
	return err
}

func (s *store) GetSyncRuns(limit int) ([]SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, events_seen, fines_created, fines_skipped, malformed, dry_run, error
		FROM sync_runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var run SyncRun
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.EventsSeen, &run.FinesCreated, &run.FinesSkipped, &run.Malformed, &run.DryRun, &run.Error); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Clear wipes fines and sync runs but keeps players, events and policies.
func (s *store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM fines"); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec("DELETE FROM sync_runs"); err != nil {
		tx.Rollback()
		return err
	}
	log.Info("Cleared fine ledger")
	return tx.Commit()
}

// sameImmutableFields compares the fields that are frozen at fine creation.
// Status, paid_at and note are mutable and excluded.
func sameImmutableFields(a, b Fine) bool {
	return a.PlayerID == b.PlayerID &&
		a.EventID == b.EventID &&
		a.Kind == b.Kind &&
		a.Amount == b.Amount &&
		a.PolicyVersion == b.PolicyVersion
}

func scanFineRow(scanner interface{ Scan(...any) error }) (*Fine, error) {
	var fine Fine
	var paidAt sql.NullInt64
	var note sql.NullString

	err := scanner.Scan(&fine.ID, &fine.PlayerID, &fine.PlayerName, &fine.EventID, &fine.Kind,
		&fine.Amount, &fine.PolicyVersion, &fine.CreatedAt, &fine.Status, &paidAt, &note)
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		fine.PaidAt = &paidAt.Int64
	}
	fine.Note = note.String
	return &fine, nil
}
