package team

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/linusjb/boedekassen/internal/spond"
)

type store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new team Store.
func New(db *sql.DB) Store {
	return &store{
		db: db,
	}
}

// UpsertMembers inserts or refreshes players in one transaction. Player
// identity is stable, only the display fields are updated.
func (s *store) UpsertMembers(members []spond.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO players (id, name, profile_picture)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			profile_picture = excluded.profile_picture;
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, m := range members {
		if _, err := stmt.Exec(m.ID, m.Name, m.ProfilePicture); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to upsert member %s: %w", m.ID, err)
		}
	}

	log.Debug("Upserted members", "count", len(members))
	return tx.Commit()
}

func (s *store) GetAllMembers() ([]spond.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT id, name, profile_picture FROM players ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []spond.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *store) GetMember(id string) (*spond.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, err := scanMember(s.db.QueryRow("SELECT id, name, profile_picture FROM players WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// FindMemberByName matches case-insensitively on the full display name.
func (s *store) FindMemberByName(name string) (*spond.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, err := scanMember(s.db.QueryRow(
		"SELECT id, name, profile_picture FROM players WHERE name = ? COLLATE NOCASE", name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// UpsertEvents inserts or refreshes events. Events are immutable once
// ingested so the upsert only fills in fields the source corrected.
func (s *store) UpsertEvents(events []spond.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO events (id, heading, kind, start_time, invited_at, group_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			heading = excluded.heading,
			kind = excluded.kind,
			start_time = excluded.start_time,
			invited_at = excluded.invited_at;
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(e.ID, e.Heading, e.Kind, e.Start, e.InvitedAt, e.GroupID); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to upsert event %s: %w", e.ID, err)
		}
	}

	log.Debug("Upserted events", "count", len(events))
	return tx.Commit()
}

func (s *store) GetAllEvents() ([]spond.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, heading, kind, start_time, invited_at, group_id
		FROM events ORDER BY start_time DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []spond.Event
	for rows.Next() {
		var e spond.Event
		if err := rows.Scan(&e.ID, &e.Heading, &e.Kind, &e.Start, &e.InvitedAt, &e.GroupID); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *store) GetEvent(id string) (*spond.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e spond.Event
	err := s.db.QueryRow(`
		SELECT id, heading, kind, start_time, invited_at, group_id
		FROM events WHERE id = ?
	`, id).Scan(&e.ID, &e.Heading, &e.Kind, &e.Start, &e.InvitedAt, &e.GroupID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanMember(scanner interface{ Scan(...any) error }) (*spond.Member, error) {
	var m spond.Member
	var pic sql.NullString
	if err := scanner.Scan(&m.ID, &m.Name, &pic); err != nil {
		return nil, err
	}
	m.ProfilePicture = pic.String
	return &m, nil
}
