package team

import "github.com/linusjb/boedekassen/internal/spond"

// Store holds the known players and ingested events.
type Store interface {
	UpsertMembers(members []spond.Member) error
	GetAllMembers() ([]spond.Member, error)
	GetMember(id string) (*spond.Member, error)
	FindMemberByName(name string) (*spond.Member, error)

	UpsertEvents(events []spond.Event) error
	GetAllEvents() ([]spond.Event, error)
	GetEvent(id string) (*spond.Event, error)
}
