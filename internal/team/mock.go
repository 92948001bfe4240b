package team

import (
	"sync"

	"github.com/linusjb/boedekassen/internal/spond"
)

// MockStore is a mock implementation of the Store interface for testing.
// It is safe for concurrent use.
type MockStore struct {
	mu sync.Mutex

	// Spies for method calls
	UpsertMembersFunc    func(members []spond.Member) error
	GetAllMembersFunc    func() ([]spond.Member, error)
	GetMemberFunc        func(id string) (*spond.Member, error)
	FindMemberByNameFunc func(name string) (*spond.Member, error)
	UpsertEventsFunc     func(events []spond.Event) error
	GetAllEventsFunc     func() ([]spond.Event, error)
	GetEventFunc         func(id string) (*spond.Event, error)

	// Call records
	UpsertMembersCalls [][]spond.Member
	UpsertEventsCalls  [][]spond.Event
}

// NewMockStore creates a new mock instance.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// Reset clears all call records.
func (m *MockStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertMembersCalls = nil
	m.UpsertEventsCalls = nil
}

func (m *MockStore) UpsertMembers(members []spond.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertMembersCalls = append(m.UpsertMembersCalls, members)
	if m.UpsertMembersFunc != nil {
		return m.UpsertMembersFunc(members)
	}
	return nil
}

func (m *MockStore) GetAllMembers() ([]spond.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetAllMembersFunc != nil {
		return m.GetAllMembersFunc()
	}
	return nil, nil
}

func (m *MockStore) GetMember(id string) (*spond.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetMemberFunc != nil {
		return m.GetMemberFunc(id)
	}
	return nil, nil
}

func (m *MockStore) FindMemberByName(name string) (*spond.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindMemberByNameFunc != nil {
		return m.FindMemberByNameFunc(name)
	}
	return nil, nil
}

func (m *MockStore) UpsertEvents(events []spond.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertEventsCalls = append(m.UpsertEventsCalls, events)
	if m.UpsertEventsFunc != nil {
		return m.UpsertEventsFunc(events)
	}
	return nil
}

func (m *MockStore) GetAllEvents() ([]spond.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetAllEventsFunc != nil {
		return m.GetAllEventsFunc()
	}
	return nil, nil
}

func (m *MockStore) GetEvent(id string) (*spond.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetEventFunc != nil {
		return m.GetEventFunc(id)
	}
	return nil, nil
}
