package spond

import "sync"

// MockClient is a mock implementation of the Client interface for testing.
// It is safe for concurrent use.
type MockClient struct {
	mu sync.Mutex

	// Spies for method calls
	GetEventsFunc       func(params *SearchEventsParams) ([]Event, []AttendanceFact, error)
	GetGroupMembersFunc func(groupID string) ([]Member, error)

	// Call records
	GetEventsCalls       []*SearchEventsParams
	GetGroupMembersCalls []string
}

// NewMockClient creates a new mock instance.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Reset clears all call records.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetEventsCalls = nil
	m.GetGroupMembersCalls = nil
}

func (m *MockClient) GetEvents(params *SearchEventsParams) ([]Event, []AttendanceFact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetEventsCalls = append(m.GetEventsCalls, params)
	if m.GetEventsFunc != nil {
		return m.GetEventsFunc(params)
	}
	return nil, nil, nil
}

func (m *MockClient) GetGroupMembers(groupID string) ([]Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetGroupMembersCalls = append(m.GetGroupMembersCalls, groupID)
	if m.GetGroupMembersFunc != nil {
		return m.GetGroupMembersFunc(groupID)
	}
	return nil, nil
}
