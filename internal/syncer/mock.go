package syncer

import (
	"sync"

	"github.com/linusjb/boedekassen/internal/reconcile"
)

// MockSyncer is a mock implementation of the Syncer interface for testing.
// It is safe for concurrent use.
type MockSyncer struct {
	mu sync.Mutex

	// Spies for method calls
	SyncFunc func(daysBack int, dryRun bool) (*reconcile.Result, error)

	// Call records
	SyncCalls []SyncCall
}

// SyncCall holds the arguments for a call to Sync.
type SyncCall struct {
	DaysBack int
	DryRun   bool
}

// NewMockSyncer creates a new mock instance.
func NewMockSyncer() *MockSyncer {
	return &MockSyncer{}
}

// Reset clears all call records.
func (m *MockSyncer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SyncCalls = nil
}

func (m *MockSyncer) Sync(daysBack int, dryRun bool) (*reconcile.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SyncCalls = append(m.SyncCalls, SyncCall{DaysBack: daysBack, DryRun: dryRun})
	if m.SyncFunc != nil {
		return m.SyncFunc(daysBack, dryRun)
	}
	return &reconcile.Result{}, nil
}
