package fines

import "sync"

// MockLedger is a mock implementation of the Ledger interface for testing.
// It is safe for concurrent use.
type MockLedger struct {
	mu sync.Mutex

	// Spies for method calls
	UpsertFineFunc    func(fine Fine) (bool, error)
	MarkPaidFunc      func(fineID string, paidAt int64, note string) (*Fine, error)
	GetFineFunc       func(fineID string) (*Fine, error)
	HasFineFunc       func(playerID, eventID string, kind ViolationKind) (bool, error)
	QueryFunc         func(filter QueryFilter) ([]Fine, error)
	SummaryFunc       func() (*LedgerSummary, error)
	SavePolicyFunc    func(record PolicyRecord) error
	GetPolicyFunc     func(version string) (*PolicyRecord, error)
	RecordSyncRunFunc func(run SyncRun) error
	GetSyncRunsFunc   func(limit int) ([]SyncRun, error)
	ClearFunc         func() error

	// Call records
	UpsertFineCalls    []Fine
	MarkPaidCalls      []string
	HasFineCalls       []string
	QueryCalls         []QueryFilter
	SavePolicyCalls    []PolicyRecord
	RecordSyncRunCalls []SyncRun
	ClearCalls         int
}

// NewMockLedger creates a new mock instance.
func NewMockLedger() *MockLedger {
	return &MockLedger{}
}

// Reset clears all call records.
func (m *MockLedger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertFineCalls = nil
	m.MarkPaidCalls = nil
	m.HasFineCalls = nil
	m.QueryCalls = nil
	m.SavePolicyCalls = nil
	m.RecordSyncRunCalls = nil
	m.ClearCalls = 0
}

func (m *MockLedger) UpsertFine(fine Fine) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertFineCalls = append(m.UpsertFineCalls, fine)
	if m.UpsertFineFunc != nil {
		return m.UpsertFineFunc(fine)
	}
	return true, nil
}

func (m *MockLedger) MarkPaid(fineID string, paidAt int64, note string) (*Fine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkPaidCalls = append(m.MarkPaidCalls, fineID)
	if m.MarkPaidFunc != nil {
		return m.MarkPaidFunc(fineID, paidAt, note)
	}
	return &Fine{ID: fineID, Status: StatusPaid, PaidAt: &paidAt, Note: note}, nil
}

func (m *MockLedger) GetFine(fineID string) (*Fine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetFineFunc != nil {
		return m.GetFineFunc(fineID)
	}
	return nil, ErrNotFound
}

func (m *MockLedger) HasFine(playerID, eventID string, kind ViolationKind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HasFineCalls = append(m.HasFineCalls, playerID+"|"+eventID+"|"+string(kind))
	if m.HasFineFunc != nil {
		return m.HasFineFunc(playerID, eventID, kind)
	}
	return false, nil
}

func (m *MockLedger) Query(filter QueryFilter) ([]Fine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueryCalls = append(m.QueryCalls, filter)
	if m.QueryFunc != nil {
		return m.QueryFunc(filter)
	}
	return nil, nil
}

func (m *MockLedger) Summary() (*LedgerSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SummaryFunc != nil {
		return m.SummaryFunc()
	}
	return &LedgerSummary{ByViolation: map[ViolationKind]int{}}, nil
}

func (m *MockLedger) SavePolicy(record PolicyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SavePolicyCalls = append(m.SavePolicyCalls, record)
	if m.SavePolicyFunc != nil {
		return m.SavePolicyFunc(record)
	}
	return nil
}

func (m *MockLedger) GetPolicy(version string) (*PolicyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetPolicyFunc != nil {
		return m.GetPolicyFunc(version)
	}
	return nil, ErrNotFound
}

func (m *MockLedger) RecordSyncRun(run SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordSyncRunCalls = append(m.RecordSyncRunCalls, run)
	if m.RecordSyncRunFunc != nil {
		return m.RecordSyncRunFunc(run)
	}
	return nil
}

func (m *MockLedger) GetSyncRuns(limit int) ([]SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetSyncRunsFunc != nil {
		return m.GetSyncRunsFunc(limit)
	}
	return nil, nil
}

func (m *MockLedger) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClearCalls++
	if m.ClearFunc != nil {
		return m.ClearFunc()
	}
	return nil
}
