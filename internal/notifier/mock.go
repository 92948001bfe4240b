package notifier

import (
	"sync"

	"github.com/linusjb/boedekassen/internal/fines"
)

// Mock is a mock implementation of the Notifier interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	// Spies for method calls
	SendNewFinesFunc func(newFines []fines.Fine, dryRun bool) error
	SendSummaryFunc  func(summary *fines.LedgerSummary, dryRun bool) error

	// Spies for format functions
	FormatSummaryResponseFunc        func(summary *fines.LedgerSummary) (any, error)
	FormatPlayerFinesResponseFunc    func(playerName string, playerFines []fines.Fine) (any, error)
	FormatPlayerNotFoundResponseFunc func(query string) (any, error)

	// Call records
	SendNewFinesCalls [][]fines.Fine
	SendSummaryCalls  []*fines.LedgerSummary
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{}
}

// Reset clears all call records.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendNewFinesCalls = nil
	m.SendSummaryCalls = nil
}

func (m *Mock) SendNewFines(newFines []fines.Fine, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendNewFinesCalls = append(m.SendNewFinesCalls, newFines)
	if m.SendNewFinesFunc != nil {
		return m.SendNewFinesFunc(newFines, dryRun)
	}
	return nil
}

func (m *Mock) SendSummary(summary *fines.LedgerSummary, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendSummaryCalls = append(m.SendSummaryCalls, summary)
	if m.SendSummaryFunc != nil {
		return m.SendSummaryFunc(summary, dryRun)
	}
	return nil
}

func (m *Mock) FormatSummaryResponse(summary *fines.LedgerSummary) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FormatSummaryResponseFunc != nil {
		return m.FormatSummaryResponseFunc(summary)
	}
	return "formatted_summary", nil
}

func (m *Mock) FormatPlayerFinesResponse(playerName string, playerFines []fines.Fine) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FormatPlayerFinesResponseFunc != nil {
		return m.FormatPlayerFinesResponseFunc(playerName, playerFines)
	}
	return "formatted_player_fines", nil
}

func (m *Mock) FormatPlayerNotFoundResponse(query string) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FormatPlayerNotFoundResponseFunc != nil {
		return m.FormatPlayerNotFoundResponseFunc(query)
	}
	return "formatted_player_not_found", nil
}
