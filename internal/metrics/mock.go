package metrics

import "sync"

// Mock is a mock implementation of the Metrics interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu                 sync.Mutex
	syncRuns           int
	finesCreated       int
	finesSkipped       int
	malformedInputs    int
	reconcileDurations []float64
	slackNotifSent     int
	slackNotifFailed   int
	startupTime        float64
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{
		reconcileDurations: make([]float64, 0),
	}
}

func (m *Mock) IncSyncRuns() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncRuns++
}

func (m *Mock) IncFinesCreated(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finesCreated += count
}

func (m *Mock) IncFinesSkipped(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finesSkipped += count
}

func (m *Mock) IncMalformedInputs(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.malformedInputs += count
}

func (m *Mock) ObserveReconcileDuration(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconcileDurations = append(m.reconcileDurations, duration)
}

func (m *Mock) IncSlackNotifSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slackNotifSent++
}

func (m *Mock) IncSlackNotifFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slackNotifFailed++
}

func (m *Mock) SetStartupTime(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startupTime = duration
}

// SyncRuns returns the number of times IncSyncRuns was called.
func (m *Mock) SyncRuns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncRuns
}

// FinesCreated returns the accumulated created count.
func (m *Mock) FinesCreated() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finesCreated
}

// FinesSkipped returns the accumulated skipped count.
func (m *Mock) FinesSkipped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finesSkipped
}

// MalformedInputs returns the accumulated malformed count.
func (m *Mock) MalformedInputs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.malformedInputs
}

// SlackNotifSent returns the number of times IncSlackNotifSent was called.
func (m *Mock) SlackNotifSent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slackNotifSent
}

// SlackNotifFailed returns the number of times IncSlackNotifFailed was called.
func (m *Mock) SlackNotifFailed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slackNotifFailed
}
