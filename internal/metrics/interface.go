package metrics

// Metrics defines the interface for collecting application metrics.
// This decouples the application from the specific metrics implementation (e.g., Prometheus).
type Metrics interface {
	IncSyncRuns()
	IncFinesCreated(count int)
	IncFinesSkipped(count int)
	IncMalformedInputs(count int)
	ObserveReconcileDuration(duration float64)
	IncSlackNotifSent()
	IncSlackNotifFailed()
	SetStartupTime(duration float64)
}
