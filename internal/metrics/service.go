package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

// NewMetricsHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		SyncRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fines_sync_runs_total",
			Help: "The total number of sync runs started.",
		}),
		FinesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fines_created_total",
			Help: "The total number of fines created by reconciliation.",
		}),
		FinesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fines_skipped_total",
			Help: "The total number of fine candidates skipped as already present.",
		}),
		MalformedInputs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fines_malformed_inputs_total",
			Help: "The total number of malformed upstream records reported.",
		}),
		ReconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fines_reconcile_duration_seconds",
			Help:    "The duration of individual reconciliation passes.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		SlackNotifSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fines_slack_notifications_sent_total",
			Help: "The total number of Slack notifications successfully sent.",
		}),
		SlackNotifFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fines_slack_notifications_failed_total",
			Help: "The total number of Slack notifications that failed to send.",
		}),
		StartupTimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fines_startup_duration_seconds",
			Help: "The duration of the application startup in seconds.",
		}),
	}

	reg.MustRegister(
		s.SyncRuns,
		s.FinesCreated,
		s.FinesSkipped,
		s.MalformedInputs,
		s.ReconcileDuration,
		s.SlackNotifSent,
		s.SlackNotifFailed,
		s.StartupTimeSeconds,
	)

	return s
}

func (s *Service) IncSyncRuns() {
	s.SyncRuns.Inc()
}

func (s *Service) IncFinesCreated(count int) {
	s.FinesCreated.Add(float64(count))
}

func (s *Service) IncFinesSkipped(count int) {
	s.FinesSkipped.Add(float64(count))
}

func (s *Service) IncMalformedInputs(count int) {
	s.MalformedInputs.Add(float64(count))
}

func (s *Service) ObserveReconcileDuration(duration float64) {
	s.ReconcileDuration.Observe(duration)
}

func (s *Service) IncSlackNotifSent() {
	s.SlackNotifSent.Inc()
}

func (s *Service) IncSlackNotifFailed() {
	s.SlackNotifFailed.Inc()
}

func (s *Service) SetStartupTime(duration float64) {
	s.StartupTimeSeconds.Set(duration)
}
