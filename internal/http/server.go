package http

import (
	"net/http"

	"github.com/linusjb/boedekassen/internal/config"
	"github.com/linusjb/boedekassen/internal/fines"
	"github.com/linusjb/boedekassen/internal/metrics"
	"github.com/linusjb/boedekassen/internal/notifier"
	"github.com/linusjb/boedekassen/internal/pubsub"
	"github.com/linusjb/boedekassen/internal/syncer"
	"github.com/linusjb/boedekassen/internal/team"
)

func NewServer(ledger fines.Ledger, teamStore team.Store, metricsSvc metrics.Metrics, metricsHandler http.Handler,
	cfg config.Config, notifier notifier.Notifier, sync syncer.Syncer, pubsub pubsub.PubSubClient) *Server {
	server := &Server{
		Ledger:         ledger,
		Team:           teamStore,
		Metrics:        metricsSvc,
		MetricsHandler: metricsHandler,
		Cfg:            cfg,
		Notifier:       notifier,
		Syncer:         sync,
		Router:         http.NewServeMux(),
		pubsub:         pubsub,
	}

	server.routes()
	return server
}

func (s *Server) routes() {
	// All handlers are wrapped with middleware using the Chain helper.
	// This makes it easy to add more middlewares in the future, like an authentication middleware.
	// e.g. Chain(s.MyHandler(), paramsMiddleware, authMiddleware)
	s.Router.Handle("/metrics", s.MetricsHandler)
	s.Router.Handle("/health", Chain(s.HealthCheckHandler(), paramsMiddleware))
	s.Router.Handle("/sync", Chain(s.SyncHandler(), paramsMiddleware))
	s.Router.Handle("/fines", Chain(s.ListFinesHandler(), paramsMiddleware))
	s.Router.Handle("/fines/pay", Chain(s.PayFineHandler(), paramsMiddleware))
	s.Router.Handle("/summary", Chain(s.SummaryHandler(), paramsMiddleware))
	s.Router.Handle("/members", Chain(s.ListMembersHandler(), paramsMiddleware))
	s.Router.Handle("/events", Chain(s.ListEventsHandler(), paramsMiddleware))
	s.Router.Handle("/syncs", Chain(s.ListSyncRunsHandler(), paramsMiddleware))
	s.Router.Handle("/export", Chain(s.ExportHandler(), paramsMiddleware))
	s.Router.Handle("/clear", Chain(s.ClearLedgerHandler(), paramsMiddleware))
	s.Router.Handle("/notify-fines", Chain(s.NotifyFinesHandler(), paramsMiddleware))
	s.Router.Handle("/slack/command/fines", Chain(s.FinesCommandHandler(), paramsMiddleware, s.slackVerificationMiddleware))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}
