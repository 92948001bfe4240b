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

type Server struct {
	Ledger         fines.Ledger
	Team           team.Store
	Metrics        metrics.Metrics
	MetricsHandler http.Handler
	Cfg            config.Config
	Notifier       notifier.Notifier
	Syncer         syncer.Syncer
	Router         *http.ServeMux
	pubsub         pubsub.PubSubClient
}
