package syncer

import (
	"sync"

	"github.com/linusjb/boedekassen/internal/fines"
	"github.com/linusjb/boedekassen/internal/metrics"
	"github.com/linusjb/boedekassen/internal/notifier"
	"github.com/linusjb/boedekassen/internal/policy"
	"github.com/linusjb/boedekassen/internal/pubsub"
	"github.com/linusjb/boedekassen/internal/reconcile"
	"github.com/linusjb/boedekassen/internal/spond"
	"github.com/linusjb/boedekassen/internal/team"
)

// Syncer triggers a reconciliation pass over a time window.
type Syncer interface {
	Sync(daysBack int, dryRun bool) (*reconcile.Result, error)
}

// Service wires the attendance source, the engine and the ledger into one
// sync operation. The mutex serializes overlapping sync triggers, the
// ledger's uniqueness index backstops anything that slips through.
type Service struct {
	source   spond.Client
	team     team.Store
	ledger   fines.Ledger
	engine   *reconcile.Engine
	policy   policy.Policy
	notifier notifier.Notifier
	metrics  metrics.Metrics
	pubsub   pubsub.PubSubClient
	groupID  string

	mu  sync.Mutex
	now func() int64
}
