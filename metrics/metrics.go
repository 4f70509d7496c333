package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the counters emitted by the session and its collaborators.
type Metrics struct {
	CatalogImports *prometheus.CounterVec
	Autosaves      *prometheus.CounterVec
	Transitions    *prometheus.CounterVec
	DriftNotices   *prometheus.CounterVec
	ArchiveWrites  *prometheus.CounterVec
}

// New registers the counters on reg. Passing a fresh registry keeps tests
// isolated from the default one.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CatalogImports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emtrack",
			Name:      "catalog_imports_total",
			Help:      "Catalog imports by result.",
		}, []string{"result"}),
		Autosaves: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emtrack",
			Name:      "autosaves_total",
			Help:      "Autosave attempts by result.",
		}, []string{"result"}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emtrack",
			Name:      "lifecycle_transitions_total",
			Help:      "Request lifecycle transitions.",
		}, []string{"transition", "trigger"}),
		DriftNotices: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emtrack",
			Name:      "drift_notices_total",
			Help:      "References missing from the current catalog, by kind.",
		}, []string{"kind"}),
		ArchiveWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emtrack",
			Name:      "archive_writes_total",
			Help:      "Remote archive writes by result.",
		}, []string{"result"}),
	}
}

// Nop returns metrics bound to a throwaway registry.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

func Result(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}
