// Package metrics exposes Prometheus counters for analyses, document storage
// and legacy migrations.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starford/cvdesk/internal/blobstore"
	"github.com/starford/cvdesk/internal/models"
)

const namespace = "cvdesk"

// Metrics holds the application collectors on a private registry.
type Metrics struct {
	registry   *prometheus.Registry
	analyses   *prometheus.CounterVec
	storeOps   *prometheus.CounterVec
	migrations *prometheus.CounterVec
	ledgerSize prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Resume analyses by outcome.",
		}, []string{"outcome"}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_store_operations_total",
			Help:      "Document store operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_resolutions_total",
			Help:      "Record document resolutions by outcome.",
		}, []string{"outcome"}),
		ledgerSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_records",
			Help:      "Records currently kept in the history.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.analyses, m.storeOps, m.migrations, m.ledgerSize,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Analysis counts one submission outcome.
func (m *Metrics) Analysis(outcome string) {
	m.analyses.WithLabelValues(outcome).Inc()
}

// Resolution counts one document resolution outcome.
func (m *Metrics) Resolution(outcome string) {
	m.migrations.WithLabelValues(outcome).Inc()
}

// HistorySize records the current number of history records.
func (m *Metrics) HistorySize(n int) {
	m.ledgerSize.Set(float64(n))
}

// InstrumentStore counts the operations of store.
func (m *Metrics) InstrumentStore(store blobstore.Store) blobstore.Store {
	return &instrumentedStore{next: store, ops: m.storeOps}
}

type instrumentedStore struct {
	next blobstore.Store
	ops  *prometheus.CounterVec
}

func (s *instrumentedStore) Put(ctx context.Context, id string, doc *models.Document) error {
	err := s.next.Put(ctx, id, doc)
	s.ops.WithLabelValues("put", outcome(err, true)).Inc()
	return err
}

func (s *instrumentedStore) Get(ctx context.Context, id string) (*models.Document, bool, error) {
	doc, ok, err := s.next.Get(ctx, id)
	s.ops.WithLabelValues("get", outcome(err, ok)).Inc()
	return doc, ok, err
}

func (s *instrumentedStore) Delete(ctx context.Context, id string) error {
	err := s.next.Delete(ctx, id)
	s.ops.WithLabelValues("delete", outcome(err, true)).Inc()
	return err
}

func outcome(err error, found bool) string {
	switch {
	case err != nil:
		return "error"
	case !found:
		return "absent"
	}
	return "ok"
}
