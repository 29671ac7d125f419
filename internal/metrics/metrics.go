// Package metrics exports cache events as Prometheus counters.
package metrics

import (
	"github.com/aristath/fincache/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fincache"

// Prometheus implements cache.Metrics.
type Prometheus struct {
	lookups      *prometheus.CounterVec
	fetchErrors  prometheus.Counter
	storeErrors  *prometheus.CounterVec
	compressions *prometheus.CounterVec
}

// New registers the cache counters with reg.
func New(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)
	return &Prometheus{
		lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Cache lookups by outcome (hit, miss, stale)",
		}, []string{"outcome"}),
		fetchErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Foreground upstream fetch failures",
		}),
		storeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Storage backend failures by operation",
		}, []string{"op"}),
		compressions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compressions_total",
			Help:      "Records compacted before storage, by tier",
		}, []string{"tier"}),
	}
}

func (p *Prometheus) Hit()         { p.lookups.WithLabelValues("hit").Inc() }
func (p *Prometheus) Miss()        { p.lookups.WithLabelValues("miss").Inc() }
func (p *Prometheus) StaleServed() { p.lookups.WithLabelValues("stale").Inc() }
func (p *Prometheus) FetchError()  { p.fetchErrors.Inc() }

func (p *Prometheus) StoreError(op string) {
	p.storeErrors.WithLabelValues(op).Inc()
}

func (p *Prometheus) Compression(tier domain.CompressionTier) {
	p.compressions.WithLabelValues(tier.String()).Inc()
}
