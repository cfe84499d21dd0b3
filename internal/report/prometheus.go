package report

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/xid"
)

var attacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "detectinj_attacks_total",
	Help: "Total attacks detected by the sensor, labeled by kind.",
}, []string{"kind"})

// PrometheusReporter is an AttackReporter backed by a
// detectinj_attacks_total counter vector, grounded on m-lab/etl's
// metrics.go and runZeroInc/conniver's prometheus wiring: it acts as
// the "upstream collector" sink spec.md §6 anticipates without
// naming. It latches like ConsoleReporter — it is meant to be wrapped
// around, not in place of, a reporter that also surfaces individual
// reports.
type PrometheusReporter struct {
	mu       sync.Mutex
	detected bool
}

func NewPrometheusReporter() *PrometheusReporter {
	return &PrometheusReporter{}
}

func (r *PrometheusReporter) IsAttackDetected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detected
}

func (r *PrometheusReporter) ReportAttack(rpt AttackReport) {
	if rpt.ID == "" {
		rpt.ID = xid.New().String()
	}

	r.mu.Lock()
	r.detected = true
	r.mu.Unlock()

	attacksTotal.WithLabelValues(rpt.Kind.String()).Inc()
}

// MultiReporter fans a single report out to several AttackReporters,
// e.g. console plus Prometheus, and is considered latched only once
// every delegate is.
type MultiReporter struct {
	reporters []AttackReporter
}

func NewMultiReporter(reporters ...AttackReporter) *MultiReporter {
	return &MultiReporter{reporters: reporters}
}

func (m *MultiReporter) IsAttackDetected() bool {
	for _, r := range m.reporters {
		if !r.IsAttackDetected() {
			return false
		}
	}
	return len(m.reporters) > 0
}

func (m *MultiReporter) ReportAttack(rpt AttackReport) {
	for _, r := range m.reporters {
		r.ReportAttack(rpt)
	}
}
