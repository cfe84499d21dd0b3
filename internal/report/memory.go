package report

import (
	"sync"

	"github.com/rs/xid"
)

// MemoryReporter buffers every AttackReport it receives and, per
// spec.md §9's observed behavior, never latches: IsAttackDetected
// always reports false, so a Connection holding a MemoryReporter keeps
// running the hijack detector even after an attack has already been
// reported. This is what makes spec.md's S5 scenario ("a second
// report") reproducible in a test.
type MemoryReporter struct {
	mu      sync.Mutex
	reports []AttackReport
}

func NewMemoryReporter() *MemoryReporter {
	return &MemoryReporter{}
}

func (r *MemoryReporter) IsAttackDetected() bool {
	return false
}

func (r *MemoryReporter) ReportAttack(rpt AttackReport) {
	if rpt.ID == "" {
		rpt.ID = xid.New().String()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rpt)
}

// Reports returns a snapshot of every report received so far.
func (r *MemoryReporter) Reports() []AttackReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AttackReport, len(r.reports))
	copy(out, r.reports)
	return out
}
