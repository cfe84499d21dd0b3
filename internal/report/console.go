package report

import (
	"fmt"
	"os"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/rs/xid"
	"go.uber.org/zap"
)

var consoleLog = zap.L().Sugar().Named("report.console")

// ConsoleReporter is the default AttackReporter: it writes a
// debug-formatted line to standard error (spec.md §6: "writes a
// debug-formatted line to standard error") and latches once it has
// reported anything, matching the teacher's AttackLogger, which closes
// over a single log destination for the lifetime of a Connection.
type ConsoleReporter struct {
	mu       sync.Mutex
	detected bool
}

// NewConsoleReporter returns a ConsoleReporter. One instance must be
// created per Connection (spec.md: "no two Connections share a
// reporter instance").
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{}
}

func (r *ConsoleReporter) IsAttackDetected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detected
}

func (r *ConsoleReporter) ReportAttack(rpt AttackReport) {
	if rpt.ID == "" {
		rpt.ID = xid.New().String()
	}

	r.mu.Lock()
	r.detected = true
	r.mu.Unlock()

	consoleLog.Warnw("attack detected", "kind", rpt.Kind.String(), "flow", rpt.Flow.String(), "report_id", rpt.ID)
	fmt.Fprintln(os.Stderr, spew.Sdump(rpt))
}
