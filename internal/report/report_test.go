package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReporterNeverLatches(t *testing.T) {
	r := NewMemoryReporter()
	assert.False(t, r.IsAttackDetected())

	r.ReportAttack(AttackReport{Kind: HandshakeHijack})
	assert.False(t, r.IsAttackDetected(), "memory reporter must not latch, per the observed S5 behavior")

	r.ReportAttack(AttackReport{Kind: HandshakeHijack})
	require.Len(t, r.Reports(), 2)
}

func TestConsoleReporterLatches(t *testing.T) {
	r := NewConsoleReporter()
	assert.False(t, r.IsAttackDetected())

	r.ReportAttack(AttackReport{Kind: HandshakeHijack})
	assert.True(t, r.IsAttackDetected())
}

func TestMultiReporterLatchesOnlyWhenAllDelegatesDo(t *testing.T) {
	console := NewConsoleReporter()
	memory := NewMemoryReporter()
	m := NewMultiReporter(console, memory)

	assert.False(t, m.IsAttackDetected())
	m.ReportAttack(AttackReport{Kind: SegmentInjection})

	assert.True(t, console.IsAttackDetected())
	assert.False(t, memory.IsAttackDetected())
	assert.False(t, m.IsAttackDetected(), "memory delegate never latches, so the fan-out never reports latched")
}

func TestReportAttackAssignsAnIDWhenMissing(t *testing.T) {
	r := NewMemoryReporter()
	r.ReportAttack(AttackReport{Kind: HandshakeHijack})
	assert.NotEmpty(t, r.Reports()[0].ID)
}
