// Package report defines the attack-reporting sink the core detectors
// write to (AttackReporter) and the AttackReport variants they emit.
// The teacher's equivalent is inquisition.go's AttackLogger; this
// package generalizes it to an open variant set and adds the sink
// implementations a runnable sensor needs (console, Prometheus,
// in-memory).
package report

import (
	"time"

	"github.com/survived/detect-inj/internal/packet"
	"github.com/survived/detect-inj/internal/seqnum"
)

// Kind distinguishes AttackReport variants. The set is open: spec.md
// names HandshakeHijack as the only inhabited variant and says
// additional kinds are anticipated; SegmentInjection is this
// expansion's addition (see DESIGN.md).
type Kind int

const (
	HandshakeHijack Kind = iota
	SegmentInjection
)

func (k Kind) String() string {
	switch k {
	case HandshakeHijack:
		return "handshake_hijack"
	case SegmentInjection:
		return "segment_injection"
	default:
		return "unknown"
	}
}

// AttackReport is a tagged union of detected attacks. Only the fields
// relevant to Kind are meaningful.
type AttackReport struct {
	ID          string
	Kind        Kind
	Time        time.Time
	PacketCount uint64
	Flow        packet.FlowKey

	// HandshakeHijack fields.
	HijackSeq seqnum.Sequence
	HijackAck seqnum.Sequence

	// SegmentInjection fields.
	Winner []byte
	Loser  []byte
	Range  seqnum.Range
}

// AttackReporter is the sink every Connection owns exclusively (spec.md
// §3, §4.3, §6: "no two Connections share a reporter instance").
// IsAttackDetected lets a Connection suppress further hijack reports
// once latched; ReportAttack does the latching. Ownership of the latch
// (Connection vs. reporter) is an open question spec.md §9 leaves to
// the implementer — this package puts it on the reporter, matching the
// default console reporter's observed behavior, while the in-memory
// test reporter deliberately does not latch (see MemoryReporter).
type AttackReporter interface {
	IsAttackDetected() bool
	ReportAttack(AttackReport)
}
