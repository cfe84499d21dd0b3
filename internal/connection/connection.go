// Package connection implements the per-flow TCP state machine:
// handshake tracking, the handshake-hijack detector, and (this
// expansion's addition) the DataTransfer-to-OrderedCoalesce handoff
// that surfaces segment-injection attacks. Grounded line-for-line on
// the teacher's stateListen/stateConnectionRequest/
// stateConnectionEstablished/stateDataTransfer/detectHijack
// (inquisition.go) and on original_source/src/connection_state.rs,
// which has the same state machine with the same field names.
package connection

import (
	"time"

	"github.com/survived/detect-inj/internal/coalesce"
	"github.com/survived/detect-inj/internal/packet"
	"github.com/survived/detect-inj/internal/report"
	"github.com/survived/detect-inj/internal/seqnum"
)

// TCPState mirrors spec.md §3's TcpState enum.
type TCPState int

const (
	ConnectionRequest TCPState = iota
	ConnectionEstablished
	DataTransfer
	ConnectionClosing
	Invalid
	Closed
)

func (s TCPState) String() string {
	switch s {
	case ConnectionRequest:
		return "connection_request"
	case ConnectionEstablished:
		return "connection_established"
	case DataTransfer:
		return "data_transfer"
	case ConnectionClosing:
		return "connection_closing"
	case Invalid:
		return "invalid"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// ClosingInitiatorState and ClosingEffectorState name the half-states
// of a FIN/RST teardown. Declared per spec.md §3 and §9 ("do not
// invent FIN/RST semantics") — nothing in this package ever produces
// a ConnectionClosing state, so these never appear in practice.
type ClosingInitiatorState int

const (
	FinWait1 ClosingInitiatorState = iota
	FinWait2
	TimeWait
	Closing
)

type ClosingEffectorState int

const (
	CloseWait ClosingEffectorState = iota
	LastAck
)

// ClosingSubstate is the payload TCPState == ConnectionClosing would
// carry, had teardown been implemented.
type ClosingSubstate struct {
	Initiator      packet.Side
	InitiatorState ClosingInitiatorState
	EffectorState  ClosingEffectorState
}

// Options bundles what FromPacket needs beyond the triggering packet.
// Grounded on original_source/src/connection_state.rs's
// ConnectionOptions.
type Options struct {
	Reporter                 report.AttackReporter
	SkipHijackDetectionCount uint64
}

// Connection is a single TCP flow's state machine. It is mutated only
// through ReceivePacket and is not safe for concurrent use — spec.md
// §4.3 requires packets to be applied in the order the capture
// collaborator delivered them, and nothing here synchronizes across
// calls.
type Connection struct {
	sideID                   packet.SideIdentifier
	packetCount              uint64
	skipHijackDetectionCount uint64
	hijackNextAck            seqnum.Sequence
	state                    TCPState
	closing                  ClosingSubstate

	clientNextSeq  seqnum.Sequence
	serverNextSeq  *seqnum.Sequence
	firstSynAckSeq *seqnum.Sequence

	reporter report.AttackReporter

	clientSegments *coalesce.OrderedCoalesce
	serverSegments *coalesce.OrderedCoalesce
}

// FromPacket seeds a Connection from the first packet the
// demultiplexer ever routes to its flow, per spec.md §4.3.
func FromPacket(initial packet.Manifest, opts Options) *Connection {
	clientFlow := packet.FlowKeyFromManifest(&initial)

	isInitial := initial.TCP.Flags.SYN && !initial.TCP.Flags.ACK
	isClosing := !isInitial && (initial.TCP.Flags.FIN || initial.TCP.Flags.RST)

	// A bare SYN consumes one sequence number of its own, on top of
	// any (rare, extension-carried) payload bytes — matches
	// inquisition.go's stateListen, which applies the same "+1".
	consumed := uint32(initial.Payload.Len())
	if isInitial {
		consumed++
	}
	clientNextSeq := initial.TCP.Seq.Add(consumed)

	c := &Connection{
		sideID:         packet.NewSideIdentifier(clientFlow),
		packetCount:    1,
		clientNextSeq:  clientNextSeq,
		reporter:       opts.Reporter,
		clientSegments: coalesce.New(),
		serverSegments: coalesce.New(),
	}

	switch {
	case isInitial:
		c.state = ConnectionRequest
		c.hijackNextAck = clientNextSeq
		c.skipHijackDetectionCount = opts.SkipHijackDetectionCount
	case isClosing:
		c.state = Closed
	default:
		c.state = DataTransfer
	}

	return c
}

// State returns the Connection's current TcpState.
func (c *Connection) State() TCPState { return c.state }

// ReceivePacket is the only mutator spec.md's Connection exposes.
func (c *Connection) ReceivePacket(p packet.Manifest) {
	c.packetCount++

	switch c.state {
	case ConnectionRequest:
		c.stateConnectionRequest(p)
	case ConnectionEstablished:
		c.stateConnectionEstablished(p)
	case DataTransfer:
		c.stateDataTransfer(p)
	case ConnectionClosing, Closed, Invalid:
		// declared, transitions out of scope (spec.md §4.3, §9)
	}
}

// stateConnectionRequest expects a SYN+ACK from the server whose ack
// matches clientNextSeq. Any deviation is a silent handshake anomaly.
func (c *Connection) stateConnectionRequest(p packet.Manifest) {
	if c.sideID.Identify(&p) != packet.Server {
		return
	}
	if !(p.TCP.Flags.SYN && p.TCP.Flags.ACK) {
		return
	}
	if p.TCP.Ack != c.clientNextSeq {
		return
	}

	c.state = ConnectionEstablished
	serverNextSeq := p.TCP.Seq.Add(uint32(p.Payload.Len()) + 1)
	c.serverNextSeq = &serverNextSeq
	firstSynAckSeq := p.TCP.Seq
	c.firstSynAckSeq = &firstSynAckSeq
}

// stateConnectionEstablished runs the hijack detector, then expects
// the client's final handshake ACK.
func (c *Connection) stateConnectionEstablished(p packet.Manifest) {
	if !c.reporter.IsAttackDetected() {
		if rpt, hijacked := c.detectHijack(p); hijacked {
			c.reporter.ReportAttack(rpt)
		}
	}

	if c.sideID.Identify(&p) != packet.Client {
		return
	}
	if p.TCP.Flags.SYN || !p.TCP.Flags.ACK {
		return
	}
	if p.TCP.Seq != c.clientNextSeq {
		return
	}
	if c.serverNextSeq == nil || p.TCP.Ack != *c.serverNextSeq {
		return
	}

	c.state = DataTransfer
}

// stateDataTransfer runs the (armed-by-threshold) hijack detector and
// hands non-empty payloads off to the sending side's OrderedCoalesce.
func (c *Connection) stateDataTransfer(p packet.Manifest) {
	side := c.sideID.Identify(&p)

	if c.serverNextSeq == nil && side == packet.Server {
		seq := p.TCP.Seq
		c.serverNextSeq = &seq
	}

	if c.packetCount < c.skipHijackDetectionCount && !c.reporter.IsAttackDetected() {
		if rpt, hijacked := c.detectHijack(p); hijacked {
			c.reporter.ReportAttack(rpt)
		}
	}

	c.coalesceAndReport(p, side)
}

// coalesceAndReport hands p to the sending side's OrderedCoalesce and
// surfaces any overlap as a SegmentInjection report. This is the
// DataTransfer-to-OrderedCoalesce wiring spec.md §4.3/§9 calls "a
// known open wiring point" and SPEC_FULL.md §5 implements.
func (c *Connection) coalesceAndReport(p packet.Manifest, side packet.Side) {
	if p.Payload.Len() == 0 {
		return
	}

	store := c.serverSegments
	if side == packet.Client {
		store = c.clientSegments
	}

	flow := packet.FlowKeyFromManifest(&p)
	for _, block := range store.Insert(p) {
		c.reporter.ReportAttack(report.AttackReport{
			Kind:        report.SegmentInjection,
			Time:        time.Now(),
			PacketCount: c.packetCount,
			Flow:        flow,
			Winner:      block.Winner,
			Loser:       block.Loser,
			Range:       block.Range,
		})
	}
}

// detectHijack implements spec.md §4.4. The seq-vs-ack ambiguity
// spec.md §9 flags is resolved in favor of Ack (see DESIGN.md):
// condition 3 compares the packet's acknowledgement number, not its
// sequence number, against hijackNextAck.
func (c *Connection) detectHijack(p packet.Manifest) (report.AttackReport, bool) {
	if c.sideID.Identify(&p) != packet.Server {
		return report.AttackReport{}, false
	}
	if !(p.TCP.Flags.SYN && p.TCP.Flags.ACK) {
		return report.AttackReport{}, false
	}
	if p.TCP.Ack != c.hijackNextAck {
		return report.AttackReport{}, false
	}
	if c.firstSynAckSeq != nil && p.TCP.Seq == *c.firstSynAckSeq {
		return report.AttackReport{}, false
	}

	return report.AttackReport{
		Kind:        report.HandshakeHijack,
		Time:        time.Now(),
		PacketCount: c.packetCount,
		Flow:        packet.FlowKeyFromManifest(&p),
		HijackSeq:   p.TCP.Seq,
		HijackAck:   p.TCP.Ack,
	}, true
}
