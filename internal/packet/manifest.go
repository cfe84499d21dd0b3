// Package packet holds the normalized packet representation the core
// detectors operate on (Manifest), the flow-identity types used to tell
// client from server (FlowKey, SideIdentifier), and the payload view
// duality (Payload) that lets the fast path stay allocation-free while
// the reassembly buffer stores owned copies.
//
// Decoding raw Ethernet/IP/TCP frames into a Manifest is the capture
// collaborator's job (internal/capture) — this package never looks at
// wire bytes beyond the payload it is handed.
package packet

import (
	"fmt"
	"net"

	"github.com/survived/detect-inj/internal/seqnum"
)

// TCPFlags records the four flags the core state machine consults.
// Other TCP flags (URG, PSH, ECE, CWR...) are not modeled.
type TCPFlags struct {
	SYN bool
	ACK bool
	FIN bool
	RST bool
}

// IPLayer is the source/destination pair of an IPv4 or IPv6 packet.
type IPLayer struct {
	SrcIP net.IP
	DstIP net.IP
}

// TCPLayer is the normalized TCP header fields the core cares about.
type TCPLayer struct {
	SrcPort uint16
	DstPort uint16
	Seq     seqnum.Sequence
	Ack     seqnum.Sequence
	Flags   TCPFlags
}

// Manifest is a decoded packet: IP header, TCP header, and a payload
// view. It is the unit of work passed into the demultiplexer, the
// per-connection state machine, and the coalescing buffer.
type Manifest struct {
	IP      IPLayer
	TCP     TCPLayer
	Payload Payload
}

// SplitOff splits the receiver at sequence number seq (inclusive to the
// returned half). The receiver is mutated in place to hold the left
// half [TCP.Seq, seq); the returned Manifest holds the right half
// [seq, TCP.Seq+len(Payload)) with TCP.Seq rewritten to seq. The IPLayer
// and the rest of TCPLayer are copied unchanged into the right half —
// this split is for payload-range bookkeeping inside OrderedCoalesce,
// not re-emission onto the wire.
//
// Panics if seq falls strictly outside [TCP.Seq, TCP.Seq+len(Payload)];
// equality at either endpoint is allowed and yields an empty half.
func (m *Manifest) SplitOff(seq seqnum.Sequence) Manifest {
	offset := seq.Diff(m.TCP.Seq)
	n := int64(m.Payload.Len())
	if offset < 0 || offset > n {
		panic(fmt.Sprintf("packet: split point %s outside [%s, %s]", seq, m.TCP.Seq, m.TCP.Seq.Add(uint32(n))))
	}

	right := Manifest{
		IP:      m.IP,
		TCP:     m.TCP,
		Payload: m.Payload.slice(int(offset), int(n)),
	}
	right.TCP.Seq = seq

	m.Payload = m.Payload.slice(0, int(offset))

	return right
}

// SeqRange returns the inclusive sequence range spanned by the payload.
// Panics if the payload is empty — callers (coalesce.Insert) must guard
// against empty payloads before calling this.
func (m *Manifest) SeqRange() seqnum.Range {
	n := m.Payload.Len()
	if n == 0 {
		panic("packet: SeqRange of an empty-payload manifest is undefined")
	}
	return seqnum.NewRange(m.TCP.Seq, m.TCP.Seq.Add(uint32(n-1)))
}
