// Package sensor implements the demultiplexer spec.md §6 describes:
// it turns a stream of decoded TCP packet.Manifests into per-flow
// connection.Connection state machines. Grounded on the teacher's
// ConnTracker (inquisition.go), generalized from its two-map
// client/server scheme to a single canonical-key map (see DESIGN.md).
package sensor

import (
	"go.uber.org/zap"

	"github.com/survived/detect-inj/internal/capture"
	"github.com/survived/detect-inj/internal/connection"
	"github.com/survived/detect-inj/internal/packet"
	"github.com/survived/detect-inj/internal/report"
)

var log = zap.L().Sugar().Named("sensor")

// ReporterFactory produces a fresh AttackReporter for a new
// Connection. Spec.md §6: "the options carry an AttackReporter factory
// output" — one reporter instance per Connection, never shared.
type ReporterFactory func() report.AttackReporter

// Options carries what the demultiplexer's Connection factory
// consumes: the reporter factory and the hijack-skip threshold
// (spec.md §6).
type Options struct {
	ReporterFactory          ReporterFactory
	SkipHijackDetectionCount uint64
}

// Demultiplexer holds the FlowKey->Connection mapping and dispatches
// each arriving packet per spec.md §6's contract.
type Demultiplexer struct {
	options     Options
	connections map[packet.FlowKey]*connection.Connection
}

// NewDemultiplexer returns an empty Demultiplexer.
func NewDemultiplexer(opts Options) *Demultiplexer {
	return &Demultiplexer{
		options:     opts,
		connections: make(map[packet.FlowKey]*connection.Connection),
	}
}

// Dispatch implements spec.md §6's demultiplexer contract: compute the
// canonical FlowKey, look it up, and either forward to the existing
// Connection or seed a new one.
func (d *Demultiplexer) Dispatch(m packet.Manifest) {
	canonical := packet.Canonical(packet.FlowKeyFromManifest(&m))

	if conn, ok := d.connections[canonical]; ok {
		conn.ReceivePacket(m)
		return
	}

	conn := connection.FromPacket(m, connection.Options{
		Reporter:                 d.options.ReporterFactory(),
		SkipHijackDetectionCount: d.options.SkipHijackDetectionCount,
	})
	d.connections[canonical] = conn
}

// Len returns the number of tracked connections.
func (d *Demultiplexer) Len() int {
	return len(d.connections)
}

// Run pulls frames from src until it returns an error, dispatching
// every TCP frame and logging non-TCP frames at debug level. Mirrors
// the teacher's dispatchPackets loop (inquisition.go /
// packetSource/service.go), collapsed into a single blocking call
// since this implementation has no connection-eviction timers to
// interleave with (spec.md explicitly excludes eviction policy).
func (d *Demultiplexer) Run(src capture.Source) error {
	for {
		frame, err := src.Next()
		if err != nil {
			return err
		}
		if !frame.IsTCP {
			log.Debugw("filtered out non-TCP frame", "bytes", len(frame.FilteredOut))
			continue
		}
		d.Dispatch(frame.Manifest)
	}
}
