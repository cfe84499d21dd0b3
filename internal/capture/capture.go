// Package capture implements the blocking frame source spec.md §6
// calls the "capture collaborator": live capture via
// github.com/google/gopacket/pcap, decode into a packet.Manifest via
// github.com/google/gopacket/layers, and a transparent relay of every
// frame back out onto the interface it was read from.
//
// Grounded on the modern HoneyBadger fork's packetSource.decodePackets
// (gopacket.NewDecodingLayerParser over Ethernet/IPv4/TCP) and on
// original_source/src/tcp_iterator.rs's TcpIterator::next, which
// relays every frame via build_and_send and returns Packet::FilteredOut
// for anything that doesn't parse as TCP.
package capture

import (
	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/survived/detect-inj/internal/packet"
)

var log = zap.L().Sugar().Named("capture")

// Frame is the result of one Source.Next call: either a decoded TCP
// Manifest, or an indication that the frame was not TCP.
type Frame struct {
	Manifest    packet.Manifest
	IsTCP       bool
	FilteredOut []byte
}

// Source is the capture collaborator's contract: a blocking Next that
// yields decoded frames until the underlying handle is closed or
// fails. Its Manifest payload borrows Source's internal buffer — per
// spec.md §5, callers must fully process it, or Clone it, before the
// next Next call.
type Source interface {
	Next() (Frame, error)
	Close()
}

// Options configures a PcapSource.
type Options struct {
	Interface string
	Snaplen   int32
	Filter    string
	Promisc   bool
}

// PcapSource is a live-capture Source backed by libpcap, with frame
// relay back onto the interface (spec.md §6: "the source acts as a
// transparent relay").
type PcapSource struct {
	handle  *pcap.Handle
	decoder *frameDecoder
}

// Open starts a live capture on opts.Interface. Returns an error
// (wrapped via github.com/pkg/errors) on any OS-level capture failure
// — opening the handle or installing the BPF filter — matching
// spec.md §7's "Capture failure (surfaced)".
func Open(opts Options) (*PcapSource, error) {
	snaplen := opts.Snaplen
	if snaplen == 0 {
		snaplen = 65535
	}

	handle, err := pcap.OpenLive(opts.Interface, snaplen, opts.Promisc, pcap.BlockForever)
	if err != nil {
		return nil, errors.Wrapf(err, "capture: open interface %q", opts.Interface)
	}

	if opts.Filter != "" {
		if err := handle.SetBPFFilter(opts.Filter); err != nil {
			handle.Close()
			return nil, errors.Wrapf(err, "capture: set BPF filter %q", opts.Filter)
		}
	}

	return &PcapSource{handle: handle, decoder: newFrameDecoder()}, nil
}

// Next blocks until a frame is available, decodes it, and relays it
// back onto the interface. Non-TCP frames are reported via
// Frame.IsTCP == false, matching original_source's Packet::FilteredOut.
func (s *PcapSource) Next() (Frame, error) {
	for {
		data, _, err := s.handle.ReadPacketData()
		if err == pcap.NextErrorTimeoutExpired {
			continue
		}
		if err != nil {
			return Frame{}, errors.Wrap(err, "capture: read packet")
		}

		if err := s.handle.WritePacketData(data); err != nil {
			log.Warnw("frame relay failed", "error", err)
		}

		frame, err := s.decoder.decode(data)
		if err != nil {
			log.Debugw("unparseable frame, skipping", "error", err)
			continue
		}

		return frame, nil
	}
}

// Close releases the underlying pcap handle.
func (s *PcapSource) Close() {
	s.handle.Close()
}
