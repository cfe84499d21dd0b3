package capture

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/survived/detect-inj/internal/packet"
	"github.com/survived/detect-inj/internal/seqnum"
)

// frameDecoder wraps a gopacket.DecodingLayerParser over
// Ethernet/IPv4/IPv6/TCP and turns a raw frame into a Frame. It holds
// no handle, so it's exercised directly in tests without a live
// capture.
type frameDecoder struct {
	eth     layers.Ethernet
	ip4     layers.IPv4
	ip6     layers.IPv6
	tcp     layers.TCP
	payload gopacket.Payload
	parser  *gopacket.DecodingLayerParser
	decoded []gopacket.LayerType
}

func newFrameDecoder() *frameDecoder {
	d := &frameDecoder{decoded: make([]gopacket.LayerType, 0, 4)}
	d.parser = gopacket.NewDecodingLayerParser(
		layers.LayerTypeEthernet,
		&d.eth, &d.ip4, &d.ip6, &d.tcp, &d.payload,
	)
	d.parser.IgnoreUnsupported = true
	return d
}

// decode parses data in place, reusing the decoder's layer buffers —
// the returned Frame's Manifest.Payload borrows from those buffers and
// must be consumed or Cloned before the next decode call.
func (d *frameDecoder) decode(data []byte) (Frame, error) {
	if err := d.parser.DecodeLayers(data, &d.decoded); err != nil {
		return Frame{}, err
	}

	if !d.sawTCP() {
		return Frame{IsTCP: false, FilteredOut: data}, nil
	}

	return Frame{IsTCP: true, Manifest: d.manifest()}, nil
}

func (d *frameDecoder) sawTCP() bool {
	for _, lt := range d.decoded {
		if lt == layers.LayerTypeTCP {
			return true
		}
	}
	return false
}

func (d *frameDecoder) manifest() packet.Manifest {
	srcIP, dstIP := d.networkAddrs()

	return packet.Manifest{
		IP: packet.IPLayer{SrcIP: srcIP, DstIP: dstIP},
		TCP: packet.TCPLayer{
			SrcPort: uint16(d.tcp.SrcPort),
			DstPort: uint16(d.tcp.DstPort),
			Seq:     seqnum.Sequence(d.tcp.Seq),
			Ack:     seqnum.Sequence(d.tcp.Ack),
			Flags: packet.TCPFlags{
				SYN: d.tcp.SYN,
				ACK: d.tcp.ACK,
				FIN: d.tcp.FIN,
				RST: d.tcp.RST,
			},
		},
		Payload: packet.Borrow([]byte(d.payload)),
	}
}

func (d *frameDecoder) networkAddrs() (src, dst net.IP) {
	for _, lt := range d.decoded {
		if lt == layers.LayerTypeIPv4 {
			return d.ip4.SrcIP, d.ip4.DstIP
		}
		if lt == layers.LayerTypeIPv6 {
			return d.ip6.SrcIP, d.ip6.DstIP
		}
	}
	return nil, nil
}
