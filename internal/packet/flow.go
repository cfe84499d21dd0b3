package packet

import "fmt"

// Endpoint is one half of a flow: an IP address and a port. IPs are kept
// as their string form so FlowKey stays comparable and usable as a map
// key (net.IP is a []byte and isn't).
type Endpoint struct {
	IP   string
	Port uint16
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.IP, e.Port)
}

// FlowKey is an ordered 4-tuple identifying one direction of a TCP
// conversation.
type FlowKey struct {
	Src Endpoint
	Dst Endpoint
}

// FlowKeyFromManifest derives the FlowKey for a packet as observed,
// i.e. (source -> destination) exactly as the packet travelled.
func FlowKeyFromManifest(m *Manifest) FlowKey {
	return FlowKey{
		Src: Endpoint{IP: m.IP.SrcIP.String(), Port: m.TCP.SrcPort},
		Dst: Endpoint{IP: m.IP.DstIP.String(), Port: m.TCP.DstPort},
	}
}

// Reverse swaps the two endpoints, yielding the FlowKey of the opposite
// direction of the same conversation.
func (f FlowKey) Reverse() FlowKey {
	return FlowKey{Src: f.Dst, Dst: f.Src}
}

func (f FlowKey) String() string {
	return fmt.Sprintf("%s->%s", f.Src, f.Dst)
}

// less is an arbitrary but total order over FlowKey, used only to pick a
// canonical direction (Canonical below) — it carries no protocol meaning.
func (f FlowKey) less(other FlowKey) bool {
	if f.Src.IP != other.Src.IP {
		return f.Src.IP < other.Src.IP
	}
	if f.Src.Port != other.Src.Port {
		return f.Src.Port < other.Src.Port
	}
	if f.Dst.IP != other.Dst.IP {
		return f.Dst.IP < other.Dst.IP
	}
	return f.Dst.Port < other.Dst.Port
}

// Canonical returns the pairwise minimum of f and f.Reverse(), so both
// directions of a conversation normalize to the same key.
func Canonical(f FlowKey) FlowKey {
	r := f.Reverse()
	if r.less(f) {
		return r
	}
	return f
}

// Side identifies which endpoint of a Connection sent a given packet.
type Side int

const (
	// Client is whichever side sent the first packet this sensor
	// observed for the connection (the initial SYN, when the handshake
	// was captured).
	Client Side = iota
	Server
)

func (s Side) String() string {
	if s == Client {
		return "client"
	}
	return "server"
}

// SideIdentifier remembers a connection's client-side flow (and its
// reverse, the server-side flow) so that subsequent packets can be
// classified as belonging to one side or the other.
type SideIdentifier struct {
	clientFlow FlowKey
	serverFlow FlowKey
}

// NewSideIdentifier seeds a SideIdentifier from the flow of the first
// packet observed from the client.
func NewSideIdentifier(clientFlow FlowKey) SideIdentifier {
	return SideIdentifier{
		clientFlow: clientFlow,
		serverFlow: clientFlow.Reverse(),
	}
}

// ClientFlow returns the flow as seen from the client.
func (s SideIdentifier) ClientFlow() FlowKey { return s.clientFlow }

// ServerFlow returns the flow as seen from the server (the reverse of
// ClientFlow).
func (s SideIdentifier) ServerFlow() FlowKey { return s.serverFlow }

// Identify reports which side sent m. It panics if m's flow matches
// neither the client nor the server flow: the demultiplexer's
// canonicalization guarantees every packet handed to a Connection
// belongs to that Connection's flow, so reaching the panic here is a
// caller bug, not a data-plane anomaly.
func (s SideIdentifier) Identify(m *Manifest) Side {
	flow := FlowKeyFromManifest(m)
	switch flow {
	case s.clientFlow:
		return Client
	case s.serverFlow:
		return Server
	default:
		panic(fmt.Sprintf("packet: unknown packet sender %s (client=%s server=%s)", flow, s.clientFlow, s.serverFlow))
	}
}
