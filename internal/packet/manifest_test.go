package packet

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/survived/detect-inj/internal/seqnum"
)

func tcpManifest(seq uint32, payload []byte) Manifest {
	return Manifest{
		IP: IPLayer{
			SrcIP: net.ParseIP("10.0.0.1"),
			DstIP: net.ParseIP("10.0.0.2"),
		},
		TCP: TCPLayer{
			SrcPort: 1234,
			DstPort: 80,
			Seq:     seqnum.Sequence(seq),
		},
		Payload: Borrow(payload),
	}
}

func TestSplitOffRoundTrip(t *testing.T) {
	payload := []byte{66, 67, 68, 69, 70, 71, 72, 73, 74, 75, 76, 77}
	m := tcpManifest(10, payload)

	right := m.SplitOff(seqnum.Sequence(15))

	assert.Equal(t, seqnum.Sequence(10), m.TCP.Seq)
	assert.Equal(t, []byte{66, 67, 68, 69, 70}, m.Payload.Bytes())

	assert.Equal(t, seqnum.Sequence(15), right.TCP.Seq)
	assert.Equal(t, []byte{71, 72, 73, 74, 75, 76, 77}, right.Payload.Bytes())

	// Concatenation is byte-identical to the original.
	assert.Equal(t, payload, append(append([]byte{}, m.Payload.Bytes()...), right.Payload.Bytes()...))
}

func TestSplitOffAtEndpointsIsAllowed(t *testing.T) {
	payload := []byte{1, 2, 3}
	m := tcpManifest(0, payload)

	left := m
	right := left.SplitOff(seqnum.Sequence(0))
	assert.Equal(t, 0, left.Payload.Len())
	assert.Equal(t, payload, right.Payload.Bytes())

	m2 := tcpManifest(0, payload)
	right2 := m2.SplitOff(seqnum.Sequence(3))
	assert.Equal(t, payload, m2.Payload.Bytes())
	assert.Equal(t, 0, right2.Payload.Len())
}

func TestSplitOffOutOfRangePanics(t *testing.T) {
	m := tcpManifest(10, []byte{1, 2, 3})
	assert.Panics(t, func() { m.SplitOff(seqnum.Sequence(9)) })
	assert.Panics(t, func() { m.SplitOff(seqnum.Sequence(14)) })
}

func TestSplitOffExample(t *testing.T) {
	// spec.md S6: seq=10, payload=(66..77), split at seq=15.
	payload := make([]byte, 0, 12)
	for b := 66; b <= 77; b++ {
		payload = append(payload, byte(b))
	}
	m := tcpManifest(10, payload)
	right := m.SplitOff(seqnum.Sequence(15))

	require.Equal(t, seqnum.Sequence(10), m.TCP.Seq)
	assert.Equal(t, payload[:5], m.Payload.Bytes())
	require.Equal(t, seqnum.Sequence(15), right.TCP.Seq)
	assert.Equal(t, payload[5:], right.Payload.Bytes())
}

func TestPayloadCloneIsIndependent(t *testing.T) {
	src := []byte{1, 2, 3}
	p := Borrow(src)
	owned := p.Clone()
	src[0] = 0xFF
	assert.Equal(t, byte(0xFF), p.Bytes()[0], "borrowed view aliases the source")
	assert.Equal(t, byte(1), owned.Bytes()[0], "clone is independent")
	assert.True(t, owned.IsOwned())
	assert.False(t, p.IsOwned())
}

func TestPayloadCloneOfOwnedIsNoop(t *testing.T) {
	p := Own([]byte{1, 2, 3})
	clone := p.Clone()
	assert.True(t, clone.IsOwned())
}

func TestSeqRange(t *testing.T) {
	m := tcpManifest(10, []byte{1, 2, 3})
	r := m.SeqRange()
	assert.Equal(t, seqnum.Sequence(10), r.From)
	assert.Equal(t, seqnum.Sequence(12), r.To)
}

func TestSeqRangeOfEmptyPayloadPanics(t *testing.T) {
	m := tcpManifest(10, nil)
	assert.Panics(t, func() { m.SeqRange() })
}
