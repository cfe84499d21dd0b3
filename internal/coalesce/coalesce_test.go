package coalesce

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/survived/detect-inj/internal/packet"
	"github.com/survived/detect-inj/internal/seqnum"
)

func segment(seq uint32, payload ...byte) packet.Manifest {
	return packet.Manifest{
		IP: packet.IPLayer{
			SrcIP: net.ParseIP("10.0.0.1"),
			DstIP: net.ParseIP("10.0.0.2"),
		},
		TCP: packet.TCPLayer{
			SrcPort: 1234,
			DstPort: 80,
			Seq:     seqnum.Sequence(seq),
		},
		Payload: packet.Borrow(payload),
	}
}

// S1: three non-overlapping inserts never report a block.
func TestInsertNonOverlappingReportsNothing(t *testing.T) {
	c := New()

	assert.Empty(t, c.Insert(segment(0, 1, 2, 3)))
	assert.Empty(t, c.Insert(segment(6, 7, 8)))
	assert.Empty(t, c.Insert(segment(3, 4, 5, 6)))

	assert.Equal(t, uint64(8), c.TotalSize())
}

// S2: a segment that overlaps a stored one with disagreeing bytes
// reports exactly one block spanning the overlap.
func TestInsertOverlapWithDisagreementReportsBlock(t *testing.T) {
	c := New()
	require.Empty(t, c.Insert(segment(0, 1, 2, 3, 4, 5, 6)))

	blocks := c.Insert(segment(1, 10, 11, 12))
	require.Len(t, blocks, 1)
	assert.Equal(t, []byte{2, 3, 4}, blocks[0].Winner)
	assert.Equal(t, []byte{10, 11, 12}, blocks[0].Loser)
	assert.Equal(t, seqnum.NewRange(seqnum.Sequence(1), seqnum.Sequence(3)), blocks[0].Range)
}

// S3: re-inserting bytes that agree with what's already stored reports
// nothing, even though the ranges overlap.
func TestInsertOverlapWithAgreementReportsNothing(t *testing.T) {
	c := New()
	require.Empty(t, c.Insert(segment(0, 1, 2, 3)))
	require.Empty(t, c.Insert(segment(6, 7, 8)))
	require.Empty(t, c.Insert(segment(3, 4, 5, 6)))

	blocks := c.Insert(segment(2, 3, 4, 5, 6, 7))
	assert.Empty(t, blocks)
}

// S4: a segment straddling two stored, adjacent segments reports one
// block per stored segment it disagrees with.
func TestInsertStraddlingTwoSegmentsReportsOneBlockEach(t *testing.T) {
	c := New()
	require.Empty(t, c.Insert(segment(0, 1, 2, 3)))
	require.Empty(t, c.Insert(segment(3, 4, 5, 6)))

	blocks := c.Insert(segment(2, 10, 11))
	require.Len(t, blocks, 2)

	assert.Equal(t, []byte{3}, blocks[0].Winner)
	assert.Equal(t, []byte{10}, blocks[0].Loser)
	assert.Equal(t, seqnum.NewRange(seqnum.Sequence(2), seqnum.Sequence(2)), blocks[0].Range)

	assert.Equal(t, []byte{4}, blocks[1].Winner)
	assert.Equal(t, []byte{11}, blocks[1].Loser)
	assert.Equal(t, seqnum.NewRange(seqnum.Sequence(3), seqnum.Sequence(3)), blocks[1].Range)
}

// The straddling insert in S4 leaves no gap between the two original
// segments and the (fully-covered) new one: nothing new gets stored,
// and no two stored entries overlap.
func TestInsertStraddlingTwoSegmentsStoresNothingNew(t *testing.T) {
	c := New()
	require.Empty(t, c.Insert(segment(0, 1, 2, 3)))
	require.Empty(t, c.Insert(segment(3, 4, 5, 6)))
	require.Equal(t, 2, c.Len())

	c.Insert(segment(2, 10, 11))
	assert.Equal(t, 2, c.Len(), "the straddling range is fully covered by existing entries, nothing to add")
	assert.Equal(t, uint64(7), c.TotalSize(), "total size only counts genuinely new bytes")
}

// A segment overlapping on only one side leaves the non-overlapping
// remainder stored as its own entry; the overlapping, discarded prefix
// does not count toward TotalSize.
func TestInsertPartialOverlapStoresRemainder(t *testing.T) {
	c := New()
	require.Empty(t, c.Insert(segment(0, 1, 2, 3)))

	blocks := c.Insert(segment(2, 100, 101, 102))
	require.Len(t, blocks, 1)
	assert.Equal(t, []byte{3}, blocks[0].Winner)
	assert.Equal(t, []byte{100}, blocks[0].Loser)
	assert.Equal(t, seqnum.NewRange(seqnum.Sequence(2), seqnum.Sequence(2)), blocks[0].Range)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, uint64(5), c.TotalSize())
}

func TestInsertEmptyPayloadIsNoop(t *testing.T) {
	c := New()
	blocks := c.Insert(packet.Manifest{
		TCP:     packet.TCPLayer{Seq: seqnum.Sequence(5)},
		Payload: packet.Borrow(nil),
	})
	assert.Nil(t, blocks)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, uint64(0), c.TotalSize())
}

// No two stored entries ever overlap, regardless of insertion order.
func TestStoredEntriesNeverOverlap(t *testing.T) {
	c := New()
	c.Insert(segment(0, 1, 2, 3))
	c.Insert(segment(3, 4, 5, 6))
	c.Insert(segment(2, 10, 11))
	c.Insert(segment(20, 21, 22))
	c.Insert(segment(15, 16, 17, 18, 19))

	for i := 1; i < len(c.entries); i++ {
		prev, cur := c.entries[i-1], c.entries[i]
		assert.False(t, prev.rng.Equal(cur.rng), "entries %s and %s overlap", prev.rng, cur.rng)
		assert.True(t, prev.rng.To < cur.rng.From, "entries out of order: %s then %s", prev.rng, cur.rng)
	}
}
