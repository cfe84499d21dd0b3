// Package coalesce implements the ordered, overlap-free store of
// out-of-order TCP payload segments used to detect segment-injection
// attacks (disagreeing overlapping payload bytes) while accumulating the
// non-overlapping ranges that remain to be stored.
//
// Go has no ordered-map type with a pluggable comparator (the pack never
// reaches for a third-party one either), so the BTreeMap<SequenceRange,
// _> of original_source/src/types/ordered_coalesce.rs is stood in for by
// a slice kept sorted by Range.From; no two stored ranges ever overlap,
// so "sorted by From" and "sorted by To" coincide and a single sort.Search
// finds the first candidate overlap.
package coalesce

import (
	"bytes"
	"sort"

	"github.com/survived/detect-inj/internal/packet"
	"github.com/survived/detect-inj/internal/seqnum"
)

// OverlapBlock reports a segment-injection: bytes already accepted by the
// sensor (winner) disagree with bytes in a newly arriving, overlapping
// segment (loser).
type OverlapBlock struct {
	Winner []byte
	Loser  []byte
	Range  seqnum.Range
}

type entry struct {
	rng     seqnum.Range
	packet  packet.Manifest
}

// OrderedCoalesce is a sorted, overlap-free store of payload segments
// keyed by their sequence range.
type OrderedCoalesce struct {
	totalSize uint64
	entries   []entry
}

// New returns an empty OrderedCoalesce.
func New() *OrderedCoalesce {
	return &OrderedCoalesce{}
}

// TotalSize returns the running sum of bytes stored.
func (c *OrderedCoalesce) TotalSize() uint64 {
	return c.totalSize
}

// Len returns the number of non-overlapping segments currently stored.
func (c *OrderedCoalesce) Len() int {
	return len(c.entries)
}

// Insert stores the payload of p (taking ownership via Payload.Clone),
// reporting one OverlapBlock per stored segment whose bytes disagree
// with the newly arriving ones over their overlap. An empty-payload p is
// a no-op that returns nil.
func (c *OrderedCoalesce) Insert(p packet.Manifest) []OverlapBlock {
	if p.Payload.Len() == 0 {
		return nil
	}

	p.Payload = p.Payload.Clone()
	rng := p.SeqRange()

	remaining, blocks := c.overlapCheck(rng, p.Payload.Bytes())

	for _, sub := range splitIntoSubPackets(p, remaining) {
		c.insertSorted(sub.rng, sub.packet)
		c.totalSize += uint64(sub.rng.Len())
	}

	return blocks
}

// overlapCheck walks the stored entries overlapping rng in ascending
// From order, emitting an OverlapBlock per disagreeing overlap and
// shrinking the "in-flight" remainder of rng from the left as it goes.
// It returns the pieces of rng that do not overlap anything stored.
func (c *OrderedCoalesce) overlapCheck(rng seqnum.Range, payload []byte) ([]seqnum.Range, []OverlapBlock) {
	notOverlapping := []seqnum.Range{rng}
	var blocks []OverlapBlock

	start := c.firstOverlapIndex(rng)
	for i := start; i < len(c.entries); i++ {
		stored := c.entries[i]
		if !stored.rng.Equal(rng) {
			break
		}

		overlap := seqnum.NewRange(maxSeq(stored.rng.From, rng.From), minSeq(stored.rng.To, rng.To))

		loser := subPayload(payload, overlap, rng.From)
		winner := subPayload(stored.packet.Payload.Bytes(), overlap, stored.packet.TCP.Seq)
		if !bytes.Equal(winner, loser) {
			blocks = append(blocks, OverlapBlock{
				Winner: append([]byte(nil), winner...),
				Loser:  append([]byte(nil), loser...),
				Range:  overlap,
			})
		}

		current := notOverlapping[len(notOverlapping)-1]
		notOverlapping = notOverlapping[:len(notOverlapping)-1]

		if current.From < stored.rng.From {
			// genuine gap strictly before the stored range starts
			notOverlapping = append(notOverlapping, seqnum.NewRange(current.From, stored.rng.From-1))
		}

		if stored.rng.To < current.To {
			// more of current remains strictly after the stored range;
			// it becomes the in-flight range for the next iteration
			notOverlapping = append(notOverlapping, seqnum.NewRange(stored.rng.To+1, current.To))
		} else {
			// stored range reaches (or exceeds) current's end: nothing
			// of current survives past it
			break
		}
	}

	return notOverlapping, blocks
}

// firstOverlapIndex returns the index of the first stored entry that
// could overlap rng, or len(c.entries) if none does (the loop in
// overlapCheck confirms the actual overlap and stops at the first
// non-overlapping entry). Entries are sorted by From and pairwise
// non-overlapping, so they're sorted by To as well, which makes "entry.To
// >= rng.From" monotonic in i and safe to binary-search.
func (c *OrderedCoalesce) firstOverlapIndex(rng seqnum.Range) int {
	return sort.Search(len(c.entries), func(i int) bool {
		return !c.entries[i].rng.Less(rng)
	})
}

// insertSorted inserts (rng, p) keeping entries sorted by From. Callers
// guarantee rng does not overlap any existing entry.
func (c *OrderedCoalesce) insertSorted(rng seqnum.Range, p packet.Manifest) {
	i := sort.Search(len(c.entries), func(i int) bool {
		return !c.entries[i].rng.Less(rng)
	})
	c.entries = append(c.entries, entry{})
	copy(c.entries[i+1:], c.entries[i:])
	c.entries[i] = entry{rng: rng, packet: p}
}

type subPacket struct {
	rng    seqnum.Range
	packet packet.Manifest
}

// splitIntoSubPackets splits p into one sub-packet per range in ranges,
// via two SplitOff calls per range, exactly as
// original_source/src/types/ordered_coalesce.rs's
// split_packet_into_sub_packets does.
func splitIntoSubPackets(p packet.Manifest, ranges []seqnum.Range) []subPacket {
	out := make([]subPacket, 0, len(ranges))
	remaining := p
	for _, rng := range ranges {
		sub := remaining.SplitOff(rng.From)
		rest := sub.SplitOff(rng.To.Add(1))
		remaining = rest
		out = append(out, subPacket{rng: rng, packet: sub})
	}
	return out
}

// subPayload extracts the slice of payload corresponding to rng, where
// payload is indexed relative to base (the sequence number of its first
// byte).
func subPayload(payload []byte, rng seqnum.Range, base seqnum.Sequence) []byte {
	from := rng.From.Diff(base)
	to := rng.To.Diff(base)
	return payload[from : to+1]
}

func maxSeq(a, b seqnum.Sequence) seqnum.Sequence {
	if a > b {
		return a
	}
	return b
}

func minSeq(a, b seqnum.Sequence) seqnum.Sequence {
	if a < b {
		return a
	}
	return b
}
