// Package seqnum implements wrapping TCP sequence-number arithmetic and
// the intersection-as-equality ordering used to key the reassembly buffer.
package seqnum

import "fmt"

// Sequence is a 32-bit TCP sequence or acknowledgement number.
type Sequence uint32

// Add returns the sequence number offset by delta, wrapping modulo 2^32.
func (s Sequence) Add(delta uint32) Sequence {
	return s + Sequence(delta)
}

// Diff returns self - other widened to signed 64-bit, without reducing
// modulo 2^32. Callers that need wrap-aware ordering compare the result
// against zero themselves.
func (s Sequence) Diff(other Sequence) int64 {
	return int64(s) - int64(other)
}

func (s Sequence) String() string {
	return fmt.Sprintf("%d", uint32(s))
}

// Range is an inclusive [From, To] span of sequence numbers. Construction
// must maintain From <= To; NewRange enforces this.
//
// Range's equality is non-standard: two ranges are equal iff they
// intersect. This makes Range usable as a key for "find all stored
// ranges overlapping mine" lookups, but it is not an equivalence relation
// (intersection isn't transitive) — callers (internal/coalesce) must
// never store two overlapping ranges at once.
type Range struct {
	From Sequence
	To   Sequence
}

// NewRange constructs a Range, panicking if from > to.
func NewRange(from, to Sequence) Range {
	if from > to {
		panic(fmt.Sprintf("seqnum: invalid range [%d, %d]: from > to", from, to))
	}
	return Range{From: from, To: to}
}

// Equal reports whether r and other intersect.
func (r Range) Equal(other Range) bool {
	return r.From <= other.To && other.From <= r.To
}

// Less reports whether r is strictly below other, i.e. they do not
// intersect and r comes first.
func (r Range) Less(other Range) bool {
	return r.To < other.From
}

// Greater reports whether r is strictly above other.
func (r Range) Greater(other Range) bool {
	return r.From > other.To
}

// Len returns the number of sequence numbers spanned by r.
func (r Range) Len() uint32 {
	return uint32(r.To-r.From) + 1
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d]", uint32(r.From), uint32(r.To))
}
