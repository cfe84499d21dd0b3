package packet

// Payload is a view over TCP segment data. It supports both a borrowed
// view (lifetime tied to the capture buffer it was decoded from) and an
// owned heap copy. Conversion from borrowed to owned is explicit via
// Clone — nothing in this package ever silently copies.
type Payload struct {
	bytes []byte
	owned bool
}

// Borrow wraps b as a borrowed payload view. The caller must either fully
// process it before the underlying buffer is reused, or Clone it before
// storing it anywhere that outlives the current packet.
func Borrow(b []byte) Payload {
	return Payload{bytes: b, owned: false}
}

// Own wraps b as an already-owned payload (the caller guarantees no one
// else retains b).
func Own(b []byte) Payload {
	return Payload{bytes: b, owned: true}
}

// Bytes returns the underlying bytes. For a borrowed payload these alias
// the capture buffer.
func (p Payload) Bytes() []byte { return p.bytes }

// Len returns the payload length in bytes.
func (p Payload) Len() int { return len(p.bytes) }

// IsOwned reports whether this payload holds its own backing array.
func (p Payload) IsOwned() bool { return p.owned }

// Clone returns an owned copy of p. If p is already owned, it is returned
// unchanged (no redundant copy).
func (p Payload) Clone() Payload {
	if p.owned {
		return p
	}
	cp := make([]byte, len(p.bytes))
	copy(cp, p.bytes)
	return Payload{bytes: cp, owned: true}
}

// slice returns the sub-payload [from:to), preserving the owned/borrowed
// tag. This is zero-copy in both cases: a borrowed view re-slices the
// capture buffer, an owned payload re-slices its own backing array
// in place.
func (p Payload) slice(from, to int) Payload {
	return Payload{bytes: p.bytes[from:to], owned: p.owned}
}
