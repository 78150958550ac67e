package gateway

import "sync"

// envelopeEntry is one broadcast envelope kept for replay.
type envelopeEntry struct {
	Seq  int64
	Data []byte
}

// Ring keeps the most recent envelopes for one symbol so reconnecting
// clients can catch up on what they missed. Safe for concurrent use.
type Ring struct {
	mu   sync.RWMutex
	buf  []envelopeEntry
	pos  int // next write position
	full bool
}

// NewRing creates a ring holding up to capacity envelopes.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 200
	}
	return &Ring{buf: make([]envelopeEntry, capacity)}
}

// Push appends an envelope, overwriting the oldest when full. Seq must be
// strictly increasing across calls.
func (r *Ring) Push(seq int64, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)

	r.mu.Lock()
	r.buf[r.pos] = envelopeEntry{Seq: seq, Data: cp}
	r.pos = (r.pos + 1) % len(r.buf)
	if r.pos == 0 {
		r.full = true
	}
	r.mu.Unlock()
}

// After returns every held envelope with Seq > seq, oldest first, and
// whether the ring still covers the gap (false when entries after seq have
// already been evicted).
func (r *Ring) After(seq int64) ([]envelopeEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.len()
	if n == 0 {
		return nil, true
	}
	oldest := r.buf[r.index(0)].Seq
	complete := seq >= oldest-1

	var out []envelopeEntry
	for i := 0; i < n; i++ {
		e := r.buf[r.index(i)]
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out, complete
}

// Len returns the number of held envelopes.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.len()
}

func (r *Ring) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.pos
}

// index converts a logical index (0 = oldest) to a buffer index.
func (r *Ring) index(logical int) int {
	if r.full {
		return (r.pos + logical) % len(r.buf)
	}
	return logical
}
