// Package serializer implements the record staging ring and the
// simulate-then-commit SenML/CBOR pack encoder.
package serializer

import (
	"ringlog/internal/domain"
)

// ring is a fixed power-of-two-capacity array of records with monotonically
// increasing read/write indices, ported from rec_serial.c's peekcb_t. ri and
// wi never wrap; only the array index (i & mask) does. This lets callers
// scan ahead with peek/next without mutating ri.
type ring struct {
	a    []domain.Record
	ri   uint64
	wi   uint64
	mask uint64
}

func newRing(capacity int) *ring {
	return &ring{a: make([]domain.Record, capacity), mask: uint64(capacity - 1)}
}

func (r *ring) fill() uint64 { return r.wi - r.ri }

func (r *ring) full() bool { return r.fill() == uint64(len(r.a)) }

// put appends one record, assuming the caller already checked full().
func (r *ring) put(rec domain.Record) {
	r.a[r.wi&r.mask] = rec
	r.wi++
}

// get destructively removes and returns the oldest record. ok is false if
// the ring is empty.
func (r *ring) get() (domain.Record, bool) {
	if r.fill() == 0 {
		return domain.Record{}, false
	}
	rec := r.a[r.ri&r.mask]
	r.ri++
	return rec, true
}

// peek returns the oldest record without consuming it, plus an iterator
// cursor for next. ok is false if the ring is empty.
func (r *ring) peek() (domain.Record, uint64, bool) {
	if r.fill() == 0 {
		return domain.Record{}, 0, false
	}
	return r.a[r.ri&r.mask], r.ri, true
}

// next advances the given iterator cursor by one slot without touching ri,
// mirroring peekcb_next's nondestructive scan-ahead semantics. ok is false
// once the cursor reaches wi.
func (r *ring) next(it uint64) (domain.Record, uint64, bool) {
	it++
	if it == r.wi {
		return domain.Record{}, it, false
	}
	return r.a[it&r.mask], it, true
}
