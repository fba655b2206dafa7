package serializer

import (
	"errors"

	"ringlog/internal/domain"
)

// arrayMaxBytes reserves headroom for the CBOR array terminator that
// Close() still needs to write after the last record has been committed,
// ported from rec_serial.c's ARRAY_MAX_BYTES. A real fxamacker/cbor
// indefinite array only needs a single break byte to close, but the
// four-byte reservation is kept for parity with the budget the original
// used, and because nothing downstream depends on shaving it to the bone.
const arrayMaxBytes = 4

// Serializer implements the simulate-then-commit protocol of rec_serial.c:
// every Put runs against a simulation encoder to discover whether the
// record would fit in the buffer currently pending a Swap, without ever
// writing into that buffer speculatively. fitCnt is the bridge between the
// two encoder instances — it is the number of already-simulated records
// that Swap must re-encode for real, in the same order, before it can hand
// the filled buffer back to the caller.
type Serializer struct {
	buf     []byte
	base    domain.RecordBase
	ring    *ring
	sim     *Encoder
	fitCnt  int
	invalid bool
}

// NewSerializer allocates a serializer writing into dst, staging up to
// capacity records ahead of the next Swap. capacity must be a power of
// two, mirroring recser_init's len_limit check; dst must hold at least
// arrayMaxBytes bytes for the array terminator.
func NewSerializer(dst []byte, capacity int, base *domain.RecordBase) (*Serializer, error) {
	if dst == nil {
		return nil, domain.ErrInvalidArgument
	}
	if len(dst) < arrayMaxBytes {
		return nil, domain.ErrNoSpace
	}
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, domain.ErrInvalidArgument
	}

	s := &Serializer{buf: dst, ring: newRing(capacity)}
	if base != nil {
		s.base = *base
	}

	sim, err := NewEncoder(nil, len(dst)-arrayMaxBytes, &s.base)
	if err != nil {
		return nil, err
	}
	s.sim = sim

	return s, nil
}

// Put stages rec for the pack currently being assembled. On success rec's
// owned data has moved into the serializer and the caller must not read it
// again. ErrMustSwap also takes ownership (rec is staged in the ring). On
// any other error rec is left exactly as it was: the caller keeps
// ownership and may retry, free it, or move it elsewhere.
//
// Return values:
//   - nil: rec fits in the buffer pending the next Swap.
//   - ErrMustSwap: the ring accepted rec, but it no longer fits the
//     simulated pack; the caller must Swap before any further record of
//     this size can be committed.
//   - ErrNoUsefulBuffer: the destination buffer cannot fit even a single
//     record; Swap would produce an empty pack.
//   - ErrQueueFull: the staging ring itself is full; Swap first.
//   - ErrInvalidArgument: rec carries an unknown unit or value kind.
func (s *Serializer) Put(rec *domain.Record) error {
	if s.invalid {
		return domain.ErrInvalidArgument
	}
	if s.ring.full() {
		return domain.ErrQueueFull
	}

	moved := domain.Move(rec)

	err := s.sim.Put(moved)
	switch {
	case err == nil:
		s.ring.put(moved)
		s.fitCnt++
		return nil

	case errors.Is(err, domain.ErrNoSpace):
		if s.fitCnt == 0 {
			*rec = moved
			return domain.ErrNoUsefulBuffer
		}
		s.ring.put(moved)
		return domain.ErrMustSwap

	default:
		*rec = moved
		return domain.ErrInvalidArgument
	}
}

// Swap commits the currently-fitting records into the output buffer that
// was passed to the previous NewSerializer/Swap call, hands that filled
// buffer back to the caller, and adopts dst as the new destination.
//
// Passing dst == nil invalidates the serializer: every staged record is
// flushed through an unbounded simulation encoder purely to discharge
// ownership (mirroring the original's buffer-less drain), and every
// subsequent call returns ErrInvalidArgument. The returned []byte is still
// the pack committed from the buffer the serializer held before the call.
//
// ErrMustSwap alongside the returned slice means the swap itself
// succeeded but records are still staged in the ring for a later pack,
// whether or not they all fit the new buffer; fitCnt is set to how many of
// them fit it, and the caller must Swap again to flush them.
func (s *Serializer) Swap(dst []byte) ([]byte, error) {
	if s.invalid {
		return nil, domain.ErrInvalidArgument
	}

	var encLen int
	if s.fitCnt > 0 {
		enc, err := NewEncoder(s.buf, len(s.buf), &s.base)
		if err != nil {
			return nil, err
		}

		fit := s.fitCnt
		if _, err := flushCommit(enc, s.ring, fit); err != nil {
			return nil, err
		}
		s.fitCnt = 0

		n, err := enc.Close()
		if err != nil {
			return nil, err
		}
		encLen = n
	}

	out := s.buf[:encLen]
	s.buf = dst

	if dst == nil {
		drain, err := NewEncoder(nil, -1, &s.base)
		if err != nil {
			return out, err
		}
		flushDrain(drain, s.ring)
		s.fitCnt = 0
		s.invalid = true
		return out, nil
	}

	if len(dst) < arrayMaxBytes {
		s.invalid = true
		return out, domain.ErrNoSpace
	}

	sim, err := NewEncoder(nil, len(dst)-arrayMaxBytes, &s.base)
	if err != nil {
		return out, err
	}
	s.sim = sim

	if s.ring.fill() == 0 {
		return out, nil
	}

	n, err := simulateFlush(sim, s.ring, s.ring.fill())
	if err != nil {
		return out, err
	}
	s.fitCnt = n
	return out, domain.ErrMustSwap
}

// flushCommit destructively drains up to cnt records from r through enc,
// stopping early (without error) if enc runs out of room — which should
// not happen when cnt == the caller's already-simulated fitCnt, but is
// handled the same defensive way _recser_flush handles it.
func flushCommit(enc *Encoder, r *ring, cnt int) (int, error) {
	flushed := 0
	for i := 0; i < cnt; i++ {
		rec, ok := r.get()
		if !ok {
			break
		}
		if err := enc.Put(rec); err != nil {
			if errors.Is(err, domain.ErrNoSpace) {
				break
			}
			return flushed, err
		}
		flushed++
	}
	return flushed, nil
}

// flushDrain destructively empties r through enc, ignoring any error enc
// returns: enc is expected to be an unbounded simulation encoder, so the
// only purpose of this pass is to discharge ownership of every staged
// record's data on the way to invalidating the serializer.
func flushDrain(enc *Encoder, r *ring) {
	for {
		rec, ok := r.get()
		if !ok {
			return
		}
		_ = enc.Put(rec)
	}
}

// simulateFlush nondestructively walks up to cnt records starting at r's
// oldest entry, reporting how many of them fit in enc's budget. It never
// mutates r: the records it counts are re-flushed for real, in the same
// order, the next time Swap commits against a fresh buffer.
func simulateFlush(enc *Encoder, r *ring, cnt uint64) (int, error) {
	if cnt == 0 {
		return 0, nil
	}

	rec, it, ok := r.peek()
	if !ok {
		return 0, nil
	}

	flushed := 0
	for {
		err := enc.Put(rec)
		if err != nil {
			if errors.Is(err, domain.ErrNoSpace) {
				break
			}
			return flushed, err
		}
		flushed++

		cnt--
		if cnt == 0 {
			break
		}

		rec, it, ok = r.next(it)
		if !ok {
			break
		}
	}

	return flushed, nil
}
