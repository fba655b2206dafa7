package serializer

import (
	"errors"
	"io"

	"github.com/fxamacker/cbor/v2"

	"ringlog/internal/domain"
)

// recordMap is one SenML entry, keyed the way senml_enc.c's SENMLKEY enum
// keys it: n=0, u=1, v=2, t=6. Field order here matches the original's
// emission order (name, timestamp, unit, value); cbor map key order is not
// semantically significant but keeping it stable makes fixtures easier to
// eyeball.
type recordMap struct {
	Name  string      `cbor:"0,keyasint"`
	Time  float64     `cbor:"6,keyasint"`
	Unit  string      `cbor:"1,keyasint,omitempty"`
	Value interface{} `cbor:"2,keyasint"`
}

// baseMap carries the base name, SENMLKEY_bn = -2, emitted once up front
// when the caller configured a RecordBase with a non-empty Name.
type baseMap struct {
	BaseName string `cbor:"-2,keyasint"`
}

// capWriter turns a fixed-size byte budget into an io.Writer that fails
// with domain.ErrNoSpace once the budget is exceeded. In simulation mode
// (buf == nil) it never actually copies bytes — only counts them — so the
// same encoder codepath serves both byte-accounting and commit. A negative
// limit disables the check entirely, used by the serializer's drain path
// where a record must never be refused on its way out.
type capWriter struct {
	buf      []byte
	pos      int
	limit    int
	overflow bool
}

func (w *capWriter) Write(p []byte) (int, error) {
	if w.limit >= 0 && w.pos+len(p) > w.limit {
		w.overflow = true
		return 0, domain.ErrNoSpace
	}
	if w.buf != nil {
		copy(w.buf[w.pos:], p)
	}
	w.pos += len(p)
	return len(p), nil
}

// Encoder emits a single SenML/CBOR pack: an outer indefinite-length array,
// an optional base-name map, then one map per record. Pass dst == nil to
// run in simulation mode: nothing is written, but Put still enforces the
// same byte budget and Close still returns the exact byte count the real
// encode would take, so a caller can probe
// how many records fit before committing to an output buffer.
type Encoder struct {
	w   *capWriter
	enc *cbor.Encoder
}

// NewEncoder opens enc against dst (or, if dst == nil, against a
// write-counting void sink) with a byte budget of limit, and immediately
// emits the base map if base names a non-empty prefix.
func NewEncoder(dst []byte, limit int, base *domain.RecordBase) (*Encoder, error) {
	w := &capWriter{buf: dst, limit: limit}
	e := &Encoder{w: w, enc: cbor.NewEncoder(w)}

	if err := e.enc.StartIndefiniteArray(); err != nil {
		return nil, e.mapErr(err)
	}

	if base != nil && base.Name != "" {
		if err := e.enc.Encode(baseMap{BaseName: base.Name}); err != nil {
			return nil, e.mapErr(err)
		}
	}

	return e, nil
}

// Put appends one record map. It fails with ErrInvalidArgument for an
// unknown unit or an empty/unrecognized value kind, mirroring
// senml_enc_put's "rectype invalid" / "unit invalid" checks, and with
// ErrNoSpace once the byte budget runs out.
func (e *Encoder) Put(rec domain.Record) error {
	if !rec.Unit.Valid() {
		return domain.ErrInvalidArgument
	}

	m := recordMap{
		Name: rec.Name,
		Time: rec.Timestamp.Seconds(),
		Unit: rec.Unit.String(),
	}

	switch rec.Value.Kind {
	case domain.ValueUint32:
		m.Value = rec.Value.U32
	case domain.ValueInt32:
		m.Value = rec.Value.I32
	case domain.ValueString:
		m.Value = rec.Value.Str
	default:
		return domain.ErrInvalidArgument
	}

	if err := e.enc.Encode(m); err != nil {
		return e.mapErr(err)
	}
	return nil
}

// Close emits the array terminator and returns the total encoded length.
// Callers in the real (dst != nil) case use that length as the pack size
// committed to the output buffer.
func (e *Encoder) Close() (int, error) {
	if err := e.enc.EndIndefinite(); err != nil {
		return 0, e.mapErr(err)
	}
	return e.w.pos, nil
}

// mapErr classifies an encode failure. capWriter.overflow is checked first
// and takes priority over whatever error value cbor surfaced: cbor is not
// guaranteed to preserve the writer's error through errors.Is, but the
// overflow flag is set by capWriter itself the instant the budget is
// exceeded, so it is the authoritative signal.
func (e *Encoder) mapErr(err error) error {
	if err == nil {
		return nil
	}
	if e.w.overflow {
		return domain.ErrNoSpace
	}
	if errors.Is(err, io.ErrShortWrite) {
		return domain.ErrNoSpace
	}
	return domain.ErrInvalidArgument
}
