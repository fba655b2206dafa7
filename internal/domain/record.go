package domain

import "time"

// Unit is a SenML unit tag. UnitNone means the record carries no unit.
type Unit uint8

const (
	UnitNone Unit = iota
	UnitMetre
	UnitKilogram
	UnitGram
	UnitSecond
	UnitAmpere
	UnitKelvin
	UnitCandela
	UnitMole
	UnitHertz
	UnitDegreeCelsius
	UnitVolt
	UnitPercent
	UnitPercentRH
	UnitCount
	UnitRatio

	unitEnumSize
)

var senmlUnits = [unitEnumSize]string{
	UnitNone:          "",
	UnitMetre:         "m",
	UnitKilogram:      "kg",
	UnitGram:          "g",
	UnitSecond:        "s",
	UnitAmpere:        "A",
	UnitKelvin:        "K",
	UnitCandela:       "cd",
	UnitMole:          "mol",
	UnitHertz:         "Hz",
	UnitDegreeCelsius: "Cel",
	UnitVolt:          "V",
	UnitPercent:       "%",
	UnitPercentRH:     "%RH",
	UnitCount:         "count",
	UnitRatio:         "/",
}

// String returns the SenML unit symbol, or "" for UnitNone.
func (u Unit) String() string {
	if u >= unitEnumSize {
		return ""
	}
	return senmlUnits[u]
}

// Valid reports whether u is a known unit tag.
func (u Unit) Valid() bool { return u < unitEnumSize }

// ValueKind tags the variant carried by a RecordValue.
type ValueKind uint8

const (
	ValueEmpty ValueKind = iota
	ValueUint32
	ValueInt32
	ValueString
)

// RecordValue is the tagged union a record value can hold: empty,
// unsigned-32, signed-32 or an owned string. Only ValueString carries heap
// data; the zero value is ValueEmpty.
type RecordValue struct {
	Kind ValueKind
	U32  uint32
	I32  int32
	Str  string
}

// Timestamp is seconds+microseconds since epoch, matching the original's
// timex_t split representation.
type Timestamp struct {
	Sec  int64
	USec int32
}

// Seconds returns the timestamp as floating point seconds, the
// representation the SenML encoder writes under key 6.
func (t Timestamp) Seconds() float64 {
	return float64(t.Sec) + float64(t.USec)*1e-6
}

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	now := time.Now()
	return Timestamp{Sec: now.Unix(), USec: int32(now.Nanosecond() / 1000)}
}

// Record is the basic logging data type. Name is borrowed: the caller must
// keep it alive until the record has been flushed out of the serializer
// (see Serializer.Swap).
// On a 64-bit platform Record is 72 bytes: two 16-byte string headers
// (Name and Value.Str), a 16-byte Timestamp, and the value union laid out
// as plain fields, well above the ~18-byte C record.
type Record struct {
	Name      string
	Timestamp Timestamp
	Unit      Unit
	Value     RecordValue
}

// RecordBase is the optional prefix applied at encode time to every record
// in a pack.
type RecordBase struct {
	Name string
}

// Move transfers ownership of rec's string (if any) into a new Record and
// clears the source's view of it, mirroring record_move's
// double-free-prevention contract. After Move, rec must not be used again
// except to be overwritten.
func Move(rec *Record) Record {
	moved := *rec
	if rec.Value.Kind == ValueString {
		rec.Value.Str = ""
	}
	return moved
}

// Copy duplicates rec, including its owned string if present. Go strings
// are immutable and share their backing array, so duplication never fails
// the way record_copy's strdup can; the error return exists only to keep
// the call site shaped like its caller-owns-on-success counterparts.
func Copy(rec Record) (Record, error) {
	return rec, nil
}

// FreeData releases rec's owned string, if any. In Go this is a no-op for
// memory (the GC owns the backing array) but it is the point at which the
// single-owner invariant is considered discharged: callers must not retain
// any other copy of rec.Value.Str across this call. It clears
// rec.Value.Str so the released string is no longer reachable through rec.
func FreeData(rec *Record) {
	if rec.Value.Kind == ValueString {
		rec.Value.Str = ""
	}
}
