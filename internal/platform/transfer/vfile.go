package transfer

import (
	"errors"
	"io"
)

// VFile is the in-memory virtual file records travel through: a driver's
// Job.FD is always a VFile, never a real descriptor. Grounded on
// vstorage.c's vstor_impl — a byte-slice-backed file with a write
// watermark (fend) tracking how much of buf actually holds data.
type VFile interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer

	// OwnsBuffer reports whether Close should release the backing buffer.
	// In Go this only affects whether Close clears the reference (there is
	// no manual free), but the flag is kept because it is part of the
	// contract a caller relies on to know whether it may reuse buf after
	// handing a VFile to a driver.
	OwnsBuffer() bool
	// HasData reports whether the buffer was pre-populated with valid data
	// at construction (fend starts at len(buf)) rather than empty
	// (fend starts at 0).
	HasData() bool
	// Bytes returns the written region, buf[:fend]. Safe to call after
	// Close only if OwnsBuffer is false.
	Bytes() []byte
}

// MemFile is VFile's concrete implementation.
type MemFile struct {
	buf        []byte
	pos        int
	fend       int
	ownsBuffer bool
	hasData    bool
	closed     bool
}

// NewMemFile wraps buf as a VFile. If hasData is true, the file starts
// with its write watermark at len(buf) (the buffer already holds a
// complete pack, e.g. the output of Serializer.Swap); otherwise the
// watermark starts at 0 and the buffer is empty capacity to write into.
// If ownsBuffer is true, Close releases MemFile's reference to buf.
func NewMemFile(buf []byte, ownsBuffer, hasData bool) *MemFile {
	f := &MemFile{buf: buf, ownsBuffer: ownsBuffer, hasData: hasData}
	if hasData {
		f.fend = len(buf)
	}
	return f
}

func (f *MemFile) OwnsBuffer() bool { return f.ownsBuffer }
func (f *MemFile) HasData() bool    { return f.hasData }

func (f *MemFile) Bytes() []byte { return f.buf[:f.fend] }

func (f *MemFile) Read(p []byte) (int, error) {
	if f.closed {
		return 0, errors.New("vfile: use of closed file")
	}

	left := f.fend - f.pos
	if left <= 0 {
		return 0, io.EOF
	}

	n := len(p)
	if n > left {
		n = left
	}
	copy(p, f.buf[f.pos:f.pos+n])
	f.pos += n
	return n, nil
}

// Write copies into buf starting at pos, extending fend as needed, and
// truncates at len(buf) exactly like vstorage.c's _write. Unlike the
// original, a truncated write returns io.ErrShortWrite: Go's io.Writer
// contract requires a non-nil error whenever n < len(p).
func (f *MemFile) Write(p []byte) (int, error) {
	if f.closed {
		return 0, errors.New("vfile: use of closed file")
	}

	left := len(f.buf) - f.pos
	n := len(p)
	truncated := false
	if n > left {
		n = left
		truncated = true
	}

	copy(f.buf[f.pos:f.pos+n], p[:n])
	f.pos += n
	if f.pos > f.fend {
		f.fend = f.pos
	}

	if truncated {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Seek supports SEEK_SET/SEEK_CUR/SEEK_END within [0, len(buf)]. Seeking
// past the current watermark extends fend to the new offset, exactly as
// vstorage.c's _lseek does — this lets a block-wise writer pre-extend the
// written region ahead of writing into it.
func (f *MemFile) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, errors.New("vfile: use of closed file")
	}

	var off int64
	switch whence {
	case io.SeekStart:
		off = offset
	case io.SeekCurrent:
		off = int64(f.pos) + offset
	case io.SeekEnd:
		off = int64(f.fend) + offset
	default:
		return 0, errors.New("vfile: invalid whence")
	}

	if off < 0 {
		return 0, errors.New("vfile: negative position")
	}
	if off > int64(len(f.buf)) {
		return 0, io.ErrShortBuffer
	}

	f.pos = int(off)
	if f.pos > f.fend {
		f.fend = f.pos
	}
	return int64(f.pos), nil
}

// Close releases MemFile's reference to buf when it owns it. There is no
// manual deallocation in Go, but the buffer reference is dropped so a
// caller cannot keep reading through a VFile that thinks it owns data it
// has logically released.
func (f *MemFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if f.ownsBuffer {
		f.buf = nil
	}
	return nil
}
