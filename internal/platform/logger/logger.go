// Package logger implements the thread-safe record ingress: a single
// coarse mutex guarding a Serializer, flushing full packs out through a
// transfer.Driver.
package logger

import (
	"errors"
	"sync"

	"ringlog/internal/domain"
	"ringlog/internal/platform/serializer"
	"ringlog/internal/platform/transfer"
)

// Config holds the per-stream knobs logg_init_t carried: how many records
// the staging ring can hold, how big each encoded pack may be, and the
// SenML base name/stream name.
type Config struct {
	RecordQueueSize int
	EncodingBufSize int
	BaseName        string
	Name            string
}

// Logger is the logging stream: one serializer behind one mutex, draining
// into one transfer.Driver. Grounded on logging.c's logg_t/_logg_put/
// _logg_flush/_logg_close.
type Logger struct {
	mu     sync.Mutex
	name   string
	ser    *serializer.Serializer
	driver transfer.Driver
	encLen int
}

// NewLogger allocates the logging stream's first encode buffer and its
// serializer, exactly as logg_create does.
func NewLogger(cfg Config, driver transfer.Driver) (*Logger, error) {
	if driver == nil {
		return nil, domain.ErrInvalidArgument
	}
	if cfg.EncodingBufSize == 0 {
		return nil, domain.ErrInvalidArgument
	}

	base := &domain.RecordBase{Name: cfg.BaseName}
	ser, err := serializer.NewSerializer(make([]byte, cfg.EncodingBufSize), cfg.RecordQueueSize, base)
	if err != nil {
		return nil, err
	}

	name := cfg.Name
	if name == "" {
		name = "<none>"
	}

	return &Logger{name: name, ser: ser, driver: driver, encLen: cfg.EncodingBufSize}, nil
}

// Put stages rec. A copy is taken up front so the original is untouched
// on any error path; it is only released (domain.FreeData) once Put is
// certain of success — mirroring _logg_put's "only release the original
// record data on success" contract.
//
// When the ring or the simulated pack is full, Put transparently swaps
// out the current buffer, hands it to the driver, and retries — the
// caller never needs to know a swap happened.
func (l *Logger) Put(rec *domain.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	nrec, _ := domain.Copy(*rec)

	var retval error
	switch putErr := l.ser.Put(&nrec); {
	case putErr == nil:
		retval = nil

	case errors.Is(putErr, domain.ErrMustSwap):
		// nrec is already staged in the ring; just make room for the
		// next caller by swapping the full buffer out.
		retval = l.swapAndSend()

	case errors.Is(putErr, domain.ErrQueueFull):
		if err := l.swapAndSend(); err != nil {
			retval = err
			break
		}
		retry := l.ser.Put(&nrec)
		if errors.Is(retry, domain.ErrMustSwap) {
			retval = nil
		} else {
			retval = retry
		}

	default:
		retval = putErr
	}

	domain.FreeData(&nrec)
	if retval == nil {
		domain.FreeData(rec)
	}
	return retval
}

// Close flushes every staged record out through the driver and
// permanently invalidates the serializer.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.flush()
	_, _ = l.ser.Swap(nil)
	return err
}

// swapAndSend swaps the serializer's output buffer out and hands whatever
// it filled to the driver. A non-nil, non-ErrMustSwap error from Swap
// aborts before ever reaching the driver.
func (l *Logger) swapAndSend() error {
	out, err := l.ser.Swap(make([]byte, l.encLen))
	if err != nil && !errors.Is(err, domain.ErrMustSwap) {
		return err
	}
	return l.sendBuffer(out)
}

// flush repeatedly swaps until the serializer has nothing left to
// simulate, sending every resulting buffer along the way.
func (l *Logger) flush() error {
	for {
		out, err := l.ser.Swap(make([]byte, l.encLen))
		if err != nil && !errors.Is(err, domain.ErrMustSwap) {
			return err
		}
		again := errors.Is(err, domain.ErrMustSwap)

		if sendErr := l.sendBuffer(out); sendErr != nil {
			return sendErr
		}
		if !again {
			return nil
		}
	}
}

// sendBuffer hands buf to the driver as an owned, fully-written VFile. A
// failed TrySend closes the file immediately since no callback will ever
// fire for it.
func (l *Logger) sendBuffer(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}

	vf := transfer.NewMemFile(buf, true, true)
	job := transfer.NewJob(vf, func(job *transfer.Job, _ error) {
		_ = job.FD.Close()
	})

	if err := l.driver.TrySend(job); err != nil {
		_ = vf.Close()
		return err
	}
	return nil
}
