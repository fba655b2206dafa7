// Package transfer defines the capability contract every transport a
// Logger/LTB instance can be attached to must satisfy, and the in-memory
// virtual file records travel through on their way to that transport.
package transfer

import (
	"github.com/google/uuid"

	"ringlog/internal/domain"
)

// Job describes one transfer: a VFile to read from or write to, and an
// optional completion callback.
//
// For async transfers (TrySend/TryRecv): if the driver cannot enqueue the
// job at all, Callback is NOT invoked — the error return is the only
// signal. Once enqueued, Callback fires exactly once on completion,
// success or failure.
//
// For sync transfers (Send/Recv): Callback is never invoked; the error
// return fully conveys the outcome. Callers own FD either way and must
// close it themselves once the job is done — in the callback on success,
// or immediately after a synchronous call returns.
type Job struct {
	// ID correlates one job across dispatch/retry/log lines; callers that
	// don't care about tracing can leave it at its zero value.
	ID       uuid.UUID
	FD       VFile
	Callback func(job *Job, err error)
}

// NewJob allocates a Job with a fresh correlation ID.
func NewJob(fd VFile, cb func(job *Job, err error)) *Job {
	return &Job{ID: uuid.New(), FD: fd, Callback: cb}
}

// Driver is the capability contract a transport exposes to the Logger/LTB
// subsystem. A driver need not implement every method: methods it does not
// support return domain.ErrNotImplemented, mirroring the original's
// per-method nil function-pointer check.
type Driver interface {
	// TrySend starts a send without blocking. Returns domain.ErrWouldBlock
	// if the job cannot be enqueued right now.
	TrySend(job *Job) error
	// Send starts a send and blocks until the driver has accepted and
	// completed it.
	Send(job *Job) error
	// TryRecv starts a receive without blocking. Returns
	// domain.ErrWouldBlock if the job cannot be enqueued right now.
	TryRecv(job *Job) error
	// Recv starts a receive and blocks until complete.
	Recv(job *Job) error
	// Delete releases the driver. Depending on the implementation this may
	// block until in-flight jobs drain.
	Delete() error
}

// NotImplementedDriver can be embedded by a driver that only implements a
// subset of Driver, so the rest return domain.ErrNotImplemented without
// each implementation repeating the boilerplate.
type NotImplementedDriver struct{}

func (NotImplementedDriver) TrySend(*Job) error { return domain.ErrNotImplemented }
func (NotImplementedDriver) Send(*Job) error    { return domain.ErrNotImplemented }
func (NotImplementedDriver) TryRecv(*Job) error { return domain.ErrNotImplemented }
func (NotImplementedDriver) Recv(*Job) error    { return domain.ErrNotImplemented }
func (NotImplementedDriver) Delete() error      { return nil }
