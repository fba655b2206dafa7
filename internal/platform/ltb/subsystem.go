package ltb

import (
	"context"
	"io"
	"os"

	"github.com/viant/afs/storage"

	"ringlog/internal/platform/pool"
)

// FileSystem is pool.FileSystem plus the write side an instance needs to
// stage an incoming transfer before handing it to Pool.MoveFile.
type FileSystem interface {
	pool.FileSystem
	Upload(ctx context.Context, URL string, mode os.FileMode, reader io.Reader, opts ...storage.Option) error
}

// Config holds the subsystem-wide knobs ltb_subsys_init_t carried.
type Config struct {
	// NbFilesLim is the total pool-file count across every instance that
	// triggers an automatic publish pass.
	NbFilesLim int
	// ExtCond is an optional additional predicate (e.g. "radio currently
	// reachable") a threshold crossing must also satisfy; nil means
	// always true.
	ExtCond func() bool
}

// Subsystem is the LTB dispatcher plus the shared state only it ever
// touches: the instance list, the running file total across every
// instance's pool, and whether a publish pass is currently in flight.
type Subsystem struct {
	disp *dispatcher

	cfg          Config
	instances    []*Instance
	nbFilesTotal int
	publishing   bool
}

// NewSubsystem starts the dispatcher goroutine and returns the ready
// subsystem, mirroring ltb_subsys_init's thread_create.
func NewSubsystem(cfg Config) *Subsystem {
	s := &Subsystem{disp: newDispatcher(), cfg: cfg}
	go s.disp.run()
	return s
}

// Stats reports the subsystem's current view of its own state, for the
// REST control plane's /pool/stats endpoint.
type Stats struct {
	Instances  int
	FilesTotal int
	FilesLimit int
	Publishing bool
}

// Stats is itself dispatched through the serial queue: FilesTotal and
// Publishing are dispatcher-owned state and must not be read racily from
// another goroutine.
func (s *Subsystem) Stats() Stats {
	var st Stats
	s.disp.sync(func() {
		st = Stats{
			Instances:  len(s.instances),
			FilesTotal: s.nbFilesTotal,
			FilesLimit: s.cfg.NbFilesLim,
			Publishing: s.publishing,
		}
	})
	return st
}
