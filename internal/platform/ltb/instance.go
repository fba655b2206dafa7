package ltb

import (
	"context"
	"io"
	"log"

	"github.com/google/uuid"

	"ringlog/internal/domain"
	"ringlog/internal/platform/pool"
	"ringlog/internal/platform/transfer"
)

// InstanceConfig is ltb_init_t: one LTB instance watches one pool
// directory and, if Sender is set, is eligible to have its files drained
// by a publish pass.
type InstanceConfig struct {
	Name     string
	PoolPath string
	FS       FileSystem
	// Sender is the driver a publish pass hands drained files to. An
	// instance with no sender is ingest-only: _ltb_get_first_file skips
	// exactly this case.
	Sender transfer.Driver
}

// Instance is one LTB pool attached to the subsystem, and itself
// implements transfer.Driver so a Logger can TrySend straight into it.
// Grounded on ltb.c's ltb_t / ltb_impl (only trysend and delete are
// wired — the original never implements send/tryrecv/recv on an LTB
// instance either).
type Instance struct {
	transfer.NotImplementedDriver

	sub     *Subsystem
	name    string
	pool    *pool.Pool
	fs      FileSystem
	tmpPath string
	sender  transfer.Driver
}

// CreateInstance registers a new pool directory with the subsystem.
// Registration happens on the dispatcher goroutine (disp.sync) so the
// subsystem's running file-total is adjusted atomically with respect to
// every other instance's ingest/publish activity.
func (s *Subsystem) CreateInstance(cfg InstanceConfig) (*Instance, error) {
	if cfg.Name == "" || cfg.PoolPath == "" || cfg.FS == nil {
		return nil, domain.ErrInvalidArgument
	}

	inst := &Instance{
		sub:     s,
		name:    cfg.Name,
		pool:    pool.New(cfg.FS, cfg.PoolPath),
		fs:      cfg.FS,
		tmpPath: cfg.PoolPath + "/." + cfg.Name,
		sender:  cfg.Sender,
	}

	s.disp.sync(func() { s.addInstance(inst) })

	return inst, nil
}

func (s *Subsystem) addInstance(inst *Instance) {
	n, err := inst.pool.Size(context.Background())
	if err != nil {
		n = 0
	}
	s.nbFilesTotal += n
	s.instances = append(s.instances, inst)
}

func (s *Subsystem) removeInstance(inst *Instance) {
	for i, cur := range s.instances {
		if cur == inst {
			s.instances = append(s.instances[:i], s.instances[i+1:]...)
			break
		}
	}

	n, err := inst.pool.Size(context.Background())
	if err != nil {
		n = 0
	}
	s.nbFilesTotal -= n
}

// Delete unregisters the instance. Blocks until the dispatcher has
// processed the removal.
func (inst *Instance) Delete() error {
	inst.sub.disp.sync(func() { inst.sub.removeInstance(inst) })
	return nil
}

// TrySend enqueues job for ingest into this instance's pool without
// blocking the caller; ingest itself (reading job.FD, staging it under
// the hidden temp name, and renaming it into the pool) always runs on
// the dispatcher goroutine.
func (inst *Instance) TrySend(job *transfer.Job) error {
	if job.ID != uuid.Nil {
		log.Printf("ltb: instance %q dispatching ingest for job %s", inst.name, job.ID)
	}
	return inst.sub.disp.async(func() { inst.sub.ingest(inst, job) })
}

// ingest stages job.FD's content into the pool under the instance's
// hidden temp name (".<name>") and atomically renames it in, mirroring
// _ltb_try_send_disp. The job's callback, if any, fires exactly once with
// the final outcome — success or the first failing step.
func (s *Subsystem) ingest(inst *Instance, job *transfer.Job) {
	ctx := context.Background()
	err := inst.writeAndMoveIntoPool(ctx, job.FD)

	if err == nil {
		s.nbFilesTotal++
	}

	s.updatePublishCond(ctx, inst)

	if job.Callback != nil {
		job.Callback(job, err)
	}
}

func (inst *Instance) writeAndMoveIntoPool(ctx context.Context, fd transfer.VFile) error {
	if _, err := fd.Seek(0, io.SeekStart); err != nil {
		return err
	}

	if err := inst.fs.Upload(ctx, inst.tmpPath, 0o644, fd); err != nil {
		return domain.ErrFSFail
	}

	return inst.pool.MoveFile(ctx, inst.tmpPath)
}
