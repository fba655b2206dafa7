package ltb

import (
	"context"
	"log"

	"ringlog/internal/domain"
	"ringlog/internal/platform/transfer"
)

// firstPublishableFile walks the instance list in registration order and
// returns the oldest file of the first instance that has one, mirroring
// _ltb_get_first_file. An instance with no sender attached is skipped
// outright — there is nowhere to publish it to. Any other error from
// GetOldest is remembered but does not stop the scan: a later instance
// may still yield a file. If nothing is found, the last such error is
// returned (ErrNotFound if every instance's pool was simply empty).
func (s *Subsystem) firstPublishableFile(ctx context.Context) (*Instance, string, error) {
	var lastErr error = domain.ErrNotFound

	for _, inst := range s.instances {
		if inst.sender == nil {
			continue
		}
		url, err := inst.pool.GetOldest(ctx)
		if err == nil {
			return inst, url, nil
		}
		if err != domain.ErrNotFound {
			lastErr = err
		}
	}

	return nil, "", lastErr
}

// publishPass drains pool files across every instance one at a time,
// handing each to its instance's sender, until no instance has a file
// left to publish. cb, if non-nil, fires exactly once with the pass's
// terminal outcome.
//
// publishing is set at the top of every invocation, including a
// redispatched continuation, and is only ever cleared back to false at a
// genuine terminal branch below (no file found, a hard send error, or a
// failed redispatch enqueue) — never unconditionally. A successful
// publish leaves publishing true and re-enqueues itself asynchronously
// to interleave with other dispatcher work (ingest, Stats, ...) rather
// than draining every file in one uninterrupted call; that tail
// redispatch is also the path that must NOT clear publishing, since the
// pass is still logically in flight until the redispatched call reaches
// a terminal branch of its own.
func (s *Subsystem) publishPass(cb func(error)) {
	s.publishing = true

	ctx := context.Background()
	inst, url, err := s.firstPublishableFile(ctx)
	if err != nil {
		s.publishing = false
		if cb != nil {
			cb(nil)
		}
		return
	}

	if err := s.sendAndRemove(ctx, inst, url); err != nil {
		s.publishing = false
		if cb != nil {
			cb(err)
		}
		return
	}

	if err := s.disp.async(func() { s.publishPass(cb) }); err != nil {
		s.publishing = false
		if cb != nil {
			cb(err)
		}
	}
}

// sendAndRemove downloads url, hands it to inst.sender, and deletes it
// from the pool on success. A delete failure is logged-and-ignored
// rather than treated as a pass failure: the file was already handed
// off, so leaving it behind only costs a duplicate publish next pass,
// which is preferable to retrying the send.
func (s *Subsystem) sendAndRemove(ctx context.Context, inst *Instance, url string) error {
	data, err := inst.pool.ReadFile(ctx, url)
	if err != nil {
		return err
	}

	fd := transfer.NewMemFile(data, false, true)
	if err := inst.sender.Send(transfer.NewJob(fd, nil)); err != nil {
		return err
	}

	if err := inst.pool.DeleteFile(ctx, url); err != nil {
		log.Printf("ltb: instance %q could not delete published file %s: %v", inst.name, url, err)
		return nil
	}
	s.nbFilesTotal--
	return nil
}

// updatePublishCond runs inline rather than via dispatch — it is only
// ever called from within a closure already executing on the dispatcher
// goroutine (ingest's completion) — mirroring _ltb_upd_pub_cond.
func (s *Subsystem) updatePublishCond(ctx context.Context, inst *Instance) {
	if s.publishing {
		return
	}
	if s.nbFilesTotal < s.cfg.NbFilesLim {
		return
	}
	if s.cfg.ExtCond != nil && !s.cfg.ExtCond() {
		return
	}
	s.publishPass(nil)
}

// ForcePublish requests an out-of-band publish pass, e.g. from the REST
// control plane. If a pass is already running, cb is invoked immediately
// with ErrPublishInProgress rather than the request being silently
// dropped or queued behind the running pass.
func (s *Subsystem) ForcePublish(cb func(error)) error {
	return s.disp.async(func() {
		if s.publishing {
			if cb != nil {
				cb(domain.ErrPublishInProgress)
			}
			return
		}
		s.publishPass(cb)
	})
}
