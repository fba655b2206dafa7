// Package pool implements the long-term-buffering file pool: a flat
// directory of packs named by an 8-hex-digit monotonic file id, grounded
// on data_pool.c.
package pool

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	"github.com/viant/afs/storage"

	"ringlog/internal/domain"
)

// FileSystem is the subset of github.com/viant/afs's Service the pool
// exercises: directory listing, content download, atomic move and
// delete. Declared locally, rather than depending on afs.Service's full
// option-heavy interface, so any afs.Service (e.g. afs.New()) satisfies
// it structurally and a test fake only has five methods to implement.
type FileSystem interface {
	List(ctx context.Context, URL string, opts ...storage.Option) ([]storage.Object, error)
	Download(ctx context.Context, object storage.Object, opts ...storage.Option) ([]byte, error)
	DownloadWithURL(ctx context.Context, URL string, opts ...storage.Option) ([]byte, error)
	Move(ctx context.Context, sourceURL, destURL string, opts ...storage.Option) error
	Delete(ctx context.Context, URL string, opts ...storage.Option) error
}

// fnameDigits is POOL_FNAME_MAX: every pool file name is exactly this
// many lowercase hex digits. Anything else in the directory is ignored by
// every operation below, exactly as dpool_*'s strtoul-then-check-endptr
// scan ignores non-matching names.
const fnameDigits = 8

// Pool is one LTB instance's on-disk file pool.
type Pool struct {
	fs  FileSystem
	dir string
}

// New wraps dir (a URL afs.Service understands — a local path works
// unqualified) as a pool.
func New(fs FileSystem, dir string) *Pool {
	return &Pool{fs: fs, dir: dir}
}

// FileInfo summarizes one pool file without fully decoding every record
// in it, recovered from data_pool.c's debug-only dpool_print.
type FileInfo struct {
	Name        string
	RecordCount int
	FirstName   string
	LastName    string
}

func fnameURL(dir string, fid uint32) string {
	return fmt.Sprintf("%s/%0*x", dir, fnameDigits, fid)
}

func parseFID(name string) (uint32, bool) {
	if len(name) != fnameDigits {
		return 0, false
	}
	for _, c := range name {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return 0, false
		}
	}
	v, err := strconv.ParseUint(name, 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

// list returns every pool file whose name matches the fnameDigits hex
// scheme, ignoring anything else the directory might contain.
func (p *Pool) list(ctx context.Context) ([]storage.Object, error) {
	objs, err := p.fs.List(ctx, p.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFSFail, err)
	}

	matched := make([]storage.Object, 0, len(objs))
	for _, o := range objs {
		if o.IsDir() {
			continue
		}
		if _, ok := parseFID(o.Name()); ok {
			matched = append(matched, o)
		}
	}
	return matched, nil
}

func (p *Pool) findExtreme(ctx context.Context, pickOlder bool) (uint32, bool, error) {
	objs, err := p.list(ctx)
	if err != nil {
		return 0, false, err
	}

	found := false
	var best uint32
	if pickOlder {
		best = 0xffffffff
	}

	for _, o := range objs {
		fid, _ := parseFID(o.Name())
		if !found {
			best = fid
			found = true
			continue
		}
		if pickOlder && fid < best {
			best = fid
		}
		if !pickOlder && fid > best {
			best = fid
		}
	}

	return best, found, nil
}

// MoveFile moves srcURL into the pool under the next file id
// (newest-existing + 1), mirroring dpool_move_file's atomic rename.
// _find_newest seeds newest at 0 before scanning, so an empty pool's
// first file lands at id 1, not 0.
//
// File-id wraparound: if the newest existing file
// id is already 0xFFFFFFFF, MoveFile fails with ErrFSFail instead of
// silently wrapping back to 0 and colliding with the oldest file.
func (p *Pool) MoveFile(ctx context.Context, srcURL string) error {
	newest, _, err := p.findExtreme(ctx, false)
	if err != nil {
		return err
	}

	if newest == 0xffffffff {
		return domain.ErrFSFail
	}
	next := newest + 1

	if err := p.fs.Move(ctx, srcURL, fnameURL(p.dir, next)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrFSFail, err)
	}
	return nil
}

// GetOldest returns the URL of the pool's lowest-numbered file, or
// ErrNotFound if the pool is empty.
func (p *Pool) GetOldest(ctx context.Context) (string, error) {
	oldest, found, err := p.findExtreme(ctx, true)
	if err != nil {
		return "", err
	}
	if !found {
		return "", domain.ErrNotFound
	}
	return fnameURL(p.dir, oldest), nil
}

// Drain deletes every file in the pool, ignoring anything whose name
// doesn't match the pool naming scheme.
func (p *Pool) Drain(ctx context.Context) error {
	objs, err := p.list(ctx)
	if err != nil {
		return err
	}
	for _, o := range objs {
		if err := p.fs.Delete(ctx, o.URL()); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrFSFail, err)
		}
	}
	return nil
}

// ReadFile downloads the file at url (as returned by GetOldest) without
// requiring the caller to hold a storage.Object for it.
func (p *Pool) ReadFile(ctx context.Context, url string) ([]byte, error) {
	data, err := p.fs.DownloadWithURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFSFail, err)
	}
	return data, nil
}

// DeleteFile removes exactly the file at url, without re-scanning the
// whole pool the way Drain does.
func (p *Pool) DeleteFile(ctx context.Context, url string) error {
	if err := p.fs.Delete(ctx, url); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrFSFail, err)
	}
	return nil
}

// Size returns the number of pool files currently on disk.
func (p *Pool) Size(ctx context.Context) (int, error) {
	objs, err := p.list(ctx)
	if err != nil {
		return 0, err
	}
	return len(objs), nil
}

// Inspect downloads every pool file and reports its record count and the
// name of its first and last record, without the caller needing its own
// CBOR decode loop. A file whose contents fail to decode as a SenML pack
// is skipped rather than aborting the whole scan — LTB may be mid-write
// to it.
func (p *Pool) Inspect(ctx context.Context) ([]FileInfo, error) {
	objs, err := p.list(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(objs, func(i, j int) bool {
		fi, _ := parseFID(objs[i].Name())
		fj, _ := parseFID(objs[j].Name())
		return fi < fj
	})

	infos := make([]FileInfo, 0, len(objs))
	for _, o := range objs {
		data, err := p.fs.Download(ctx, o)
		if err != nil {
			return infos, fmt.Errorf("%w: %v", domain.ErrFSFail, err)
		}

		var decoded []map[int]interface{}
		if err := cbor.Unmarshal(data, &decoded); err != nil {
			continue
		}

		info := FileInfo{Name: o.Name()}
		for _, m := range decoded {
			name, ok := m[0].(string)
			if !ok {
				continue
			}
			info.RecordCount++
			if info.FirstName == "" {
				info.FirstName = name
			}
			info.LastName = name
		}
		infos = append(infos, info)
	}

	return infos, nil
}
