package ltb

import (
	"context"
	"io"
	"io/fs"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs/storage"

	"ringlog/internal/domain"
	"ringlog/internal/platform/transfer"
)

// fakeObject is the smallest storage.Object a pool scan needs.
type fakeObject struct {
	name string
	data []byte
}

func (f *fakeObject) Name() string                    { return f.name }
func (f *fakeObject) Size() int64                     { return int64(len(f.data)) }
func (f *fakeObject) Mode() fs.FileMode               { return 0o644 }
func (f *fakeObject) ModTime() time.Time              { return time.Time{} }
func (f *fakeObject) IsDir() bool                     { return false }
func (f *fakeObject) Sys() interface{}                { return nil }
func (f *fakeObject) URL() string                     { return "mem:///" + f.name }
func (f *fakeObject) Wrap(interface{})                {}
func (f *fakeObject) Unwrap(target interface{}) error { return nil }

// fakeFS implements ltb.FileSystem (pool.FileSystem + Upload) over an
// in-memory map, guarded by a mutex since ingest runs on the dispatcher
// goroutine while tests assert from the test goroutine.
type fakeFS struct {
	mu   sync.Mutex
	objs map[string]*fakeObject
}

func newFakeFS() *fakeFS {
	return &fakeFS{objs: map[string]*fakeObject{}}
}

func (f *fakeFS) Upload(_ context.Context, URL string, _ os.FileMode, r io.Reader, _ ...storage.Option) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objs[URL] = &fakeObject{name: URL, data: data}
	return nil
}

func (f *fakeFS) List(_ context.Context, dir string, _ ...storage.Option) ([]storage.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]storage.Object, 0, len(f.objs))
	for name, o := range f.objs {
		if len(name) >= len(dir) && name[:len(dir)] == dir {
			rest := name[len(dir):]
			if len(rest) > 1 && rest[0] == '/' {
				out = append(out, &fakeObject{name: rest[1:], data: o.data})
			}
		}
	}
	return out, nil
}

func (f *fakeFS) Download(_ context.Context, object storage.Object, _ ...storage.Option) ([]byte, error) {
	return object.(*fakeObject).data, nil
}

func (f *fakeFS) DownloadWithURL(_ context.Context, URL string, _ ...storage.Option) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.objs[URL]; ok {
		return o.data, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeFS) Move(_ context.Context, sourceURL, destURL string, _ ...storage.Option) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.objs[sourceURL]
	if !ok {
		return domain.ErrNotFound
	}
	delete(f.objs, sourceURL)
	f.objs[destURL] = &fakeObject{name: destURL, data: src.data}
	return nil
}

func (f *fakeFS) Delete(_ context.Context, URL string, _ ...storage.Option) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objs, URL)
	return nil
}

// recordingSender is a transfer.Driver that just remembers every payload
// handed to Send, for publish-pass assertions.
type recordingSender struct {
	transfer.NotImplementedDriver
	mu  sync.Mutex
	got [][]byte
}

func (s *recordingSender) Send(job *transfer.Job) error {
	data, err := io.ReadAll(job.FD)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.got = append(s.got, data)
	s.mu.Unlock()
	return nil
}

func (s *recordingSender) sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

func TestDispatcherAsyncRefusesOnFullQueue(t *testing.T) {
	d := newDispatcher()
	block := make(chan struct{})
	d.queue <- func() { <-block }
	for i := 0; i < dispatchQueueLen-1; i++ {
		require.NoError(t, d.async(func() {}))
	}
	assert.ErrorIs(t, d.async(func() {}), domain.ErrWouldBlock)
	close(block)
}

func TestDispatcherSyncWaitsForCompletion(t *testing.T) {
	d := newDispatcher()
	go d.run()
	var ran bool
	d.sync(func() { ran = true })
	assert.True(t, ran)
}

func TestCreateInstanceAddsToSubsystem(t *testing.T) {
	sub := NewSubsystem(Config{NbFilesLim: 100})
	fs := newFakeFS()

	inst, err := sub.CreateInstance(InstanceConfig{Name: "a", PoolPath: "/pool/a", FS: fs})
	require.NoError(t, err)
	require.NotNil(t, inst)

	st := sub.Stats()
	assert.Equal(t, 1, st.Instances)
}

func TestCreateInstanceRejectsMissingFields(t *testing.T) {
	sub := NewSubsystem(Config{})
	_, err := sub.CreateInstance(InstanceConfig{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestDeleteInstanceRemovesFromSubsystem(t *testing.T) {
	sub := NewSubsystem(Config{NbFilesLim: 100})
	fs := newFakeFS()
	inst, err := sub.CreateInstance(InstanceConfig{Name: "a", PoolPath: "/pool/a", FS: fs})
	require.NoError(t, err)

	require.NoError(t, inst.Delete())

	st := sub.Stats()
	assert.Equal(t, 0, st.Instances)
}

func TestIngestMovesFileIntoPoolAndInvokesCallback(t *testing.T) {
	sub := NewSubsystem(Config{NbFilesLim: 100})
	fs := newFakeFS()
	inst, err := sub.CreateInstance(InstanceConfig{Name: "a", PoolPath: "/pool/a", FS: fs})
	require.NoError(t, err)

	fd := transfer.NewMemFile([]byte("payload"), false, true)
	var cbErr error
	var called bool
	require.NoError(t, inst.TrySend(&transfer.Job{
		FD: fd,
		Callback: func(_ *transfer.Job, err error) {
			called = true
			cbErr = err
		},
	}))

	waitFor(t, func() bool { return called })
	assert.NoError(t, cbErr)

	st := sub.Stats()
	assert.Equal(t, 1, st.FilesTotal)
}

func TestThresholdCrossingTriggersAutoPublish(t *testing.T) {
	sender := &recordingSender{}
	fs := newFakeFS()
	sub := NewSubsystem(Config{NbFilesLim: 1})
	inst, err := sub.CreateInstance(InstanceConfig{Name: "a", PoolPath: "/pool/a", FS: fs, Sender: sender})
	require.NoError(t, err)

	require.NoError(t, inst.TrySend(&transfer.Job{FD: transfer.NewMemFile([]byte("x"), false, true)}))

	waitFor(t, func() bool { return sender.sent() == 1 })

	st := sub.Stats()
	assert.Equal(t, 0, st.FilesTotal)
	assert.False(t, st.Publishing)
}

func TestPublishPassDrainsMultipleFilesAcrossRedispatch(t *testing.T) {
	sender := &recordingSender{}
	fs := newFakeFS()
	sub := NewSubsystem(Config{NbFilesLim: 1000})
	inst, err := sub.CreateInstance(InstanceConfig{Name: "a", PoolPath: "/pool/a", FS: fs, Sender: sender})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, inst.TrySend(&transfer.Job{FD: transfer.NewMemFile([]byte("x"), false, true)}))
	}
	waitFor(t, func() bool { return sub.Stats().FilesTotal == 3 })

	var done bool
	var forceErr error
	require.NoError(t, sub.ForcePublish(func(err error) {
		done = true
		forceErr = err
	}))

	waitFor(t, func() bool { return sender.sent() == 3 })
	waitFor(t, func() bool { return done })
	assert.NoError(t, forceErr)
	assert.Equal(t, 0, sub.Stats().FilesTotal)
}

func TestForcePublishReturnsInProgressWhenAlreadyPublishing(t *testing.T) {
	sub := NewSubsystem(Config{NbFilesLim: 1000})

	sub.disp.sync(func() { sub.publishing = true })

	var gotErr error
	var called bool
	require.NoError(t, sub.ForcePublish(func(err error) {
		called = true
		gotErr = err
	}))

	waitFor(t, func() bool { return called })
	assert.ErrorIs(t, gotErr, domain.ErrPublishInProgress)
}

func TestForcePublishWithNoPublishableFilesCallsBackWithNoError(t *testing.T) {
	fs := newFakeFS()
	sub := NewSubsystem(Config{NbFilesLim: 1000})
	_, err := sub.CreateInstance(InstanceConfig{Name: "a", PoolPath: "/pool/a", FS: fs, Sender: &recordingSender{}})
	require.NoError(t, err)

	var called bool
	var gotErr error
	require.NoError(t, sub.ForcePublish(func(err error) {
		called = true
		gotErr = err
	}))

	waitFor(t, func() bool { return called })
	assert.NoError(t, gotErr)
	assert.False(t, sub.Stats().Publishing)
}
