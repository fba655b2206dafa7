package publisher

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ringlog/internal/domain"
	"ringlog/internal/platform/transfer"
)

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

func TestPublisherSendPutsBodyToEndpoint(t *testing.T) {
	var mu sync.Mutex
	var gotBody []byte

	fakePut := func(_ context.Context, addr, path string, body io.ReadSeeker) error {
		data, err := io.ReadAll(body)
		require.NoError(t, err)
		mu.Lock()
		gotBody = data
		mu.Unlock()
		assert.Equal(t, "coap://node", addr)
		assert.Equal(t, "/stream", path)
		return nil
	}

	p := newWithTransport(Config{Target: Target{Addr: "coap://node", Path: "/stream"}}, fakePut)
	fd := transfer.NewMemFile([]byte("hello"), false, true)

	require.NoError(t, p.Send(&transfer.Job{FD: fd}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "hello", string(gotBody))
}

func TestPublisherSendWrapsTransportFailure(t *testing.T) {
	fakePut := func(context.Context, string, string, io.ReadSeeker) error {
		return errors.New("no route to host")
	}

	p := newWithTransport(Config{RetryCount: 0}, fakePut)
	fd := transfer.NewMemFile([]byte("x"), false, true)

	err := p.Send(&transfer.Job{FD: fd})
	assert.ErrorIs(t, err, domain.ErrTransportFail)
}

func TestPublisherSendRetriesOnFailure(t *testing.T) {
	var attempts int
	fakePut := func(context.Context, string, string, io.ReadSeeker) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}

	p := newWithTransport(Config{RetryCount: 5}, fakePut)
	fd := transfer.NewMemFile([]byte("x"), false, true)

	require.NoError(t, p.Send(&transfer.Job{FD: fd}))
	assert.Equal(t, 3, attempts)
}

func TestPublisherTrySendInvokesCallbackOnCompletion(t *testing.T) {
	fakePut := func(context.Context, string, string, io.ReadSeeker) error { return nil }

	p := newWithTransport(Config{}, fakePut)
	fd := transfer.NewMemFile([]byte("x"), false, true)

	var called bool
	var cbErr error
	require.NoError(t, p.TrySend(&transfer.Job{
		FD: fd,
		Callback: func(_ *transfer.Job, err error) {
			called = true
			cbErr = err
		},
	}))

	waitFor(t, func() bool { return called })
	assert.NoError(t, cbErr)
}

func TestPublisherDeleteWaitsForInFlightJobs(t *testing.T) {
	release := make(chan struct{})
	fakePut := func(context.Context, string, string, io.ReadSeeker) error {
		<-release
		return nil
	}

	p := newWithTransport(Config{}, fakePut)
	fd := transfer.NewMemFile([]byte("x"), false, true)
	require.NoError(t, p.TrySend(&transfer.Job{FD: fd}))

	done := make(chan struct{})
	go func() {
		p.Delete()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Delete returned before the in-flight job finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	waitFor(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	})
}
