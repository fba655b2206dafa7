package diag

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ringlog/internal/platform/logger"
	"ringlog/internal/platform/transfer"
)

type recordingDriver struct {
	transfer.NotImplementedDriver
	out [][]byte
}

func (d *recordingDriver) TrySend(job *transfer.Job) error {
	data, err := io.ReadAll(job.FD)
	if err != nil {
		return err
	}
	d.out = append(d.out, data)
	if job.Callback != nil {
		job.Callback(job, nil)
	}
	return nil
}

func TestRecordSinkLogsLocallyWhenDisabled(t *testing.T) {
	s := NewRecordSink()
	assert.NotPanics(t, func() { s.Infof("hello %d", 1) })
}

func TestRecordSinkForwardsThroughLoggerWhenEnabled(t *testing.T) {
	drv := &recordingDriver{}
	logg, err := logger.NewLogger(logger.Config{
		RecordQueueSize: 4,
		EncodingBufSize: 256,
		Name:            "RDLOG",
	}, drv)
	require.NoError(t, err)

	s := NewRecordSink()
	s.now = func() time.Time { return time.Unix(1000, 0) }
	s.Enable(logg)

	s.Errorf("boom: %s", "oops")

	require.NoError(t, logg.Close())
	require.Len(t, drv.out, 1)
}

func TestRecordSinkDisableStopsForwarding(t *testing.T) {
	drv := &recordingDriver{}
	logg, err := logger.NewLogger(logger.Config{
		RecordQueueSize: 4,
		EncodingBufSize: 256,
		Name:            "RDLOG",
	}, drv)
	require.NoError(t, err)

	s := NewRecordSink()
	s.Enable(logg)
	s.Disable()
	s.Infof("ignored")

	require.NoError(t, logg.Close())
	assert.Empty(t, drv.out)
}

func TestHexDumpDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() { HexDump("test", []byte{0x01, 0x02, 0x03, 0xff}) })
	assert.NotPanics(t, func() { HexDump("", nil) })
}
