package transfer

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemFileWriteExtendsWatermark(t *testing.T) {
	f := NewMemFile(make([]byte, 8), false, false)

	n, err := f.Write([]byte("abcd"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("abcd"), f.Bytes())
}

func TestMemFileWriteTruncatesPastCapacity(t *testing.T) {
	f := NewMemFile(make([]byte, 4), false, false)

	n, err := f.Write([]byte("abcdefgh"))
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("abcd"), f.Bytes())
}

func TestMemFileReadRespectsWatermark(t *testing.T) {
	f := NewMemFile([]byte("hello"), false, true)

	buf := make([]byte, 3)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "hel", string(buf))

	buf2 := make([]byte, 10)
	n, err = f.Read(buf2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "lo", string(buf2[:n]))

	_, err = f.Read(buf2)
	assert.ErrorIs(t, err, io.EOF)
}

func TestMemFileSeekExtendsWatermark(t *testing.T) {
	f := NewMemFile(make([]byte, 16), false, false)

	pos, err := f.Seek(4, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 4, pos)

	n, err := f.Write([]byte("xy"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 6, len(f.Bytes()))
}

func TestMemFileSeekRejectsPastCapacity(t *testing.T) {
	f := NewMemFile(make([]byte, 4), false, false)

	_, err := f.Seek(100, io.SeekStart)
	assert.Error(t, err)
}

func TestMemFileCloseReleasesOwnedBuffer(t *testing.T) {
	f := NewMemFile(make([]byte, 4), true, false)
	require.NoError(t, f.Close())

	_, err := f.Write([]byte("a"))
	assert.Error(t, err)
}

func TestMemFileHasDataStartsFullyWatermarked(t *testing.T) {
	f := NewMemFile([]byte("abc"), false, true)
	assert.Equal(t, []byte("abc"), f.Bytes())
	assert.True(t, f.HasData())
}
