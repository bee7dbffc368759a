package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireWritesPidAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "notificationd.pid")
	f := New(path)
	assert.Equal(t, path, f.Path())

	require.NoError(t, f.Acquire())
	pid, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, f.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// second release is a no-op
	assert.NoError(t, f.Release())
}

func TestAcquireRefusesLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notificationd.pid")
	// the parent of the test binary is alive for the duration of the test
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getppid())), 0o644))

	err := New(path).Acquire()
	assert.ErrorIs(t, err, ErrRunning)
}

func TestAcquireReplacesStaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notificationd.pid")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	f := New(path)
	require.NoError(t, f.Acquire())
	pid, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestReleaseWithoutAcquireKeepsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notificationd.pid")
	require.NoError(t, os.WriteFile(path, []byte("1"), 0o644))

	require.NoError(t, New(path).Release())
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestReadMissing(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "none.pid")).Read()
	assert.Error(t, err)
}
