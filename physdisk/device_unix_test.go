//go:build !windows

package physdisk

import (
	"os"
	"runtime"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"hdvalidator/surface"
)

func TestDeviceErrorClassification(t *testing.T) {
	media := deviceError("read", 7, 1, &os.PathError{Op: "read", Path: "/dev/sdz", Err: syscall.EIO})
	assert.True(t, surface.IsTransient(media))
	assert.Equal(t, int(syscall.EIO), surface.ErrorCode(media))

	gone := deviceError("read", 7, 1, &os.PathError{Op: "read", Path: "/dev/sdz", Err: syscall.ENODEV})
	assert.False(t, surface.IsTransient(gone))
	assert.Equal(t, int(syscall.ENODEV), surface.ErrorCode(gone))

	plain := deviceError("read", 7, 1, os.ErrClosed)
	assert.False(t, surface.IsTransient(plain))
	assert.Equal(t, -1, surface.ErrorCode(plain))
}

func TestExclusiveOpenLocks(t *testing.T) {
	path := makeImage(t, 16*512)
	first, err := Open(path, Options{Writable: true, Exclusive: true})
	require.NoError(t, err)

	_, err = Open(path, Options{Writable: true, Exclusive: true})
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, first.Close())
	again, err := Open(path, Options{Writable: true, Exclusive: true})
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestOpenFlags(t *testing.T) {
	if runtime.GOOS == "linux" {
		require.NotZero(t, directIO, "linux devices bypass the page cache")
	}

	img := openFlags(true, Options{Writable: true, Exclusive: true})
	assert.Equal(t, os.O_RDWR|os.O_SYNC, img, "images keep buffered I/O")

	dev := openFlags(false, Options{})
	assert.Equal(t, os.O_RDONLY|directIO, dev)

	excl := openFlags(false, Options{Writable: true, Exclusive: true})
	assert.Equal(t, directIO, excl&directIO)
	assert.NotZero(t, excl&os.O_SYNC)
	if runtime.GOOS == "linux" {
		assert.NotZero(t, excl&unix.O_EXCL)
	}
}
