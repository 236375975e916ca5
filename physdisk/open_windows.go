//go:build windows

package physdisk

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/windows"

	"hdvalidator/logbook"
)

const (
	fsctlLockVolume      = 0x90018
	fsctlDismountVolume  = 0x90020
	fsctlUnlockVolume    = 0x9001c
	fileFlagWriteThrough = 0x80000000
)

// volumePath returns \\.\X: for drive letter paths and "" otherwise.
func volumePath(devicePath string) string {
	if len(devicePath) < 6 || !strings.HasPrefix(devicePath, `\\.\`) || devicePath[5] != ':' {
		return ""
	}
	letter := strings.ToUpper(devicePath[4:5])
	if letter < "A" || letter > "Z" {
		return ""
	}
	return `\\.\` + letter + `:`
}

func volumeControl(h windows.Handle, code uint32) error {
	var bytesReturned uint32
	return windows.DeviceIoControl(h, code, nil, 0, nil, 0, &bytesReturned, nil)
}

// lockVolume locks and dismounts a drive letter volume. The returned handle
// must stay open for as long as the lock is needed.
func lockVolume(devicePath string) (windows.Handle, error) {
	vol := volumePath(devicePath)
	if vol == "" {
		return 0, nil
	}

	h, err := windows.CreateFile(
		windows.StringToUTF16Ptr(vol),
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
	if err != nil {
		return 0, fmt.Errorf("cannot open volume %s: %w", vol, err)
	}

	if err := volumeControl(h, fsctlLockVolume); err != nil {
		windows.CloseHandle(h)
		if errors.Is(err, windows.ERROR_NOT_SUPPORTED) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: cannot lock volume %s (close all programs using it): %v", ErrBusy, vol, err)
	}

	if err := volumeControl(h, fsctlDismountVolume); err != nil {
		_ = volumeControl(h, fsctlUnlockVolume)
		windows.CloseHandle(h)
		if errors.Is(err, windows.ERROR_NOT_SUPPORTED) || errors.Is(err, windows.ERROR_NOT_LOCKED) {
			return 0, nil
		}
		return 0, fmt.Errorf("cannot dismount volume %s: %w", vol, err)
	}
	logbook.LogDebug(logbook.ComponentDisk, "volume locked and dismounted", "volume", vol)
	return h, nil
}

func unlockVolume(h windows.Handle) {
	if h == 0 {
		return
	}
	_ = volumeControl(h, fsctlUnlockVolume)
	windows.CloseHandle(h)
}

func openDevice(path string, image bool, opts Options) (*os.File, func(), error) {
	if image {
		flags := os.O_RDONLY
		if opts.Writable {
			flags = os.O_RDWR | os.O_SYNC
		}
		f, err := os.OpenFile(path, flags, 0)
		return f, nil, err
	}

	var vol windows.Handle
	if opts.Exclusive {
		if volumePath(path) == "" {
			if mounted := MountedOn(path); len(mounted) > 0 {
				return nil, nil, fmt.Errorf("%w: volume %s on %s is mounted", ErrBusy, mounted[0].MountPoint, path)
			}
		}
		var err error
		if vol, err = lockVolume(path); err != nil {
			return nil, nil, err
		}
	}

	access := uint32(windows.GENERIC_READ)
	share := uint32(windows.FILE_SHARE_READ | windows.FILE_SHARE_WRITE)
	var attrs uint32
	if opts.Writable {
		access |= windows.GENERIC_WRITE
		attrs = fileFlagWriteThrough
	}
	if opts.Exclusive {
		share = 0
	}

	h, err := windows.CreateFile(windows.StringToUTF16Ptr(path), access, share, nil, windows.OPEN_EXISTING, attrs, 0)
	if err != nil {
		unlockVolume(vol)
		if errors.Is(err, windows.ERROR_SHARING_VIOLATION) {
			return nil, nil, fmt.Errorf("%w: %s", ErrBusy, path)
		}
		return nil, nil, fmt.Errorf("cannot open device %s: %w", path, err)
	}

	f := os.NewFile(uintptr(h), path)
	if f == nil {
		windows.CloseHandle(h)
		unlockVolume(vol)
		return nil, nil, fmt.Errorf("cannot create file from handle")
	}
	return f, func() { unlockVolume(vol) }, nil
}
