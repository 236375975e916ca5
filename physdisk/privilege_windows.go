//go:build windows

package physdisk

import "golang.org/x/sys/windows"

// Privileged reports whether the process runs with an elevated token.
func Privileged() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
