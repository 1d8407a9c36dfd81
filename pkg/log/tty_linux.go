//go:build linux

package log

import "golang.org/x/sys/unix"

const ioctlGetTermios = unix.TCGETS

// IsTerminal reports whether fd refers to a terminal.
func IsTerminal(fd uintptr) bool {
	_, err := unix.IoctlGetTermios(int(fd), ioctlGetTermios)
	return err == nil
}
