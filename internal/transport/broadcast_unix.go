//go:build unix

package transport

import "golang.org/x/sys/unix"

func setBroadcast(fd uintptr, enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	return unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, v)
}
