//go:build windows

package transport

import "golang.org/x/sys/windows"

func setBroadcast(fd uintptr, enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	return windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_BROADCAST, v)
}
