//go:build !unix && !windows

package transport

import "errors"

func setBroadcast(fd uintptr, enabled bool) error {
	return errors.ErrUnsupported
}
