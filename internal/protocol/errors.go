package protocol

import "errors"

var (
	ErrInvalidName      = errors.New("protocol: invalid name")
	ErrDatagramTooLarge = errors.New("protocol: datagram too large")
)
