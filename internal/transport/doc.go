// Package transport owns datagram endpoints.
//
// Ownership boundary:
// - endpoint bind/close
// - broadcast socket option
// - well-known destination addresses
//
// Errors leaving this package wrap ErrBind or ErrTransport so roles can tell
// a startup failure from a runtime send/receive failure.
package transport
