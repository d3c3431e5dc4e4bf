// Package protocol owns the boop wire contract.
//
// Ownership boundary:
// - query/notification datagram shapes
// - encode/decode primitives
// - name validation
//
// Every message fits one UDP datagram. There is no envelope and no versioning:
// a datagram is either the literal query tag, a "boop " notification, or noise
// that callers drop without surfacing an error.
package protocol
