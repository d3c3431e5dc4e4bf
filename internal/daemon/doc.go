// Package daemon owns the listening side of the boop protocol.
//
// Ownership boundary:
// - registered name (immutable per process)
// - query replies
// - notification filtering and announcement dispatch
//
// Lifecycle order:
// - idle -> bound -> listening -> stopped | failed
//
// - listening handles one datagram at a time; only announcement rendering
//   runs off the loop.
//
// - stopped is reached through context cancellation; any receive error
//   (and, under the fatal policy, any reply or announce failure) ends in
//   failed.
package daemon
