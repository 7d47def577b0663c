// Package dispatch implements per-connection message delivery.
//
// The dispatcher is the only component that talks to the outbound side of
// the transport. A delivery to a closed connection evicts the directory
// record before the result is returned; transient transport failures are
// surfaced without eviction or retry.
package dispatch
