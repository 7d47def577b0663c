// Package relay wires the connection directory, router and dispatcher
// behind the transport lifecycle callbacks (connect, disconnect, message).
package relay
