// Package gateway is a self-hosted WebSocket transport for the relay.
//
// The relay core is transport-agnostic: it only sees the lifecycle
// callbacks and the outbound Post primitive. This package provides both
// ends over gorilla/websocket, suitable when no managed WebSocket gateway
// fronts the service.
//
// Connect-time attributes arrive as query parameters on the upgrade
// request; merchant_id, client and project are mandatory, ref and any
// additional keys are optional.
package gateway
