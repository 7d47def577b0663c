// Package router implements recipient selection for inbound events.
//
// The router builds a filter from the event's merchant_id, project and ref
// (the minimum join key) and asks the connection directory for matching
// live connections. The client dimension is policy-driven: by default an
// event targets the complement of the side that produced it.
package router
