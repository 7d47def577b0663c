package directory

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	// ErrDuplicateConnection is returned by Create when the connection id is
	// already registered. Idempotency is the caller's responsibility.
	ErrDuplicateConnection = errors.New("duplicate connection")
)

// Well-known attribute keys. Arbitrary additional keys are allowed.
const (
	AttrMerchantID = "merchant_id"
	AttrClient     = "client"
	AttrProject    = "project"
	AttrRef        = "ref"
)

// Record is a registered connection and its identifying attributes.
// A record exists iff the corresponding transport connection is believed
// live; the directory is the single source of truth for liveness.
type Record struct {
	ConnectionID string
	Attributes   map[string]string
	CreatedAt    time.Time
	ExpiresAt    time.Time // Zero when the directory has no TTL configured
}

// Filter is a partial attribute mapping. A record matches when every filter
// key is present in its attributes with an equal value (logical AND); keys
// absent from the filter are ignored, never treated as wildcards.
type Filter map[string]string

// Matches reports whether attrs is a superset-match of the filter.
func (f Filter) Matches(attrs map[string]string) bool {
	for k, want := range f {
		if got, ok := attrs[k]; !ok || got != want {
			return false
		}
	}
	return true
}

// Directory is the durable registry of live connections.
//
// Create fails with ErrDuplicateConnection when the id is already present.
// Delete is an idempotent no-op when the id is absent: disconnect
// notifications may arrive more than once, or after a delivery failure
// already evicted the record.
// Find returns the ids of every live record matching the filter; an empty
// result is a normal outcome.
type Directory interface {
	Create(ctx context.Context, connectionID string, attrs map[string]string) error
	Delete(ctx context.Context, connectionID string) error
	Find(ctx context.Context, filter Filter) ([]string, error)
}
