package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/maddy1092/ottu-ws/internal/directory"
)

// ErrConnectionNotFound is returned by a Transport when the target
// connection no longer exists (closed socket, unknown id).
var ErrConnectionNotFound = errors.New("connection not found")

// DeliveryResult is the outcome of a single delivery attempt.
type DeliveryResult string

const (
	// Delivered means the transport accepted the message.
	Delivered DeliveryResult = "delivered"

	// ConnectionGone means the target connection is stale or closed. The
	// dispatcher has already evicted its directory record.
	ConnectionGone DeliveryResult = "connection_gone"

	// TransportError means a transient transport failure. The record is
	// kept and no retry is attempted here; retry policy belongs to the
	// caller.
	TransportError DeliveryResult = "transport_error"
)

// Transport is the outbound primitive the relay depends on. Post writes a
// message body to one live connection and returns ErrConnectionNotFound
// when the connection does not exist.
type Transport interface {
	Post(ctx context.Context, connectionID string, body []byte) error
}

// Stats contains dispatcher counters.
type Stats struct {
	Delivered       int64
	Evicted         int64
	TransportErrors int64
}

// Dispatcher attempts delivery of message bodies to individual connections
// and reconciles the directory on failure.
type Dispatcher interface {
	// Send delivers body to one connection. At-most-once: a failed attempt
	// is never retried.
	Send(ctx context.Context, connectionID string, body []byte) DeliveryResult

	// Stats returns current delivery counters.
	Stats() Stats
}

// dispatcher is the internal implementation.
type dispatcher struct {
	transport Transport
	dir       directory.Directory
	logger    *slog.Logger

	mu              sync.Mutex
	delivered       int64
	evicted         int64
	transportErrors int64
}

// New creates a Dispatcher over the given transport and directory.
func New(transport Transport, dir directory.Directory, logger *slog.Logger) Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &dispatcher{
		transport: transport,
		dir:       dir,
		logger:    logger,
	}
}

// Send attempts delivery and evicts the directory record when the
// connection is gone. Eviction is synchronous: by the time ConnectionGone
// is returned the record has been deleted, so future events for the same
// filter no longer rediscover the dead connection.
func (d *dispatcher) Send(ctx context.Context, connectionID string, body []byte) DeliveryResult {
	err := d.transport.Post(ctx, connectionID, body)
	if err == nil {
		d.mu.Lock()
		d.delivered++
		d.mu.Unlock()
		return Delivered
	}

	if errors.Is(err, ErrConnectionNotFound) {
		if delErr := d.dir.Delete(ctx, connectionID); delErr != nil {
			d.logger.Error("evict after failed delivery",
				"connection_id", connectionID,
				"error", delErr,
			)
		} else {
			d.logger.Info("stale connection evicted", "connection_id", connectionID)
		}

		d.mu.Lock()
		d.evicted++
		d.mu.Unlock()
		return ConnectionGone
	}

	d.logger.Warn("transport error",
		"connection_id", connectionID,
		"error", err,
	)

	d.mu.Lock()
	d.transportErrors++
	d.mu.Unlock()
	return TransportError
}

// Stats returns current counters.
func (d *dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return Stats{
		Delivered:       d.delivered,
		Evicted:         d.evicted,
		TransportErrors: d.transportErrors,
	}
}
