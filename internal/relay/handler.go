package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/maddy1092/ottu-ws/internal/directory"
	"github.com/maddy1092/ottu-ws/internal/dispatch"
	"github.com/maddy1092/ottu-ws/internal/event"
	"github.com/maddy1092/ottu-ws/internal/router"
)

// pongBody is the application-level heartbeat reply.
var pongBody = []byte("pong")

// Report is the aggregate outcome of one inbound message fan-out.
type Report struct {
	Targets   int // Connections the router matched
	Delivered int
	Evicted   int
	Errored   int
}

// Stats contains handler counters.
type Stats struct {
	Connects          int64
	DuplicateConnects int64
	Disconnects       int64
	Messages          int64
	MalformedPayloads int64
}

// Handler orchestrates the directory, router and dispatcher. It is driven
// by transport lifecycle callbacks and holds no cross-message session
// state: every OnMessage call is processed independently, other than via
// the directory.
type Handler interface {
	// OnConnect registers a new connection with its connect-time
	// attributes. A duplicate id is logged and treated as a benign no-op.
	OnConnect(ctx context.Context, connectionID string, attrs map[string]string) error

	// OnDisconnect removes the connection record. Always succeeds when the
	// record is already gone.
	OnDisconnect(ctx context.Context, connectionID string) error

	// OnMessage parses a raw inbound body, routes it and fans it out. A
	// malformed body fails with event.ErrMalformedPayload and produces no
	// deliveries. Per-target failures never abort the remaining targets.
	OnMessage(ctx context.Context, connectionID string, raw []byte) (Report, error)

	// Stats returns current handler counters.
	Stats() Stats
}

// handler is the internal implementation.
type handler struct {
	dir        directory.Directory
	router     router.Router
	dispatcher dispatch.Dispatcher
	logger     *slog.Logger

	mu                sync.Mutex
	connects          int64
	duplicateConnects int64
	disconnects       int64
	messages          int64
	malformed         int64
}

// New creates a Handler.
func New(dir directory.Directory, r router.Router, d dispatch.Dispatcher, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &handler{
		dir:        dir,
		router:     r,
		dispatcher: d,
		logger:     logger,
	}
}

// OnConnect registers the connection in the directory. The transport calls
// this before it accepts any message for the connection, so a routed event
// never races its own registration.
func (h *handler) OnConnect(ctx context.Context, connectionID string, attrs map[string]string) error {
	err := h.dir.Create(ctx, connectionID, attrs)
	if errors.Is(err, directory.ErrDuplicateConnection) {
		h.logger.Warn("duplicate connect accepted as no-op", "connection_id", connectionID)
		h.mu.Lock()
		h.duplicateConnects++
		h.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("register connection: %w", err)
	}

	h.logger.Info("connection registered",
		"connection_id", connectionID,
		"merchant_id", attrs[directory.AttrMerchantID],
		"client", attrs[directory.AttrClient],
		"project", attrs[directory.AttrProject],
	)

	h.mu.Lock()
	h.connects++
	h.mu.Unlock()
	return nil
}

// OnDisconnect deletes the connection record. Disconnect notifications may
// arrive after an eviction already removed the record; both paths converge
// on the same idempotent delete.
func (h *handler) OnDisconnect(ctx context.Context, connectionID string) error {
	if err := h.dir.Delete(ctx, connectionID); err != nil {
		return fmt.Errorf("deregister connection: %w", err)
	}

	h.logger.Info("connection deregistered", "connection_id", connectionID)

	h.mu.Lock()
	h.disconnects++
	h.mu.Unlock()
	return nil
}

// OnMessage handles one inbound message from connectionID.
func (h *handler) OnMessage(ctx context.Context, connectionID string, raw []byte) (Report, error) {
	h.mu.Lock()
	h.messages++
	h.mu.Unlock()

	msg, err := event.Parse(raw)
	if err != nil {
		h.logger.Warn("rejecting inbound message",
			"connection_id", connectionID,
			"error", err,
		)
		h.mu.Lock()
		h.malformed++
		h.mu.Unlock()
		return Report{}, err
	}

	// Heartbeats are answered to the sender only, never routed.
	if msg.IsPing() {
		report := Report{Targets: 1}
		h.tally(&report, h.dispatcher.Send(ctx, connectionID, pongBody))
		return report, nil
	}

	targets, err := h.router.Route(ctx, msg)
	if err != nil {
		return Report{}, fmt.Errorf("route message: %w", err)
	}

	report := Report{Targets: len(targets)}
	for _, target := range targets {
		h.tally(&report, h.dispatcher.Send(ctx, target, raw))
	}

	if report.Targets > 0 {
		h.logger.Debug("message fanned out",
			"connection_id", connectionID,
			"ref", msg.Ref,
			"targets", report.Targets,
			"delivered", report.Delivered,
			"evicted", report.Evicted,
			"errored", report.Errored,
		)
	}

	return report, nil
}

// Stats returns current counters.
func (h *handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	return Stats{
		Connects:          h.connects,
		DuplicateConnects: h.duplicateConnects,
		Disconnects:       h.disconnects,
		Messages:          h.messages,
		MalformedPayloads: h.malformed,
	}
}

func (h *handler) tally(report *Report, result dispatch.DeliveryResult) {
	switch result {
	case dispatch.Delivered:
		report.Delivered++
	case dispatch.ConnectionGone:
		report.Evicted++
	case dispatch.TransportError:
		report.Errored++
	}
}
