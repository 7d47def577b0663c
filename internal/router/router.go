package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maddy1092/ottu-ws/internal/directory"
	"github.com/maddy1092/ottu-ws/internal/event"
)

// ClientPolicy selects which client side of the relay receives an event
// relative to the side that produced it.
type ClientPolicy string

const (
	// PolicyComplement routes to the opposite side: backend events go to
	// frontend connections and vice versa. This is the default; a backend
	// publishing a status update never receives its own event back.
	PolicyComplement ClientPolicy = "complement"

	// PolicySame routes to connections registered with the same client
	// value as the event.
	PolicySame ClientPolicy = "same"

	// PolicyAny ignores the client dimension and fans out to every
	// connection sharing the merchant/project/ref join key.
	PolicyAny ClientPolicy = "any"
)

// Config holds configuration for the Router.
type Config struct {
	ClientPolicy ClientPolicy
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{ClientPolicy: PolicyComplement}
}

// Router resolves an inbound event to the set of recipient connection ids.
type Router interface {
	// Route returns the connection ids the event should be delivered to.
	// An empty result means nobody is listening right now; it is not an
	// error.
	Route(ctx context.Context, msg event.Message) ([]string, error)
}

// router is the internal implementation.
type router struct {
	cfg    Config
	dir    directory.Directory
	logger *slog.Logger
}

// New creates a Router backed by the given directory.
func New(cfg Config, dir directory.Directory, logger *slog.Logger) Router {
	if cfg.ClientPolicy == "" {
		cfg.ClientPolicy = PolicyComplement
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &router{
		cfg:    cfg,
		dir:    dir,
		logger: logger,
	}
}

// Route builds the join-key filter from the event and queries the
// directory.
func (r *router) Route(ctx context.Context, msg event.Message) ([]string, error) {
	filter := directory.Filter{
		directory.AttrMerchantID: msg.MerchantID,
		directory.AttrProject:    msg.Project,
		directory.AttrRef:        msg.Ref,
	}

	switch r.cfg.ClientPolicy {
	case PolicyComplement:
		if c := complement(msg.Client); c != "" {
			filter[directory.AttrClient] = c
		}
	case PolicySame:
		if msg.Client != "" {
			filter[directory.AttrClient] = msg.Client
		}
	case PolicyAny:
		// No client constraint.
	}

	ids, err := r.dir.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("route event: %w", err)
	}

	r.logger.Debug("event routed",
		"merchant_id", msg.MerchantID,
		"project", msg.Project,
		"ref", msg.Ref,
		"policy", string(r.cfg.ClientPolicy),
		"targets", len(ids),
	)

	return ids, nil
}

// complement returns the opposite client side, or "" when the event does
// not specify a known side.
func complement(client string) string {
	switch client {
	case event.ClientFrontend:
		return event.ClientBackend
	case event.ClientBackend:
		return event.ClientFrontend
	default:
		return ""
	}
}
