package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/maddy1092/ottu-ws/internal/directory"
	"github.com/maddy1092/ottu-ws/internal/dispatch"
	"github.com/maddy1092/ottu-ws/internal/relay"
)

// Config configures the WebSocket gateway.
type Config struct {
	Addr           string        // Listen address (e.g., ":8080")
	WriteTimeout   time.Duration // Write deadline for outbound frames
	PingInterval   time.Duration // Interval between control pings
	ReadTimeout    time.Duration // Max time without a pong before the socket is stale
	MaxMessageSize int64         // Max inbound frame size in bytes
	SendBufferSize int           // Per-connection outbound queue length
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		WriteTimeout:   5 * time.Second,
		PingInterval:   15 * time.Second,
		ReadTimeout:    60 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendBufferSize: 256,
	}
}

// Stats provides statistics about the gateway.
type Stats struct {
	ConnectedCount int
}

// requiredAttrs must be present as query parameters on every upgrade
// request; ref may arrive at connect time or only later inside messages.
var requiredAttrs = []string{
	directory.AttrMerchantID,
	directory.AttrClient,
	directory.AttrProject,
}

// Server is a self-hosted replacement for a managed WebSocket gateway. It
// upgrades HTTP requests, assigns connection ids, drives the relay handler
// callbacks sequentially per connection, and implements the dispatch
// Transport port for outbound delivery.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	handler relay.Handler

	upgrader websocket.Upgrader
	httpSrv  *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.RWMutex
	conns map[string]*conn
}

// NewServer creates a gateway server. The relay handler is attached with
// SetHandler before Start.
func NewServer(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		conns: make(map[string]*conn),
	}
}

// SetHandler attaches the relay handler that receives lifecycle callbacks.
func (s *Server) SetHandler(h relay.Handler) {
	s.handler = h
}

// Start begins accepting WebSocket upgrades.
func (s *Server) Start(ctx context.Context) error {
	if s.handler == nil {
		return errors.New("gateway: no handler attached")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.httpSrv = &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("gateway listener error", "error", err)
		}
	}()

	s.logger.Info("gateway started", "addr", s.cfg.Addr)
	return nil
}

// Stop closes the listener and every live connection.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping gateway")

	if s.cancel != nil {
		s.cancel()
	}
	if s.httpSrv != nil {
		s.httpSrv.Shutdown(ctx)
	}

	s.mu.Lock()
	for _, c := range s.conns {
		c.close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("gateway stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("gateway stop timed out")
		return ctx.Err()
	}
}

// Stats returns current statistics.
func (s *Server) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{ConnectedCount: len(s.conns)}
}

// Post implements the dispatch Transport port: it queues body for delivery
// on one live connection. Unknown or closing connections resolve to
// dispatch.ErrConnectionNotFound; a saturated outbound queue is a transient
// transport failure.
func (s *Server) Post(ctx context.Context, connectionID string, body []byte) error {
	s.mu.RLock()
	c, ok := s.conns[connectionID]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("connection %s: %w", connectionID, dispatch.ErrConnectionNotFound)
	}

	// A closed connection must never count as delivered, even while its
	// teardown is still pending and buffer space remains.
	select {
	case <-c.done:
		return fmt.Errorf("connection %s: %w", connectionID, dispatch.ErrConnectionNotFound)
	default:
	}

	select {
	case c.send <- body:
		return nil
	case <-c.done:
		return fmt.Errorf("connection %s: %w", connectionID, dispatch.ErrConnectionNotFound)
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("connection %s: send buffer full", connectionID)
	}
}

// ServeHTTP upgrades one HTTP request into a relayed connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	attrs := attrsFromQuery(r)
	for _, key := range requiredAttrs {
		if attrs[key] == "" {
			http.Error(w, fmt.Sprintf("missing required query parameter %q", key), http.StatusBadRequest)
			return
		}
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	id := uuid.NewString()
	c := newConn(id, attrs, ws, s.cfg.SendBufferSize)

	// The connection must be postable before its directory record becomes
	// findable: a fan-out racing the registration would otherwise resolve
	// the fresh id to not_found and evict the live record.
	s.mu.Lock()
	s.conns[id] = c
	s.mu.Unlock()

	// The directory write must be acknowledged before any message from
	// this connection is accepted.
	if err := s.handler.OnConnect(s.baseCtx(), id, attrs); err != nil {
		s.logger.Error("connect rejected", "connection_id", id, "error", err)
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
		c.close()
		return
	}

	s.logger.Debug("connection accepted",
		"connection_id", id,
		"remote", r.RemoteAddr,
	)

	s.wg.Add(2)
	go s.writePump(c)
	go s.readLoop(c)
}

// readLoop drives the relay callbacks for one connection. Callbacks run
// sequentially per connection so registration, messages and disconnect
// keep their order.
func (s *Server) readLoop(c *conn) {
	defer s.wg.Done()
	defer s.teardown(c)

	c.ws.SetReadLimit(s.cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Warn("read error", "connection_id", c.id, "error", err)
				}
			}
			return
		}

		if _, err := s.handler.OnMessage(s.baseCtx(), c.id, data); err != nil {
			// Malformed payloads are connection-level errors: report to
			// the sender, keep the connection.
			s.Post(s.baseCtx(), c.id, []byte(fmt.Sprintf(`{"error":%q}`, err.Error())))
		}
	}
}

// writePump serializes all writes to one socket.
func (s *Server) writePump(c *conn) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case body := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, body); err != nil {
				s.logger.Warn("write error", "connection_id", c.id, "error", err)
				c.close()
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// teardown unregisters a connection and notifies the relay.
func (s *Server) teardown(c *conn) {
	c.close()

	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()

	if err := s.handler.OnDisconnect(s.baseCtx(), c.id); err != nil {
		s.logger.Warn("disconnect callback failed", "connection_id", c.id, "error", err)
	}

	s.logger.Debug("connection closed",
		"connection_id", c.id,
		"merchant_id", c.attrs[directory.AttrMerchantID],
	)
}

// baseCtx is the server lifetime context; callbacks fired from tests that
// never called Start fall back to the background context.
func (s *Server) baseCtx() context.Context {
	if s.ctx != nil {
		return s.ctx
	}
	return context.Background()
}

// attrsFromQuery extracts connect-time attributes from query parameters.
// Every parameter becomes an attribute; unknown keys are allowed.
func attrsFromQuery(r *http.Request) map[string]string {
	attrs := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 && values[0] != "" {
			attrs[key] = values[0]
		}
	}
	return attrs
}
