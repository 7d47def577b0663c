package janitor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Store is the slice of the directory the janitor needs.
type Store interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Config holds janitor configuration.
type Config struct {
	Interval time.Duration // Sweep interval
	Timeout  time.Duration // Per-sweep timeout
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 10 * time.Minute,
		Timeout:  30 * time.Second,
	}
}

// Janitor periodically purges expired connection records. It stands in
// for a store-native TTL reaper, which Postgres lacks.
type Janitor struct {
	cfg    Config
	store  Store
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Janitor.
func New(cfg Config, store Store, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		cfg:    cfg,
		store:  store,
		logger: logger,
	}
}

// Start begins the sweep loop.
func (j *Janitor) Start(ctx context.Context) error {
	j.ctx, j.cancel = context.WithCancel(ctx)

	j.wg.Add(1)
	go j.run()

	j.logger.Info("janitor started", "interval", j.cfg.Interval)
	return nil
}

// Stop gracefully shuts down the janitor.
func (j *Janitor) Stop(ctx context.Context) error {
	if j.cancel != nil {
		j.cancel()
	}

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		j.logger.Info("janitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main sweep loop.
func (j *Janitor) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	// Sweep immediately on start.
	j.sweep()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

// sweep purges expired records once.
func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(j.ctx, j.cfg.Timeout)
	defer cancel()

	purged, err := j.store.PurgeExpired(ctx)
	if err != nil {
		j.logger.Warn("sweep failed", "error", err)
		return
	}
	if purged > 0 {
		j.logger.Info("expired connections purged", "count", purged)
	}
}
