package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/maddy1092/ottu-ws/internal/config"
	"github.com/maddy1092/ottu-ws/internal/database"
	"github.com/maddy1092/ottu-ws/internal/directory"
	"github.com/maddy1092/ottu-ws/internal/dispatch"
	"github.com/maddy1092/ottu-ws/internal/gateway"
	"github.com/maddy1092/ottu-ws/internal/janitor"
	"github.com/maddy1092/ottu-ws/internal/relay"
	"github.com/maddy1092/ottu-ws/internal/router"
	"github.com/maddy1092/ottu-ws/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/relayd.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting relay",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"listen_addr", cfg.Server.Addr,
		"client_policy", cfg.Routing.ClientPolicy,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to the directory store
	logger.Info("connecting to database",
		"host", cfg.Database.Postgres.Host,
		"port", cfg.Database.Postgres.Port,
		"database", cfg.Database.Postgres.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database.Postgres)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := directory.NewPostgresStore(
		directory.PostgresConfig{TTL: cfg.Directory.TTL},
		pool,
		logger.With("component", "directory"),
	)
	if err := store.Setup(ctx); err != nil {
		logger.Error("failed to set up directory schema", "error", err)
		os.Exit(1)
	}

	logger.Info("directory store ready")

	// Wire the relay: the gateway is both the inbound callback source and
	// the outbound transport the dispatcher posts through.
	gw := gateway.NewServer(gateway.Config{
		Addr:           cfg.Server.Addr,
		WriteTimeout:   cfg.Server.WriteTimeout,
		PingInterval:   cfg.Server.PingInterval,
		ReadTimeout:    cfg.Server.ReadTimeout,
		MaxMessageSize: cfg.Server.MaxMessageSize,
		SendBufferSize: cfg.Server.SendBufferSize,
	}, logger.With("component", "gateway"))

	rtr := router.New(
		router.Config{ClientPolicy: router.ClientPolicy(cfg.Routing.ClientPolicy)},
		store,
		logger.With("component", "router"),
	)
	dsp := dispatch.New(gw, store, logger.With("component", "dispatch"))
	handler := relay.New(store, rtr, dsp, logger.With("component", "relay"))
	gw.SetHandler(handler)

	if err := gw.Start(ctx); err != nil {
		logger.Error("failed to start gateway", "error", err)
		os.Exit(1)
	}

	var jan *janitor.Janitor
	if cfg.Directory.TTL > 0 {
		jan = janitor.New(janitor.Config{
			Interval: cfg.Directory.SweepInterval,
			Timeout:  30 * time.Second,
		}, store, logger.With("component", "janitor"))
		if err := jan.Start(ctx); err != nil {
			logger.Error("failed to start janitor", "error", err)
			os.Exit(1)
		}
	}

	// Health server
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HealthPort),
		Handler: createHealthHandler(pool, gw, handler, dsp),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Server.HealthPort)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	logger.Info("relay running",
		"instance_id", cfg.Instance.ID,
		"ws_url", fmt.Sprintf("ws://localhost%s/ws", cfg.Server.Addr),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Server.HealthPort),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if jan != nil {
		jan.Stop(shutdownCtx)
	}
	gw.Stop(shutdownCtx)

	if err := g.Wait(); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("relay stopped")
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(pool *pgxpool.Pool, gw *gateway.Server, handler relay.Handler, dsp dispatch.Dispatcher) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		// Check database
		if err := pool.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["postgres"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["postgres"] = "connected"
		}

		health.Components["gateway"] = map[string]interface{}{
			"connections": gw.Stats().ConnectedCount,
		}

		stats := handler.Stats()
		health.Components["relay"] = map[string]interface{}{
			"connects":           stats.Connects,
			"duplicate_connects": stats.DuplicateConnects,
			"disconnects":        stats.Disconnects,
			"messages":           stats.Messages,
			"malformed_payloads": stats.MalformedPayloads,
		}

		delivery := dsp.Stats()
		health.Components["dispatch"] = map[string]interface{}{
			"delivered":        delivery.Delivered,
			"evicted":          delivery.Evicted,
			"transport_errors": delivery.TransportErrors,
		}

		// Set response
		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
