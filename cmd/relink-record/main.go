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

	"github.com/relinkio/relink"
	"github.com/relinkio/relink/internal/config"
	"github.com/relinkio/relink/internal/database"
	"github.com/relinkio/relink/internal/recorder"
	"github.com/relinkio/relink/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/record.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting recorder",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded", "endpoint", cfg.Endpoint.URL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger.Info("database connected")

	rec := recorder.New(recorder.Config{
		BatchSize:     cfg.Recorder.BatchSize,
		FlushInterval: cfg.Recorder.FlushInterval,
		BufferSize:    cfg.Recorder.BufferSize,
	}, pool, logger)
	if err := rec.Start(ctx); err != nil {
		logger.Error("failed to start recorder", "error", err)
		os.Exit(1)
	}

	conn := relink.New(relink.Config{
		URL:               cfg.Endpoint.URL,
		RequestTimeout:    cfg.Endpoint.RequestTimeout,
		HeartbeatInterval: cfg.Endpoint.HeartbeatInterval,
		ReconnectDelay:    cfg.Endpoint.ReconnectDelay,
		ReconnectJitter:   cfg.Endpoint.ReconnectJitter,
	}, logger)

	conn.On(relink.EventConnect, func(relink.Event) {
		logger.Info("endpoint connected")
	})
	conn.On(relink.EventDisconnect, func(e relink.Event) {
		logger.Warn("endpoint disconnected", "error", e.Err)
	})
	conn.On(relink.EventMessage, func(e relink.Event) {
		rec.Record(e.Payload)
	})

	conn.Connect()

	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(conn, rec, pool),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("health server failed", "error", err)
	}

	logger.Info("shutting down")

	conn.Cleanup()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rec.Stop(stopCtx); err != nil {
		logger.Warn("recorder stop failed", "error", err)
	}

	logger.Info("recorder exited")
}

// createHealthHandler reports connection, recorder, and database health.
func createHealthHandler(conn *relink.Conn, rec *recorder.Recorder, pool *pgxpool.Pool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		stats := rec.Stats()
		status := map[string]any{
			"state":    conn.State().String(),
			"verified": conn.Verified(),
			"inserts":  stats.Inserts,
			"drops":    stats.Drops,
			"flushes":  stats.Flushes,
			"errors":   stats.Errors,
		}

		dbCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(dbCtx); err != nil {
			status["database"] = "down"
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			status["database"] = "up"
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	})
	return mux
}
