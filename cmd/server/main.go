package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/voxsheet/voxsheet/internal/config"
	"github.com/voxsheet/voxsheet/internal/core"
	"github.com/voxsheet/voxsheet/internal/logging"
	"github.com/voxsheet/voxsheet/internal/tts"
	"github.com/voxsheet/voxsheet/internal/tts/gemini"
	"github.com/voxsheet/voxsheet/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"generate_max_concurrent", cfg.Generate.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	// Connect to database
	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		dbName := strings.TrimPrefix(u.Path, "/")
		slog.Info("connected to database", "name", dbName)
	} else {
		slog.Info("connected to database")
	}

	// Speech synthesis is optional: without a key the decode and preview
	// surface still works, generation returns an explicit error.
	var synth tts.Synthesizer
	if cfg.TTS.APIKey != "" {
		opts := []gemini.Option{}
		if cfg.TTS.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.TTS.BaseURL))
		}
		synth, err = gemini.New(cfg.TTS.APIKey, cfg.TTS.Model, cfg.TTS.Voice, opts...)
		if err != nil {
			slog.Error("failed to create speech client", "error", err)
			os.Exit(1)
		}
		slog.Info("speech synthesis enabled", "model", cfg.TTS.Model, "voice", cfg.TTS.Voice)
	} else {
		slog.Warn("no speech API key configured, generation disabled")
	}

	// Create service with config
	service := core.NewService(pool, cfg, synth)

	// Create database tables if missing
	if err := service.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure database schema", "error", err)
		os.Exit(1)
	}

	// Create server with config
	server := web.NewServer(service, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	// Start retention sweeper with config values
	go service.StartRetentionSweeper(jobCtx)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active generation jobs to complete (with timeout)
		jobStatus := service.JobLimiterStatus()
		if jobStatus.Active > 0 {
			slog.Info("waiting for generation jobs to complete", "active", jobStatus.Active)
			if err := service.WaitForJobs(shutdownCtx); err != nil {
				slog.Warn("generation jobs did not complete in time", "error", err)
			} else {
				slog.Info("all generation jobs completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	// Start server (uses addr from config internally)
	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
