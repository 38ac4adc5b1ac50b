package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sqlingo/sqlingo/internal/cli/sqlingo"
	"github.com/sqlingo/sqlingo/internal/clipboard"
	"github.com/sqlingo/sqlingo/internal/config"
	"github.com/sqlingo/sqlingo/internal/observability"
	"github.com/sqlingo/sqlingo/internal/session"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadFromEnv("sqlingo")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		return 2
	}

	// Keep the terminal for the REPL unless a level or file was asked for.
	if _, set := os.LookupEnv("SQLINGO_LOG_LEVEL"); !set && cfg.Observability.LogFile == "" {
		cfg.Observability.LogLevel = slog.LevelWarn
	}
	var logOutput io.Writer = os.Stderr
	if cfg.Observability.LogFile != "" {
		file, err := os.OpenFile(cfg.Observability.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			slog.Error("failed to open log file", slog.String("path", cfg.Observability.LogFile), slog.Any("error", err))
			return 1
		}
		defer func() { _ = file.Close() }()
		logOutput = file
	}
	logger := observability.NewLogger(cfg, logOutput)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Address != "" {
		metricsServer := &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("starting metrics listener", slog.String("addr", cfg.Metrics.Address))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	var board session.Clipboard
	if clipboard.Available() {
		board = clipboard.System{}
	} else {
		logger.Warn("system clipboard unavailable; \\copy disabled")
	}

	return sqlingo.Run(ctx, os.Args[1:], sqlingo.Options{
		BaseURL:       cfg.Backend.BaseURL,
		RegisterPath:  cfg.Backend.RegisterPath,
		TranslatePath: cfg.Backend.TranslatePath,
		APIKey:        cfg.Backend.APIKey,
		Timeout:       cfg.Backend.Timeout,
		Profile: session.ConnectionProfile{
			UserID: cfg.Session.UserID,
			Host:   cfg.Session.DefaultHost,
			Engine: session.Engine(cfg.Session.DefaultEngine),
		},
		CopiedFlagTTL: cfg.Session.CopiedFlagTTL,
		HistoryFile:   cfg.Session.HistoryFile,
		Clipboard:     board,
		Logger:        logger,
		Stdin:         os.Stdin,
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
	})
}
