// axewatch-api serves the accessibility scan API: scan ingestion over HTTP
// and AMQP, cache management, report lookup, and statistics queries.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/AxeWatch/go-api/axewatch/api"
	"github.com/AxeWatch/go-api/axewatch/cache"
	"github.com/AxeWatch/go-api/axewatch/config"
	"github.com/AxeWatch/go-api/axewatch/history"
	"github.com/AxeWatch/go-api/axewatch/postgres"
	"github.com/AxeWatch/go-api/axewatch/queue"
	"github.com/AxeWatch/go-api/axewatch/slogger"
	"github.com/AxeWatch/go-api/axewatch/stats"
	"github.com/AxeWatch/go-api/axewatch/store"
)

func main() {
	slogger.Init()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	kv, err := store.NewValkeyStore(cfg.ValkeyAddr)
	if err != nil {
		slog.Error("Failed to connect to cache backend", "addr", cfg.ValkeyAddr, "error", err)
		os.Exit(1)
	}
	defer kv.Close()

	db, err := postgres.Connect(cfg.DatabaseDSN)
	if err != nil {
		slog.Error("Failed to connect to durable log database", "error", err)
		os.Exit(1)
	}

	svc := cache.New(kv)
	repo := history.NewRepository(db)
	engine := stats.NewEngine(repo)
	handlers := api.NewHandlers(svc, repo, engine, cfg.SiteBaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RabbitURL != "" {
		go queue.ListenWithRetry(ctx, cfg.RabbitURL, cfg.ScanQueue, handlers.QueueProcessor(ctx))
	}

	server := api.NewServer(cfg.ListenAddr, handlers)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down")
		if err := server.Stop(); err != nil {
			slog.Error("Failed to stop server", "error", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server exited", "error", err)
			os.Exit(1)
		}
	}
}
