// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/openclaw/vaultbridge/internal/api"
	"github.com/openclaw/vaultbridge/internal/chunk"
	"github.com/openclaw/vaultbridge/internal/embed"
	"github.com/openclaw/vaultbridge/internal/indexer"
	"github.com/openclaw/vaultbridge/internal/mcpserver"
	"github.com/openclaw/vaultbridge/internal/search"
	"github.com/openclaw/vaultbridge/internal/storage"
	"github.com/openclaw/vaultbridge/internal/store"
	"github.com/openclaw/vaultbridge/internal/vaultmap"
	"github.com/openclaw/vaultbridge/internal/watcher"
)

// eventLogCapacity bounds the watcher event history kept for the API.
const eventLogCapacity = 100

// services bundles the wired application components.
type services struct {
	logger *slog.Logger
	db     *store.QdrantStore
	index  *indexer.Service
	search *search.Service
	w      *watcher.Watcher
}

// buildServices constructs the shared pipeline from configuration.
// withWatcher controls whether a file watcher is created (the MCP
// stdio mode runs without one).
func buildServices(ctx context.Context, cfg *Config, withWatcher bool) (*services, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	files, err := storage.NewFS(cfg.Vault.Path, cfg.Vault.Extensions)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := store.NewQdrant(cfg.Qdrant.Host, cfg.Qdrant.Port,
		cfg.Qdrant.ChunkCollection, cfg.Qdrant.LinkCollection,
		cfg.Embedder.Dimensions, logger)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	embedder := embed.NewOllamaEmbedder(cfg.Embedder.Host, cfg.Embedder.Model,
		cfg.Embedder.Dimensions, cfg.Embedder.Timeout.Std())
	sparse := embed.NewSparseEncoder()
	vmap := vaultmap.New(files)
	chunker := chunk.New(cfg.Chunking.Size, cfg.Chunking.Overlap)

	var w *watcher.Watcher
	if withWatcher {
		w = watcher.New(files.Root(), cfg.Vault.Extensions, logger)
	}

	indexSvc := indexer.New(files, vmap, chunker, embedder, sparse, db, w,
		cfg.Vault.DebounceDelay.Std(), eventLogCapacity, logger)

	// A down vector store at startup is not fatal: the service comes up
	// degraded and /health/ready reports it.
	if err := indexSvc.Initialize(ctx); err != nil {
		logger.Warn("index initialization failed", slog.String("error", err.Error()))
	}

	searchSvc := search.New(embedder, sparse, db, search.Options{
		SimilarityThreshold: cfg.Search.SimilarityThreshold,
		TopKDefault:         cfg.Search.TopKDefault,
		TopKMax:             cfg.Search.TopKMax,
	}, logger)

	return &services{
		logger: logger,
		db:     db,
		index:  indexSvc,
		search: searchSvc,
		w:      w,
	}, nil
}

// Run starts the HTTP server, file watcher, and indexing pipeline.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts...)
	if err != nil {
		return err
	}
	cfg := app.config

	svcs, err := buildServices(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer svcs.db.Close()
	logger := svcs.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("qdrant", fmt.Sprintf("%s:%d", cfg.Qdrant.Host, cfg.Qdrant.Port)),
		slog.String("log_level", cfg.App.LogLevel.String()))

	apiRouter := api.NewRouter(svcs.search, svcs.index, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !svcs.db.Healthy(req.Context()) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"store unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// File watcher produces events; the indexer consumes them.
	g.Go(func() error {
		return svcs.w.Run(gCtx)
	})
	g.Go(func() error {
		return svcs.index.Run(gCtx)
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools over stdio. No HTTP server and no file
// watcher: clients trigger rebuilds explicitly through the tools.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts...)
	if err != nil {
		return err
	}

	svcs, err := buildServices(ctx, app.config, false)
	if err != nil {
		return err
	}
	defer svcs.db.Close()

	svcs.logger.Info("MCP server starting on stdio")
	return mcpserver.New(svcs.search, svcs.index).ServeStdio()
}
