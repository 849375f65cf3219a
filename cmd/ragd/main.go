package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kbmcp/kbmcp/internal/backend"
	"github.com/kbmcp/kbmcp/internal/config"
	"github.com/kbmcp/kbmcp/internal/container"
	"github.com/kbmcp/kbmcp/internal/crawl"
	"github.com/kbmcp/kbmcp/internal/kb"
	"github.com/kbmcp/kbmcp/internal/toolserver"
	"github.com/kbmcp/kbmcp/internal/webprobe"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("failed to run knowledge base service", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting knowledge base service",
		"transport", cfg.Transport,
		"index_pattern", cfg.IndexPattern(),
	)

	be, err := backend.NewElasticsearch(backend.ESConfig{
		Addresses:      cfg.ESAddresses,
		APIKey:         cfg.ESAPIKey,
		Username:       cfg.ESUsername,
		Password:       cfg.ESPassword,
		RequestTimeout: cfg.ESRequestTimeout,
		SearchTimeout:  cfg.SearchTimeout,
		BulkMaxItems:   cfg.ESBulkMaxItems,
		BulkMaxBytes:   cfg.ESBulkMaxBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to create elasticsearch backend: %w", err)
	}

	// Startup liveness probe (§6.5): ping failure is fatal.
	pingCtx, pingCancel := context.WithTimeout(ctx, cfg.ESStartupPingTime)
	defer pingCancel()
	if err := be.Ping(pingCtx); err != nil {
		return fmt.Errorf("elasticsearch is not reachable: %w", err)
	}
	slog.Info("connected to elasticsearch", "addresses", cfg.ESAddresses)

	containers, err := container.NewDocker(cfg.DockerSocket)
	if err != nil {
		return fmt.Errorf("failed to create container adapter: %w", err)
	}

	probe := webprobe.New()

	orchestrator := crawl.NewOrchestrator(containers, probe, crawl.WorkerConfig{
		Image:        cfg.DockerImage,
		ESConnection: esConnectionBlock(cfg),
	})

	manager := kb.NewManager(be, cfg.BaseIndexPrefix)

	manageSrv := toolserver.NewManageServer(manager)
	askSrv := toolserver.NewAskServer(manager)
	learnSrv := toolserver.NewLearnServer(manager, orchestrator)
	rememberSrv := toolserver.NewRememberServer(manager)
	pcStore := toolserver.NewProjectContextStore()
	registry := toolserver.NewRegistry()

	mcpServer := server.NewMCPServer("kbmcp", "0.1.0", server.WithToolCapabilities(true))
	toolserver.Mount(mcpServer, registry, manageSrv, askSrv, learnSrv, rememberSrv, pcStore)

	switch cfg.Transport {
	case "sse":
		return serveSSE(ctx, cfg, mcpServer)
	default:
		slog.Info("serving over stdio")
		return server.ServeStdio(mcpServer)
	}
}

// esConnectionBlock composes the backend-connection block the crawl worker
// config carries verbatim (§4.2 "Config generation"); its exact schema is
// opaque to this package (§1).
func esConnectionBlock(cfg *config.Config) map[string]any {
	block := map[string]any{
		"host": cfg.ESAddresses,
	}
	if cfg.ESAPIKey != "" {
		block["api_key"] = cfg.ESAPIKey
	} else {
		block["username"] = cfg.ESUsername
		block["password"] = cfg.ESPassword
	}
	if cfg.ESPipeline != "" {
		block["pipeline"] = cfg.ESPipeline
	}
	return block
}

func serveSSE(ctx context.Context, cfg *config.Config, mcpServer *server.MCPServer) error {
	sseServer := server.NewSSEServer(mcpServer)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Mount("/", sseServer)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("serving over sse", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("sse server error: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}
