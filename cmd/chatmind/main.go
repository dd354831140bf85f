package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chatmindhq/chatmind/internal/agent"
	"github.com/chatmindhq/chatmind/internal/brain"
	"github.com/chatmindhq/chatmind/internal/config"
	"github.com/chatmindhq/chatmind/internal/httpapi"
	"github.com/chatmindhq/chatmind/internal/memory"
	"github.com/chatmindhq/chatmind/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	opts := memory.Options{
		DatabaseURL:   cfg.DatabaseURL,
		SQLitePath:    cfg.SQLitePath,
		RemoteBaseURL: cfg.Mem0BaseURL,
		RemoteAPIKey:  cfg.Mem0APIKey,
		RemoteTimeout: cfg.Mem0Timeout,
	}
	store, err := memory.NewStore(ctx, opts, metrics)
	if err != nil {
		log.Fatalf("memory store init failed: %v", err)
	}
	defer store.Close()
	log.Printf("memory backend: %s", memory.BackendName(opts))

	generator := brain.New(brain.Config{
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		Model:           cfg.AnthropicModel,
	})
	if strings.TrimSpace(cfg.AnthropicAPIKey) == "" {
		log.Printf("no upstream model configured, replies will be stubbed")
	}

	orchestrator := agent.New(store, generator, metrics, cfg.ContextWindow)

	api := httpapi.New(cfg, orchestrator, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
