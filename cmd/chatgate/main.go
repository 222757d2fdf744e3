package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/chatgate-dev/chatgate/internal/api"
	"github.com/chatgate-dev/chatgate/internal/backend/azopenai"
	"github.com/chatgate-dev/chatgate/internal/chat"
	"github.com/chatgate-dev/chatgate/internal/chatlog"
	"github.com/chatgate-dev/chatgate/internal/config"
	"github.com/chatgate-dev/chatgate/internal/server"
	"github.com/chatgate-dev/chatgate/internal/storage/memory"
	"github.com/chatgate-dev/chatgate/internal/storage/sqlite"
	"github.com/chatgate-dev/chatgate/internal/telemetry"
	"github.com/chatgate-dev/chatgate/internal/tokens"
	"github.com/chatgate-dev/chatgate/internal/tool"
	"github.com/chatgate-dev/chatgate/internal/tool/builtin"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdown, err := telemetry.InitTracer("chatgate", logger,
		telemetry.WithServiceVersion("1.0.0"))
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration invalid: %v", err)
	}

	sink, cleanup, err := newSink(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer cleanup()

	recorder := chatlog.NewRecorder(sink, logger,
		chatlog.WithTokenEstimates(tokens.NewCounter(), cfg.AzureOpenAI.Deployment))

	registry := tool.NewRegistry(logger)
	if err := builtin.NewDemoPlugin().Register(registry); err != nil {
		log.Fatalf("Failed to register demo plugin: %v", err)
	}
	logger.Info("tool registry initialized",
		slog.Int("functions", registry.Count()))

	client := azopenai.NewClient(
		cfg.AzureOpenAI.Endpoint,
		cfg.AzureOpenAI.APIKey,
		cfg.AzureOpenAI.Deployment,
		azopenai.WithAPIVersion(cfg.AzureOpenAI.APIVersion),
	)
	completer := azopenai.NewCompleter(client, registry, logger)

	chatSvc := chat.NewService(completer, recorder, logger)

	srv := server.New(cfg.Server.Port, logger)
	api.NewHandler(chatSvc, registry, logger).Routes(srv.Router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("chatgate started",
		slog.Int("port", cfg.Server.Port),
		slog.String("deployment", cfg.AzureOpenAI.Deployment),
		slog.String("storage", cfg.Storage.Backend))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
		return
	case <-sigChan:
	}

	logger.Info("shutdown signal received, draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("chatgate shutdown complete")
}

// newSink builds the configured chat log sink. A nil sink disables
// persistence without affecting the response path.
func newSink(cfg *config.Config, logger *slog.Logger) (chatlog.Sink, func(), error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
			return nil, nil, err
		}
		store, err := sqlite.New(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "memory":
		return memory.New(), func() {}, nil
	default:
		logger.Warn("chat log persistence disabled")
		return nil, func() {}, nil
	}
}
