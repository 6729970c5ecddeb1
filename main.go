package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/codeforge-ai/codeforge/internal/config"
	"github.com/codeforge-ai/codeforge/internal/manager"
	"github.com/codeforge-ai/codeforge/internal/store"
	"github.com/codeforge-ai/codeforge/pkg/auth"
	"github.com/codeforge-ai/codeforge/pkg/mcp"
	"github.com/codeforge-ai/codeforge/pkg/runner"
	"github.com/codeforge-ai/codeforge/pkg/server"
	"github.com/codeforge-ai/codeforge/pkg/service/ai"
)

func main() {
	// Define flags
	serverMode := flag.Bool("server", false, "run REST API server (default mode)")
	mcpMode := flag.Bool("mcp", false, "run MCP server on stdio")
	migrateMode := flag.Bool("migrate", false, "open the database, run migrations and exit")
	configPath := flag.String("config", "", "path to YAML config file")

	flag.Parse()

	if *serverMode && *mcpMode {
		log.Fatal("choose one of -server or -mcp")
	}

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel, *mcpMode)
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer logger.Sync()

	st, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("path", cfg.DBPath), zap.Error(err))
	}
	defer st.Close()

	if *migrateMode {
		// Open already ran the schema and migrations.
		fmt.Printf("Database ready: %s\n", cfg.DBPath)
		return
	}

	mgr := manager.New(st, logger)
	run := newRunner(cfg, logger)
	assistant, images := newAIServices(cfg, logger)

	if *mcpMode {
		if err := mcp.Run(context.Background(), mgr, assistant, run, logger); err != nil {
			logger.Fatal("mcp server failed", zap.Error(err))
		}
		return
	}

	// REST server is the default mode.
	tokens, err := loadTokens(cfg, st)
	if err != nil {
		logger.Fatal("failed to load api tokens", zap.Error(err))
	}
	if tokens.Len() == 0 {
		logger.Warn("no api tokens configured, authentication disabled")
	}

	srv := server.NewServer(mgr, assistant, images, run, tokens, logger)

	addr := cfg.Server.Addr
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Info("starting REST API server", zap.String("addr", addr))
	if err := srv.Run(addr); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// newLogger builds the zap logger. In MCP mode stdout carries the
// protocol, so logs must go to stderr only.
func newLogger(level string, stderrOnly bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	if stderrOnly {
		zc.OutputPaths = []string{"stderr"}
	}
	return zc.Build()
}

func newRunner(cfg *config.Config, logger *zap.Logger) *runner.Runner {
	opts := []runner.Option{runner.WithTimeout(cfg.Runner.Timeout)}
	if cfg.Runner.OutputLimit > 0 {
		opts = append(opts, runner.WithOutputLimit(cfg.Runner.OutputLimit))
	}
	return runner.New(logger, opts...)
}

// newAIServices builds the model clients. A missing API key is not
// fatal; the affected routes answer 503 instead.
func newAIServices(cfg *config.Config, logger *zap.Logger) (server.Assistant, server.ImageGenerator) {
	ctx := context.Background()

	assistant, err := ai.NewAssistantService(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
	if err != nil {
		logger.Warn("assistant service unavailable", zap.Error(err))
		return nil, nil
	}

	images, err := ai.NewImageService(ctx, cfg.Gemini.APIKey, cfg.Gemini.ImageModel, logger)
	if err != nil {
		logger.Warn("image service unavailable", zap.Error(err))
		return assistant, nil
	}
	return assistant, images
}

// loadTokens merges config-file tokens with those stored in the
// database, so tokens added via the API survive restarts.
func loadTokens(cfg *config.Config, st *store.Store) (*auth.TokenSet, error) {
	stored, err := st.ListTokens()
	if err != nil {
		return nil, err
	}
	tokens := auth.NewTokenSet(cfg.Server.APITokens)
	for _, t := range stored {
		tokens.Add(t)
	}
	return tokens, nil
}
