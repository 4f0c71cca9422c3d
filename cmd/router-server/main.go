// cmd/router-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	accumulator "benefits-router/internal/agents/benefit-accumulator"
	coveragerag "benefits-router/internal/agents/coverage-rag"
	deductible "benefits-router/internal/agents/deductible-oop"
	documentrag "benefits-router/internal/agents/document-rag"
	memberverify "benefits-router/internal/agents/member-verification"
	"benefits-router/internal/common/config"
	"benefits-router/internal/common/database"
	"benefits-router/internal/common/logger"
	"benefits-router/internal/common/observability"
	"benefits-router/internal/dispatch"
	"benefits-router/internal/intent"
	"benefits-router/internal/intent/genai"
	"benefits-router/internal/orchestrator"
	"benefits-router/internal/server"
)

// retryWithBackoff attempts an operation with exponential backoff.
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting benefits query router",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New("benefits-router")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Postgres ---
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		zapLog.Fatal("postgres init failed", zap.Error(err))
	}
	defer pg.Close()
	if err := retryWithBackoff(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return pg.Ping(pingCtx)
	}, 10, 2*time.Second, zapLog, "postgres connection"); err != nil {
		zapLog.Fatal("postgres unreachable", zap.Error(err))
	}

	// --- Redis (cache; degraded mode when unreachable) ---
	var cache *database.RedisClient
	redisClient, err := database.NewRedis(cfg.Database.Redis)
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = redisClient.Ping(pingCtx)
		cancel()
	}
	if err != nil {
		zapLog.Warn("redis unreachable, member lookups will not be cached", zap.Error(err))
	} else {
		cache = redisClient
		defer redisClient.Close()
	}

	// --- Elasticsearch ---
	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		zapLog.Fatal("elasticsearch init failed", zap.Error(err))
	}
	if err := retryWithBackoff(es.Ping, 10, 2*time.Second, zapLog, "elasticsearch connection"); err != nil {
		zapLog.Fatal("elasticsearch unreachable", zap.Error(err))
	}

	// --- Fallback classifier ---
	var fallback intent.FallbackClassifier
	if cfg.Router.FallbackEnabled {
		fallback = genai.NewClient(&genai.Config{
			BaseURL:    cfg.APIs.GenAI.BaseURL,
			APIKey:     cfg.APIs.GenAI.APIKey,
			Timeout:    config.GetDuration(cfg.APIs.GenAI.Timeout),
			MaxRetries: cfg.APIs.GenAI.MaxRetries,
		}, log)
	}

	router := intent.NewRouter(intent.NewClassifier(), fallback, cfg.Router.MediumThreshold, log)

	// --- Agents ---
	memberAgent := memberverify.NewHandler(agentConfigFor(cfg, "member-verification"), pg.DB, cache, log)
	deductibleAgent := deductible.NewHandler(&deductible.Config{
		Timeout: config.GetDuration(config.GetAgentConfig(cfg, "deductible-oop").Timeout),
	}, pg.DB, log)
	accumulatorAgent := accumulator.NewHandler(&accumulator.Config{
		Timeout: config.GetDuration(config.GetAgentConfig(cfg, "benefit-accumulator").Timeout),
	}, pg.DB, log)
	coverageAgent := coveragerag.NewHandler(coveragerag.LoadConfig(), es.Client, log)
	documentAgent := documentrag.NewHandler(documentrag.LoadConfig(), es.Client, log)

	descriptors := make([]dispatch.HandlerDescriptor, 0, 5)
	for name, descriptor := range map[string]dispatch.HandlerDescriptor{
		"member-verification": memberAgent.Descriptor(),
		"deductible-oop":      deductibleAgent.Descriptor(),
		"benefit-accumulator": accumulatorAgent.Descriptor(),
		"coverage-rag":        coverageAgent.Descriptor(),
		"document-rag":        documentAgent.Descriptor(),
	} {
		if config.IsAgentEnabled(cfg, name) {
			descriptors = append(descriptors, descriptor)
		} else {
			zapLog.Info("agent disabled by configuration", zap.String("agent", name))
		}
	}

	registry, err := dispatch.NewRegistry(descriptors...)
	if err != nil {
		zapLog.Fatal("registry assembly failed", zap.Error(err))
	}

	dispatcher := dispatch.NewDispatcher(registry, log)
	orc := orchestrator.New(router, dispatcher, log, obs, cfg.Router.HistorySize)

	// --- HTTP server ---
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.New(orc, log, cfg.Server.MaxBatchSize).Handler(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("http server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("graceful shutdown failed", zap.Error(err))
	}
	zapLog.Info("stopped")
}

func agentConfigFor(cfg *config.Config, name string) *memberverify.Config {
	agentCfg := config.GetAgentConfig(cfg, name)
	return &memberverify.Config{
		Timeout:  config.GetDuration(agentCfg.Timeout),
		CacheTTL: time.Duration(agentCfg.CacheTTL) * time.Second,
	}
}
