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

	"ciphercore.app/convo/common/id"
	"ciphercore.app/convo/common/logger"
	"ciphercore.app/convo/common/otel"
	"ciphercore.app/convo/core/config"
	"ciphercore.app/convo/internal/bootstrap"
	"ciphercore.app/convo/internal/brain"
	"ciphercore.app/convo/internal/http/middleware"
	httprouter "ciphercore.app/convo/internal/http/router"
	"ciphercore.app/convo/internal/queue"
	"ciphercore.app/convo/internal/roster"
	"ciphercore.app/convo/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel, config.ServiceTypeServer)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "convo server starting",
		"env", cfg.Env,
		"llm_provider", cfg.LLM.Provider,
		"rating_backend", cfg.Ledger.Backend)

	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	transcripts, closeTranscripts, err := bootstrap.TranscriptStore(ctx, cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open transcript store", "error", err)
		os.Exit(1)
	}
	defer closeTranscripts()

	var (
		redisClient *redis.Client
		producer    queue.Producer
		runStream   *queue.RunStream
	)
	if cfg.Pipeline.Enabled() {
		redisClient, err = bootstrap.Redis(ctx, cfg.Pipeline.RedisURL)
		if err != nil {
			slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
			os.Exit(1)
		}
		slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

		// closing the producer closes the shared client
		producer = queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream, slog.Default())
		defer producer.Close()
		runStream = queue.NewRunStream(redisClient)
	} else {
		slog.InfoContext(ctx, "redis disabled, background runs unavailable")
	}

	ratings, closeLedger, err := bootstrap.Ledger(ctx, cfg, redisClient)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open rating ledger", "error", err)
		os.Exit(1)
	}
	defer closeLedger()

	generator, err := bootstrap.GenerationClient(cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create generation client", "error", err)
		os.Exit(1)
	}

	orchestrator := brain.NewOrchestrator(generator, transcripts, brain.OrchestratorConfig{
		NewRunID: id.NewRunID,
	})

	agents := roster.LoadFile(ctx, cfg.Roster.Path)
	slog.InfoContext(ctx, "roster loaded", "path", cfg.Roster.Path, "agents", agents.Len())

	services := service.NewServices(orchestrator, agents, producer, transcripts, ratings)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	routerCfg := httprouter.RouterConfig{TraceHeaderName: cfg.Pipeline.TraceHeaderName}
	if runStream != nil {
		routerCfg.RunStream = runStream
	}

	router := setupRouter(cfg, services, routerCfg)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// no WriteTimeout: a streamed run lasts as long as its turns take
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services, routerCfg httprouter.RouterConfig) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, routerCfg)

	return router
}

const banner = `
 ██████╗ ██████╗ ███╗   ██╗██╗   ██╗ ██████╗ 
██╔════╝██╔═══██╗████╗  ██║██║   ██║██╔═══██╗
██║     ██║   ██║██╔██╗ ██║██║   ██║██║   ██║
██║     ██║   ██║██║╚██╗██║╚██╗ ██╔╝██║   ██║
╚██████╗╚██████╔╝██║ ╚████║ ╚████╔╝ ╚██████╔╝
 ╚═════╝ ╚═════╝ ╚═╝  ╚═══╝  ╚═══╝   ╚═════╝  server
`
