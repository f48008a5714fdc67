package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
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
	"ciphercore.app/convo/internal/queue"
	"ciphercore.app/convo/internal/roster"
	"ciphercore.app/convo/internal/service"
	"ciphercore.app/convo/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)

	telemetry, err := otel.Setup(ctx, cfg.OTel, config.ServiceTypeWorker)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "convo worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Pipeline.RedisGroup,
		"consumer_name", cfg.Pipeline.RedisConsumer)

	// Initialize snowflake ID generator (use different node ID than server)
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	transcripts, closeTranscripts, err := bootstrap.TranscriptStore(ctx, cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open transcript store", "error", err)
		os.Exit(1)
	}
	defer closeTranscripts()

	redisClient, err := bootstrap.Redis(ctx, cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Pipeline.RedisStream,
		Group:        cfg.Pipeline.RedisGroup,
		Consumer:     cfg.Pipeline.RedisConsumer,
		DLQStream:    cfg.Pipeline.RedisDLQStream,
		BatchSize:    1, // a run holds the worker for minutes
		Block:        5 * time.Second,
		MaxAttempts:  cfg.Pipeline.MaxAttempts,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	generator, err := bootstrap.GenerationClient(cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create generation client", "error", err)
		os.Exit(1)
	}

	orchestrator := brain.NewOrchestrator(generator, transcripts, brain.OrchestratorConfig{
		NewRunID: id.NewRunID,
	})
	agents := roster.LoadFile(ctx, cfg.Roster.Path)
	conversations := service.NewConversationService(orchestrator, agents, nil)

	processor := worker.NewProcessor(conversations, queue.NewRunStream(redisClient))

	w := worker.New(consumer, processor, worker.Config{
		MaxAttempts: cfg.Pipeline.MaxAttempts,
	})

	// a stale run is idle for at least as long as one turn's retry budget
	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:        cfg.Pipeline.RedisStream,
		Group:         cfg.Pipeline.RedisGroup,
		Consumer:      cfg.Pipeline.RedisConsumer + "-reclaimer",
		MinIdle:       30 * time.Minute,
		Interval:      1 * time.Minute,
		BatchSize:     10,
		MaxDeliveries: int64(cfg.Pipeline.MaxAttempts) + 1,
	}, consumer, w.ProcessMessage)

	runCtx, stopRuns := context.WithCancel(ctx)
	defer stopRuns()

	go func() {
		if err := w.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.ErrorContext(ctx, "worker stopped with error", "error", err)
		}
	}()
	go reclaimer.Run(runCtx)

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	reclaimer.Stop()

	// an interrupted run stays pending and is picked up by a reclaimer later
	stopRuns()

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case <-stopped:
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

const banner = `
 ██████╗ ██████╗ ███╗   ██╗██╗   ██╗ ██████╗ 
██╔════╝██╔═══██╗████╗  ██║██║   ██║██╔═══██╗
██║     ██║   ██║██╔██╗ ██║██║   ██║██║   ██║
██║     ██║   ██║██║╚██╗██║╚██╗ ██╔╝██║   ██║
╚██████╗╚██████╔╝██║ ╚████║ ╚████╔╝ ╚██████╔╝
 ╚═════╝ ╚═════╝ ╚═╝  ╚═══╝  ╚═══╝   ╚═════╝  worker
`
