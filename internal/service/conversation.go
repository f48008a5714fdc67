package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ciphercore.app/convo/common/logger"
	"ciphercore.app/convo/internal/brain"
	"ciphercore.app/convo/internal/model"
	"ciphercore.app/convo/internal/queue"
	"ciphercore.app/convo/internal/roster"
)

// ErrBackgroundDisabled is returned by Enqueue when no task queue is configured.
var ErrBackgroundDisabled = errors.New("background runs are not configured")

// StartRunRequest names roster agents; the service resolves them to definitions.
type StartRunRequest struct {
	RunID          string
	Topic          string
	AgentNames     []string
	Personalities  map[string]model.Personality
	Iterations     int
	Language       model.Language
	ExpertiseLevel string
	OwnerID        *string
}

// RunStarter is satisfied by *brain.Orchestrator.
type RunStarter interface {
	Start(ctx context.Context, cfg model.RunConfig) (*brain.Run, error)
}

type ConversationService interface {
	// Start validates the request and returns a run that executes as its updates are consumed.
	Start(ctx context.Context, req StartRunRequest) (*brain.Run, error)
	// Enqueue validates the request, assigns a run id and hands the run to a worker.
	Enqueue(ctx context.Context, req StartRunRequest) (string, error)
	Agents() []model.AgentDefinition
}

type conversationService struct {
	orchestrator RunStarter
	roster       *roster.Roster
	producer     queue.Producer
}

// NewConversationService wires run creation. producer may be nil, which disables Enqueue.
func NewConversationService(orchestrator RunStarter, r *roster.Roster, producer queue.Producer) ConversationService {
	return &conversationService{
		orchestrator: orchestrator,
		roster:       r,
		producer:     producer,
	}
}

func (s *conversationService) Agents() []model.AgentDefinition {
	return s.roster.Agents()
}

func (s *conversationService) Start(ctx context.Context, req StartRunRequest) (*brain.Run, error) {
	cfg, err := s.runConfig(req)
	if err != nil {
		return nil, err
	}
	return s.orchestrator.Start(ctx, cfg)
}

func (s *conversationService) Enqueue(ctx context.Context, req StartRunRequest) (string, error) {
	if s.producer == nil {
		return "", ErrBackgroundDisabled
	}

	// Start only validates and assigns the id; the returned run is never consumed here.
	run, err := s.Start(ctx, req)
	if err != nil {
		return "", err
	}
	cfg := run.Config()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RunID:     logger.Ptr(cfg.RunID),
		OwnerID:   cfg.OwnerID,
		Component: "convo.service.conversation",
	})

	task := queue.RunTask{
		RunID:          cfg.RunID,
		Topic:          cfg.Topic,
		AgentNames:     cfg.AgentNames(),
		Personalities:  req.Personalities,
		Iterations:     cfg.Iterations,
		Language:       cfg.Language,
		ExpertiseLevel: cfg.ExpertiseLevel,
		OwnerID:        cfg.OwnerID,
	}
	if traceID := logger.TraceID(ctx); traceID != "" {
		task.TraceID = &traceID
	}

	if err := s.producer.Enqueue(ctx, task); err != nil {
		return "", fmt.Errorf("enqueueing run: %w", err)
	}

	slog.InfoContext(ctx, "conversation run queued for background execution")
	return cfg.RunID, nil
}

func (s *conversationService) runConfig(req StartRunRequest) (model.RunConfig, error) {
	agents, err := s.roster.Select(req.AgentNames, req.Personalities)
	if err != nil {
		return model.RunConfig{}, &brain.ValidationError{Field: "agents", Reason: err.Error()}
	}

	return model.RunConfig{
		RunID:          req.RunID,
		Topic:          req.Topic,
		Agents:         agents,
		Iterations:     req.Iterations,
		Language:       req.Language,
		ExpertiseLevel: req.ExpertiseLevel,
		OwnerID:        req.OwnerID,
	}, nil
}
