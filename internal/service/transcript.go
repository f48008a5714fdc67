package service

import (
	"context"
	"fmt"

	"ciphercore.app/convo/internal/model"
	"ciphercore.app/convo/internal/store"
)

type TranscriptService interface {
	List(ctx context.Context, owner *string) ([]model.StoredRun, error)
	Get(ctx context.Context, runID string) (*model.StoredRun, error)
}

type transcriptService struct {
	store store.TranscriptStore
}

func NewTranscriptService(s store.TranscriptStore) TranscriptService {
	return &transcriptService{store: s}
}

func (s *transcriptService) List(ctx context.Context, owner *string) ([]model.StoredRun, error) {
	if owner != nil && *owner == "" {
		owner = nil
	}
	runs, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("listing transcripts: %w", err)
	}
	if runs == nil {
		runs = []model.StoredRun{}
	}
	return runs, nil
}

func (s *transcriptService) Get(ctx context.Context, runID string) (*model.StoredRun, error) {
	return s.store.Get(ctx, runID)
}
