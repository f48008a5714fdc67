package service

import (
	"context"

	"ciphercore.app/convo/internal/ledger"
	"ciphercore.app/convo/internal/model"
)

type RatingService interface {
	Rate(ctx context.Context, key model.RatingKey, kind model.VoteKind) (model.Counters, error)
	Get(ctx context.Context, key model.RatingKey) model.Counters
}

type ratingService struct {
	ledger *ledger.Ledger
}

func NewRatingService(l *ledger.Ledger) RatingService {
	return &ratingService{ledger: l}
}

func (s *ratingService) Rate(ctx context.Context, key model.RatingKey, kind model.VoteKind) (model.Counters, error) {
	return s.ledger.Rate(ctx, key, kind)
}

func (s *ratingService) Get(_ context.Context, key model.RatingKey) model.Counters {
	return s.ledger.Get(key)
}
