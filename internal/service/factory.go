package service

import (
	"ciphercore.app/convo/internal/ledger"
	"ciphercore.app/convo/internal/queue"
	"ciphercore.app/convo/internal/roster"
	"ciphercore.app/convo/internal/store"
)

type Services struct {
	orchestrator RunStarter
	roster       *roster.Roster
	producer     queue.Producer
	transcripts  store.TranscriptStore
	ledger       *ledger.Ledger
}

// NewServices bundles the dependencies the HTTP layer and the CLI share.
// producer may be nil when background runs are not configured.
func NewServices(orchestrator RunStarter, r *roster.Roster, producer queue.Producer, transcripts store.TranscriptStore, l *ledger.Ledger) *Services {
	return &Services{
		orchestrator: orchestrator,
		roster:       r,
		producer:     producer,
		transcripts:  transcripts,
		ledger:       l,
	}
}

func (s *Services) Conversations() ConversationService {
	return NewConversationService(s.orchestrator, s.roster, s.producer)
}

func (s *Services) Ratings() RatingService {
	return NewRatingService(s.ledger)
}

func (s *Services) Transcripts() TranscriptService {
	return NewTranscriptService(s.transcripts)
}
