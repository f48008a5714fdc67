package dto

import (
	"ciphercore.app/convo/internal/model"
	"ciphercore.app/convo/internal/service"
)

type StartRunRequest struct {
	Topic          string            `json:"topic"`
	Agents         []string          `json:"agents"`
	Personalities  map[string]string `json:"personalities,omitempty"`
	Iterations     int               `json:"iterations"`
	Language       string            `json:"language,omitempty"`
	ExpertiseLevel string            `json:"expertise_level,omitempty"`
	OwnerID        *string           `json:"owner_id,omitempty"`
	Background     bool              `json:"background,omitempty"`
}

// ToService resolves personality overrides; an unknown personality name is
// reported with the agent it was given for.
func (r StartRunRequest) ToService() (service.StartRunRequest, error) {
	var overrides map[string]model.Personality
	if len(r.Personalities) > 0 {
		overrides = make(map[string]model.Personality, len(r.Personalities))
		for agent, raw := range r.Personalities {
			p, err := model.ParsePersonality(raw)
			if err != nil {
				return service.StartRunRequest{}, &FieldError{Field: "personalities." + agent, Err: err}
			}
			overrides[agent] = p
		}
	}

	owner := r.OwnerID
	if owner != nil && *owner == "" {
		owner = nil
	}

	return service.StartRunRequest{
		Topic:          r.Topic,
		AgentNames:     r.Agents,
		Personalities:  overrides,
		Iterations:     r.Iterations,
		Language:       model.ParseLanguage(r.Language),
		ExpertiseLevel: r.ExpertiseLevel,
		OwnerID:        owner,
	}, nil
}

type StartRunResponse struct {
	RunID     string `json:"run_id"`
	StreamURL string `json:"stream_url"`
}

type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
