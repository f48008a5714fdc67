package dto

import "ciphercore.app/convo/internal/model"

type RateRequest struct {
	RunID     string `json:"run_id" binding:"required"`
	Iteration int    `json:"iteration" binding:"required"`
	Agent     string `json:"agent" binding:"required"`
	Kind      string `json:"kind" binding:"required"`
}

func (r RateRequest) Key() model.RatingKey {
	return model.RatingKey{RunID: r.RunID, Iteration: r.Iteration, AgentName: r.Agent}
}

type RatingQuery struct {
	RunID     string `form:"run_id" binding:"required"`
	Iteration int    `form:"iteration" binding:"required"`
	Agent     string `form:"agent" binding:"required"`
}

func (q RatingQuery) Key() model.RatingKey {
	return model.RatingKey{RunID: q.RunID, Iteration: q.Iteration, AgentName: q.Agent}
}

type RatingResponse struct {
	RunID     string `json:"run_id"`
	Iteration int    `json:"iteration"`
	Agent     string `json:"agent"`
	Upvotes   int    `json:"upvotes"`
	Downvotes int    `json:"downvotes"`
}

func ToRatingResponse(key model.RatingKey, c model.Counters) RatingResponse {
	return RatingResponse{
		RunID:     key.RunID,
		Iteration: key.Iteration,
		Agent:     key.AgentName,
		Upvotes:   c.Upvotes,
		Downvotes: c.Downvotes,
	}
}
