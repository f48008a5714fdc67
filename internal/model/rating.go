package model

type VoteKind string

const (
	VoteUp   VoteKind = "upvote"
	VoteDown VoteKind = "downvote"
)

// RatingKey identifies one agent's turn within one run.
type RatingKey struct {
	RunID     string
	Iteration int
	AgentName string
}

type Counters struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
}

// ParseVoteKind accepts "upvote"/"downvote" and the short forms "up"/"down".
// Anything else is returned unchanged and rejected by the ledger.
func ParseVoteKind(s string) VoteKind {
	switch s {
	case "up", "upvote":
		return VoteUp
	case "down", "downvote":
		return VoteDown
	default:
		return VoteKind(s)
	}
}
