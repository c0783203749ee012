package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SubmitVoteRequest struct {
	VoterID    string `json:"voter_id,omitempty"`
	Choice     string `json:"choice"`
	VoterClass string `json:"voter_class"`
}

type VoteResponse struct {
	ProposalID string `json:"proposal_id"`
	VoterID    string `json:"voter_id"`
	Choice     string `json:"choice"`
	VoterClass string `json:"voter_class"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type VoteListResponse struct {
	ProposalID string         `json:"proposal_id"`
	Items      []VoteResponse `json:"items"`
}

type VoterWeight struct {
	VoterID    string  `json:"voter_id"`
	VoterClass string  `json:"voter_class"`
	Choice     string  `json:"choice"`
	Weight     float64 `json:"weight"`
}

type TallyResponse struct {
	ProposalID     string             `json:"proposal_id"`
	Up             float64            `json:"up"`
	Down           float64            `json:"down"`
	Total          float64            `json:"total"`
	YesFraction    float64            `json:"yes_fraction"`
	Voters         int                `json:"voters"`
	Counts         map[string]int     `json:"counts"`
	ActiveShares   map[string]float64 `json:"active_shares"`
	PerClassWeight map[string]float64 `json:"per_class_weight"`
	PerVoter       []VoterWeight      `json:"per_voter"`
}

type DecideRequest struct {
	Level string `json:"level"`
}

type DecisionResponse struct {
	ProposalID string  `json:"proposal_id"`
	Status     string  `json:"status"`
	Level      string  `json:"level"`
	Threshold  float64 `json:"threshold"`
	Up         float64 `json:"up"`
	Down       float64 `json:"down"`
	Total      float64 `json:"total"`
	ComputedAt string  `json:"computed_at"`
}

type ThresholdsResponse struct {
	Thresholds map[string]float64 `json:"thresholds"`
}

type WeightsResponse struct {
	Weights   map[string]float64 `json:"weights"`
	BaseClass string             `json:"base_class"`
}
