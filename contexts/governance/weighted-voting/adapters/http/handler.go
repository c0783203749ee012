package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "concord/contexts/governance/weighted-voting/application"
	"concord/contexts/governance/weighted-voting/application/commands"
	"concord/contexts/governance/weighted-voting/application/queries"
	"concord/contexts/governance/weighted-voting/domain/entities"
	domainerrors "concord/contexts/governance/weighted-voting/domain/errors"
	httptransport "concord/contexts/governance/weighted-voting/transport/http"
)

type Handler struct {
	Votes     commands.VoteUseCase
	Decisions commands.DecideUseCase
	Queries   queries.TallyUseCase
	Logger    *slog.Logger
}

// SubmitVoteHandler godoc
// @Summary Cast or change a vote
// @Description Upserts the caller's vote; re-submitting replaces the previous choice.
// @Tags weighted-voting
// @Accept json
// @Produce json
// @Param proposal_id path string true "Proposal id"
// @Param X-User-Id header string false "Voter id when not set in the body"
// @Param request body httptransport.SubmitVoteRequest true "Vote"
// @Success 200 {object} httptransport.VoteResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /api/governance/v1/proposals/{proposal_id}/votes [post]
func (h Handler) SubmitVoteHandler(
	ctx context.Context,
	proposalID string,
	voterID string,
	req httptransport.SubmitVoteRequest,
) (httptransport.VoteResponse, error) {
	voterID, err := resolveVoter(voterID, req.VoterID)
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	vote, err := h.Votes.SubmitVote(ctx, commands.SubmitVoteCommand{
		ProposalID: proposalID,
		VoterID:    voterID,
		Choice:     req.Choice,
		VoterClass: req.VoterClass,
	})
	if err != nil {
		application.ResolveLogger(h.Logger).Warn("submit vote request failed",
			"event", "http_governance_submit_vote_failed",
			"module", application.Module,
			"layer", "transport",
			"proposal_id", proposalID,
			"error", err.Error(),
		)
		return httptransport.VoteResponse{}, err
	}
	return mapVote(vote), nil
}

// RetractVoteHandler godoc
// @Summary Retract a vote
// @Tags weighted-voting
// @Param proposal_id path string true "Proposal id"
// @Param voter_id path string true "Voter id"
// @Param X-User-Id header string true "Caller id; must match voter_id"
// @Success 204
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /api/governance/v1/proposals/{proposal_id}/votes/{voter_id} [delete]
func (h Handler) RetractVoteHandler(ctx context.Context, proposalID string, voterID string, actorID string) error {
	return h.Votes.RetractVote(ctx, commands.RetractVoteCommand{
		ProposalID: proposalID,
		VoterID:    voterID,
		ActorID:    actorID,
	})
}

// resolveVoter picks the voter from the authenticated header or the body. A
// body naming a different voter than the header is refused.
func resolveVoter(headerVoterID string, bodyVoterID string) (string, error) {
	headerVoterID = strings.TrimSpace(headerVoterID)
	bodyVoterID = strings.TrimSpace(bodyVoterID)
	switch {
	case headerVoterID == "":
		return bodyVoterID, nil
	case bodyVoterID == "" || strings.EqualFold(headerVoterID, bodyVoterID):
		return headerVoterID, nil
	default:
		return "", domainerrors.ErrVoteNotOwned
	}
}

// ListVotesHandler godoc
// @Summary List current votes
// @Tags weighted-voting
// @Produce json
// @Param proposal_id path string true "Proposal id"
// @Success 200 {object} httptransport.VoteListResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /api/governance/v1/proposals/{proposal_id}/votes [get]
func (h Handler) ListVotesHandler(ctx context.Context, proposalID string) (httptransport.VoteListResponse, error) {
	votes, err := h.Queries.ListVotes(ctx, proposalID)
	if err != nil {
		return httptransport.VoteListResponse{}, err
	}
	items := make([]httptransport.VoteResponse, 0, len(votes))
	for _, vote := range votes {
		items = append(items, mapVote(vote))
	}
	return httptransport.VoteListResponse{
		ProposalID: proposalID,
		Items:      items,
	}, nil
}

// TallyHandler godoc
// @Summary Weighted tally
// @Description Tally over the current vote set with per-class and per-voter weights.
// @Tags weighted-voting
// @Produce json
// @Param proposal_id path string true "Proposal id"
// @Success 200 {object} httptransport.TallyResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /api/governance/v1/proposals/{proposal_id}/tally [get]
func (h Handler) TallyHandler(ctx context.Context, proposalID string) (httptransport.TallyResponse, error) {
	report, err := h.Queries.GetTallyReport(ctx, proposalID)
	if err != nil {
		return httptransport.TallyResponse{}, err
	}
	tally := report.Tally
	perVoter := make([]httptransport.VoterWeight, 0, len(report.Votes))
	for _, vote := range report.Votes {
		perVoter = append(perVoter, httptransport.VoterWeight{
			VoterID:    vote.VoterID,
			VoterClass: string(vote.VoterClass),
			Choice:     string(vote.Choice),
			Weight:     tally.PerClassWeight[vote.VoterClass],
		})
	}
	return httptransport.TallyResponse{
		ProposalID:     proposalID,
		Up:             tally.Up,
		Down:           tally.Down,
		Total:          tally.Total,
		YesFraction:    tally.YesFraction(),
		Voters:         tally.Voters,
		Counts:         classCounts(tally.Counts),
		ActiveShares:   classFloats(tally.ActiveShares),
		PerClassWeight: classFloats(tally.PerClassWeight),
		PerVoter:       perVoter,
	}, nil
}

// DecideHandler godoc
// @Summary Decide a proposal
// @Description Tallies current votes, applies the level threshold and stores the outcome.
// @Tags weighted-voting
// @Accept json
// @Produce json
// @Param proposal_id path string true "Proposal id"
// @Param request body httptransport.DecideRequest true "Decision level"
// @Success 200 {object} httptransport.DecisionResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /api/governance/v1/proposals/{proposal_id}/decision [post]
func (h Handler) DecideHandler(
	ctx context.Context,
	proposalID string,
	req httptransport.DecideRequest,
) (httptransport.DecisionResponse, error) {
	decision, err := h.Decisions.Decide(ctx, commands.DecideCommand{
		ProposalID: proposalID,
		Level:      entities.DecisionLevel(req.Level),
	})
	if err != nil {
		application.ResolveLogger(h.Logger).Warn("decide request failed",
			"event", "http_governance_decide_failed",
			"module", application.Module,
			"layer", "transport",
			"proposal_id", proposalID,
			"error", err.Error(),
		)
		return httptransport.DecisionResponse{}, err
	}
	return mapDecision(decision), nil
}

// GetDecisionHandler godoc
// @Summary Current decision
// @Tags weighted-voting
// @Produce json
// @Param proposal_id path string true "Proposal id"
// @Success 200 {object} httptransport.DecisionResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /api/governance/v1/proposals/{proposal_id}/decision [get]
func (h Handler) GetDecisionHandler(ctx context.Context, proposalID string) (httptransport.DecisionResponse, error) {
	decision, err := h.Queries.GetDecision(ctx, proposalID)
	if err != nil {
		return httptransport.DecisionResponse{}, err
	}
	return mapDecision(decision), nil
}

// ThresholdsHandler godoc
// @Summary Decision thresholds by level
// @Tags weighted-voting
// @Produce json
// @Success 200 {object} httptransport.ThresholdsResponse
// @Router /api/governance/v1/thresholds [get]
func (h Handler) ThresholdsHandler(_ context.Context) httptransport.ThresholdsResponse {
	thresholds := h.Queries.Thresholds()
	out := make(map[string]float64, len(thresholds))
	for level, threshold := range thresholds {
		out[string(level)] = threshold
	}
	return httptransport.ThresholdsResponse{Thresholds: out}
}

// WeightsHandler godoc
// @Summary Active voter class weights
// @Tags weighted-voting
// @Produce json
// @Success 200 {object} httptransport.WeightsResponse
// @Router /api/governance/v1/weights [get]
func (h Handler) WeightsHandler(_ context.Context) httptransport.WeightsResponse {
	return httptransport.WeightsResponse{
		Weights:   classFloats(h.Queries.WeightTable().Weights()),
		BaseClass: string(entities.BaseVoterClass),
	}
}

func mapVote(vote entities.Vote) httptransport.VoteResponse {
	return httptransport.VoteResponse{
		ProposalID: vote.ProposalID,
		VoterID:    vote.VoterID,
		Choice:     string(vote.Choice),
		VoterClass: string(vote.VoterClass),
		CreatedAt:  vote.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  vote.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func mapDecision(decision entities.Decision) httptransport.DecisionResponse {
	return httptransport.DecisionResponse{
		ProposalID: decision.ProposalID,
		Status:     string(decision.Status),
		Level:      string(decision.Level),
		Threshold:  decision.Threshold,
		Up:         decision.Up,
		Down:       decision.Down,
		Total:      decision.Total,
		ComputedAt: decision.ComputedAt.UTC().Format(time.RFC3339),
	}
}

func classFloats(values map[entities.VoterClass]float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	for class, value := range values {
		out[string(class)] = value
	}
	return out
}

func classCounts(values map[entities.VoterClass]int) map[string]int {
	out := make(map[string]int, len(values))
	for class, value := range values {
		out[string(class)] = value
	}
	return out
}
