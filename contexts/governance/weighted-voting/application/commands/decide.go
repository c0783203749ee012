package commands

import (
	"context"
	"log/slog"
	"strings"

	application "concord/contexts/governance/weighted-voting/application"
	"concord/contexts/governance/weighted-voting/domain/entities"
	domainerrors "concord/contexts/governance/weighted-voting/domain/errors"
	"concord/contexts/governance/weighted-voting/domain/services"
	"concord/contexts/governance/weighted-voting/ports"
)

type DecideCommand struct {
	ProposalID string
	Level      entities.DecisionLevel
}

// DecideUseCase tallies the current vote set, applies the level threshold and
// overwrites the proposal's decision record. It holds no vote cache: every
// call reads the store, so repeated calls converge as votes settle.
type DecideUseCase struct {
	Votes     ports.VoteStore
	Decisions ports.DecisionStore
	Proposals ports.ProposalDirectory
	Weights   ports.WeightSource
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func (uc DecideUseCase) Decide(ctx context.Context, cmd DecideCommand) (entities.Decision, error) {
	logger := application.ResolveLogger(uc.Logger)
	proposalID := strings.TrimSpace(cmd.ProposalID)
	level, err := entities.ParseDecisionLevel(string(cmd.Level))
	if err != nil {
		logger.Warn("decide level rejected",
			"event", "governance_decide_invalid_level",
			"module", application.Module,
			"layer", "application",
			"proposal_id", proposalID,
			"level", string(cmd.Level),
		)
		return entities.Decision{}, err
	}
	if proposalID == "" {
		return entities.Decision{}, domainerrors.ErrProposalNotFound
	}
	if err := ensureProposal(ctx, uc.Proposals, proposalID); err != nil {
		return entities.Decision{}, err
	}

	votes, err := uc.Votes.GetVotes(ctx, proposalID)
	if err != nil {
		logger.Error("decide vote load failed",
			"event", "governance_decide_votes_load_failed",
			"module", application.Module,
			"layer", "application",
			"proposal_id", proposalID,
			"error", err.Error(),
		)
		return entities.Decision{}, err
	}

	tally := services.Tally(application.CurrentWeights(uc.Weights), votes)
	status, threshold, err := services.Evaluate(tally, level)
	if err != nil {
		return entities.Decision{}, err
	}

	now := resolveNow(uc.Clock)
	decision := entities.Decision{
		ProposalID: proposalID,
		Status:     status,
		Level:      level,
		Threshold:  threshold,
		Up:         tally.Up,
		Down:       tally.Down,
		Total:      tally.Total,
		ComputedAt: now,
	}
	if err := uc.Decisions.UpsertDecision(ctx, decision); err != nil {
		logger.Error("decision upsert failed",
			"event", "governance_decision_upsert_failed",
			"module", application.Module,
			"layer", "application",
			"proposal_id", proposalID,
			"error", err.Error(),
		)
		return entities.Decision{}, err
	}
	if err := appendEvent(ctx, uc.Outbox, uc.IDGen, application.TopicDecisionRecorded, proposalID, now, map[string]any{
		"proposal_id": proposalID,
		"status":      string(status),
		"level":       string(level),
		"threshold":   threshold,
		"up":          tally.Up,
		"down":        tally.Down,
		"total":       tally.Total,
		"voters":      tally.Voters,
	}); err != nil {
		return entities.Decision{}, err
	}

	logger.Info("decision recorded",
		"event", "governance_decision_recorded",
		"module", application.Module,
		"layer", "application",
		"proposal_id", proposalID,
		"status", string(status),
		"level", string(level),
		"up", tally.Up,
		"total", tally.Total,
		"voters", tally.Voters,
	)
	return decision, nil
}
