package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	application "concord/contexts/governance/weighted-voting/application"
	"concord/contexts/governance/weighted-voting/domain/entities"
	domainerrors "concord/contexts/governance/weighted-voting/domain/errors"
	"concord/contexts/governance/weighted-voting/ports"
)

// SubmitVoteCommand is the write-model input for casting or changing a vote.
type SubmitVoteCommand struct {
	ProposalID string
	VoterID    string
	Choice     string
	VoterClass string
}

// VoteUseCase orchestrates vote submission and retraction. It validates input
// at the boundary so that unknown classes never reach the weight table, and
// relies on the store's keyed upsert for one-vote-per-voter.
type VoteUseCase struct {
	Votes     ports.VoteStore
	Proposals ports.ProposalDirectory
	Weights   ports.WeightSource
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

// SubmitVote creates the voter's vote or replaces its choice and class.
// Re-submitting never adds a second ballot for the same voter.
func (uc VoteUseCase) SubmitVote(ctx context.Context, cmd SubmitVoteCommand) (entities.Vote, error) {
	logger := application.ResolveLogger(uc.Logger)
	proposalID := strings.TrimSpace(cmd.ProposalID)
	voterID := strings.TrimSpace(cmd.VoterID)
	logger.Info("vote submit processing started",
		"event", "governance_vote_submit_started",
		"module", application.Module,
		"layer", "application",
		"proposal_id", proposalID,
		"voter_id", voterID,
	)
	if proposalID == "" || voterID == "" {
		logger.Warn("vote submit validation failed",
			"event", "governance_vote_submit_validation_failed",
			"module", application.Module,
			"layer", "application",
			"proposal_id", proposalID,
			"voter_id", voterID,
		)
		return entities.Vote{}, domainerrors.ErrInvalidVoteInput
	}

	choice, err := entities.ParseChoice(cmd.Choice)
	if err != nil {
		logger.Warn("vote submit choice rejected",
			"event", "governance_vote_submit_invalid_choice",
			"module", application.Module,
			"layer", "application",
			"proposal_id", proposalID,
			"voter_id", voterID,
			"choice", strings.TrimSpace(cmd.Choice),
		)
		return entities.Vote{}, err
	}

	class := entities.NormalizeVoterClass(cmd.VoterClass)
	if !application.CurrentWeights(uc.Weights).Has(class) {
		logger.Warn("vote submit class rejected",
			"event", "governance_vote_submit_invalid_class",
			"module", application.Module,
			"layer", "application",
			"proposal_id", proposalID,
			"voter_id", voterID,
			"voter_class", string(class),
		)
		return entities.Vote{}, domainerrors.ErrInvalidClass
	}

	if err := ensureProposal(ctx, uc.Proposals, proposalID); err != nil {
		if !errors.Is(err, domainerrors.ErrProposalNotFound) {
			logger.Error("vote submit proposal lookup failed",
				"event", "governance_vote_submit_proposal_lookup_failed",
				"module", application.Module,
				"layer", "application",
				"proposal_id", proposalID,
				"error", err.Error(),
			)
		}
		return entities.Vote{}, err
	}

	now := resolveNow(uc.Clock)
	vote := entities.Vote{
		ProposalID: proposalID,
		VoterID:    voterID,
		Choice:     choice,
		VoterClass: class,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.Votes.UpsertVote(ctx, vote); err != nil {
		logger.Error("vote upsert failed",
			"event", "governance_vote_upsert_failed",
			"module", application.Module,
			"layer", "application",
			"proposal_id", proposalID,
			"voter_id", voterID,
			"error", err.Error(),
		)
		return entities.Vote{}, err
	}
	if err := appendEvent(ctx, uc.Outbox, uc.IDGen, application.TopicVoteCast, proposalID, now, map[string]any{
		"proposal_id": proposalID,
		"voter_id":    voterID,
		"choice":      string(choice),
		"voter_class": string(class),
	}); err != nil {
		return entities.Vote{}, err
	}

	logger.Info("vote submitted",
		"event", "governance_vote_submitted",
		"module", application.Module,
		"layer", "application",
		"proposal_id", proposalID,
		"voter_id", voterID,
		"choice", string(choice),
		"voter_class", string(class),
	)
	return vote, nil
}

func ensureProposal(ctx context.Context, proposals ports.ProposalDirectory, proposalID string) error {
	exists, err := proposals.ProposalExists(ctx, proposalID)
	if err != nil {
		return err
	}
	if !exists {
		return domainerrors.ErrProposalNotFound
	}
	return nil
}
