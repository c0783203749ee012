package commands

import (
	"context"
	"strings"

	application "concord/contexts/governance/weighted-voting/application"
	domainerrors "concord/contexts/governance/weighted-voting/domain/errors"
)

// RetractVoteCommand removes a voter's standing vote on a proposal. ActorID
// is the authenticated caller; when set it must match VoterID.
type RetractVoteCommand struct {
	ProposalID string
	VoterID    string
	ActorID    string
}

// RetractVote deletes the voter's vote and emits vote.retracted.
func (uc VoteUseCase) RetractVote(ctx context.Context, cmd RetractVoteCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	proposalID := strings.TrimSpace(cmd.ProposalID)
	voterID := strings.TrimSpace(cmd.VoterID)
	if proposalID == "" || voterID == "" {
		logger.Warn("vote retract validation failed",
			"event", "governance_vote_retract_validation_failed",
			"module", application.Module,
			"layer", "application",
			"proposal_id", proposalID,
			"voter_id", voterID,
		)
		return domainerrors.ErrInvalidVoteInput
	}
	if actorID := strings.TrimSpace(cmd.ActorID); actorID != "" && !strings.EqualFold(actorID, voterID) {
		logger.Warn("vote retract rejected for non-owner",
			"event", "governance_vote_retract_not_owner",
			"module", application.Module,
			"layer", "application",
			"proposal_id", proposalID,
			"voter_id", voterID,
			"actor_id", actorID,
		)
		return domainerrors.ErrVoteNotOwned
	}
	if err := ensureProposal(ctx, uc.Proposals, proposalID); err != nil {
		return err
	}
	if err := uc.Votes.DeleteVote(ctx, proposalID, voterID); err != nil {
		logger.Warn("vote retract failed",
			"event", "governance_vote_retract_failed",
			"module", application.Module,
			"layer", "application",
			"proposal_id", proposalID,
			"voter_id", voterID,
			"error", err.Error(),
		)
		return err
	}

	now := resolveNow(uc.Clock)
	if err := appendEvent(ctx, uc.Outbox, uc.IDGen, application.TopicVoteRetracted, proposalID, now, map[string]any{
		"proposal_id": proposalID,
		"voter_id":    voterID,
	}); err != nil {
		return err
	}
	logger.Info("vote retracted",
		"event", "governance_vote_retracted",
		"module", application.Module,
		"layer", "application",
		"proposal_id", proposalID,
		"voter_id", voterID,
	)
	return nil
}
