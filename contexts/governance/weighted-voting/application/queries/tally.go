package queries

import (
	"context"
	"sort"
	"strings"

	application "concord/contexts/governance/weighted-voting/application"
	"concord/contexts/governance/weighted-voting/domain/entities"
	domainerrors "concord/contexts/governance/weighted-voting/domain/errors"
	"concord/contexts/governance/weighted-voting/domain/services"
	"concord/contexts/governance/weighted-voting/ports"
)

type TallyUseCase struct {
	Votes     ports.VoteStore
	Decisions ports.DecisionStore
	Proposals ports.ProposalDirectory
	Weights   ports.WeightSource
}

// GetTally computes the tally from the store's current vote set.
func (uc TallyUseCase) GetTally(ctx context.Context, proposalID string) (entities.Tally, error) {
	votes, err := uc.loadVotes(ctx, proposalID)
	if err != nil {
		return entities.Tally{}, err
	}
	return services.Tally(application.CurrentWeights(uc.Weights), votes), nil
}

// TallyReport pairs a tally with the exact vote set it was computed from.
type TallyReport struct {
	Tally entities.Tally
	Votes []entities.Vote
}

// GetTallyReport reads the vote set once and derives the tally from it, so
// per-voter weights always agree with the aggregate.
func (uc TallyUseCase) GetTallyReport(ctx context.Context, proposalID string) (TallyReport, error) {
	votes, err := uc.loadVotes(ctx, proposalID)
	if err != nil {
		return TallyReport{}, err
	}
	sortByVoter(votes)
	return TallyReport{
		Tally: services.Tally(application.CurrentWeights(uc.Weights), votes),
		Votes: votes,
	}, nil
}

func (uc TallyUseCase) ListVotes(ctx context.Context, proposalID string) ([]entities.Vote, error) {
	votes, err := uc.loadVotes(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	sortByVoter(votes)
	return votes, nil
}

func (uc TallyUseCase) GetDecision(ctx context.Context, proposalID string) (entities.Decision, error) {
	proposalID = strings.TrimSpace(proposalID)
	if proposalID == "" {
		return entities.Decision{}, domainerrors.ErrDecisionNotFound
	}
	return uc.Decisions.GetDecision(ctx, proposalID)
}

func (uc TallyUseCase) Thresholds() map[entities.DecisionLevel]float64 {
	return services.Thresholds()
}

// WeightTable returns the table the next tally will use.
func (uc TallyUseCase) WeightTable() entities.WeightTable {
	return application.CurrentWeights(uc.Weights)
}

func (uc TallyUseCase) loadVotes(ctx context.Context, proposalID string) ([]entities.Vote, error) {
	proposalID = strings.TrimSpace(proposalID)
	if proposalID == "" {
		return nil, domainerrors.ErrProposalNotFound
	}
	exists, err := uc.Proposals.ProposalExists(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domainerrors.ErrProposalNotFound
	}
	return uc.Votes.GetVotes(ctx, proposalID)
}

func sortByVoter(votes []entities.Vote) {
	sort.Slice(votes, func(i, j int) bool {
		return votes[i].VoterID < votes[j].VoterID
	})
}
