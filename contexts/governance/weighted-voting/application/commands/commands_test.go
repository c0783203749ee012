package commands_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"concord/contexts/governance/weighted-voting/adapters/memory"
	"concord/contexts/governance/weighted-voting/adapters/weightfile"
	"concord/contexts/governance/weighted-voting/application/commands"
	"concord/contexts/governance/weighted-voting/domain/entities"
	domainerrors "concord/contexts/governance/weighted-voting/domain/errors"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type failingVoteStore struct {
	err error
}

func (s failingVoteStore) GetVotes(context.Context, string) ([]entities.Vote, error) {
	return nil, s.err
}

func (s failingVoteStore) UpsertVote(context.Context, entities.Vote) error {
	return s.err
}

func (s failingVoteStore) DeleteVote(context.Context, string, string) error {
	return s.err
}

type useCases struct {
	store  *memory.Store
	votes  commands.VoteUseCase
	decide commands.DecideUseCase
}

func newUseCases(t *testing.T, proposals ...string) useCases {
	t.Helper()
	store := memory.NewStore(nil)
	for _, proposalID := range proposals {
		store.SetProposal(proposalID)
	}
	clock := fixedClock{now: time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)}
	weights := weightfile.Static(entities.DefaultWeightTable())
	return useCases{
		store: store,
		votes: commands.VoteUseCase{
			Votes:     store,
			Proposals: store,
			Weights:   weights,
			Outbox:    store,
			Clock:     clock,
			IDGen:     store,
		},
		decide: commands.DecideUseCase{
			Votes:     store,
			Decisions: store,
			Proposals: store,
			Weights:   weights,
			Outbox:    store,
			Clock:     clock,
			IDGen:     store,
		},
	}
}

func (u useCases) cast(t *testing.T, proposalID, voterID, choice, class string) {
	t.Helper()
	if _, err := u.votes.SubmitVote(context.Background(), commands.SubmitVoteCommand{
		ProposalID: proposalID,
		VoterID:    voterID,
		Choice:     choice,
		VoterClass: class,
	}); err != nil {
		t.Fatalf("submit vote %s/%s failed: %v", proposalID, voterID, err)
	}
}

func TestSubmitVoteTwiceKeepsOneVote(t *testing.T) {
	u := newUseCases(t, "p-1")
	u.cast(t, "p-1", "alice", "up", "human")
	u.cast(t, "p-1", "alice", "down", "human")

	votes, err := u.store.GetVotes(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("load votes failed: %v", err)
	}
	if len(votes) != 1 {
		t.Fatalf("expected one vote after re-submit, got %d", len(votes))
	}
	if votes[0].Choice != entities.ChoiceDown {
		t.Fatalf("expected latest choice down, got %s", votes[0].Choice)
	}
}

func TestSubmitVoteValidation(t *testing.T) {
	u := newUseCases(t, "p-1")
	ctx := context.Background()

	_, err := u.votes.SubmitVote(ctx, commands.SubmitVoteCommand{ProposalID: "p-1", VoterID: "a", Choice: "up", VoterClass: "dao"})
	if !errors.Is(err, domainerrors.ErrInvalidClass) {
		t.Fatalf("expected ErrInvalidClass, got %v", err)
	}
	_, err = u.votes.SubmitVote(ctx, commands.SubmitVoteCommand{ProposalID: "p-1", VoterID: "a", Choice: "maybe", VoterClass: "human"})
	if !errors.Is(err, domainerrors.ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice, got %v", err)
	}
	_, err = u.votes.SubmitVote(ctx, commands.SubmitVoteCommand{ProposalID: "p-1", VoterID: " ", Choice: "up", VoterClass: "human"})
	if !errors.Is(err, domainerrors.ErrInvalidVoteInput) {
		t.Fatalf("expected ErrInvalidVoteInput, got %v", err)
	}
	_, err = u.votes.SubmitVote(ctx, commands.SubmitVoteCommand{ProposalID: "p-404", VoterID: "a", Choice: "up", VoterClass: "human"})
	if !errors.Is(err, domainerrors.ErrProposalNotFound) {
		t.Fatalf("expected ErrProposalNotFound, got %v", err)
	}

	votes, _ := u.store.GetVotes(ctx, "p-1")
	if len(votes) != 0 {
		t.Fatalf("rejected submissions must not write votes, got %d", len(votes))
	}
}

func TestSubmitVoteAppendsVoteCastEvent(t *testing.T) {
	u := newUseCases(t, "p-1")
	u.cast(t, "p-1", "alice", "approve", "Company")

	pending, err := u.store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one outbox event, got %d", len(pending))
	}
	if pending[0].EventType != "vote.cast" || pending[0].PartitionKey != "p-1" {
		t.Fatalf("unexpected outbox message %+v", pending[0])
	}
	var envelope struct {
		Data struct {
			Choice     string `json:"choice"`
			VoterClass string `json:"voter_class"`
		} `json:"data"`
	}
	if err := json.Unmarshal(pending[0].Payload, &envelope); err != nil {
		t.Fatalf("decode envelope failed: %v", err)
	}
	if envelope.Data.Choice != "up" || envelope.Data.VoterClass != "company" {
		t.Fatalf("expected normalized payload, got %+v", envelope.Data)
	}
}

func TestRetractVote(t *testing.T) {
	u := newUseCases(t, "p-1")
	ctx := context.Background()
	u.cast(t, "p-1", "alice", "up", "human")

	if err := u.votes.RetractVote(ctx, commands.RetractVoteCommand{ProposalID: "p-1", VoterID: "alice"}); err != nil {
		t.Fatalf("retract failed: %v", err)
	}
	err := u.votes.RetractVote(ctx, commands.RetractVoteCommand{ProposalID: "p-1", VoterID: "alice"})
	if !errors.Is(err, domainerrors.ErrVoteNotFound) {
		t.Fatalf("expected ErrVoteNotFound on second retract, got %v", err)
	}
	err = u.votes.RetractVote(ctx, commands.RetractVoteCommand{ProposalID: "p-404", VoterID: "alice"})
	if !errors.Is(err, domainerrors.ErrProposalNotFound) {
		t.Fatalf("expected ErrProposalNotFound, got %v", err)
	}
}

func TestRetractVoteRequiresOwner(t *testing.T) {
	u := newUseCases(t, "p-1")
	ctx := context.Background()
	u.cast(t, "p-1", "alice", "up", "human")

	err := u.votes.RetractVote(ctx, commands.RetractVoteCommand{ProposalID: "p-1", VoterID: "alice", ActorID: "mallory"})
	if !errors.Is(err, domainerrors.ErrVoteNotOwned) {
		t.Fatalf("expected ErrVoteNotOwned, got %v", err)
	}
	votes, err := u.store.GetVotes(ctx, "p-1")
	if err != nil || len(votes) != 1 {
		t.Fatalf("foreign retract must keep the vote, got %d (%v)", len(votes), err)
	}
	if err := u.votes.RetractVote(ctx, commands.RetractVoteCommand{ProposalID: "p-1", VoterID: "alice", ActorID: "Alice"}); err != nil {
		t.Fatalf("owner retract failed: %v", err)
	}
}

func TestDecideScenarios(t *testing.T) {
	u := newUseCases(t, "thirds", "mixed", "empty")
	u.cast(t, "thirds", "h1", "up", "human")
	u.cast(t, "thirds", "c1", "up", "company")
	u.cast(t, "thirds", "a1", "up", "ai")

	u.cast(t, "mixed", "h1", "up", "human")
	u.cast(t, "mixed", "h2", "down", "human")
	u.cast(t, "mixed", "c1", "up", "company")

	cases := []struct {
		proposal string
		level    entities.DecisionLevel
		want     entities.DecisionStatus
		up       float64
	}{
		{"thirds", entities.DecisionLevelStandard, entities.DecisionStatusAccepted, 1},
		{"thirds", entities.DecisionLevelImportant, entities.DecisionStatusAccepted, 1},
		{"mixed", entities.DecisionLevelStandard, entities.DecisionStatusAccepted, 0.75},
		{"mixed", entities.DecisionLevelImportant, entities.DecisionStatusRejected, 0.75},
		{"empty", entities.DecisionLevelStandard, entities.DecisionStatusUndecided, 0},
	}
	for _, tc := range cases {
		decision, err := u.decide.Decide(context.Background(), commands.DecideCommand{
			ProposalID: tc.proposal,
			Level:      tc.level,
		})
		if err != nil {
			t.Fatalf("%s/%s: decide failed: %v", tc.proposal, tc.level, err)
		}
		if decision.Status != tc.want {
			t.Fatalf("%s/%s: expected %s, got %s", tc.proposal, tc.level, tc.want, decision.Status)
		}
		if math.Abs(decision.Up-tc.up) > 1e-9 {
			t.Fatalf("%s/%s: expected up %f, got %f", tc.proposal, tc.level, tc.up, decision.Up)
		}
	}
}

func TestDecideIsIdempotentAndOverwrites(t *testing.T) {
	u := newUseCases(t, "p-1")
	ctx := context.Background()
	u.cast(t, "p-1", "h1", "up", "human")

	first, err := u.decide.Decide(ctx, commands.DecideCommand{ProposalID: "p-1", Level: entities.DecisionLevelStandard})
	if err != nil {
		t.Fatalf("first decide failed: %v", err)
	}
	second, err := u.decide.Decide(ctx, commands.DecideCommand{ProposalID: "p-1", Level: entities.DecisionLevelStandard})
	if err != nil {
		t.Fatalf("second decide failed: %v", err)
	}
	if first.Status != second.Status || first.Up != second.Up {
		t.Fatalf("expected identical decisions, got %+v and %+v", first, second)
	}

	u.cast(t, "p-1", "h1", "down", "human")
	if _, err := u.decide.Decide(ctx, commands.DecideCommand{ProposalID: "p-1", Level: entities.DecisionLevelImportant}); err != nil {
		t.Fatalf("re-decide failed: %v", err)
	}
	stored, err := u.store.GetDecision(ctx, "p-1")
	if err != nil {
		t.Fatalf("load decision failed: %v", err)
	}
	if stored.Status != entities.DecisionStatusRejected || stored.Level != entities.DecisionLevelImportant {
		t.Fatalf("expected overwritten rejected/important decision, got %+v", stored)
	}
}

func TestDecideErrors(t *testing.T) {
	u := newUseCases(t, "p-1")
	ctx := context.Background()

	if _, err := u.decide.Decide(ctx, commands.DecideCommand{ProposalID: "p-1", Level: "critical"}); !errors.Is(err, domainerrors.ErrInvalidLevel) {
		t.Fatalf("expected ErrInvalidLevel, got %v", err)
	}
	if _, err := u.decide.Decide(ctx, commands.DecideCommand{ProposalID: "p-404", Level: entities.DecisionLevelStandard}); !errors.Is(err, domainerrors.ErrProposalNotFound) {
		t.Fatalf("expected ErrProposalNotFound, got %v", err)
	}
	if _, err := u.store.GetDecision(ctx, "p-1"); !errors.Is(err, domainerrors.ErrDecisionNotFound) {
		t.Fatalf("failed decides must not store a decision, got %v", err)
	}

	storeErr := errors.New("connection reset")
	u.decide.Votes = failingVoteStore{err: storeErr}
	if _, err := u.decide.Decide(ctx, commands.DecideCommand{ProposalID: "p-1", Level: entities.DecisionLevelStandard}); !errors.Is(err, storeErr) {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
}

func TestDecideUsesConfiguredWeights(t *testing.T) {
	u := newUseCases(t, "p-1")
	table, err := entities.NewWeightTable(map[entities.VoterClass]float64{
		entities.VoterClassHuman:   0.8,
		entities.VoterClassCompany: 0.2,
	})
	if err != nil {
		t.Fatalf("build table failed: %v", err)
	}
	u.votes.Weights = weightfile.Static(table)
	u.decide.Weights = weightfile.Static(table)

	u.cast(t, "p-1", "h1", "up", "human")
	u.cast(t, "p-1", "c1", "down", "company")

	decision, err := u.decide.Decide(context.Background(), commands.DecideCommand{ProposalID: "p-1", Level: entities.DecisionLevelStandard})
	if err != nil {
		t.Fatalf("decide failed: %v", err)
	}
	if decision.Status != entities.DecisionStatusAccepted || math.Abs(decision.Up-0.8) > 1e-9 {
		t.Fatalf("expected accepted with up 0.8, got %+v", decision)
	}
	if _, err := u.votes.SubmitVote(context.Background(), commands.SubmitVoteCommand{
		ProposalID: "p-1", VoterID: "a1", Choice: "up", VoterClass: "ai",
	}); !errors.Is(err, domainerrors.ErrInvalidClass) {
		t.Fatalf("ai is not configured in this table, expected ErrInvalidClass, got %v", err)
	}
}
