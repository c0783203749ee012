package sqliteadapter

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	contractsv1 "concord/contracts/gen/events/v1"
	"concord/contexts/governance/weighted-voting/domain/entities"
	domainerrors "concord/contexts/governance/weighted-voting/domain/errors"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "governance.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestUpsertVoteKeepsOneRowPerVoter(t *testing.T) {
	store := tempStore(t)
	ctx := context.Background()
	if err := store.RegisterProposal(ctx, "p-1"); err != nil {
		t.Fatalf("register proposal: %v", err)
	}

	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	vote := entities.Vote{
		ProposalID: "p-1",
		VoterID:    "alice",
		Choice:     entities.ChoiceUp,
		VoterClass: entities.VoterClassHuman,
		CreatedAt:  first,
		UpdatedAt:  first,
	}
	if err := store.UpsertVote(ctx, vote); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	vote.Choice = entities.ChoiceDown
	vote.CreatedAt = first.Add(time.Hour)
	vote.UpdatedAt = first.Add(time.Hour)
	if err := store.UpsertVote(ctx, vote); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	votes, err := store.GetVotes(ctx, "p-1")
	if err != nil {
		t.Fatalf("get votes: %v", err)
	}
	if len(votes) != 1 {
		t.Fatalf("expected one vote, got %d", len(votes))
	}
	if votes[0].Choice != entities.ChoiceDown {
		t.Fatalf("expected latest choice down, got %s", votes[0].Choice)
	}
	if !votes[0].CreatedAt.Equal(first) {
		t.Fatalf("expected created_at preserved, got %s", votes[0].CreatedAt)
	}
}

func TestConcurrentUpsertsFromOneVoter(t *testing.T) {
	store := tempStore(t)
	ctx := context.Background()
	if err := store.RegisterProposal(ctx, "p-2"); err != nil {
		t.Fatalf("register proposal: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			choice := entities.ChoiceUp
			if i%2 == 1 {
				choice = entities.ChoiceDown
			}
			now := time.Now().UTC()
			if err := store.UpsertVote(ctx, entities.Vote{
				ProposalID: "p-2",
				VoterID:    "bob",
				Choice:     choice,
				VoterClass: entities.VoterClassAI,
				CreatedAt:  now,
				UpdatedAt:  now,
			}); err != nil {
				t.Errorf("upsert %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	votes, err := store.GetVotes(ctx, "p-2")
	if err != nil {
		t.Fatalf("get votes: %v", err)
	}
	if len(votes) != 1 {
		t.Fatalf("expected exactly one vote row, got %d", len(votes))
	}
}

func TestDeleteVoteMissing(t *testing.T) {
	store := tempStore(t)
	err := store.DeleteVote(context.Background(), "p-3", "nobody")
	if !errors.Is(err, domainerrors.ErrVoteNotFound) {
		t.Fatalf("expected ErrVoteNotFound, got %v", err)
	}
}

func TestProposalExists(t *testing.T) {
	store := tempStore(t)
	ctx := context.Background()
	exists, err := store.ProposalExists(ctx, "p-4")
	if err != nil || exists {
		t.Fatalf("expected unknown proposal, got exists=%v err=%v", exists, err)
	}
	if err := store.RegisterProposal(ctx, "p-4"); err != nil {
		t.Fatalf("register proposal: %v", err)
	}
	if err := store.RegisterProposal(ctx, "p-4"); err != nil {
		t.Fatalf("re-register proposal: %v", err)
	}
	exists, err = store.ProposalExists(ctx, "p-4")
	if err != nil || !exists {
		t.Fatalf("expected registered proposal, got exists=%v err=%v", exists, err)
	}
}

func TestDecisionUpsertOverwrites(t *testing.T) {
	store := tempStore(t)
	ctx := context.Background()
	if _, err := store.GetDecision(ctx, "p-5"); !errors.Is(err, domainerrors.ErrDecisionNotFound) {
		t.Fatalf("expected ErrDecisionNotFound, got %v", err)
	}

	decision := entities.Decision{
		ProposalID: "p-5",
		Status:     entities.DecisionStatusAccepted,
		Level:      entities.DecisionLevelStandard,
		Threshold:  0.6,
		Up:         0.75,
		Down:       0.25,
		Total:      1,
		ComputedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.UpsertDecision(ctx, decision); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	decision.Status = entities.DecisionStatusRejected
	decision.Level = entities.DecisionLevelImportant
	decision.Threshold = 0.9
	if err := store.UpsertDecision(ctx, decision); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := store.GetDecision(ctx, "p-5")
	if err != nil {
		t.Fatalf("get decision: %v", err)
	}
	if got.Status != entities.DecisionStatusRejected || got.Level != entities.DecisionLevelImportant {
		t.Fatalf("expected overwritten decision, got %+v", got)
	}
	if got.Up != 0.75 || !got.ComputedAt.Equal(decision.ComputedAt) {
		t.Fatalf("unexpected decision fields %+v", got)
	}
}

func TestOutboxLifecycle(t *testing.T) {
	store := tempStore(t)
	ctx := context.Background()
	envelope, err := contractsv1.NewEnvelope(
		"evt-1", "vote.cast", "weighted-voting", "proposal_id", "p-6",
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		map[string]any{"proposal_id": "p-6"},
	)
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if err := store.AppendOutbox(ctx, envelope); err != nil {
		t.Fatalf("append outbox: %v", err)
	}
	if err := store.AppendOutbox(ctx, envelope); err != nil {
		t.Fatalf("identical replay should be accepted: %v", err)
	}

	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].OutboxID != "evt-1" || pending[0].PartitionKey != "p-6" {
		t.Fatalf("unexpected pending rows %+v", pending)
	}
	if err := store.MarkOutboxPublished(ctx, "evt-1", time.Now()); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	pending, err = store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending after publish: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected empty outbox, got %d", len(pending))
	}
	if err := store.MarkOutboxPublished(ctx, "missing", time.Now()); !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected ErrConflict for unknown row, got %v", err)
	}
}

func TestReserveEvent(t *testing.T) {
	store := tempStore(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	seen, err := store.ReserveEvent(ctx, "evt-9", "hash-a", expires)
	if err != nil || seen {
		t.Fatalf("first reservation: seen=%v err=%v", seen, err)
	}
	seen, err = store.ReserveEvent(ctx, "evt-9", "hash-a", expires)
	if err != nil || !seen {
		t.Fatalf("replay should be reported as seen: seen=%v err=%v", seen, err)
	}
	if _, err := store.ReserveEvent(ctx, "evt-9", "hash-b", expires); !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected ErrIdempotencyConflict, got %v", err)
	}
}

func TestReleaseEventAllowsReprocessing(t *testing.T) {
	store := tempStore(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	if _, err := store.ReserveEvent(ctx, "evt-10", "hash-a", expires); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := store.ReleaseEvent(ctx, "evt-10"); err != nil {
		t.Fatalf("release: %v", err)
	}
	seen, err := store.ReserveEvent(ctx, "evt-10", "hash-a", expires)
	if err != nil || seen {
		t.Fatalf("released event must reserve fresh: seen=%v err=%v", seen, err)
	}
	if err := store.ReleaseEvent(ctx, "evt-unknown"); err != nil {
		t.Fatalf("releasing unknown id should be a no-op, got %v", err)
	}
}
