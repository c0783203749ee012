package workers_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"concord/contexts/governance/weighted-voting/adapters/memory"
	"concord/contexts/governance/weighted-voting/adapters/weightfile"
	"concord/contexts/governance/weighted-voting/application/commands"
	"concord/contexts/governance/weighted-voting/application/workers"
	"concord/contexts/governance/weighted-voting/domain/entities"
	domainerrors "concord/contexts/governance/weighted-voting/domain/errors"
	"concord/contexts/governance/weighted-voting/ports"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type stubSubscriber struct {
	handlers map[string]func(context.Context, ports.EventEnvelope) error
}

func (s *stubSubscriber) Subscribe(
	_ context.Context,
	topic string,
	_ string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	if s.handlers == nil {
		s.handlers = map[string]func(context.Context, ports.EventEnvelope) error{}
	}
	s.handlers[topic] = handler
	return nil
}

type stubPublisher struct {
	events []ports.EventEnvelope
	err    error
}

func (p *stubPublisher) Publish(_ context.Context, _ string, event ports.EventEnvelope) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

type fixture struct {
	store  *memory.Store
	votes  commands.VoteUseCase
	decide commands.DecideUseCase
}

func newFixture(proposalID string) fixture {
	store := memory.NewStore(nil)
	store.SetProposal(proposalID)
	clock := fixedClock{now: time.Date(2026, 4, 3, 8, 0, 0, 0, time.UTC)}
	weights := weightfile.Static(entities.DefaultWeightTable())
	return fixture{
		store: store,
		votes: commands.VoteUseCase{
			Votes: store, Proposals: store, Weights: weights,
			Outbox: store, Clock: clock, IDGen: store,
		},
		decide: commands.DecideUseCase{
			Votes: store, Decisions: store, Proposals: store, Weights: weights,
			Outbox: store, Clock: clock, IDGen: store,
		},
	}
}

func (f fixture) cast(t *testing.T, proposalID, voterID, choice, class string) {
	t.Helper()
	if _, err := f.votes.SubmitVote(context.Background(), commands.SubmitVoteCommand{
		ProposalID: proposalID, VoterID: voterID, Choice: choice, VoterClass: class,
	}); err != nil {
		t.Fatalf("submit vote failed: %v", err)
	}
}

func TestOutboxRelayPublishesAndMarksRows(t *testing.T) {
	f := newFixture("p-1")
	f.cast(t, "p-1", "h1", "up", "human")
	f.cast(t, "p-1", "c1", "down", "company")

	publisher := &stubPublisher{}
	relay := workers.OutboxRelay{Outbox: f.store, Publisher: publisher, BatchSize: 10}
	published, err := relay.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("relay run failed: %v", err)
	}
	if published != 2 || len(publisher.events) != 2 {
		t.Fatalf("expected 2 published events, got %d/%d", published, len(publisher.events))
	}
	for _, event := range publisher.events {
		if event.EventType != "vote.cast" || event.PartitionKey != "p-1" {
			t.Fatalf("unexpected event %+v", event)
		}
	}

	published, err = relay.RunOnce(context.Background())
	if err != nil || published != 0 {
		t.Fatalf("expected empty second cycle, got %d (%v)", published, err)
	}
}

func TestOutboxRelayStopsOnPublishFailure(t *testing.T) {
	f := newFixture("p-1")
	f.cast(t, "p-1", "h1", "up", "human")

	publishErr := errors.New("broker unavailable")
	relay := workers.OutboxRelay{Outbox: f.store, Publisher: &stubPublisher{err: publishErr}}
	if _, err := relay.RunOnce(context.Background()); !errors.Is(err, publishErr) {
		t.Fatalf("expected publish error, got %v", err)
	}
	pending, err := f.store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("failed publish must leave row pending, got %d rows", len(pending))
	}
}

func TestDecisionRefreshConsumerRedecidesOnNewVotes(t *testing.T) {
	f := newFixture("p-1")
	ctx := context.Background()
	f.cast(t, "p-1", "h1", "up", "human")
	if _, err := f.decide.Decide(ctx, commands.DecideCommand{ProposalID: "p-1", Level: entities.DecisionLevelImportant}); err != nil {
		t.Fatalf("initial decide failed: %v", err)
	}

	sub := &stubSubscriber{}
	consumer := workers.DecisionRefreshConsumer{
		Subscriber: sub,
		Dedup:      f.store,
		Decisions:  f.store,
		Decider:    f.decide,
	}
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("start consumer failed: %v", err)
	}
	handler := sub.handlers["vote.cast"]
	if handler == nil || sub.handlers["vote.retracted"] == nil {
		t.Fatalf("expected vote.cast and vote.retracted subscriptions")
	}

	f.cast(t, "p-1", "c1", "down", "company")
	publisher := &stubPublisher{}
	if _, err := (workers.OutboxRelay{Outbox: f.store, Publisher: publisher}).RunOnce(ctx); err != nil {
		t.Fatalf("relay run failed: %v", err)
	}
	for _, event := range publisher.events {
		if event.EventType != "vote.cast" {
			continue
		}
		if err := handler(ctx, event); err != nil {
			t.Fatalf("handle %s failed: %v", event.EventID, err)
		}
	}

	decision, err := f.store.GetDecision(ctx, "p-1")
	if err != nil {
		t.Fatalf("load decision failed: %v", err)
	}
	if decision.Status != entities.DecisionStatusRejected {
		t.Fatalf("expected refreshed decision rejected, got %s", decision.Status)
	}
	if decision.Level != entities.DecisionLevelImportant {
		t.Fatalf("refresh must keep the stored level, got %s", decision.Level)
	}
}

func TestDecisionRefreshConsumerSkipsUndecidedProposals(t *testing.T) {
	f := newFixture("p-2")
	ctx := context.Background()
	f.cast(t, "p-2", "h1", "up", "human")

	consumer := workers.DecisionRefreshConsumer{Dedup: f.store, Decisions: f.store, Decider: f.decide}
	pending, _ := f.store.ListPendingOutbox(ctx, 10)
	publisher := &stubPublisher{}
	if _, err := (workers.OutboxRelay{Outbox: f.store, Publisher: publisher}).RunOnce(ctx); err != nil {
		t.Fatalf("relay run failed: %v", err)
	}
	if len(publisher.events) != len(pending) || len(pending) == 0 {
		t.Fatalf("expected relayed vote events")
	}
	if err := consumer.Handle(ctx, publisher.events[0]); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if _, err := f.store.GetDecision(ctx, "p-2"); !errors.Is(err, domainerrors.ErrDecisionNotFound) {
		t.Fatalf("consumer must not create decisions, got %v", err)
	}
}

type countingDecider struct {
	calls    int
	failures int
}

func (d *countingDecider) Decide(_ context.Context, cmd commands.DecideCommand) (entities.Decision, error) {
	d.calls++
	if d.calls <= d.failures {
		return entities.Decision{}, errors.New("store unavailable")
	}
	return entities.Decision{ProposalID: cmd.ProposalID, Level: cmd.Level}, nil
}

func TestDecisionRefreshConsumerSkipsReplays(t *testing.T) {
	f := newFixture("p-3")
	ctx := context.Background()
	if err := f.store.UpsertDecision(ctx, entities.Decision{
		ProposalID: "p-3",
		Status:     entities.DecisionStatusUndecided,
		Level:      entities.DecisionLevelStandard,
	}); err != nil {
		t.Fatalf("seed decision failed: %v", err)
	}
	f.cast(t, "p-3", "h1", "up", "human")
	publisher := &stubPublisher{}
	if _, err := (workers.OutboxRelay{Outbox: f.store, Publisher: publisher}).RunOnce(ctx); err != nil {
		t.Fatalf("relay run failed: %v", err)
	}

	decider := &countingDecider{}
	consumer := workers.DecisionRefreshConsumer{Dedup: f.store, Decisions: f.store, Decider: decider}
	for i := 0; i < 3; i++ {
		if err := consumer.Handle(ctx, publisher.events[0]); err != nil {
			t.Fatalf("handle delivery %d failed: %v", i, err)
		}
	}
	if decider.calls != 1 {
		t.Fatalf("expected a single re-decide across replays, got %d", decider.calls)
	}
}

func TestDecisionRefreshConsumerRetriesAfterFailedDelivery(t *testing.T) {
	f := newFixture("p-5")
	ctx := context.Background()
	if err := f.store.UpsertDecision(ctx, entities.Decision{
		ProposalID: "p-5",
		Status:     entities.DecisionStatusUndecided,
		Level:      entities.DecisionLevelStandard,
	}); err != nil {
		t.Fatalf("seed decision failed: %v", err)
	}
	f.cast(t, "p-5", "h1", "up", "human")
	publisher := &stubPublisher{}
	if _, err := (workers.OutboxRelay{Outbox: f.store, Publisher: publisher}).RunOnce(ctx); err != nil {
		t.Fatalf("relay run failed: %v", err)
	}

	decider := &countingDecider{failures: 1}
	consumer := workers.DecisionRefreshConsumer{Dedup: f.store, Decisions: f.store, Decider: decider}
	if err := consumer.Handle(ctx, publisher.events[0]); err == nil {
		t.Fatalf("expected first delivery to surface the decide failure")
	}
	if err := consumer.Handle(ctx, publisher.events[0]); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if decider.calls != 2 {
		t.Fatalf("redelivery must be processed, not skipped as a replay; calls=%d", decider.calls)
	}
	if err := consumer.Handle(ctx, publisher.events[0]); err != nil {
		t.Fatalf("replay after success failed: %v", err)
	}
	if decider.calls != 2 {
		t.Fatalf("successful delivery must stay reserved; calls=%d", decider.calls)
	}
}

func TestDecisionRefreshConsumerRejectsEventsWithoutProposal(t *testing.T) {
	f := newFixture("p-4")
	consumer := workers.DecisionRefreshConsumer{Decisions: f.store, Decider: &countingDecider{}}
	event := ports.EventEnvelope{EventID: "evt-1", EventType: "vote.cast", Data: []byte(`{}`)}
	if err := consumer.Handle(context.Background(), event); err == nil {
		t.Fatalf("expected event without proposal id to fail")
	}

	event.PartitionKey = "p-4"
	if err := consumer.Handle(context.Background(), event); err != nil {
		t.Fatalf("partition key fallback failed: %v", err)
	}
}
