package ports

import (
	"context"
	"time"

	contractsv1 "concord/contracts/gen/events/v1"
	"concord/contexts/governance/weighted-voting/domain/entities"
)

// VoteStore is the single source of truth for vote sets. UpsertVote must be
// atomic per (proposal_id, voter_id): concurrent submissions from one voter
// leave exactly one row.
type VoteStore interface {
	GetVotes(ctx context.Context, proposalID string) ([]entities.Vote, error)
	UpsertVote(ctx context.Context, vote entities.Vote) error
	DeleteVote(ctx context.Context, proposalID string, voterID string) error
}

// DecisionStore keeps one decision per proposal; UpsertDecision overwrites.
type DecisionStore interface {
	UpsertDecision(ctx context.Context, decision entities.Decision) error
	GetDecision(ctx context.Context, proposalID string) (entities.Decision, error)
}

// ProposalDirectory answers existence checks against the proposal CRUD owner.
type ProposalDirectory interface {
	ProposalExists(ctx context.Context, proposalID string) (bool, error)
}

// WeightSource hands out the weight table for the current decision epoch.
type WeightSource interface {
	Current() entities.WeightTable
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// EventEnvelope reuses the shared versioned envelope contract.
type EventEnvelope = contractsv1.Envelope

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

// EventDedupStore reserves event ids so replayed deliveries are skipped.
// It reports true when the event was already processed with the same payload.
// ReleaseEvent forgets a reservation whose processing failed; releasing an
// unknown id is not an error.
type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
	ReleaseEvent(ctx context.Context, eventID string) error
}
