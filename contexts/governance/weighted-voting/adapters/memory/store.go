package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"concord/contexts/governance/weighted-voting/domain/entities"
	domainerrors "concord/contexts/governance/weighted-voting/domain/errors"
	"concord/contexts/governance/weighted-voting/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

type dedupRecord struct {
	payloadHash string
	expiresAt   time.Time
}

// Store is the in-process implementation of every weighted-voting port.
// The single mutex serializes writes per vote key, which is what makes
// UpsertVote atomic for concurrent submissions from one voter.
type Store struct {
	mu sync.RWMutex

	proposals  map[string]struct{}
	votes      map[entities.VoteKey]entities.Vote
	decisions  map[string]entities.Decision
	outbox     map[string]outboxRecord
	eventDedup map[string]dedupRecord
}

func NewStore(seed []entities.Vote) *Store {
	store := &Store{
		proposals:  make(map[string]struct{}),
		votes:      make(map[entities.VoteKey]entities.Vote, len(seed)),
		decisions:  make(map[string]entities.Decision),
		outbox:     make(map[string]outboxRecord),
		eventDedup: make(map[string]dedupRecord),
	}
	for _, vote := range seed {
		store.proposals[strings.TrimSpace(vote.ProposalID)] = struct{}{}
		store.votes[vote.Key()] = vote
	}
	return store
}

// SetProposal registers a proposal id as existing.
func (s *Store) SetProposal(proposalID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals[strings.TrimSpace(proposalID)] = struct{}{}
}

func (s *Store) ProposalExists(_ context.Context, proposalID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.proposals[strings.TrimSpace(proposalID)]
	return ok, nil
}

func (s *Store) GetVotes(_ context.Context, proposalID string) ([]entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	proposalID = strings.TrimSpace(proposalID)
	items := make([]entities.Vote, 0)
	for key, vote := range s.votes {
		if key.ProposalID == proposalID {
			items = append(items, vote)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].VoterID < items[j].VoterID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) UpsertVote(_ context.Context, vote entities.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := vote.Key()
	vote.ProposalID = key.ProposalID
	vote.VoterID = key.VoterID
	if existing, ok := s.votes[key]; ok {
		existing.Choice = vote.Choice
		existing.VoterClass = vote.VoterClass
		existing.UpdatedAt = vote.UpdatedAt
		s.votes[key] = existing
		return nil
	}
	s.votes[key] = vote
	return nil
}

func (s *Store) DeleteVote(_ context.Context, proposalID string, voterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entities.VoteKey{
		ProposalID: strings.TrimSpace(proposalID),
		VoterID:    strings.TrimSpace(voterID),
	}
	if _, ok := s.votes[key]; !ok {
		return domainerrors.ErrVoteNotFound
	}
	delete(s.votes, key)
	return nil
}

func (s *Store) UpsertDecision(_ context.Context, decision entities.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	decision.ProposalID = strings.TrimSpace(decision.ProposalID)
	s.decisions[decision.ProposalID] = decision
	return nil
}

func (s *Store) GetDecision(_ context.Context, proposalID string) (entities.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	decision, ok := s.decisions[strings.TrimSpace(proposalID)]
	if !ok {
		return entities.Decision{}, domainerrors.ErrDecisionNotFound
	}
	return decision, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrIdempotencyConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].OutboxID < items[j].OutboxID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) ReserveEvent(
	_ context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(eventID)
	existing, ok := s.eventDedup[key]
	if ok {
		if !existing.expiresAt.IsZero() && time.Now().UTC().After(existing.expiresAt.UTC()) {
			delete(s.eventDedup, key)
		} else {
			if existing.payloadHash != strings.TrimSpace(payloadHash) {
				return false, domainerrors.ErrIdempotencyConflict
			}
			return true, nil
		}
	}

	s.eventDedup[key] = dedupRecord{
		payloadHash: strings.TrimSpace(payloadHash),
		expiresAt:   expiresAt.UTC(),
	}
	return false, nil
}

func (s *Store) ReleaseEvent(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.eventDedup, strings.TrimSpace(eventID))
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.VoteStore = (*Store)(nil)
var _ ports.DecisionStore = (*Store)(nil)
var _ ports.ProposalDirectory = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.EventDedupStore = (*Store)(nil)
