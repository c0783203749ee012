package sqliteadapter

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"concord/contexts/governance/weighted-voting/domain/entities"
	domainerrors "concord/contexts/governance/weighted-voting/domain/errors"
	"concord/contexts/governance/weighted-voting/ports"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS proposals (
	id          TEXT PRIMARY KEY,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS votes (
	proposal_id TEXT NOT NULL,
	voter_id    TEXT NOT NULL,
	choice      TEXT NOT NULL CHECK (choice IN ('up', 'down')),
	voter_class TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	PRIMARY KEY (proposal_id, voter_id)
);

CREATE TABLE IF NOT EXISTS decisions (
	proposal_id  TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	level        TEXT NOT NULL,
	threshold    REAL NOT NULL,
	up_weight    REAL NOT NULL,
	down_weight  REAL NOT NULL,
	total_weight REAL NOT NULL,
	computed_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
	outbox_id     TEXT PRIMARY KEY,
	event_type    TEXT NOT NULL,
	partition_key TEXT NOT NULL,
	payload       BLOB NOT NULL,
	published     INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL,
	published_at  TEXT
);

CREATE TABLE IF NOT EXISTS event_dedup (
	event_id     TEXT PRIMARY KEY,
	payload_hash TEXT NOT NULL,
	expires_at   TEXT NOT NULL
);
`

// Store keeps proposals, votes and decisions in a single SQLite file. It is
// the local and single-node backend; production deployments use postgres.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps writers serialized and pragmas in effect.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RegisterProposal records a proposal id so votes can be cast on it. Existing
// ids are left untouched.
func (s *Store) RegisterProposal(ctx context.Context, proposalID string) error {
	proposalID = strings.TrimSpace(proposalID)
	if proposalID == "" {
		return domainerrors.ErrInvalidVoteInput
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO proposals (id, created_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		proposalID, formatTime(time.Now()),
	)
	if err != nil {
		return s.logError("governance_sqlite_register_proposal_failed", err, "proposal_id", proposalID)
	}
	return nil
}

func (s *Store) ProposalExists(ctx context.Context, proposalID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM proposals WHERE id = ?)`,
		strings.TrimSpace(proposalID),
	).Scan(&exists)
	if err != nil {
		return false, s.logError("governance_sqlite_proposal_exists_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
		)
	}
	return exists == 1, nil
}

func (s *Store) GetVotes(ctx context.Context, proposalID string) ([]entities.Vote, error) {
	proposalID = strings.TrimSpace(proposalID)
	rows, err := s.db.QueryContext(ctx,
		`SELECT proposal_id, voter_id, choice, voter_class, created_at, updated_at
		 FROM votes WHERE proposal_id = ? ORDER BY created_at ASC, voter_id ASC`,
		proposalID,
	)
	if err != nil {
		return nil, s.logError("governance_sqlite_get_votes_failed", err, "proposal_id", proposalID)
	}
	defer rows.Close()

	items := make([]entities.Vote, 0)
	for rows.Next() {
		var (
			vote                 entities.Vote
			choice, class        string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&vote.ProposalID, &vote.VoterID, &choice, &class, &createdAt, &updatedAt); err != nil {
			return nil, s.logError("governance_sqlite_scan_vote_failed", err, "proposal_id", proposalID)
		}
		vote.Choice = entities.Choice(choice)
		vote.VoterClass = entities.VoterClass(class)
		vote.CreatedAt = parseTime(createdAt)
		vote.UpdatedAt = parseTime(updatedAt)
		items = append(items, vote)
	}
	if err := rows.Err(); err != nil {
		return nil, s.logError("governance_sqlite_get_votes_failed", err, "proposal_id", proposalID)
	}
	return items, nil
}

func (s *Store) UpsertVote(ctx context.Context, vote entities.Vote) error {
	key := vote.Key()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO votes (proposal_id, voter_id, choice, voter_class, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(proposal_id, voter_id) DO UPDATE SET
			choice = excluded.choice,
			voter_class = excluded.voter_class,
			updated_at = excluded.updated_at`,
		key.ProposalID, key.VoterID, string(vote.Choice), string(vote.VoterClass),
		formatTime(vote.CreatedAt), formatTime(vote.UpdatedAt),
	)
	if err != nil {
		return s.logError("governance_sqlite_upsert_vote_failed", err,
			"proposal_id", key.ProposalID,
			"voter_id", key.VoterID,
		)
	}
	return nil
}

func (s *Store) DeleteVote(ctx context.Context, proposalID string, voterID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM votes WHERE proposal_id = ? AND voter_id = ?`,
		strings.TrimSpace(proposalID), strings.TrimSpace(voterID),
	)
	if err != nil {
		return s.logError("governance_sqlite_delete_vote_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
			"voter_id", strings.TrimSpace(voterID),
		)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domainerrors.ErrVoteNotFound
	}
	return nil
}

func (s *Store) UpsertDecision(ctx context.Context, decision entities.Decision) error {
	proposalID := strings.TrimSpace(decision.ProposalID)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (proposal_id, status, level, threshold, up_weight, down_weight, total_weight, computed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(proposal_id) DO UPDATE SET
			status = excluded.status,
			level = excluded.level,
			threshold = excluded.threshold,
			up_weight = excluded.up_weight,
			down_weight = excluded.down_weight,
			total_weight = excluded.total_weight,
			computed_at = excluded.computed_at`,
		proposalID, string(decision.Status), string(decision.Level), decision.Threshold,
		decision.Up, decision.Down, decision.Total, formatTime(decision.ComputedAt),
	)
	if err != nil {
		return s.logError("governance_sqlite_upsert_decision_failed", err, "proposal_id", proposalID)
	}
	return nil
}

func (s *Store) GetDecision(ctx context.Context, proposalID string) (entities.Decision, error) {
	proposalID = strings.TrimSpace(proposalID)
	var (
		decision             entities.Decision
		status, level, stamp string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT proposal_id, status, level, threshold, up_weight, down_weight, total_weight, computed_at
		 FROM decisions WHERE proposal_id = ?`,
		proposalID,
	).Scan(
		&decision.ProposalID, &status, &level, &decision.Threshold,
		&decision.Up, &decision.Down, &decision.Total, &stamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Decision{}, domainerrors.ErrDecisionNotFound
	}
	if err != nil {
		return entities.Decision{}, s.logError("governance_sqlite_get_decision_failed", err, "proposal_id", proposalID)
	}
	decision.Status = entities.DecisionStatus(status)
	decision.Level = entities.DecisionLevel(level)
	decision.ComputedAt = parseTime(stamp)
	return decision, nil
}

func (s *Store) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	createdAt := envelope.OccurredAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO outbox (outbox_id, event_type, partition_key, payload, created_at)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT(outbox_id) DO NOTHING`,
		outboxID, strings.TrimSpace(envelope.EventType), strings.TrimSpace(envelope.PartitionKey),
		payload, formatTime(createdAt),
	)
	if err != nil {
		return s.logError("governance_sqlite_append_outbox_failed", err, "outbox_id", outboxID)
	}
	if affected, _ := result.RowsAffected(); affected > 0 {
		return nil
	}
	var existing []byte
	if err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM outbox WHERE outbox_id = ?`, outboxID,
	).Scan(&existing); err != nil {
		return s.logError("governance_sqlite_append_outbox_load_existing_failed", err, "outbox_id", outboxID)
	}
	if !bytes.Equal(existing, payload) {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (s *Store) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT outbox_id, event_type, partition_key, payload, created_at
		 FROM outbox WHERE published = 0 ORDER BY created_at ASC, outbox_id ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, s.logError("governance_sqlite_list_pending_outbox_failed", err, "limit", limit)
	}
	defer rows.Close()

	items := make([]ports.OutboxMessage, 0)
	for rows.Next() {
		var (
			message   ports.OutboxMessage
			createdAt string
		)
		if err := rows.Scan(&message.OutboxID, &message.EventType, &message.PartitionKey, &message.Payload, &createdAt); err != nil {
			return nil, err
		}
		message.CreatedAt = parseTime(createdAt)
		items = append(items, message)
	}
	return items, rows.Err()
}

func (s *Store) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET published = 1, published_at = ? WHERE outbox_id = ?`,
		formatTime(publishedAt), strings.TrimSpace(outboxID),
	)
	if err != nil {
		return s.logError("governance_sqlite_mark_outbox_published_failed", err,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (s *Store) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	eventID = strings.TrimSpace(eventID)
	payloadHash = strings.TrimSpace(payloadHash)
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM event_dedup WHERE event_id = ? AND expires_at < ?`,
		eventID, formatTime(time.Now()),
	); err != nil {
		return false, s.logError("governance_sqlite_release_expired_event_failed", err, "event_id", eventID)
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO event_dedup (event_id, payload_hash, expires_at)
		 VALUES (?, ?, ?) ON CONFLICT(event_id) DO NOTHING`,
		eventID, payloadHash, formatTime(expiresAt),
	)
	if err != nil {
		return false, s.logError("governance_sqlite_reserve_event_failed", err, "event_id", eventID)
	}
	if affected, _ := result.RowsAffected(); affected > 0 {
		return false, nil
	}
	var existing string
	if err := s.db.QueryRowContext(ctx,
		`SELECT payload_hash FROM event_dedup WHERE event_id = ?`, eventID,
	).Scan(&existing); err != nil {
		return false, s.logError("governance_sqlite_reserve_event_load_existing_failed", err, "event_id", eventID)
	}
	if existing != payloadHash {
		return false, domainerrors.ErrIdempotencyConflict
	}
	return true, nil
}

func (s *Store) ReleaseEvent(ctx context.Context, eventID string) error {
	eventID = strings.TrimSpace(eventID)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM event_dedup WHERE event_id = ?`, eventID); err != nil {
		return s.logError("governance_sqlite_release_event_failed", err, "event_id", eventID)
	}
	return nil
}

func (s *Store) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "governance/weighted-voting",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	s.logger.Error("governance sqlite operation failed", fields...)
	return err
}

// Timestamps are stored as fixed-width UTC text so lexical order matches
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	parsed, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

var _ ports.VoteStore = (*Store)(nil)
var _ ports.DecisionStore = (*Store)(nil)
var _ ports.ProposalDirectory = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.EventDedupStore = (*Store)(nil)
