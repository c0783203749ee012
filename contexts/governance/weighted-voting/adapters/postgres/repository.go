package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"concord/contexts/governance/weighted-voting/domain/entities"
	domainerrors "concord/contexts/governance/weighted-voting/domain/errors"
	"concord/contexts/governance/weighted-voting/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates the tables this service owns. The proposals table belongs
// to the proposal CRUD service and is never created here.
func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(
		&voteModel{},
		&decisionModel{},
		&outboxModel{},
		&eventDedupModel{},
	); err != nil {
		return r.logError("governance_repo_migrate_failed", err)
	}
	return nil
}

func (r *Repository) ProposalExists(ctx context.Context, proposalID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&proposalModel{}).
		Where("id = ?", strings.TrimSpace(proposalID)).
		Count(&count).
		Error
	if err != nil {
		return false, r.logError("governance_repo_proposal_exists_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
		)
	}
	return count > 0, nil
}

func (r *Repository) GetVotes(ctx context.Context, proposalID string) ([]entities.Vote, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("proposal_id = ?", strings.TrimSpace(proposalID)).
		Order("created_at ASC").
		Order("voter_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("governance_repo_get_votes_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
		)
	}
	items := make([]entities.Vote, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// UpsertVote is a single INSERT ... ON CONFLICT statement, so two concurrent
// submissions from one voter can never leave two rows.
func (r *Repository) UpsertVote(ctx context.Context, vote entities.Vote) error {
	row := voteModelFromEntity(vote)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "proposal_id"}, {Name: "voter_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"choice":      row.Choice,
			"voter_class": row.VoterClass,
			"updated_at":  row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrConflict
		}
		return r.logError("governance_repo_upsert_vote_failed", create.Error,
			"proposal_id", row.ProposalID,
			"voter_id", row.VoterID,
		)
	}
	return nil
}

func (r *Repository) DeleteVote(ctx context.Context, proposalID string, voterID string) error {
	result := r.db.WithContext(ctx).
		Where("proposal_id = ?", strings.TrimSpace(proposalID)).
		Where("voter_id = ?", strings.TrimSpace(voterID)).
		Delete(&voteModel{})
	if result.Error != nil {
		return r.logError("governance_repo_delete_vote_failed", result.Error,
			"proposal_id", strings.TrimSpace(proposalID),
			"voter_id", strings.TrimSpace(voterID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrVoteNotFound
	}
	return nil
}

func (r *Repository) UpsertDecision(ctx context.Context, decision entities.Decision) error {
	row := decisionModelFromEntity(decision)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "proposal_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status",
			"level",
			"threshold",
			"up_weight",
			"down_weight",
			"total_weight",
			"computed_at",
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("governance_repo_upsert_decision_failed", create.Error,
			"proposal_id", row.ProposalID,
		)
	}
	return nil
}

func (r *Repository) GetDecision(ctx context.Context, proposalID string) (entities.Decision, error) {
	var row decisionModel
	err := r.db.WithContext(ctx).
		Where("proposal_id = ?", strings.TrimSpace(proposalID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Decision{}, domainerrors.ErrDecisionNotFound
		}
		return entities.Decision{}, r.logError("governance_repo_get_decision_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("governance_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("governance_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).Error; err != nil {
		return r.logError("governance_repo_append_outbox_load_existing_failed", err,
			"outbox_id", row.OutboxID,
		)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("governance_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("governance_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	row := eventDedupModel{
		EventID:     strings.TrimSpace(eventID),
		PayloadHash: strings.TrimSpace(payloadHash),
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: time.Now().UTC(),
	}
	// Expired reservations are released before claiming the id again.
	if err := r.db.WithContext(ctx).
		Where("event_id = ?", row.EventID).
		Where("expires_at < ?", row.ProcessedAt).
		Delete(&eventDedupModel{}).Error; err != nil {
		return false, r.logError("governance_repo_release_expired_event_failed", err,
			"event_id", row.EventID,
		)
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return false, r.logError("governance_repo_reserve_event_failed", create.Error,
			"event_id", row.EventID,
		)
	}
	if create.RowsAffected > 0 {
		return false, nil
	}

	var existing eventDedupModel
	if err := r.db.WithContext(ctx).
		Select("payload_hash").
		Where("event_id = ?", row.EventID).
		First(&existing).Error; err != nil {
		return false, r.logError("governance_repo_reserve_event_load_existing_failed", err,
			"event_id", row.EventID,
		)
	}
	if existing.PayloadHash != row.PayloadHash {
		return false, domainerrors.ErrIdempotencyConflict
	}
	return true, nil
}

func (r *Repository) ReleaseEvent(ctx context.Context, eventID string) error {
	if err := r.db.WithContext(ctx).
		Where("event_id = ?", strings.TrimSpace(eventID)).
		Delete(&eventDedupModel{}).Error; err != nil {
		return r.logError("governance_repo_release_event_failed", err,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "governance/weighted-voting",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("governance repository operation failed", fields...)
	return err
}

type voteModel struct {
	ProposalID string    `gorm:"column:proposal_id;primaryKey"`
	VoterID    string    `gorm:"column:voter_id;primaryKey"`
	Choice     string    `gorm:"column:choice;not null"`
	VoterClass string    `gorm:"column:voter_class;not null"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (voteModel) TableName() string {
	return "governance_votes"
}

func voteModelFromEntity(vote entities.Vote) voteModel {
	return voteModel{
		ProposalID: strings.TrimSpace(vote.ProposalID),
		VoterID:    strings.TrimSpace(vote.VoterID),
		Choice:     string(vote.Choice),
		VoterClass: string(vote.VoterClass),
		CreatedAt:  vote.CreatedAt.UTC(),
		UpdatedAt:  vote.UpdatedAt.UTC(),
	}
}

func (m voteModel) toEntity() entities.Vote {
	return entities.Vote{
		ProposalID: m.ProposalID,
		VoterID:    m.VoterID,
		Choice:     entities.Choice(m.Choice),
		VoterClass: entities.VoterClass(m.VoterClass),
		CreatedAt:  m.CreatedAt.UTC(),
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
}

type decisionModel struct {
	ProposalID  string    `gorm:"column:proposal_id;primaryKey"`
	Status      string    `gorm:"column:status"`
	Level       string    `gorm:"column:level"`
	Threshold   float64   `gorm:"column:threshold"`
	UpWeight    float64   `gorm:"column:up_weight"`
	DownWeight  float64   `gorm:"column:down_weight"`
	TotalWeight float64   `gorm:"column:total_weight"`
	ComputedAt  time.Time `gorm:"column:computed_at"`
}

func (decisionModel) TableName() string {
	return "governance_decisions"
}

func decisionModelFromEntity(decision entities.Decision) decisionModel {
	return decisionModel{
		ProposalID:  strings.TrimSpace(decision.ProposalID),
		Status:      string(decision.Status),
		Level:       string(decision.Level),
		Threshold:   decision.Threshold,
		UpWeight:    decision.Up,
		DownWeight:  decision.Down,
		TotalWeight: decision.Total,
		ComputedAt:  decision.ComputedAt.UTC(),
	}
}

func (m decisionModel) toEntity() entities.Decision {
	return entities.Decision{
		ProposalID: m.ProposalID,
		Status:     entities.DecisionStatus(m.Status),
		Level:      entities.DecisionLevel(m.Level),
		Threshold:  m.Threshold,
		Up:         m.UpWeight,
		Down:       m.DownWeight,
		Total:      m.TotalWeight,
		ComputedAt: m.ComputedAt.UTC(),
	}
}

type proposalModel struct {
	ID string `gorm:"column:id;primaryKey"`
}

func (proposalModel) TableName() string {
	return "proposals"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "governance_outbox"
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "governance_event_dedup"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.VoteStore = (*Repository)(nil)
var _ ports.DecisionStore = (*Repository)(nil)
var _ ports.ProposalDirectory = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.EventDedupStore = (*Repository)(nil)
