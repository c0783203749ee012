package workers

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "concord/contexts/governance/weighted-voting/application"
	"concord/contexts/governance/weighted-voting/application/commands"
	"concord/contexts/governance/weighted-voting/domain/entities"
	domainerrors "concord/contexts/governance/weighted-voting/domain/errors"
	"concord/contexts/governance/weighted-voting/ports"
)

const defaultRefreshCG = "weighted-voting-decision-refresh-cg"

// Decider is the slice of DecideUseCase the refresh consumer needs.
type Decider interface {
	Decide(ctx context.Context, cmd commands.DecideCommand) (entities.Decision, error)
}

// DecisionRefreshConsumer re-decides proposals that already carry a decision
// whenever their vote set changes, keeping the stored outcome in step with
// late votes and retractions. Proposals never decided are left alone.
type DecisionRefreshConsumer struct {
	Subscriber    ports.EventSubscriber
	Dedup         ports.EventDedupStore
	Decisions     ports.DecisionStore
	Decider       Decider
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Logger        *slog.Logger
}

func (c DecisionRefreshConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultRefreshCG
	}
	for _, topic := range []string{application.TopicVoteCast, application.TopicVoteRetracted} {
		if err := c.Subscriber.Subscribe(ctx, topic, group, c.Handle); err != nil {
			logger.Error("decision refresh subscribe failed",
				"event", "governance_decision_refresh_subscribe_failed",
				"module", application.Module,
				"layer", "worker",
				"topic", topic,
				"consumer_group", group,
				"error", err.Error(),
			)
			return err
		}
	}
	logger.Info("decision refresh subscriptions active",
		"event", "governance_decision_refresh_started",
		"module", application.Module,
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

// Handle processes one vote.cast or vote.retracted delivery.
func (c DecisionRefreshConsumer) Handle(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	if alreadyProcessed, err := c.reserveEvent(ctx, event); err != nil {
		return err
	} else if alreadyProcessed {
		logger.Debug("vote event replay skipped",
			"event", "governance_decision_refresh_replayed",
			"module", application.Module,
			"layer", "worker",
			"event_id", event.EventID,
		)
		return nil
	}

	if err := c.refresh(ctx, event, logger); err != nil {
		c.releaseEvent(ctx, event, logger)
		return err
	}
	return nil
}

func (c DecisionRefreshConsumer) refresh(ctx context.Context, event ports.EventEnvelope, logger *slog.Logger) error {
	proposalID, err := proposalIDFromVoteEvent(event)
	if err != nil {
		logger.Error("vote event payload decode failed",
			"event", "governance_decision_refresh_decode_failed",
			"module", application.Module,
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}

	current, err := c.Decisions.GetDecision(ctx, proposalID)
	if errors.Is(err, domainerrors.ErrDecisionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	refreshed, err := c.Decider.Decide(ctx, commands.DecideCommand{
		ProposalID: proposalID,
		Level:      current.Level,
	})
	if err != nil {
		logger.Error("decision refresh failed",
			"event", "governance_decision_refresh_failed",
			"module", application.Module,
			"layer", "worker",
			"event_id", event.EventID,
			"proposal_id", proposalID,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("decision refreshed",
		"event", "governance_decision_refreshed",
		"module", application.Module,
		"layer", "worker",
		"event_id", event.EventID,
		"proposal_id", proposalID,
		"previous_status", string(current.Status),
		"status", string(refreshed.Status),
	)
	return nil
}

// releaseEvent drops the reservation of a delivery that failed so the
// broker's redelivery is processed instead of skipped as a replay.
func (c DecisionRefreshConsumer) releaseEvent(ctx context.Context, event ports.EventEnvelope, logger *slog.Logger) {
	if c.Dedup == nil {
		return
	}
	if err := c.Dedup.ReleaseEvent(ctx, strings.TrimSpace(event.EventID)); err != nil {
		logger.Error("vote event reservation release failed",
			"event", "governance_decision_refresh_release_failed",
			"module", application.Module,
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
	}
}

func (c DecisionRefreshConsumer) reserveEvent(ctx context.Context, event ports.EventEnvelope) (bool, error) {
	if c.Dedup == nil {
		return false, nil
	}
	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}
	ttl := c.DedupTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return c.Dedup.ReserveEvent(ctx, strings.TrimSpace(event.EventID), hashPayload(event.Data), now.Add(ttl))
}
