package commands

import (
	"context"
	"time"

	contractsv1 "concord/contracts/gen/events/v1"
	application "concord/contexts/governance/weighted-voting/application"
	"concord/contexts/governance/weighted-voting/ports"
)

// appendEvent writes a proposal-partitioned event to the outbox. Outbox is
// optional for pure library wiring, so nil is a no-op.
func appendEvent(
	ctx context.Context,
	outbox ports.OutboxWriter,
	idGen ports.IDGenerator,
	eventType string,
	proposalID string,
	occurredAt time.Time,
	data map[string]any,
) error {
	if outbox == nil || idGen == nil {
		return nil
	}
	eventID, err := idGen.NewID(ctx)
	if err != nil {
		return err
	}
	data["occurred_at"] = occurredAt.UTC().Format(time.RFC3339Nano)
	envelope, err := contractsv1.NewEnvelope(
		eventID,
		eventType,
		application.SourceService,
		application.PartitionKeyPath,
		proposalID,
		occurredAt,
		data,
	)
	if err != nil {
		return err
	}
	return outbox.AppendOutbox(ctx, envelope)
}

func resolveNow(clock ports.Clock) time.Time {
	if clock != nil {
		return clock.Now().UTC()
	}
	return time.Now().UTC()
}
