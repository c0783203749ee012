package v1

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Envelope is the versioned event envelope shared by the API and worker
// processes. Governance events are partitioned by proposal.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

var errMissingEventIdentity = errors.New("event envelope requires event_id and event_type")

// NewEnvelope marshals data and stamps the envelope metadata.
func NewEnvelope(
	eventID string,
	eventType string,
	sourceService string,
	partitionKeyPath string,
	partitionKey string,
	occurredAt time.Time,
	data any,
) (Envelope, error) {
	if strings.TrimSpace(eventID) == "" || strings.TrimSpace(eventType) == "" {
		return Envelope{}, errMissingEventIdentity
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    sourceService,
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: partitionKeyPath,
		PartitionKey:     partitionKey,
		Data:             payload,
	}, nil
}

// DecodeData unmarshals the envelope payload into target.
func (e Envelope) DecodeData(target any) error {
	return json.Unmarshal(e.Data, target)
}
