package workers

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"concord/contexts/governance/weighted-voting/ports"
)

var errMissingProposalID = errors.New("vote event carries no proposal id")

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// proposalIDFromVoteEvent reads the proposal a vote.cast or vote.retracted
// event belongs to, falling back to the partition key.
func proposalIDFromVoteEvent(event ports.EventEnvelope) (string, error) {
	var payload struct {
		ProposalID string `json:"proposal_id"`
	}
	if err := event.DecodeData(&payload); err != nil {
		return "", err
	}
	if proposalID := strings.TrimSpace(payload.ProposalID); proposalID != "" {
		return proposalID, nil
	}
	if proposalID := strings.TrimSpace(event.PartitionKey); proposalID != "" {
		return proposalID, nil
	}
	return "", errMissingProposalID
}
