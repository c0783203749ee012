package entities

import (
	"strings"
	"time"

	domainerrors "concord/contexts/governance/weighted-voting/domain/errors"
)

type Choice string

const (
	ChoiceUp   Choice = "up"
	ChoiceDown Choice = "down"
)

// ParseChoice accepts up/down plus the approve/reject spellings older clients
// still send.
func ParseChoice(raw string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "up", "yes", "y", "approve":
		return ChoiceUp, nil
	case "down", "no", "n", "reject":
		return ChoiceDown, nil
	default:
		return "", domainerrors.ErrInvalidChoice
	}
}

// Vote is one voter's current standing choice on one proposal. There is at
// most one Vote per (ProposalID, VoterID).
type Vote struct {
	ProposalID string
	VoterID    string
	Choice     Choice
	VoterClass VoterClass
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Key identifies the vote slot a voter occupies on a proposal.
type VoteKey struct {
	ProposalID string
	VoterID    string
}

func (v Vote) Key() VoteKey {
	return VoteKey{
		ProposalID: strings.TrimSpace(v.ProposalID),
		VoterID:    strings.TrimSpace(v.VoterID),
	}
}
