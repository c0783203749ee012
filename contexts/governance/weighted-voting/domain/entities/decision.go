package entities

import (
	"strings"
	"time"

	domainerrors "concord/contexts/governance/weighted-voting/domain/errors"
)

// Tally is derived from the current vote set on every request and never
// stored.
type Tally struct {
	Up    float64
	Down  float64
	Total float64
	// PerClassWeight is the weight a single voter of each class contributes.
	PerClassWeight map[VoterClass]float64
	ActiveShares   map[VoterClass]float64
	Counts         map[VoterClass]int
	Voters         int
}

// YesFraction is Up/Total, or 0 when nobody carrying weight voted.
func (t Tally) YesFraction() float64 {
	if t.Total <= 0 {
		return 0
	}
	return t.Up / t.Total
}

type DecisionLevel string

const (
	DecisionLevelStandard  DecisionLevel = "standard"
	DecisionLevelImportant DecisionLevel = "important"
)

func ParseDecisionLevel(raw string) (DecisionLevel, error) {
	switch DecisionLevel(strings.ToLower(strings.TrimSpace(raw))) {
	case DecisionLevelStandard:
		return DecisionLevelStandard, nil
	case DecisionLevelImportant:
		return DecisionLevelImportant, nil
	default:
		return "", domainerrors.ErrInvalidLevel
	}
}

type DecisionStatus string

const (
	DecisionStatusAccepted  DecisionStatus = "accepted"
	DecisionStatusRejected  DecisionStatus = "rejected"
	DecisionStatusUndecided DecisionStatus = "undecided"
)

// Decision is the single current outcome for a proposal. Re-deciding
// overwrites it.
type Decision struct {
	ProposalID string
	Status     DecisionStatus
	Level      DecisionLevel
	Threshold  float64
	Up         float64
	Down       float64
	Total      float64
	ComputedAt time.Time
}
