package services

import (
	"concord/contexts/governance/weighted-voting/domain/entities"
	domainerrors "concord/contexts/governance/weighted-voting/domain/errors"
)

// thresholdTolerance absorbs float summation drift so that a yes-fraction
// that is 0.60 on paper is not rejected as 0.5999999999999999.
const thresholdTolerance = 1e-9

var thresholds = map[entities.DecisionLevel]float64{
	entities.DecisionLevelStandard:  0.60,
	entities.DecisionLevelImportant: 0.90,
}

func Threshold(level entities.DecisionLevel) (float64, error) {
	threshold, ok := thresholds[level]
	if !ok {
		return 0, domainerrors.ErrInvalidLevel
	}
	return threshold, nil
}

// Thresholds returns a copy of the policy table.
func Thresholds() map[entities.DecisionLevel]float64 {
	copied := make(map[entities.DecisionLevel]float64, len(thresholds))
	for level, threshold := range thresholds {
		copied[level] = threshold
	}
	return copied
}

// Evaluate applies the level's threshold to a tally. A tally with no weight
// at all is undecided: absence of votes is not a negative result.
func Evaluate(tally entities.Tally, level entities.DecisionLevel) (entities.DecisionStatus, float64, error) {
	threshold, err := Threshold(level)
	if err != nil {
		return "", 0, err
	}
	if tally.Total <= 0 {
		return entities.DecisionStatusUndecided, threshold, nil
	}
	if tally.Up/tally.Total >= threshold-thresholdTolerance {
		return entities.DecisionStatusAccepted, threshold, nil
	}
	return entities.DecisionStatusRejected, threshold, nil
}
