package entities

import (
	"math"
	"sort"
	"strings"

	domainerrors "concord/contexts/governance/weighted-voting/domain/errors"
)

// VoterClass tags a vote with the power bucket it draws from.
type VoterClass string

const (
	VoterClassHuman   VoterClass = "human"
	VoterClassCompany VoterClass = "company"
	VoterClassAI      VoterClass = "ai"
)

// BaseVoterClass supplies the weight for classes missing from a table.
const BaseVoterClass = VoterClassHuman

// NormalizeVoterClass lowercases and trims a raw class label.
func NormalizeVoterClass(raw string) VoterClass {
	return VoterClass(strings.ToLower(strings.TrimSpace(raw)))
}

// WeightTable maps voter classes to nominal shares of total power. Weights
// need not sum to 1; tallies renormalize over the classes present.
type WeightTable struct {
	weights map[VoterClass]float64
}

func NewWeightTable(weights map[VoterClass]float64) (WeightTable, error) {
	if len(weights) == 0 {
		return WeightTable{}, domainerrors.ErrInvalidWeight
	}
	copied := make(map[VoterClass]float64, len(weights))
	for class, weight := range weights {
		class = NormalizeVoterClass(string(class))
		if class == "" || math.IsNaN(weight) || math.IsInf(weight, 0) || weight < 0 {
			return WeightTable{}, domainerrors.ErrInvalidWeight
		}
		// "Human" and "human" would otherwise collapse with a map-order winner.
		if _, dup := copied[class]; dup {
			return WeightTable{}, domainerrors.ErrInvalidWeight
		}
		copied[class] = weight
	}
	return WeightTable{weights: copied}, nil
}

// DefaultWeightTable gives each built-in class an equal third.
func DefaultWeightTable() WeightTable {
	return WeightTable{weights: map[VoterClass]float64{
		VoterClassHuman:   1.0 / 3.0,
		VoterClassCompany: 1.0 / 3.0,
		VoterClassAI:      1.0 / 3.0,
	}}
}

// WeightOf returns the configured weight of class. Unknown classes get the
// base (human) weight; submission validates labels before they get here.
func (t WeightTable) WeightOf(class VoterClass) float64 {
	if weight, ok := t.weights[class]; ok {
		return weight
	}
	return t.weights[BaseVoterClass]
}

func (t WeightTable) Has(class VoterClass) bool {
	_, ok := t.weights[class]
	return ok
}

func (t WeightTable) Classes() []VoterClass {
	classes := make([]VoterClass, 0, len(t.weights))
	for class := range t.weights {
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	return classes
}

// Weights returns a copy of the configured weights.
func (t WeightTable) Weights() map[VoterClass]float64 {
	copied := make(map[VoterClass]float64, len(t.weights))
	for class, weight := range t.weights {
		copied[class] = weight
	}
	return copied
}

func (t WeightTable) IsZero() bool {
	return len(t.weights) == 0
}
