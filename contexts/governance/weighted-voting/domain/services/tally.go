package services

import "concord/contexts/governance/weighted-voting/domain/entities"

// Tally converts a proposal's vote set into signed weights.
//
// Each class present in votes receives its configured weight renormalized
// over the present classes only, so absent classes never dilute the others.
// That active share is split evenly among the class's voters, which means a
// class contributes its full share whether one or a hundred members voted.
func Tally(table entities.WeightTable, votes []entities.Vote) entities.Tally {
	result := entities.Tally{
		PerClassWeight: map[entities.VoterClass]float64{},
		ActiveShares:   map[entities.VoterClass]float64{},
		Counts:         map[entities.VoterClass]int{},
	}
	if len(votes) == 0 {
		return result
	}

	for _, vote := range votes {
		result.Counts[vote.VoterClass]++
	}
	result.Voters = len(votes)

	shares := ActiveShares(table, result.Counts)
	for class, count := range result.Counts {
		share := shares[class]
		result.ActiveShares[class] = share
		result.PerClassWeight[class] = share / float64(count)
	}

	for _, vote := range votes {
		weight := result.PerClassWeight[vote.VoterClass]
		switch vote.Choice {
		case entities.ChoiceUp:
			result.Up += weight
		case entities.ChoiceDown:
			result.Down += weight
		}
	}
	result.Total = result.Up + result.Down
	return result
}

// ActiveShares renormalizes the table over the classes present in counts.
// A non-positive weight sum yields a zero share for every present class.
func ActiveShares(table entities.WeightTable, counts map[entities.VoterClass]int) map[entities.VoterClass]float64 {
	shares := make(map[entities.VoterClass]float64, len(counts))
	sum := 0.0
	for class, count := range counts {
		if count <= 0 {
			continue
		}
		sum += table.WeightOf(class)
	}
	for class, count := range counts {
		if count <= 0 {
			continue
		}
		if sum <= 0 {
			shares[class] = 0
			continue
		}
		shares[class] = table.WeightOf(class) / sum
	}
	return shares
}
