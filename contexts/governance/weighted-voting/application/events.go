package application

import (
	"concord/contexts/governance/weighted-voting/domain/entities"
	"concord/contexts/governance/weighted-voting/ports"
)

const (
	TopicVoteCast         = "vote.cast"
	TopicVoteRetracted    = "vote.retracted"
	TopicDecisionRecorded = "decision.recorded"

	SourceService    = "weighted-voting"
	PartitionKeyPath = "proposal_id"
)

// CurrentWeights snapshots the active weight table, falling back to equal
// thirds when no source is wired.
func CurrentWeights(source ports.WeightSource) entities.WeightTable {
	if source == nil {
		return entities.DefaultWeightTable()
	}
	table := source.Current()
	if table.IsZero() {
		return entities.DefaultWeightTable()
	}
	return table
}
