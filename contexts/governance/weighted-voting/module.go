package weightedvoting

import (
	"log/slog"

	httpadapter "concord/contexts/governance/weighted-voting/adapters/http"
	"concord/contexts/governance/weighted-voting/adapters/memory"
	"concord/contexts/governance/weighted-voting/adapters/weightfile"
	"concord/contexts/governance/weighted-voting/application/commands"
	"concord/contexts/governance/weighted-voting/application/queries"
	"concord/contexts/governance/weighted-voting/application/workers"
	"concord/contexts/governance/weighted-voting/domain/entities"
	"concord/contexts/governance/weighted-voting/ports"
)

type Module struct {
	Handler   httpadapter.Handler
	Votes     commands.VoteUseCase
	Decisions commands.DecideUseCase
	Queries   queries.TallyUseCase
	Store     *memory.Store
}

// Dependencies selects the collaborators at construction time. Votes,
// Decisions and Proposals are required; everything else is optional.
type Dependencies struct {
	Votes     ports.VoteStore
	Decisions ports.DecisionStore
	Proposals ports.ProposalDirectory
	Weights   ports.WeightSource
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func NewModule(deps Dependencies) Module {
	voteUseCase := commands.VoteUseCase{
		Votes:     deps.Votes,
		Proposals: deps.Proposals,
		Weights:   deps.Weights,
		Outbox:    deps.Outbox,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Logger:    deps.Logger,
	}
	decideUseCase := commands.DecideUseCase{
		Votes:     deps.Votes,
		Decisions: deps.Decisions,
		Proposals: deps.Proposals,
		Weights:   deps.Weights,
		Outbox:    deps.Outbox,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Logger:    deps.Logger,
	}
	tallyUseCase := queries.TallyUseCase{
		Votes:     deps.Votes,
		Decisions: deps.Decisions,
		Proposals: deps.Proposals,
		Weights:   deps.Weights,
	}
	return Module{
		Handler: httpadapter.Handler{
			Votes:     voteUseCase,
			Decisions: decideUseCase,
			Queries:   tallyUseCase,
			Logger:    deps.Logger,
		},
		Votes:     voteUseCase,
		Decisions: decideUseCase,
		Queries:   tallyUseCase,
	}
}

// NewInMemoryModule wires every port to one memory store. Proposals must be
// registered through Store.SetProposal before votes are accepted.
func NewInMemoryModule(seed []entities.Vote, table entities.WeightTable, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Votes:     store,
		Decisions: store,
		Proposals: store,
		Weights:   weightfile.Static(table),
		Outbox:    store,
		Clock:     store,
		IDGen:     store,
		Logger:    logger,
	})
	module.Store = store
	return module
}

// NewDecisionRefreshConsumer builds the worker that keeps stored decisions in
// step with the vote set.
func NewDecisionRefreshConsumer(
	module Module,
	subscriber ports.EventSubscriber,
	dedup ports.EventDedupStore,
	logger *slog.Logger,
) workers.DecisionRefreshConsumer {
	return workers.DecisionRefreshConsumer{
		Subscriber: subscriber,
		Dedup:      dedup,
		Decisions:  module.Decisions.Decisions,
		Decider:    module.Decisions,
		Clock:      module.Decisions.Clock,
		Logger:     logger,
	}
}
