package decisioning

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/indexer/types"
)

// Specification is one acceptance rule. Implementations must be pure with
// respect to their inputs and report rejection through the decision, not
// through errors or panics.
type Specification interface {
	Name() string
	IsSatisfied(ctx context.Context, target *Target, candidate *types.Release) Decision
}

// Chain evaluates specifications in order and short-circuits on the first
// rejection.
type Chain struct {
	specs  []Specification
	logger zerolog.Logger
}

// NewChain creates a decision chain from the given specifications.
func NewChain(logger zerolog.Logger, specs ...Specification) *Chain {
	return &Chain{
		specs:  specs,
		logger: logger.With().Str("component", "decisioning").Logger(),
	}
}

// Evaluate runs the chain against one candidate. The first rejecting
// specification determines the decision.
func (c *Chain) Evaluate(ctx context.Context, target *Target, candidate *types.Release) Decision {
	for _, spec := range c.specs {
		decision := spec.IsSatisfied(ctx, target, candidate)
		if !decision.Accepted {
			c.logger.Debug().
				Str("spec", spec.Name()).
				Str("title", candidate.Title).
				Str("reason", string(decision.Reason)).
				Str("detail", decision.Detail).
				Msg("Candidate rejected")
			return decision
		}
	}
	return Accept()
}

// DefaultChain assembles the standard acceptance rules in evaluation order:
// cheap lookups first, upgrade comparison last.
func DefaultChain(blocklist BlocklistChecker, logger zerolog.Logger) *Chain {
	return NewChain(logger,
		&BlocklistedSpec{Blocklist: blocklist},
		&NotBannedSpec{},
		&SizeAcceptableSpec{},
		&MinScoreSpec{},
		&UpgradeableSpec{},
	)
}
