// Package indexer defines the adapter contract every release source
// implements. Protocol-specific adapters (torznab, newznab, streaming) live
// behind this interface; the acquisition core only sees the uniform search
// surface.
package indexer

import (
	"context"

	"github.com/fetcharr/fetcharr/internal/indexer/types"
)

// Indexer is the uniform adapter contract. Search must return an empty slice
// for "no results" and an error only for transport failures, so the
// orchestrator can classify them.
type Indexer interface {
	Definition() *types.IndexerDefinition
	Search(ctx context.Context, criteria types.SearchCriteria) ([]types.Release, error)
}

// Provider supplies the currently configured indexer adapters.
type Provider interface {
	Indexers(ctx context.Context) ([]Indexer, error)
}

// StaticProvider wraps a fixed adapter list. Used by tests and single-process
// setups where the adapter set is built at startup.
type StaticProvider []Indexer

func (p StaticProvider) Indexers(context.Context) ([]Indexer, error) {
	return p, nil
}

// Newznab category sets used when criteria carry no explicit categories.

// MovieCategories returns the standard movie category IDs.
func MovieCategories() []int {
	return []int{2000, 2010, 2020, 2030, 2040, 2045, 2050, 2060}
}

// TVCategories returns the standard TV category IDs.
func TVCategories() []int {
	return []int{5000, 5010, 5020, 5030, 5040, 5045, 5050}
}
