// Package fetch drives paginated server fetches for a grid: it builds
// request snapshots, executes them with cancellation and staleness guards,
// and tracks the loading state.
package fetch

import (
	"context"
	"time"

	"github.com/pitabwire/gridcore/model"
)

// Fetcher loads one page of rows for a request.
type Fetcher[T any] interface {
	Fetch(ctx context.Context, req model.SearchRequest) (model.PagedResult[T], error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc[T any] func(ctx context.Context, req model.SearchRequest) (model.PagedResult[T], error)

// Fetch calls f(ctx, req).
func (f FetcherFunc[T]) Fetch(ctx context.Context, req model.SearchRequest) (model.PagedResult[T], error) {
	return f(ctx, req)
}

// Outcome classifies how a fetch ended.
type Outcome string

// Fetch outcomes.
const (
	OutcomeSuccess   Outcome = "success"
	OutcomeError     Outcome = "error"
	OutcomeStale     Outcome = "stale"
	OutcomeCancelled Outcome = "cancelled"
)

// Observer is notified of fetch lifecycle events.
type Observer interface {
	FetchStarted(grid string)
	FetchFinished(grid string, outcome Outcome, duration time.Duration)
}

type nopObserver struct{}

func (nopObserver) FetchStarted(string)                          {}
func (nopObserver) FetchFinished(string, Outcome, time.Duration) {}
