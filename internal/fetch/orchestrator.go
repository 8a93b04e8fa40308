package fetch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pitabwire/gridcore/model"
)

const tracerName = "github.com/pitabwire/gridcore/internal/fetch"

// State is the result side of the orchestrator. Rows is shared between
// snapshots and must not be modified.
type State[T any] struct {
	Loading      model.LoadingState
	Rows         []T
	Page         int
	PageSize     int
	Total        int
	TotalPages   int
	HasNext      bool
	HasPrevious  bool
	Facets       map[string]model.Facet
	Aggregations map[string]any
	// Request is the request whose result is currently applied.
	Request model.SearchRequest
	// Err is the error of the most recent applied fetch, nil on success.
	Err       error
	UpdatedAt time.Time
}

// Options configures an Orchestrator.
type Options[T any] struct {
	// Name identifies the grid in logs, spans and metrics.
	Name     string
	Fetcher  Fetcher[T]
	Logger   *zap.Logger
	Observer Observer
	// OnSettled is called outside the orchestrator lock each time a result
	// or error is applied. Discarded fetches do not call it.
	OnSettled func(State[T])
}

// Orchestrator executes fetches so that only the most recently started one
// is ever applied. Starting a fetch cancels the one in flight; a result is
// applied only if its sequence number is still current on completion.
type Orchestrator[T any] struct {
	name      string
	logger    *zap.Logger
	observer  Observer
	tracer    trace.Tracer
	onSettled func(State[T])

	mu      sync.Mutex
	fetcher Fetcher[T]
	seq     uint64
	cancel  context.CancelFunc
	state   State[T]
	// settledLoading is the loading state before the busy state was
	// entered; a cancelled current fetch returns to it.
	settledLoading model.LoadingState
	hasData        bool
	lastReq *model.SearchRequest
	closed  bool

	wg sync.WaitGroup
}

// New creates an Orchestrator. It fails when no fetcher is supplied.
func New[T any](opts Options[T]) (*Orchestrator[T], error) {
	if opts.Fetcher == nil {
		return nil, model.NewMisconfiguredError("grid " + opts.Name + ": a fetcher is required")
	}
	o := &Orchestrator[T]{
		name:      opts.Name,
		logger:    opts.Logger,
		observer:  opts.Observer,
		tracer:    otel.Tracer(tracerName),
		onSettled: opts.OnSettled,
		fetcher:   opts.Fetcher,
		state:     State[T]{Loading: model.StateIdle},

		settledLoading: model.StateIdle,
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	return o, nil
}

// SetFetcher replaces the fetcher used by subsequent fetches. It does not
// start a fetch. A nil fetcher is ignored.
func (o *Orchestrator[T]) SetFetcher(f Fetcher[T]) {
	if f == nil {
		return
	}
	o.mu.Lock()
	o.fetcher = f
	o.mu.Unlock()
}

// Fetcher returns the current fetcher.
func (o *Orchestrator[T]) Fetcher() Fetcher[T] {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fetcher
}

// Fetch starts a fetch for req, cancelling and invalidating any fetch in
// flight, and returns its sequence number. It does not block.
func (o *Orchestrator[T]) Fetch(ctx context.Context, req model.SearchRequest) uint64 {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return 0
	}
	if o.cancel != nil {
		o.cancel()
	}
	o.seq++
	seq := o.seq
	fctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	if !o.state.Loading.Busy() {
		o.settledLoading = o.state.Loading
	}
	if o.hasData {
		o.state.Loading = model.StateRefreshing
	} else {
		o.state.Loading = model.StateLoading
	}
	r := req
	o.lastReq = &r
	fetcher := o.fetcher
	o.wg.Add(1)
	o.mu.Unlock()

	go o.run(fctx, cancel, seq, fetcher, req)
	return seq
}

// Retry re-issues the most recently started request. It returns 0 when no
// request was ever started.
func (o *Orchestrator[T]) Retry(ctx context.Context) uint64 {
	o.mu.Lock()
	last := o.lastReq
	o.mu.Unlock()
	if last == nil {
		return 0
	}
	return o.Fetch(ctx, *last)
}

func (o *Orchestrator[T]) run(ctx context.Context, cancel context.CancelFunc, seq uint64, fetcher Fetcher[T], req model.SearchRequest) {
	defer o.wg.Done()
	defer cancel()

	log := o.logger.With(
		zap.String("grid", o.name),
		zap.String("fetch_id", uuid.NewString()),
		zap.Uint64("seq", seq),
	)
	ctx, span := o.tracer.Start(ctx, "grid.fetch", trace.WithAttributes(
		attribute.String("grid.name", o.name),
		attribute.Int("grid.page", req.Page),
		attribute.Int("grid.page_size", req.PageSize),
		attribute.Int64("grid.fetch_seq", int64(seq)),
	))
	defer span.End()

	o.observer.FetchStarted(o.name)
	log.Debug("fetch started", zap.Int("page", req.Page), zap.Int("page_size", req.PageSize))
	start := time.Now()

	res, err := fetcher.Fetch(ctx, req)
	elapsed := time.Since(start)

	o.mu.Lock()
	outcome := o.settleLocked(ctx, seq, req, res, err)
	snap := o.state
	o.mu.Unlock()

	o.observer.FetchFinished(o.name, outcome, elapsed)
	span.SetAttributes(attribute.String("grid.fetch_outcome", string(outcome)))

	switch outcome {
	case OutcomeSuccess:
		log.Debug("fetch applied", zap.Int("rows", len(res.Data)), zap.Int("total", res.Total), zap.Duration("duration", elapsed))
	case OutcomeError:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("fetch failed", zap.Error(err), zap.Duration("duration", elapsed))
	default:
		log.Debug("fetch discarded", zap.String("outcome", string(outcome)))
		return
	}

	if o.onSettled != nil {
		o.onSettled(snap)
	}
}

func (o *Orchestrator[T]) settleLocked(ctx context.Context, seq uint64, req model.SearchRequest, res model.PagedResult[T], err error) Outcome {
	if seq != o.seq {
		return OutcomeStale
	}
	o.cancel = nil
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		// Current fetch cancelled from outside: data, error and loading
		// state stay as they were before it started.
		o.state.Loading = o.settledLoading
		return OutcomeCancelled
	}
	if err != nil {
		o.state.Loading = model.StateError
		o.state.Err = err
		o.state.UpdatedAt = time.Now()
		return OutcomeError
	}

	rows := res.Data
	if rows == nil {
		rows = []T{}
	}
	o.state = State[T]{
		Loading:      model.StateSuccess,
		Rows:         rows,
		Page:         res.Page,
		PageSize:     res.PageSize,
		Total:        res.Total,
		TotalPages:   res.TotalPages,
		HasNext:      res.HasNext,
		HasPrevious:  res.HasPrevious,
		Facets:       res.Facets,
		Aggregations: res.Aggregations,
		Request:      req,
		UpdatedAt:    time.Now(),
	}
	o.hasData = true
	return OutcomeSuccess
}

// State returns the current result state.
func (o *Orchestrator[T]) State() State[T] {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Seq returns the sequence number of the most recently started fetch.
func (o *Orchestrator[T]) Seq() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.seq
}

// Wait blocks until every started fetch has returned.
func (o *Orchestrator[T]) Wait() {
	o.wg.Wait()
}

// Close cancels the fetch in flight, invalidates it, and waits for all
// fetch goroutines to return. Fetch is a no-op after Close.
func (o *Orchestrator[T]) Close() {
	o.mu.Lock()
	o.closed = true
	o.seq++
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.mu.Unlock()
	o.wg.Wait()
}
