package selection

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/pitabwire/gridcore/model"
)

// Target is the grid the bulk runner acts on.
type Target[T any] interface {
	SelectedRows() []T
	ClearSelection()
}

// Observer is notified when a bulk action finishes.
type Observer interface {
	BulkActionFinished(actionID, status string)
}

// BulkAction is an operation applied to all selected rows.
type BulkAction[T any] struct {
	ID    string
	Label string
	// Confirm returns the confirmation prompt for count rows. Nil runs the
	// action without a confirm step.
	Confirm func(count int) string
	// MinRows and MaxRows bound the selection size; zero means unbounded.
	MinRows int
	MaxRows int
	// Disabled reports whether the action is unavailable for rows.
	Disabled func(rows []T) bool
	Run      func(ctx context.Context, rows []T) error
}

// ConfirmText returns a Confirm func with a fixed prompt.
func ConfirmText(text string) func(int) string {
	return func(int) string { return text }
}

// DisabledWhen returns a Disabled func with a fixed answer.
func DisabledWhen[T any](disabled bool) func([]T) bool {
	return func([]T) bool { return disabled }
}

// Applicable reports whether the action can run on rows.
func (a BulkAction[T]) Applicable(rows []T) bool {
	n := len(rows)
	if n == 0 {
		return false
	}
	if a.MinRows > 0 && n < a.MinRows {
		return false
	}
	if a.MaxRows > 0 && n > a.MaxRows {
		return false
	}
	if a.Disabled != nil && a.Disabled(rows) {
		return false
	}
	return true
}

// ActionState is a bulk action as offered for the current selection.
type ActionState struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
}

// Step is the position of the runner's confirm flow.
type Step string

// Runner steps.
const (
	StepActions Step = "actions"
	StepConfirm Step = "confirm"
)

// RunnerOptions configures a BulkRunner.
type RunnerOptions struct {
	Logger   *zap.Logger
	Notifier model.Notifier
	Observer Observer
}

// BulkRunner runs bulk actions against a Target. A successful action clears
// the selection; a failed one leaves it intact so the action can be retried.
type BulkRunner[T any] struct {
	target   Target[T]
	actions  []BulkAction[T]
	logger   *zap.Logger
	notifier model.Notifier
	observer Observer

	mu      sync.Mutex
	step    Step
	pending *BulkAction[T]
}

// NewBulkRunner creates a runner over target.
func NewBulkRunner[T any](target Target[T], actions []BulkAction[T], opts RunnerOptions) *BulkRunner[T] {
	r := &BulkRunner[T]{
		target:   target,
		actions:  actions,
		logger:   opts.Logger,
		notifier: opts.Notifier,
		observer: opts.Observer,
		step:     StepActions,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.notifier == nil {
		r.notifier = model.NopNotifier{}
	}
	return r
}

// Actions lists the actions with their availability for the current
// selection.
func (r *BulkRunner[T]) Actions() []ActionState {
	rows := r.target.SelectedRows()
	out := make([]ActionState, len(r.actions))
	for i, a := range r.actions {
		out[i] = ActionState{ID: a.ID, Label: a.Label, Enabled: a.Applicable(rows)}
	}
	return out
}

// Step returns the current step.
func (r *BulkRunner[T]) Step() Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.step
}

// ConfirmMessage returns the prompt of the action awaiting confirmation.
func (r *BulkRunner[T]) ConfirmMessage() string {
	r.mu.Lock()
	pending := r.pending
	r.mu.Unlock()
	if pending == nil || pending.Confirm == nil {
		return ""
	}
	return pending.Confirm(len(r.target.SelectedRows()))
}

// Select starts the action with the given id. Actions with a confirmation
// move to the confirm step and return; others run immediately.
func (r *BulkRunner[T]) Select(ctx context.Context, actionID string) error {
	action, ok := r.find(actionID)
	if !ok {
		return model.NewNotFoundError(fmt.Sprintf("bulk action %q not found", actionID))
	}
	if action.Confirm != nil {
		r.mu.Lock()
		r.step = StepConfirm
		r.pending = &action
		r.mu.Unlock()
		return nil
	}
	return r.execute(ctx, action)
}

// Confirm runs the action awaiting confirmation.
func (r *BulkRunner[T]) Confirm(ctx context.Context) error {
	r.mu.Lock()
	pending := r.pending
	r.mu.Unlock()
	if pending == nil {
		return model.NewBadRequestError("no bulk action awaiting confirmation")
	}
	return r.execute(ctx, *pending)
}

// Cancel abandons the confirm step.
func (r *BulkRunner[T]) Cancel() {
	r.reset()
}

func (r *BulkRunner[T]) reset() {
	r.mu.Lock()
	r.step = StepActions
	r.pending = nil
	r.mu.Unlock()
}

func (r *BulkRunner[T]) find(id string) (BulkAction[T], bool) {
	for _, a := range r.actions {
		if a.ID == id {
			return a, true
		}
	}
	return BulkAction[T]{}, false
}

func (r *BulkRunner[T]) execute(ctx context.Context, action BulkAction[T]) error {
	defer r.reset()

	rows := r.target.SelectedRows()
	if !action.Applicable(rows) {
		r.record(action.ID, "rejected")
		return model.NewBadRequestError(fmt.Sprintf("bulk action %q is not available for %d rows", action.ID, len(rows)))
	}
	if action.Run == nil {
		r.record(action.ID, "rejected")
		return model.NewMisconfiguredError(fmt.Sprintf("bulk action %q has no handler", action.ID))
	}

	if err := action.Run(ctx, rows); err != nil {
		r.logger.Error("bulk action failed",
			zap.String("action", action.ID),
			zap.Int("rows", len(rows)),
			zap.Error(err),
		)
		r.notifier.Error(fmt.Sprintf("%s failed", labelOf(action)), err)
		r.record(action.ID, "error")
		return fmt.Errorf("bulk action %s: %w", action.ID, err)
	}

	r.target.ClearSelection()
	r.logger.Info("bulk action completed", zap.String("action", action.ID), zap.Int("rows", len(rows)))
	r.notifier.Success(fmt.Sprintf("%s completed for %d rows", labelOf(action), len(rows)))
	r.record(action.ID, "success")
	return nil
}

func (r *BulkRunner[T]) record(actionID, status string) {
	if r.observer != nil {
		r.observer.BulkActionFinished(actionID, status)
	}
}

func labelOf[T any](a BulkAction[T]) string {
	if a.Label != "" {
		return a.Label
	}
	return a.ID
}
