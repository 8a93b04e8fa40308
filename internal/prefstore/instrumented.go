package prefstore

import (
	"context"

	"github.com/pitabwire/gridcore/model"
)

// OpObserver records preference store operations.
type OpObserver interface {
	PreferenceOp(op, status string)
}

// Instrumented wraps a Store and reports each operation to an OpObserver.
type Instrumented struct {
	Store
	obs OpObserver
}

// NewInstrumented wraps s.
func NewInstrumented(s Store, obs OpObserver) *Instrumented {
	return &Instrumented{Store: s, obs: obs}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Load delegates to the wrapped store.
func (i *Instrumented) Load(ctx context.Context, key string) (model.PersistedState, bool, error) {
	st, found, err := i.Store.Load(ctx, key)
	s := status(err)
	if err == nil && !found {
		s = "miss"
	}
	i.obs.PreferenceOp("load", s)
	return st, found, err
}

// Save delegates to the wrapped store.
func (i *Instrumented) Save(ctx context.Context, key string, state model.PersistedState) error {
	err := i.Store.Save(ctx, key, state)
	i.obs.PreferenceOp("save", status(err))
	return err
}

// Delete delegates to the wrapped store.
func (i *Instrumented) Delete(ctx context.Context, key string) error {
	err := i.Store.Delete(ctx, key)
	i.obs.PreferenceOp("delete", status(err))
	return err
}
