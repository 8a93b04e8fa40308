package layout

import (
	"context"
	"maps"
	"sync"

	"go.uber.org/zap"

	"github.com/pitabwire/gridcore/internal/prefstore"
	"github.com/pitabwire/gridcore/model"
)

// Persister loads and saves a grid's PersistedState under one key.
// Storage failures are logged and never returned: a failed load is treated
// as no persisted state.
type Persister struct {
	store  prefstore.Store
	key    string
	logger *zap.Logger

	mu   sync.Mutex
	last *model.PersistedState
}

// NewPersister creates a Persister. A nil store disables persistence.
func NewPersister(store prefstore.Store, key string, logger *zap.Logger) *Persister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persister{store: store, key: key, logger: logger}
}

// Load reads the persisted state. ok is false when nothing usable is
// stored.
func (p *Persister) Load(ctx context.Context) (state model.PersistedState, ok bool) {
	if p.store == nil || p.key == "" {
		return model.PersistedState{}, false
	}
	st, found, err := p.store.Load(ctx, p.key)
	if err != nil {
		p.logger.Warn("loading grid preferences failed", zap.String("key", p.key), zap.Error(err))
		return model.PersistedState{}, false
	}
	if !found {
		return model.PersistedState{}, false
	}
	p.mu.Lock()
	p.last = &st
	p.mu.Unlock()
	return st, true
}

// Save writes state if it differs from the last loaded or saved value.
func (p *Persister) Save(ctx context.Context, state model.PersistedState) {
	if p.store == nil || p.key == "" {
		return
	}
	p.mu.Lock()
	if p.last != nil && p.last.PageSize == state.PageSize && maps.Equal(p.last.ColumnVisibility, state.ColumnVisibility) {
		p.mu.Unlock()
		return
	}
	st := model.PersistedState{PageSize: state.PageSize, ColumnVisibility: maps.Clone(state.ColumnVisibility)}
	p.last = &st
	p.mu.Unlock()

	if err := p.store.Save(ctx, p.key, st); err != nil {
		p.logger.Warn("saving grid preferences failed", zap.String("key", p.key), zap.Error(err))
		p.mu.Lock()
		p.last = nil
		p.mu.Unlock()
	}
}
