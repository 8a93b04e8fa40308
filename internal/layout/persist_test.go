package layout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pitabwire/gridcore/internal/prefstore"
	"github.com/pitabwire/gridcore/model"
)

type failingStore struct {
	prefstore.MemoryStore
	saves int
}

func (f *failingStore) Load(context.Context, string) (model.PersistedState, bool, error) {
	return model.PersistedState{}, false, errors.New("storage unavailable")
}

func (f *failingStore) Save(context.Context, string, model.PersistedState) error {
	f.saves++
	return errors.New("quota exceeded")
}

func TestPersister_loadFailureIsWarningOnly(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p := NewPersister(&failingStore{}, "orders:u1", zap.New(core))

	_, ok := p.Load(context.Background())
	assert.False(t, ok)
	assert.Equal(t, 1, logs.FilterMessage("loading grid preferences failed").Len())
}

func TestPersister_saveFailureRetriedOnNextSave(t *testing.T) {
	store := &failingStore{}
	p := NewPersister(store, "k", nil)
	st := model.PersistedState{PageSize: 25, ColumnVisibility: map[string]bool{"a": true}}
	p.Save(context.Background(), st)
	p.Save(context.Background(), st)
	assert.Equal(t, 2, store.saves)
}

func TestPersister_roundTripAndSkipUnchanged(t *testing.T) {
	store := prefstore.NewMemoryStore()
	rec := &countingStore{Store: store}
	p := NewPersister(rec, "orders:u1", nil)

	_, ok := p.Load(context.Background())
	assert.False(t, ok)

	st := model.PersistedState{PageSize: 50, ColumnVisibility: map[string]bool{"a": true, "b": false}}
	p.Save(context.Background(), st)
	p.Save(context.Background(), st)
	assert.Equal(t, 1, rec.saves, "unchanged state should not be rewritten")

	st.ColumnVisibility["b"] = true
	p.Save(context.Background(), st)
	assert.Equal(t, 2, rec.saves)

	loaded, ok := NewPersister(store, "orders:u1", nil).Load(context.Background())
	assert.True(t, ok)
	assert.Equal(t, 50, loaded.PageSize)
	assert.True(t, loaded.ColumnVisibility["b"])
}

func TestPersister_nilStoreDisabled(t *testing.T) {
	p := NewPersister(nil, "k", nil)
	_, ok := p.Load(context.Background())
	assert.False(t, ok)
	p.Save(context.Background(), model.PersistedState{PageSize: 10})
}

type countingStore struct {
	prefstore.Store
	saves int
}

func (c *countingStore) Save(ctx context.Context, key string, st model.PersistedState) error {
	c.saves++
	return c.Store.Save(ctx, key, st)
}
