package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pitabwire/gridcore/internal/config"
	"github.com/pitabwire/gridcore/internal/datasource"
	"github.com/pitabwire/gridcore/internal/definition"
	"github.com/pitabwire/gridcore/internal/fetch"
	"github.com/pitabwire/gridcore/internal/observability"
	"github.com/pitabwire/gridcore/internal/prefstore"
	"github.com/pitabwire/gridcore/model"
)

func TestBreakerConfig(t *testing.T) {
	got := breakerConfig(config.CircuitBreakerConfig{
		FailureThreshold:   3,
		SuccessThreshold:   1,
		Timeout:            10 * time.Second,
		ErrorRateThreshold: 0.5,
		ErrorRateWindow:    time.Minute,
	})
	assert.Equal(t, datasource.BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Cooldown:         10 * time.Second,
		ErrorRate:        0.5,
		RateWindow:       time.Minute,
	}, got)
}

func TestWithQueryTimeout(t *testing.T) {
	slow := fetch.FetcherFunc[datasource.Row](func(ctx context.Context, _ model.SearchRequest) (model.PagedResult[datasource.Row], error) {
		<-ctx.Done()
		return model.PagedResult[datasource.Row]{}, ctx.Err()
	})

	_, err := withQueryTimeout(slow, 10*time.Millisecond).Fetch(context.Background(), model.SearchRequest{})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	unbounded := withQueryTimeout(slow, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = unbounded.Fetch(ctx, model.SearchRequest{})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBuildSources(t *testing.T) {
	registry := definition.NewRegistry([]model.DefinitionFile{{
		Domain: "orders",
		Grids: []model.GridDefinition{
			{ID: "orders.list", Table: "orders", KeyColumn: "id", Columns: []model.ColumnDef{{ID: "reference"}}},
			{ID: "orders.returns", Table: "returns", KeyColumn: "id", Columns: []model.ColumnDef{{ID: "reason"}}},
		},
	}})
	metrics := observability.InitMetrics(prometheus.NewRegistry())

	sources, breakers := buildSources(registry, nil, config.Defaults().Database, metrics)

	for _, id := range []string{"orders.list", "orders.returns"} {
		src, ok := sources(id)
		assert.True(t, ok, id)
		assert.NotNil(t, src, id)
		require.Contains(t, breakers, id)
		assert.Equal(t, datasource.BreakerClosed, breakers[id].State())
	}
	_, ok := sources("unknown")
	assert.False(t, ok)
}

func TestBuildPreferenceStore_Memory(t *testing.T) {
	store, check, closer, err := buildPreferenceStore(context.Background(), config.PreferencesConfig{Driver: config.DriverMemory}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &prefstore.MemoryStore{}, store)
	assert.Nil(t, check)
	assert.Nil(t, closer)
}

func TestBuildPreferenceStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("TEST_GRIDD_REDIS_ADDR", mr.Addr())

	cfg := config.PreferencesConfig{
		Driver: config.DriverRedis,
		TTL:    time.Hour,
		Redis:  config.RedisConfig{AddrEnv: "TEST_GRIDD_REDIS_ADDR"},
	}
	store, check, closer, err := buildPreferenceStore(context.Background(), cfg, nil, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, closer)
	defer closer()

	assert.IsType(t, &prefstore.RedisStore{}, store)
	require.NotNil(t, check)
	assert.NoError(t, check.HealthCheck(context.Background()))

	key := prefstore.FormatKey("orders.list", "alice")
	require.NoError(t, store.Save(context.Background(), key, model.PersistedState{PageSize: 25}))
	got, ok, err := store.Load(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 25, got.PageSize)
}

func TestBuildPreferenceStore_Errors(t *testing.T) {
	t.Setenv("TEST_GRIDD_REDIS_UNSET", "")

	_, _, _, err := buildPreferenceStore(context.Background(), config.PreferencesConfig{
		Driver: config.DriverRedis,
		Redis:  config.RedisConfig{AddrEnv: "TEST_GRIDD_REDIS_UNSET"},
	}, nil, zap.NewNop())
	assert.ErrorContains(t, err, "TEST_GRIDD_REDIS_UNSET")

	_, _, _, err = buildPreferenceStore(context.Background(), config.PreferencesConfig{Driver: "etcd"}, nil, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported preference store driver")
}

func TestOpenPool_MissingDSN(t *testing.T) {
	t.Setenv("TEST_GRIDD_DSN", "")
	_, err := openPool(context.Background(), config.DatabaseConfig{DSNEnv: "TEST_GRIDD_DSN"})
	assert.ErrorContains(t, err, "TEST_GRIDD_DSN")
}
