package datasource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg BreakerConfig) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	b := NewBreaker(cfg)
	b.now = clock.now
	b.windowStart = clock.now()
	return b, clock
}

func TestBreaker_startsClosed(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{FailureThreshold: 3})

	assert.Equal(t, BreakerClosed, b.State())
	assert.NoError(t, b.Allow())
}

func TestBreaker_opensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{FailureThreshold: 3})

	b.Failure()
	b.Failure()
	assert.Equal(t, BreakerClosed, b.State(), "after 2 failures")
	b.Failure()
	assert.Equal(t, BreakerOpen, b.State(), "after 3 failures")
	assert.ErrorIs(t, b.Allow(), ErrBreakerOpen)
}

func TestBreaker_successResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{FailureThreshold: 3})

	b.Failure()
	b.Failure()
	b.Success()
	b.Failure()
	b.Failure()
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_halfOpenAfterCooldown(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{FailureThreshold: 1, Cooldown: time.Second})

	b.Failure()
	clock.advance(500 * time.Millisecond)
	require.Equal(t, BreakerOpen, b.State(), "during cooldown")
	clock.advance(time.Second)
	assert.Equal(t, BreakerHalfOpen, b.State(), "after cooldown")
	assert.NoError(t, b.Allow())
}

func TestBreaker_halfOpenClosesAfterSuccesses(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, Cooldown: time.Second})

	b.Failure()
	clock.advance(2 * time.Second)
	_ = b.Allow()

	b.Success()
	assert.Equal(t, BreakerHalfOpen, b.State(), "after 1 success")
	b.Success()
	assert.Equal(t, BreakerClosed, b.State(), "after 2 successes")
}

func TestBreaker_halfOpenReopensOnFailure(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{FailureThreshold: 1, Cooldown: time.Second})

	b.Failure()
	clock.advance(2 * time.Second)
	_ = b.Allow()
	b.Failure()
	assert.Equal(t, BreakerOpen, b.State())
}

func TestBreaker_errorRate(t *testing.T) {
	tests := []struct {
		name string
		run  func(b *Breaker, clock *fakeClock)
		want BreakerState
	}{
		{
			name: "trips at threshold",
			run: func(b *Breaker, _ *fakeClock) {
				for range 5 {
					b.Success()
					b.Failure()
				}
			},
			want: BreakerOpen,
		},
		{
			name: "needs enough samples",
			run: func(b *Breaker, _ *fakeClock) {
				for range minRateSamples - 1 {
					b.Failure()
				}
			},
			want: BreakerClosed,
		},
		{
			name: "window expires",
			run: func(b *Breaker, clock *fakeClock) {
				for range 4 {
					b.Failure()
					b.Success()
				}
				clock.advance(2 * time.Minute)
				b.Failure()
				b.Success()
			},
			want: BreakerClosed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, clock := newTestBreaker(BreakerConfig{
				FailureThreshold: 100,
				ErrorRate:        0.5,
				RateWindow:       time.Minute,
			})
			tt.run(b, clock)
			assert.Equal(t, tt.want, b.State())
		})
	}
}

func TestBreaker_onStateChange(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Cooldown: time.Second})

	var got []BreakerState
	b.OnStateChange(func(s BreakerState) { got = append(got, s) })

	b.Failure()
	clock.advance(2 * time.Second)
	_ = b.Allow()
	b.Success()

	assert.Equal(t, []BreakerState{BreakerOpen, BreakerHalfOpen, BreakerClosed}, got)
}

func TestBreakerState_String(t *testing.T) {
	for s, want := range map[BreakerState]string{
		BreakerClosed:    "closed",
		BreakerOpen:      "open",
		BreakerHalfOpen:  "half-open",
		BreakerState(42): "unknown",
	} {
		assert.Equal(t, want, s.String())
	}
}

func TestBreaker_defaults(t *testing.T) {
	b := NewBreaker(BreakerConfig{})

	assert.Equal(t, 5, b.cfg.FailureThreshold)
	assert.Equal(t, 2, b.cfg.SuccessThreshold)
	assert.Equal(t, 30*time.Second, b.cfg.Cooldown)
}
