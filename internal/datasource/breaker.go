package datasource

import (
	"errors"
	"sync"
	"time"
)

// BreakerState is the state of a Breaker.
type BreakerState int

const (
	// BreakerClosed lets fetches through and counts failures.
	BreakerClosed BreakerState = iota
	// BreakerOpen fails fetches immediately.
	BreakerOpen
	// BreakerHalfOpen lets trial fetches through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned by Allow while the breaker is open.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// minRateSamples is the number of calls a window needs before its error
// rate can trip the breaker.
const minRateSamples = 10

// BreakerConfig holds breaker thresholds. Zero values take defaults.
type BreakerConfig struct {
	// FailureThreshold consecutive failures open the breaker. Default 5.
	FailureThreshold int
	// SuccessThreshold consecutive half-open successes close it. Default 2.
	SuccessThreshold int
	// Cooldown is how long the breaker stays open. Default 30s.
	Cooldown time.Duration
	// ErrorRate in (0,1] opens the breaker when reached within RateWindow.
	// Zero disables rate tripping.
	ErrorRate  float64
	RateWindow time.Duration
}

// Breaker fails fetches fast while a backend is known to be down. It opens
// on consecutive failures or on the error rate of a tumbling window, and
// tries again after a cooldown. Safe for concurrent use.
type Breaker struct {
	cfg      BreakerConfig
	now      func() time.Time
	onChange func(BreakerState)

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time

	windowStart    time.Time
	windowTotal    int
	windowFailures int
}

// NewBreaker creates a closed Breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold < 1 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	b := &Breaker{cfg: cfg, now: time.Now, state: BreakerClosed}
	b.windowStart = b.now()
	return b
}

// OnStateChange registers fn to be called, outside the lock, after every
// state transition.
func (b *Breaker) OnStateChange(fn func(BreakerState)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Allow returns ErrBreakerOpen while the breaker is open.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	changed := b.cooldownLocked()
	state := b.state
	fn := b.onChange
	b.mu.Unlock()
	b.notify(fn, changed, state)

	if state == BreakerOpen {
		return ErrBreakerOpen
	}
	return nil
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	changed := false
	switch b.state {
	case BreakerClosed:
		b.failures = 0
		b.countLocked(false)
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.setLocked(BreakerClosed)
			changed = true
		}
	}
	state, fn := b.state, b.onChange
	b.mu.Unlock()
	b.notify(fn, changed, state)
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.mu.Lock()
	changed := false
	switch b.state {
	case BreakerClosed:
		b.failures++
		b.countLocked(true)
		if b.failures >= b.cfg.FailureThreshold || b.rateExceededLocked() {
			b.setLocked(BreakerOpen)
			changed = true
		}
	case BreakerHalfOpen:
		b.setLocked(BreakerOpen)
		changed = true
	}
	state, fn := b.state, b.onChange
	b.mu.Unlock()
	b.notify(fn, changed, state)
}

// State returns the current state, moving an expired open breaker to
// half-open.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	changed := b.cooldownLocked()
	state, fn := b.state, b.onChange
	b.mu.Unlock()
	b.notify(fn, changed, state)
	return state
}

func (b *Breaker) notify(fn func(BreakerState), changed bool, state BreakerState) {
	if changed && fn != nil {
		fn(state)
	}
}

func (b *Breaker) cooldownLocked() bool {
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) > b.cfg.Cooldown {
		b.setLocked(BreakerHalfOpen)
		return true
	}
	return false
}

func (b *Breaker) setLocked(s BreakerState) {
	b.state = s
	b.failures = 0
	b.successes = 0
	if s == BreakerOpen {
		b.openedAt = b.now()
	}
	b.windowStart = b.now()
	b.windowTotal = 0
	b.windowFailures = 0
}

func (b *Breaker) countLocked(failed bool) {
	if b.cfg.RateWindow <= 0 {
		return
	}
	if b.now().Sub(b.windowStart) > b.cfg.RateWindow {
		b.windowStart = b.now()
		b.windowTotal = 0
		b.windowFailures = 0
	}
	b.windowTotal++
	if failed {
		b.windowFailures++
	}
}

func (b *Breaker) rateExceededLocked() bool {
	if b.cfg.ErrorRate <= 0 || b.cfg.RateWindow <= 0 || b.windowTotal < minRateSamples {
		return false
	}
	return float64(b.windowFailures)/float64(b.windowTotal) >= b.cfg.ErrorRate
}
