// Package resilience provides reliability patterns for external service calls.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the externally visible circuit state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Settings configures a Breaker.
type Settings struct {
	// Window is the rolling interval over which call outcomes are counted.
	Window time.Duration
	// MinVolume is the number of calls in the window required before the
	// error-rate threshold can trip the circuit.
	MinVolume int
	// ErrorThresholdPercent opens the circuit when the windowed error rate
	// meets or exceeds it (given MinVolume calls).
	ErrorThresholdPercent float64
	// ResetTimeout is how long the circuit stays open before admitting a
	// single half-open probe.
	ResetTimeout time.Duration
	// CallTimeout bounds each wrapped call. A timeout counts as a failure.
	CallTimeout time.Duration
	// Now is injectable for tests. Defaults to time.Now.
	Now func() time.Time
}

type outcome struct {
	at      time.Time
	failure bool
}

// Breaker implements a circuit breaker with a rolling error-rate window.
// All calls pass through while closed; once the windowed error percentage
// exceeds the threshold after a minimum call volume, the circuit opens and
// calls fail fast. After the reset timeout a single probe is admitted;
// its outcome decides between closing and re-opening.
type Breaker struct {
	mu       sync.Mutex
	state    State
	window   []outcome
	openedAt time.Time
	probing  bool
	cfg      Settings
}

// NewBreaker creates a circuit breaker from the given settings.
func NewBreaker(cfg Settings) *Breaker {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{
		state: StateClosed,
		cfg:   cfg,
	}
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// CallTimeout exposes the configured per-call timeout.
func (b *Breaker) CallTimeout() time.Duration {
	return b.cfg.CallTimeout
}

// Allow reports whether a call may proceed. On true the caller must invoke
// Record with the call's outcome exactly once.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.cfg.Now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
			b.state = StateHalfOpen
			b.probing = true
			return true
		}
		return false
	case StateHalfOpen:
		// One probe at a time.
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return false
}

// Record registers the outcome of a call previously admitted by Allow.
func (b *Breaker) Record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.cfg.Now()

	if b.state == StateHalfOpen {
		b.probing = false
		if failed {
			b.state = StateOpen
			b.openedAt = now
			return
		}
		b.state = StateClosed
		b.window = nil
		return
	}

	b.window = append(b.window, outcome{at: now, failure: failed})
	b.prune(now)

	total := len(b.window)
	if total < b.cfg.MinVolume {
		return
	}
	failures := 0
	for _, o := range b.window {
		if o.failure {
			failures++
		}
	}
	rate := float64(failures) / float64(total) * 100
	if rate >= b.cfg.ErrorThresholdPercent {
		b.state = StateOpen
		b.openedAt = now
		b.window = nil
	}
}

// prune drops outcomes that fell out of the rolling window.
// Must be called with b.mu held.
func (b *Breaker) prune(now time.Time) {
	cutoff := now.Add(-b.cfg.Window)
	i := 0
	for ; i < len(b.window); i++ {
		if b.window[i].at.After(cutoff) {
			break
		}
	}
	if i > 0 {
		b.window = b.window[i:]
	}
}

// Execute runs op through the breaker with the configured per-call timeout.
// While the circuit is open it fails fast with ErrCircuitOpen without
// invoking op. A timed-out call counts as a failure; a caller that walks
// away mid-call does not, the abandoned call leaves the window untouched.
func Execute[T any](ctx context.Context, b *Breaker, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if !b.Allow() {
		return zero, ErrCircuitOpen
	}

	callCtx := ctx
	if b.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, b.cfg.CallTimeout)
		defer cancel()
	}

	result, err := op(callCtx)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() == context.Canceled {
			return zero, err
		}
		b.Record(true)
		return zero, err
	}
	b.Record(false)
	return result, nil
}

// ExecuteWithFallback is Execute with a degraded-mode fallback: on any
// failure the fallback value is returned and the event is logged.
func ExecuteWithFallback[T any](ctx context.Context, b *Breaker, log *slog.Logger, name string, op func(ctx context.Context) (T, error), fallback T) T {
	result, err := Execute(ctx, b, op)
	if err != nil {
		log.Warn("degraded mode: returning fallback",
			"operation", name,
			"state", string(b.State()),
			"error", err,
		)
		return fallback
	}
	return result
}
