// Package retry runs a unit of work with a bounded number of attempts and
// exponential backoff between them.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"
)

// ErrInvalidPolicy is returned when a Policy cannot be executed.
var ErrInvalidPolicy = errors.New("retry: max attempts must be at least 1")

type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Factor       float64
	Jitter       bool

	// OnRetry, when set, is called after each failed attempt that will be
	// retried, with the delay about to be waited.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Delay returns the base backoff after the given failed attempt (1-based):
// InitialDelay * Factor^(attempt-1).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := p.Factor
	if factor <= 0 {
		factor = 1
	}
	d := float64(p.InitialDelay) * math.Pow(factor, float64(attempt-1))
	// float64(math.MaxInt64) rounds up to 2^63.
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}

// maxJitterBase keeps delay+jitter below math.MaxInt64.
const maxJitterBase = time.Duration(math.MaxInt64 / 2)

// lockedRand is shared between an Executor and its copies.
type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (r *lockedRand) int63n(n int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Int63n(n)
}

// Executor carries the randomness and the wait primitive so tests can pin
// both. The zero value is not usable; use New or Default.
type Executor struct {
	rnd   *lockedRand
	sleep func(ctx context.Context, d time.Duration) error
}

func New(seed int64) *Executor {
	return &Executor{
		rnd:   &lockedRand{rnd: rand.New(rand.NewSource(seed))},
		sleep: sleepContext,
	}
}

var defaultExecutor = New(time.Now().UnixNano())

// Default returns the process-wide executor.
func Default() *Executor { return defaultExecutor }

// WithSleep returns a copy of e that waits using fn.
func (e *Executor) WithSleep(fn func(ctx context.Context, d time.Duration) error) *Executor {
	return &Executor{rnd: e.rnd, sleep: fn}
}

// Backoff returns the wait before the attempt following the given failed
// attempt. With jitter the value is uniform in [delay, 2*delay).
func (e *Executor) Backoff(p Policy, attempt int) time.Duration {
	d := p.Delay(attempt)
	if !p.Jitter || d <= 0 {
		return d
	}
	if d > maxJitterBase {
		d = maxJitterBase
	}
	return d + time.Duration(e.rnd.int63n(int64(d)))
}

// Do runs op through the default executor.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	return Run(ctx, defaultExecutor, p, op)
}

// Run invokes op up to p.MaxAttempts times. Every error is retried. When the
// final attempt fails its error is returned as-is. If ctx ends while waiting
// between attempts, ctx.Err() is returned.
func Run[T any](ctx context.Context, e *Executor, p Policy, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		return zero, ErrInvalidPolicy
	}
	if e == nil {
		e = defaultExecutor
	}
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		out, err := op(ctx, attempt)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if attempt == p.MaxAttempts {
			break
		}
		wait := e.Backoff(p, attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		if err := e.sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
