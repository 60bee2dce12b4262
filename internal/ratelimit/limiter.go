// Package ratelimit throttles conversions with a sliding window computed from
// a persisted list of past timestamps.
//
// Every call reads the whole history, drops entries that left the window and
// decides from what remains. There is no counter to reset, so clock jumps
// only ever affect which timestamps are considered recent.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultWindow = time.Hour
	DefaultMax    = 20
	DefaultKey    = "image_converter_conversions"
)

// Store persists the timestamp history (unix milliseconds) as a whole.
type Store interface {
	Read(ctx context.Context) ([]int64, error)
	Write(ctx context.Context, history []int64) error
}

// Decision is the outcome of TryConsume. A denial is not an error.
type Decision struct {
	Granted           bool
	RetryAfterMinutes int // set when denied, at least 1
	Remaining         int // slots left after this call
}

// Config holds the window parameters.
type Config struct {
	Window time.Duration
	Max    int
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLogger sets the logger used for decisions.
func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Limiter) { l.log = log }
}

// Limiter decides whether a new conversion may proceed.
type Limiter struct {
	store  Store
	window time.Duration
	max    int
	now    func() time.Time
	log    logrus.FieldLogger

	mu sync.Mutex // serializes read-modify-write on the store
}

// New creates a limiter. Zero config values fall back to the defaults.
func New(store Store, cfg Config, opts ...Option) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Max <= 0 {
		cfg.Max = DefaultMax
	}
	l := &Limiter{
		store:  store,
		window: cfg.Window,
		max:    cfg.Max,
		now:    time.Now,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Window returns the window duration.
func (l *Limiter) Window() time.Duration { return l.window }

// Max returns the number of conversions allowed per window.
func (l *Limiter) Max() int { return l.max }

// Prune returns the entries of history with now - ts < window, in order.
func Prune(history []int64, now int64, window time.Duration) []int64 {
	w := window.Milliseconds()
	out := make([]int64, 0, len(history))
	for _, ts := range history {
		if now-ts < w {
			out = append(out, ts)
		}
	}
	return out
}

// TryConsume records a conversion at the current time if capacity allows.
func (l *Limiter) TryConsume(ctx context.Context) (Decision, error) {
	return l.TryConsumeAt(ctx, l.now())
}

// TryConsumeAt is TryConsume at an explicit instant.
func (l *Limiter) TryConsumeAt(ctx context.Context, at time.Time) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := at.UnixMilli()
	recent, err := l.read(ctx, now)
	if err != nil {
		return Decision{}, err
	}

	if len(recent) >= l.max {
		d := Decision{RetryAfterMinutes: l.retryAfter(recent, now)}
		l.log.WithFields(logrus.Fields{
			"used":        len(recent),
			"max":         l.max,
			"retry_after": d.RetryAfterMinutes,
		}).Debug("conversion denied by rate limit")
		return d, nil
	}

	next := append(recent, now)
	if err := l.store.Write(ctx, next); err != nil {
		return Decision{}, fmt.Errorf("write rate history: %w", err)
	}
	return Decision{Granted: true, Remaining: l.max - len(next)}, nil
}

// Remaining returns how many conversions are left in the current window.
func (l *Limiter) Remaining(ctx context.Context) (int, error) {
	return l.RemainingAt(ctx, l.now())
}

// RemainingAt is Remaining at an explicit instant.
func (l *Limiter) RemainingAt(ctx context.Context, at time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent, err := l.read(ctx, at.UnixMilli())
	if err != nil {
		return 0, err
	}
	return max(l.max-len(recent), 0), nil
}

// ResetAt returns when the oldest retained entry leaves the window, or the
// zero time when the history is empty.
func (l *Limiter) ResetAt(ctx context.Context) (time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UnixMilli()
	recent, err := l.read(ctx, now)
	if err != nil {
		return time.Time{}, err
	}
	if len(recent) == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(oldest(recent)).Add(l.window), nil
}

// Reset clears the stored history.
func (l *Limiter) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Write(ctx, []int64{}); err != nil {
		return fmt.Errorf("reset rate history: %w", err)
	}
	return nil
}

func (l *Limiter) read(ctx context.Context, now int64) ([]int64, error) {
	history, err := l.store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read rate history: %w", err)
	}
	return Prune(history, now, l.window), nil
}

// retryAfter returns whole minutes until the oldest entry expires, min 1.
func (l *Limiter) retryAfter(recent []int64, now int64) int {
	remainingMs := max(l.window.Milliseconds()-(now-oldest(recent)), 0)
	minutes := int((remainingMs + 59999) / 60000)
	return max(minutes, 1)
}

func oldest(history []int64) int64 {
	m := history[0]
	for _, ts := range history[1:] {
		if ts < m {
			m = ts
		}
	}
	return m
}
