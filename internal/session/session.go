// Package session owns the collection of items being converted and drives
// their state transitions: probing, converting (gated by the rate limiter),
// editing and removal.
//
// Items are mutated only through Session methods, keyed by item id. Every
// mutation bumps the collection version so renderers can tell when a
// snapshot is stale. Conversions of different items never share state; a
// second conversion of the same item while one is in flight is rejected.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/AnyUserName/pixconv/internal/encoder"
	"github.com/AnyUserName/pixconv/internal/pipeline"
	"github.com/AnyUserName/pixconv/internal/preset"
	"github.com/AnyUserName/pixconv/internal/ratelimit"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Converter probes and converts image bytes.
type Converter interface {
	Probe(ctx context.Context, src []byte, declaredMime string) (pipeline.Meta, error)
	Convert(ctx context.Context, src []byte, s pipeline.Settings) (*pipeline.Result, error)
	// Available reports whether f can be encoded at all. Checked before a
	// slot is consumed.
	Available(f encoder.Format) bool
}

// Limiter gates conversions.
type Limiter interface {
	TryConsume(ctx context.Context) (ratelimit.Decision, error)
	Remaining(ctx context.Context) (int, error)
}

// DefaultProbeWorkers bounds concurrent probes when Options leaves it unset.
// Eager probes hold a full bitmap each, so this stays small and does not
// follow the core count.
const DefaultProbeWorkers = 2

// Options configures a Session.
type Options struct {
	ProbeWorkers int                                  // 0 = DefaultProbeWorkers
	Defaults     func(mime string) pipeline.Settings // nil = preset.Defaults
	Logger       logrus.FieldLogger
}

// Session is an owned, versioned collection of items.
type Session struct {
	conv     Converter
	limiter  Limiter
	log      logrus.FieldLogger
	workers  int
	defaults func(string) pipeline.Settings

	mu      sync.Mutex
	items   map[string]*Item
	order   []string
	version uint64
	closed  bool
}

// New creates an empty session.
func New(conv Converter, limiter Limiter, opts Options) *Session {
	if opts.ProbeWorkers <= 0 {
		opts.ProbeWorkers = DefaultProbeWorkers
	}
	if opts.Defaults == nil {
		opts.Defaults = preset.Defaults
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Session{
		conv:     conv,
		limiter:  limiter,
		log:      opts.Logger,
		workers:  opts.ProbeWorkers,
		defaults: opts.Defaults,
		items:    make(map[string]*Item),
	}
}

// Snapshot is a point-in-time copy of the collection.
type Snapshot struct {
	Version uint64
	Items   []Item
}

// Add registers a new item in the Idle state. Call Probe to read its
// metadata.
func (s *Session) Add(name string, data []byte, declaredMime string) (Item, error) {
	if !IsAccepted(declaredMime) {
		return Item{}, fmt.Errorf("%s (%s): %w", name, declaredMime, ErrUnsupportedInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Item{}, ErrClosed
	}

	it := &Item{
		ID:           uuid.NewString(),
		Name:         name,
		Source:       data,
		DeclaredMime: declaredMime,
		Settings:     s.defaults(declaredMime),
		State:        StateIdle,
	}
	s.items[it.ID] = it
	s.order = append(s.order, it.ID)
	s.version++

	s.log.WithFields(logrus.Fields{"item": it.ID, "name": name, "mime": declaredMime}).Debug("item added")
	return it.clone(), nil
}

// Probe reads metadata for the given items (all Idle or ProbeFailed items
// when ids is empty). Probes run concurrently, bounded by ProbeWorkers.
// Per-item failures are recorded on the item, not returned.
func (s *Session) Probe(ctx context.Context, ids ...string) error {
	type job struct {
		id   string
		src  []byte
		mime string
	}

	s.mu.Lock()
	if len(ids) == 0 {
		ids = append([]string(nil), s.order...)
	}
	var jobs []job
	for _, id := range ids {
		it, ok := s.items[id]
		if !ok || (it.State != StateIdle && it.State != StateProbeFailed) {
			continue
		}
		it.State = StateProbing
		it.LastError = ""
		jobs = append(jobs, job{id: id, src: it.Source, mime: it.DeclaredMime})
	}
	if len(jobs) > 0 {
		s.version++
	}
	s.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			meta, err := s.conv.Probe(ctx, j.src, j.mime)
			s.finishProbe(j.id, meta, err)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

func (s *Session) finishProbe(id string, meta pipeline.Meta, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		s.log.WithField("item", id).Debug("probe finished for removed item, discarding")
		return
	}
	if err != nil {
		it.State = StateProbeFailed
		it.LastError = fmt.Sprintf("failed to read image: %v", err)
		s.log.WithField("item", id).WithError(err).Warn("probe failed")
	} else {
		it.Meta = &meta
		it.State = StateReady
		it.LastError = ""
	}
	s.version++
}

// UpdateSettings replaces an item's settings. Not allowed while converting.
func (s *Session) UpdateSettings(id string, settings pipeline.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	if it.InProgress {
		return ErrInProgress
	}
	it.Settings = settings.Clone()
	s.version++
	return nil
}

// Convert converts one item if the limiter grants a slot. A denial is
// reported through the returned Decision with a nil error. A conversion
// failure is recorded on the item and also returned. An item whose output
// encoder is unavailable is rejected with ErrEncoderUnavailable before the
// limiter is asked. ErrNotFound with a granted Decision means the item was
// removed while converting: the slot is spent and the result dropped.
func (s *Session) Convert(ctx context.Context, id string) (ratelimit.Decision, error) {
	prev, err := s.reserve(id)
	if err != nil {
		return ratelimit.Decision{}, err
	}

	d, err := s.limiter.TryConsume(ctx)
	if err != nil {
		s.rollback(id, prev)
		return ratelimit.Decision{}, err
	}
	if !d.Granted {
		s.rollback(id, prev)
		s.log.WithFields(logrus.Fields{"item": id, "retry_after_min": d.RetryAfterMinutes}).Info("rate limit reached")
		return d, nil
	}

	return d, s.run(ctx, id)
}

// reservation is the item state to restore when a reserved conversion does
// not start.
type reservation struct {
	state     State
	lastError string
}

// reserve checks the preconditions and marks the item in progress.
func (s *Session) reserve(id string) (reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return reservation{}, ErrNotFound
	}
	if it.InProgress {
		return reservation{}, ErrInProgress
	}
	if it.Meta == nil || !it.State.Convertible() {
		return reservation{}, ErrNotReady
	}
	if f := it.Settings.Format; !s.conv.Available(f) {
		it.LastError = fmt.Sprintf("%s %v", f, ErrEncoderUnavailable)
		s.version++
		return reservation{}, fmt.Errorf("%s: %w", f, ErrEncoderUnavailable)
	}

	prev := reservation{state: it.State, lastError: it.LastError}
	it.InProgress = true
	it.State = StateConverting
	it.LastError = ""
	s.version++
	return prev, nil
}

func (s *Session) rollback(id string, prev reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return
	}
	it.InProgress = false
	it.State = prev.state
	it.LastError = prev.lastError
	s.version++
}

// run performs a reserved conversion and applies its outcome.
func (s *Session) run(ctx context.Context, id string) error {
	s.mu.Lock()
	it, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	src := it.Source
	settings := it.Settings.Clone()
	s.mu.Unlock()

	res, err := s.conv.Convert(ctx, src, settings)

	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok = s.items[id]
	if !ok {
		// Removed while converting: the output belongs to nobody.
		s.log.WithField("item", id).WithError(err).Debug("conversion finished for removed item, discarding")
		return ErrNotFound
	}

	it.InProgress = false
	if err != nil {
		it.State = StateConvertFailed
		it.LastError = err.Error()
		s.log.WithField("item", id).WithError(err).Warn("conversion failed")
	} else {
		it.Result = res
		it.State = StateConverted
		it.LastError = ""
	}
	s.version++
	return err
}

// Remove deletes an item and releases its buffers. An in-flight conversion
// of the item completes and its result is discarded.
func (s *Session) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	it.release()
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.version++
	return nil
}

// Get returns a copy of one item.
func (s *Session) Get(id string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return Item{}, false
	}
	return it.clone(), true
}

// Snapshot returns copies of all items in insertion order.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Version: s.version, Items: make([]Item, 0, len(s.order))}
	for _, id := range s.order {
		snap.Items = append(snap.Items, s.items[id].clone())
	}
	return snap
}

// Version returns the current collection version.
func (s *Session) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Close releases every item. In-flight conversions finish and are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range s.items {
		it.release()
	}
	s.items = make(map[string]*Item)
	s.order = nil
	s.closed = true
	s.version++
}
