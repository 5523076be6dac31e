// Package tracker keeps a single "self" marker on the map in step with the
// device location.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/myplaces/placemap/internal/geo"
	"github.com/myplaces/placemap/internal/location"
	"github.com/myplaces/placemap/internal/markers"
	"github.com/myplaces/placemap/pkg/core"
)

// State is the tracker lifecycle state.
type State int

const (
	Idle State = iota
	Tracking
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Tracking:
		return "tracking"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FixRecorder receives every fix the tracker applies to the map.
type FixRecorder interface {
	RecordFix(ctx context.Context, fix core.Fix) error
}

// Dependencies holds the collaborators of a Tracker.
type Dependencies struct {
	Store     *markers.Store
	Feed      *location.Feed
	Logger    *slog.Logger
	Recorders []FixRecorder
	// OnError receives failures from continuous tracking, which has no caller
	// to return them to.
	OnError func(error)
}

// Tracker drives the marker store from the location feed. Every reading
// replaces the self marker: the old one is removed by ID and the new position
// is added as a fresh marker, so user edits in between never leave a duplicate.
type Tracker struct {
	store     *markers.Store
	feed      *location.Feed
	logger    *slog.Logger
	recorders []FixRecorder
	onError   func(error)

	mu       sync.Mutex
	session  *location.Session
	tracking atomic.Bool
	selfID   core.MarkerID
	hasSelf  bool
	last     core.Position
	hasLast  bool

	// OTEL metrics
	fixes    metric.Int64Counter
	failures metric.Int64Counter
}

// New creates an idle Tracker.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(deps Dependencies) (*Tracker, error) {
	if deps.Store == nil || deps.Feed == nil {
		return nil, fmt.Errorf("%w: tracker needs a store and a feed", core.ErrInvalidArgument)
	}

	t := &Tracker{
		store:     deps.Store,
		feed:      deps.Feed,
		logger:    deps.Logger,
		recorders: deps.Recorders,
		onError:   deps.OnError,
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}

	m := meter()

	var err error

	t.fixes, err = m.Int64Counter(
		"tracker.fixes",
		metric.WithDescription("Location fixes applied to the map"),
		metric.WithUnit("{fix}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create fixes counter: %w", err)
	}

	t.failures, err = m.Int64Counter(
		"tracker.failures",
		metric.WithDescription("Location failures seen by the tracker"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create failures counter: %w", err)
	}

	return t, nil
}

// State returns Tracking while a session is active. It does not take the
// tracker lock, so log handlers may call it.
func (t *Tracker) State() State {
	if t.tracking.Load() {
		return Tracking
	}
	return Idle
}

// SelfMarker returns the current self marker, if it is still in the store.
func (t *Tracker) SelfMarker() (core.Marker, bool) {
	t.mu.Lock()
	id, ok := t.selfID, t.hasSelf
	t.mu.Unlock()
	if !ok {
		return core.Marker{}, false
	}
	m, _, found := t.store.GetByID(id)
	return m, found
}

// SelfIndex returns the current index of the self marker. The store is asked
// every time because user removals shift indices.
func (t *Tracker) SelfIndex() (int, bool) {
	t.mu.Lock()
	id, ok := t.selfID, t.hasSelf
	t.mu.Unlock()
	if !ok {
		return 0, false
	}
	return t.store.IndexOf(id)
}

// Locate fetches one reading and places the self marker there. It blocks
// until the reading arrives, the fetch fails, the tracker is stopped or ctx
// is done. On failure the existing self marker is left untouched.
func (t *Tracker) Locate(ctx context.Context) (core.Marker, error) {
	s, err := t.feed.FetchOnce()
	if err != nil {
		t.fail(err)
		return core.Marker{}, err
	}
	t.begin(s)
	defer t.finish(s)

	p, err := s.Next(ctx)
	if err != nil {
		t.fail(err)
		return core.Marker{}, err
	}

	fix, err := t.apply(s, p)
	if err != nil {
		t.fail(err)
		return core.Marker{}, err
	}
	t.record(ctx, fix)

	m, _, _ := t.store.GetByID(fix.MarkerID)
	return m, nil
}

// LocateAndTrack starts continuous tracking in the background and returns
// once the watch is registered. Tracking runs until Stop, a new session,
// or ctx is done. Transient failures go to OnError and tracking continues.
func (t *Tracker) LocateAndTrack(ctx context.Context) error {
	s, err := t.feed.Watch()
	if err != nil {
		t.fail(err)
		return err
	}
	t.begin(s)

	go t.pump(ctx, s)
	return nil
}

func (t *Tracker) pump(ctx context.Context, s *location.Session) {
	defer t.finish(s)

	for p, err := range s.Positions(ctx) {
		if err != nil {
			t.report(err)
			continue
		}
		fix, err := t.apply(s, p)
		if errors.Is(err, core.ErrSessionClosed) {
			return
		}
		if err != nil {
			t.report(err)
			continue
		}
		t.record(ctx, fix)
	}
}

// Stop cancels the active session. The self marker stays on the map.
func (t *Tracker) Stop() {
	t.mu.Lock()
	s := t.session
	t.session = nil
	t.tracking.Store(false)
	t.mu.Unlock()

	if s == nil {
		return
	}
	s.Cancel()
	t.logger.Info("Location tracking stopped")
}

// begin makes s the live session and cancels whichever session it replaces.
func (t *Tracker) begin(s *location.Session) {
	t.mu.Lock()
	prev := t.session
	t.session = s
	t.tracking.Store(true)
	t.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}
	mode := "track"
	if s.Once() {
		mode = "locate"
	}
	t.logger.Info("Location session started", "session", s.ID(), "mode", mode)
}

// finish ends s and returns to Idle if s is still the live session.
func (t *Tracker) finish(s *location.Session) {
	t.mu.Lock()
	if t.session == s {
		t.session = nil
		t.tracking.Store(false)
	}
	t.mu.Unlock()
	s.Cancel()
}

// apply performs remove-then-add for p. Readings from a session that is no
// longer live are rejected with ErrSessionClosed and change nothing.
func (t *Tracker) apply(s *location.Session, p core.Position) (core.Fix, error) {
	if err := p.Validate(); err != nil {
		return core.Fix{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session != s {
		return core.Fix{}, core.ErrSessionClosed
	}

	if t.hasSelf {
		if _, err := t.store.RemoveByID(t.selfID); err != nil && !errors.Is(err, core.ErrMarkerNotFound) {
			return core.Fix{}, err
		}
		t.hasSelf = false
	}

	m, index, err := t.store.AddMarker(p, false)
	if err != nil {
		return core.Fix{}, err
	}
	t.selfID = m.ID
	t.hasSelf = true

	fix := core.Fix{
		Time:     time.Now().UTC(),
		Position: p,
		MarkerID: m.ID,
	}
	if t.hasLast {
		fix.Moved = geo.Distance(t.last, p)
	}
	t.last = p
	t.hasLast = true

	t.fixes.Add(context.Background(), 1)
	t.logger.Debug("Self marker placed", "index", index, "id", m.ID, "position", p.String(), "moved", fix.Moved)

	return fix, nil
}

func (t *Tracker) record(ctx context.Context, fix core.Fix) {
	for _, r := range t.recorders {
		if err := r.RecordFix(ctx, fix); err != nil {
			t.logger.Warn("Failed to record fix", "error", err)
		}
	}
}

func (t *Tracker) fail(err error) {
	reason := core.LocationFailureReason(err)
	t.failures.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
	t.logger.Warn("Location failed", "reason", reason, "error", err)
}

func (t *Tracker) report(err error) {
	t.fail(err)
	if t.onError != nil {
		t.onError(err)
	}
}
