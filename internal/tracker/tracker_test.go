package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myplaces/placemap/internal/location"
	"github.com/myplaces/placemap/internal/markers"
	"github.com/myplaces/placemap/internal/render"
	"github.com/myplaces/placemap/pkg/core"
)

var (
	seed = []core.Position{
		{Lat: 28.625485, Lng: 79.821091},
		{Lat: 28.625293, Lng: 79.817926},
		{Lat: 28.625182, Lng: 79.81464},
	}
	first  = core.Position{Lat: 28.625043, Lng: 79.810135}
	second = core.Position{Lat: 28.626, Lng: 79.822}
)

type fixLog struct {
	mu    sync.Mutex
	fixes []core.Fix
}

func (f *fixLog) RecordFix(_ context.Context, fix core.Fix) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fixes = append(f.fixes, fix)
	return nil
}

func (f *fixLog) all() []core.Fix {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]core.Fix, len(f.fixes))
	copy(cp, f.fixes)
	return cp
}

type fixture struct {
	store    *markers.Store
	provider *location.ManualProvider
	renderer *render.Recorder
	fixes    *fixLog
	tracker  *Tracker

	mu     sync.Mutex
	errors []error
}

func (f *fixture) onError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, err)
}

func (f *fixture) reported() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.errors...)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		provider: location.NewManualProvider(),
		renderer: render.NewRecorder(),
		fixes:    &fixLog{},
	}

	store, err := markers.New(markers.Dependencies{Renderer: f.renderer})
	require.NoError(t, err)
	for _, p := range seed {
		_, err := store.Add(p, true)
		require.NoError(t, err)
	}
	f.store = store

	tr, err := New(Dependencies{
		Store:     store,
		Feed:      location.NewFeed(location.Dependencies{Provider: f.provider}),
		Recorders: []FixRecorder{f.fixes},
		OnError:   f.onError,
	})
	require.NoError(t, err)
	f.tracker = tr

	t.Cleanup(tr.Stop)
	f.renderer.Reset()
	return f
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, time.Millisecond)
}

type locateResult struct {
	marker core.Marker
	err    error
}

// locate runs Locate and answers the fetch with push once it is registered.
func (f *fixture) locate(t *testing.T, push func()) (core.Marker, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result := make(chan locateResult, 1)
	go func() {
		m, err := f.tracker.Locate(ctx)
		result <- locateResult{m, err}
	}()

	waitFor(t, func() bool { return f.provider.Pending() == 1 })
	push()

	r := <-result
	return r.marker, r.err
}

func (f *fixture) selfPosition(t *testing.T) core.Position {
	t.Helper()
	m, ok := f.tracker.SelfMarker()
	require.True(t, ok)
	return m.Position
}

func TestNew_RequiresStoreAndFeed(t *testing.T) {
	_, err := New(Dependencies{})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestLocate_AddsThenReplacesSelfMarker(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, Idle, f.tracker.State())

	m, err := f.locate(t, func() { f.provider.Push(first) })
	require.NoError(t, err)
	assert.Equal(t, first, m.Position)
	assert.False(t, m.Draggable)
	assert.Equal(t, core.LabelFor(first), m.Label)
	assert.Equal(t, len(seed)+1, f.store.Count())

	index, ok := f.tracker.SelfIndex()
	require.True(t, ok)
	assert.Equal(t, len(seed), index)
	assert.Equal(t, Idle, f.tracker.State())

	m2, err := f.locate(t, func() { f.provider.Push(second) })
	require.NoError(t, err)
	assert.Equal(t, second, m2.Position)
	assert.NotEqual(t, m.ID, m2.ID)
	assert.Equal(t, len(seed)+1, f.store.Count())
	assert.Equal(t, second, f.selfPosition(t))

	_, _, found := f.store.GetByID(m.ID)
	assert.False(t, found)

	assert.Equal(t, []string{"place", "pan", "remove", "place", "pan"}, f.renderer.Ops())
}

func TestLocate_FailureKeepsState(t *testing.T) {
	f := newFixture(t)

	_, err := f.locate(t, func() { f.provider.Push(first) })
	require.NoError(t, err)

	_, err = f.locate(t, func() { f.provider.PushError(errors.New("position unavailable")) })
	var locErr *core.LocationError
	require.ErrorAs(t, err, &locErr)

	assert.Equal(t, len(seed)+1, f.store.Count())
	assert.Equal(t, first, f.selfPosition(t))
	assert.Equal(t, Idle, f.tracker.State())
}

func TestLocate_NoCapability(t *testing.T) {
	store, err := markers.New(markers.Dependencies{})
	require.NoError(t, err)
	tr, err := New(Dependencies{
		Store: store,
		Feed:  location.NewFeed(location.Dependencies{}),
	})
	require.NoError(t, err)

	_, err = tr.Locate(context.Background())
	assert.ErrorIs(t, err, core.ErrLocationUnavailable)
	assert.ErrorIs(t, tr.LocateAndTrack(context.Background()), core.ErrLocationUnavailable)

	assert.Equal(t, 0, store.Count())
	assert.Equal(t, Idle, tr.State())
	_, ok := tr.SelfMarker()
	assert.False(t, ok)
}

func TestLocate_ContextCancelled(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.tracker.Locate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, len(seed), f.store.Count())
	assert.Equal(t, Idle, f.tracker.State())
}

func TestLocateAndTrack_ReplacesOnEveryEmission(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.tracker.LocateAndTrack(context.Background()))
	assert.Equal(t, Tracking, f.tracker.State())
	waitFor(t, func() bool { return f.provider.Watching() == 1 })

	f.provider.Push(first)
	waitFor(t, func() bool { return len(f.fixes.all()) == 1 })
	assert.Equal(t, first, f.selfPosition(t))
	assert.Equal(t, len(seed)+1, f.store.Count())

	f.provider.Push(second)
	waitFor(t, func() bool { return len(f.fixes.all()) == 2 })
	assert.Equal(t, second, f.selfPosition(t))
	assert.Equal(t, len(seed)+1, f.store.Count())

	fixes := f.fixes.all()
	assert.Zero(t, fixes[0].Moved)
	assert.Greater(t, fixes[1].Moved, 1000.0)
}

func TestLocateAndTrack_SelfMarkerRemovedByUser(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.tracker.LocateAndTrack(context.Background()))
	waitFor(t, func() bool { return f.provider.Watching() == 1 })

	f.provider.Push(first)
	waitFor(t, func() bool { return len(f.fixes.all()) == 1 })

	index, ok := f.tracker.SelfIndex()
	require.True(t, ok)
	require.NoError(t, f.store.Remove(index))
	_, ok = f.tracker.SelfIndex()
	assert.False(t, ok)

	f.provider.Push(second)
	waitFor(t, func() bool { return len(f.fixes.all()) == 2 })

	assert.Equal(t, len(seed)+1, f.store.Count())
	assert.Equal(t, second, f.selfPosition(t))
	assert.Empty(t, f.reported())
}

func TestLocateAndTrack_IndexFollowsShifts(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.tracker.LocateAndTrack(context.Background()))
	waitFor(t, func() bool { return f.provider.Watching() == 1 })

	f.provider.Push(first)
	waitFor(t, func() bool { return len(f.fixes.all()) == 1 })

	require.NoError(t, f.store.Remove(0))
	index, ok := f.tracker.SelfIndex()
	require.True(t, ok)
	assert.Equal(t, len(seed)-1, index)

	f.provider.Push(second)
	waitFor(t, func() bool { return len(f.fixes.all()) == 2 })
	assert.Equal(t, len(seed), f.store.Count())

	for i, m := range f.store.List()[:len(seed)-1] {
		assert.Equal(t, seed[i+1], m.Position)
	}
}

func TestLocateAndTrack_TransientErrorReported(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.tracker.LocateAndTrack(context.Background()))
	waitFor(t, func() bool { return f.provider.Watching() == 1 })

	f.provider.PushError(core.NewLocationError("timeout"))
	waitFor(t, func() bool { return len(f.reported()) == 1 })
	assert.Equal(t, Tracking, f.tracker.State())

	f.provider.Push(first)
	waitFor(t, func() bool { return len(f.fixes.all()) == 1 })
	assert.Equal(t, first, f.selfPosition(t))
}

func TestStop_LeavesSelfMarker(t *testing.T) {
	f := newFixture(t)

	f.tracker.Stop()
	assert.Equal(t, Idle, f.tracker.State())

	require.NoError(t, f.tracker.LocateAndTrack(context.Background()))
	waitFor(t, func() bool { return f.provider.Watching() == 1 })

	f.provider.Push(first)
	waitFor(t, func() bool { return len(f.fixes.all()) == 1 })

	f.tracker.Stop()
	f.tracker.Stop()
	assert.Equal(t, Idle, f.tracker.State())
	waitFor(t, func() bool { return f.provider.Watching() == 0 })

	f.provider.Push(second)
	time.Sleep(10 * time.Millisecond)

	assert.Len(t, f.fixes.all(), 1)
	assert.Equal(t, len(seed)+1, f.store.Count())
	assert.Equal(t, first, f.selfPosition(t))
}

func TestNewSessionCancelsPrevious(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.tracker.LocateAndTrack(context.Background()))
	waitFor(t, func() bool { return f.provider.Watching() == 1 })

	m, err := f.locate(t, func() { f.provider.Push(first) })
	require.NoError(t, err)
	assert.Equal(t, first, m.Position)

	waitFor(t, func() bool { return f.provider.Watching() == 0 })
	assert.Equal(t, Idle, f.tracker.State())
	assert.Equal(t, len(seed)+1, f.store.Count())
}

func TestLocateAndTrack_ContextEndsTracking(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.tracker.LocateAndTrack(ctx))
	waitFor(t, func() bool { return f.provider.Watching() == 1 })

	cancel()
	waitFor(t, func() bool { return f.tracker.State() == Idle })
	waitFor(t, func() bool { return f.provider.Watching() == 0 })
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "tracking", Tracking.String())
	assert.Equal(t, "State(7)", State(7).String())
}
