package monitor

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myplaces/placemap/internal/tracker"
	"github.com/myplaces/placemap/pkg/core"
)

type fakeMarkers []core.Position

func (f fakeMarkers) Count() int                 { return len(f) }
func (f fakeMarkers) Positions() []core.Position { return f }

type fakeTracker struct {
	state tracker.State
	self  *core.Marker
	index int
}

func (f fakeTracker) State() tracker.State { return f.state }

func (f fakeTracker) SelfMarker() (core.Marker, bool) {
	if f.self == nil {
		return core.Marker{}, false
	}
	return *f.self, true
}

func (f fakeTracker) SelfIndex() (int, bool) {
	return f.index, f.self != nil
}

func TestGetStatus_Empty(t *testing.T) {
	s := NewService(Dependencies{})

	st := s.GetStatus()
	assert.Equal(t, 0, st.Markers)
	assert.Equal(t, "idle", st.Tracking)
	assert.Nil(t, st.Bounds)
	assert.Nil(t, st.SelfMarker)
	assert.Nil(t, st.SelfIndex)
	assert.False(t, st.LocationAvailable)
}

func TestGetStatus_WithMarkersAndSelf(t *testing.T) {
	self := core.Marker{ID: 4, Position: core.Position{Lat: 28.625043, Lng: 79.810135}}
	s := NewService(Dependencies{
		Markers: fakeMarkers{
			{Lat: 28.625485, Lng: 79.821091},
			{Lat: 28.625182, Lng: 79.81464},
			self.Position,
		},
		Tracker:           fakeTracker{state: tracker.Tracking, self: &self, index: 2},
		LocationAvailable: func() bool { return true },
	})

	st := s.GetStatus()
	assert.Equal(t, 3, st.Markers)
	assert.Equal(t, "tracking", st.Tracking)
	assert.True(t, st.LocationAvailable)
	require.NotNil(t, st.SelfMarker)
	assert.Equal(t, self.ID, st.SelfMarker.ID)
	require.NotNil(t, st.SelfIndex)
	assert.Equal(t, 2, *st.SelfIndex)
	require.NotNil(t, st.SelfMercator)
	assert.InDelta(t, 6378137.0*79.810135*math.Pi/180, st.SelfMercator.X, 1)
	assert.Greater(t, st.SelfMercator.Y, 0.0)

	require.NotNil(t, st.Bounds)
	assert.InDelta(t, 28.625043, st.Bounds.SouthWest.Lat, 1e-9)
	assert.InDelta(t, 79.810135, st.Bounds.SouthWest.Lng, 1e-9)
	assert.InDelta(t, 28.625485, st.Bounds.NorthEast.Lat, 1e-9)
	assert.InDelta(t, 79.821091, st.Bounds.NorthEast.Lng, 1e-9)
}

func TestStatusJSON(t *testing.T) {
	s := NewService(Dependencies{Markers: fakeMarkers{{Lat: 1, Lng: 2}}})

	out, err := s.StatusJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, float64(1), decoded["markers"])
	assert.Equal(t, "idle", decoded["tracking"])
	assert.NotContains(t, decoded, "selfMarker")
	assert.NotContains(t, decoded, "selfMercator")
}

func TestStart_WritesStatusFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	s := NewService(Dependencies{
		Markers:    fakeMarkers{{Lat: 1, Lng: 2}},
		StatusFile: path,
		Interval:   5 * time.Millisecond,
	})

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"markers": 1`)
}

func TestStart_NoStatusFile(t *testing.T) {
	s := NewService(Dependencies{})
	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
}
