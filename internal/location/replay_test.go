package location

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myplaces/placemap/pkg/core"
)

func TestReplayProvider_WatchCyclesRoute(t *testing.T) {
	r := NewReplayProvider([]core.Position{first, second}, 5*time.Millisecond)
	f := NewFeed(Dependencies{Provider: r})
	ctx := testContext(t)

	s, err := f.Watch()
	require.NoError(t, err)
	defer s.Cancel()

	var got []core.Position
	for range 3 {
		p, err := s.Next(ctx)
		require.NoError(t, err)
		got = append(got, p)
	}
	assert.Equal(t, []core.Position{first, second, first}, got)
}

func TestReplayProvider_FetchOnce(t *testing.T) {
	r := NewReplayProvider([]core.Position{second}, time.Millisecond)
	f := NewFeed(Dependencies{Provider: r})

	s, err := f.FetchOnce()
	require.NoError(t, err)

	p, err := s.Next(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, second, p)
}

func TestReplayProvider_EmptyRoute(t *testing.T) {
	r := NewReplayProvider(nil, time.Millisecond)
	f := NewFeed(Dependencies{Provider: r})

	s, err := f.FetchOnce()
	require.NoError(t, err)

	_, err = s.Next(testContext(t))
	var locErr *core.LocationError
	assert.ErrorAs(t, err, &locErr)
}

func TestReplayProvider_ClearWatchStops(t *testing.T) {
	r := NewReplayProvider([]core.Position{first}, time.Millisecond)

	calls := make(chan core.Position, 64)
	id := r.WatchPosition(func(p core.Position) {
		select {
		case calls <- p:
		default:
		}
	}, func(error) {})

	<-calls
	r.ClearWatch(id)
	r.ClearWatch(id)

	// Drain anything sent before the clear took effect, then expect silence.
	time.Sleep(10 * time.Millisecond)
	for len(calls) > 0 {
		<-calls
	}
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, calls)
}
