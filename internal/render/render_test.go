package render

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/myplaces/placemap/pkg/core"
)

var (
	_ Renderer = Nop{}
	_ Renderer = (*Multi)(nil)
	_ Renderer = (*Recorder)(nil)
	_ Renderer = (*LogRenderer)(nil)
)

func TestMulti_FansOutInOrder(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	m := NewMulti(a, nil, b)

	mk := core.Marker{ID: 1, Position: core.Position{Lat: 1, Lng: 2}}
	m.PlaceVisual(0, mk)
	m.PanTo(mk.Position)
	m.MoveVisual(0, mk)
	m.RemoveVisual(0, mk.ID)

	want := []string{"place", "pan", "move", "remove"}
	assert.Equal(t, want, a.Ops())
	assert.Equal(t, want, b.Ops())
}

func TestRecorder_CallsAndReset(t *testing.T) {
	r := NewRecorder()
	mk := core.Marker{ID: 7, Position: core.Position{Lat: 3, Lng: 4}}
	r.PlaceVisual(2, mk)
	r.RemoveVisual(2, 7)

	calls := r.Calls()
	assert.Len(t, calls, 2)
	assert.Equal(t, Call{Op: "place", Index: 2, ID: 7, Position: mk.Position, Marker: mk}, calls[0])
	assert.Equal(t, Call{Op: "remove", Index: 2, ID: 7}, calls[1])

	r.Reset()
	assert.Empty(t, r.Ops())
}

func TestLogRenderer(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := NewLogRenderer(logger)

	r.PlaceVisual(0, core.Marker{ID: 5, Position: core.Position{Lat: 28.6, Lng: 79.8}, Draggable: true})
	r.PanTo(core.Position{Lat: 28.6, Lng: 79.8})

	out := buf.String()
	assert.Contains(t, out, "Place marker")
	assert.Contains(t, out, "component=renderer")
	assert.Contains(t, out, "position=28.6,79.8")
	assert.Contains(t, out, "Pan map")
}
