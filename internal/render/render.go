// Package render defines the boundary between the marker core and whatever draws the map.
package render

import "github.com/myplaces/placemap/pkg/core"

// Renderer receives visual updates from the marker store.
// Calls are made while the store is locked, so implementations must not call
// back into the store synchronously.
type Renderer interface {
	PlaceVisual(index int, m core.Marker)
	RemoveVisual(index int, id core.MarkerID)
	MoveVisual(index int, m core.Marker)
	PanTo(p core.Position)
}

// Nop discards all updates.
type Nop struct{}

func (Nop) PlaceVisual(int, core.Marker)    {}
func (Nop) RemoveVisual(int, core.MarkerID) {}
func (Nop) MoveVisual(int, core.Marker)     {}
func (Nop) PanTo(core.Position)             {}

// Multi fans out updates to multiple renderers.
// All renderers receive every update, in registration order.
type Multi struct {
	renderers []Renderer
}

// NewMulti creates a renderer that forwards to all provided renderers.
func NewMulti(renderers ...Renderer) *Multi {
	// Filter out nil renderers
	valid := make([]Renderer, 0, len(renderers))
	for _, r := range renderers {
		if r != nil {
			valid = append(valid, r)
		}
	}
	return &Multi{renderers: valid}
}

func (m *Multi) PlaceVisual(index int, mk core.Marker) {
	for _, r := range m.renderers {
		r.PlaceVisual(index, mk)
	}
}

func (m *Multi) RemoveVisual(index int, id core.MarkerID) {
	for _, r := range m.renderers {
		r.RemoveVisual(index, id)
	}
}

func (m *Multi) MoveVisual(index int, mk core.Marker) {
	for _, r := range m.renderers {
		r.MoveVisual(index, mk)
	}
}

func (m *Multi) PanTo(p core.Position) {
	for _, r := range m.renderers {
		r.PanTo(p)
	}
}
