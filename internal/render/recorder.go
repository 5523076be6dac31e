package render

import (
	"sync"

	"github.com/myplaces/placemap/pkg/core"
)

// Call is a single update captured by Recorder.
type Call struct {
	Op       string
	Index    int
	ID       core.MarkerID
	Position core.Position
	Marker   core.Marker
}

// Recorder keeps every update in memory so callers can assert what the map
// was told.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *Recorder) PlaceVisual(index int, m core.Marker) {
	r.add(Call{Op: "place", Index: index, ID: m.ID, Position: m.Position, Marker: m})
}

func (r *Recorder) RemoveVisual(index int, id core.MarkerID) {
	r.add(Call{Op: "remove", Index: index, ID: id})
}

func (r *Recorder) MoveVisual(index int, m core.Marker) {
	r.add(Call{Op: "move", Index: index, ID: m.ID, Position: m.Position, Marker: m})
}

func (r *Recorder) PanTo(p core.Position) {
	r.add(Call{Op: "pan", Position: p})
}

// Calls returns a copy of all captured updates.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]Call, len(r.calls))
	copy(cp, r.calls)
	return cp
}

// Ops returns the operation names of all captured updates in order.
func (r *Recorder) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]string, len(r.calls))
	for i, c := range r.calls {
		ops[i] = c.Op
	}
	return ops
}

// Reset drops all captured updates.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
