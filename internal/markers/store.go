// Package markers owns the ordered marker collection shown on the map.
package markers

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/myplaces/placemap/internal/render"
	"github.com/myplaces/placemap/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Dependencies holds the collaborators of a Store
type Dependencies struct {
	Renderer render.Renderer
	Logger   *slog.Logger
}

// Store is the single source of truth for the markers on the map.
// Markers are indexed 0..Count()-1 with no gaps; removing a marker shifts every
// later marker down by one. Each marker also has a MarkerID that survives shifts.
// All operations are serialized by one mutex.
type Store struct {
	mu      sync.Mutex
	markers []core.Marker
	nextID  core.MarkerID
	// size mirrors len(markers) so Count never waits on the lock.
	size atomic.Int64

	renderer render.Renderer
	logger   *slog.Logger

	// OTEL metrics
	count     metric.Int64ObservableGauge
	mutations metric.Int64Counter
}

// New creates an empty Store.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(deps Dependencies) (*Store, error) {
	s := &Store{
		renderer: deps.Renderer,
		logger:   deps.Logger,
	}
	if s.renderer == nil {
		s.renderer = render.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	m := meter()

	var err error

	s.count, err = m.Int64ObservableGauge(
		"markers.count",
		metric.WithDescription("Current number of markers on the map"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating marker count gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(s.count, int64(s.Count()))
			return nil
		},
		s.count,
	)
	if err != nil {
		return nil, fmt.Errorf("registering marker count callback: %w", err)
	}

	s.mutations, err = m.Int64Counter(
		"markers.mutations",
		metric.WithDescription("Total successful marker mutations"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating mutations counter: %w", err)
	}

	return s, nil
}

func (s *Store) record(op string) {
	s.mutations.Add(context.Background(), 1, metric.WithAttributes(attribute.String("op", op)))
}

// Add appends a marker at p and returns its index.
func (s *Store) Add(p core.Position, draggable bool) (int, error) {
	_, index, err := s.AddMarker(p, draggable)
	return index, err
}

// AddMarker appends a marker at p and returns it along with its index.
// The renderer is told to place the marker and pan to it.
func (s *Store) AddMarker(p core.Position, draggable bool) (core.Marker, int, error) {
	if err := p.Validate(); err != nil {
		return core.Marker{}, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	m := core.Marker{
		ID:        s.nextID,
		Position:  p,
		Draggable: draggable,
		Label:     core.LabelFor(p),
	}
	s.markers = append(s.markers, m)
	s.size.Store(int64(len(s.markers)))
	index := len(s.markers) - 1

	s.renderer.PlaceVisual(index, m)
	s.renderer.PanTo(p)
	s.record("add")
	s.logger.Debug("Marker added", "index", index, "id", m.ID, "position", p.String())

	return m, index, nil
}

// Remove deletes the marker at index. Every later marker moves down one index.
func (s *Store) Remove(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndexLocked(index); err != nil {
		return err
	}
	s.removeLocked(index)
	return nil
}

// RemoveByID deletes the marker with the given ID and returns the index it had.
func (s *Store) RemoveByID(id core.MarkerID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, ok := s.indexOfLocked(id)
	if !ok {
		return 0, fmt.Errorf("%w: id %d", core.ErrMarkerNotFound, id)
	}
	s.removeLocked(index)
	return index, nil
}

func (s *Store) removeLocked(index int) {
	m := s.markers[index]
	s.markers = slices.Delete(s.markers, index, index+1)
	s.size.Store(int64(len(s.markers)))

	s.renderer.RemoveVisual(index, m.ID)
	s.record("remove")
	s.logger.Debug("Marker removed", "index", index, "id", m.ID)
}

// Update moves the marker at index to p and regenerates its label.
// The index and draggable flag are unchanged.
func (s *Store) Update(index int, p core.Position) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndexLocked(index); err != nil {
		return err
	}
	s.updateLocked(index, p)
	return nil
}

// UpdateByID moves the marker with the given ID to p.
func (s *Store) UpdateByID(id core.MarkerID, p core.Position) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index, ok := s.indexOfLocked(id)
	if !ok {
		return fmt.Errorf("%w: id %d", core.ErrMarkerNotFound, id)
	}
	s.updateLocked(index, p)
	return nil
}

func (s *Store) updateLocked(index int, p core.Position) {
	m := &s.markers[index]
	m.Position = p
	m.Label = core.LabelFor(p)

	s.renderer.MoveVisual(index, *m)
	s.record("update")
	s.logger.Debug("Marker updated", "index", index, "id", m.ID, "position", p.String())
}

// Get returns the marker at index.
func (s *Store) Get(index int) (core.Marker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndexLocked(index); err != nil {
		return core.Marker{}, err
	}
	return s.markers[index], nil
}

// GetByID returns the marker with the given ID and its current index.
func (s *Store) GetByID(id core.MarkerID) (core.Marker, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, ok := s.indexOfLocked(id)
	if !ok {
		return core.Marker{}, 0, false
	}
	return s.markers[index], index, true
}

// IndexOf resolves a marker ID to its current index.
func (s *Store) IndexOf(id core.MarkerID) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOfLocked(id)
}

func (s *Store) indexOfLocked(id core.MarkerID) (int, bool) {
	for i, m := range s.markers {
		if m.ID == id {
			return i, true
		}
	}
	return 0, false
}

func (s *Store) checkIndexLocked(index int) error {
	if index < 0 || index >= len(s.markers) {
		return fmt.Errorf("%w: index %d, count %d", core.ErrIndexOutOfRange, index, len(s.markers))
	}
	return nil
}

// List returns a snapshot of all markers in index order.
func (s *Store) List() []core.Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.markers)
}

// View calls fn with a copy of all markers in index order while holding the
// store lock, so no mutation or renderer call can interleave with fn. fn must
// not call back into the store.
func (s *Store) View(fn func(markers []core.Marker)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(slices.Clone(s.markers))
}

// Positions returns the positions of all markers in index order.
func (s *Store) Positions() []core.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	positions := make([]core.Position, len(s.markers))
	for i, m := range s.markers {
		positions[i] = m.Position
	}
	return positions
}

// Count returns the number of markers. It is safe to call from log handlers
// that run while a mutation holds the lock.
func (s *Store) Count() int {
	return int(s.size.Load())
}
