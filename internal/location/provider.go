// Package location adapts a device location capability into cancellable sessions.
package location

import (
	"sync"

	"github.com/myplaces/placemap/pkg/core"
)

// WatchID identifies a continuous watch registered with a Provider.
type WatchID int

// Provider is a device location capability. Callbacks may run on any goroutine
// and may run before the registering call returns.
type Provider interface {
	// CurrentPosition requests a single reading. Exactly one callback is invoked.
	CurrentPosition(onSuccess func(core.Position), onError func(error))
	// WatchPosition starts continuous reporting until ClearWatch is called.
	WatchPosition(onSuccess func(core.Position), onError func(error)) WatchID
	// ClearWatch stops a watch. Unknown IDs are ignored.
	ClearWatch(id WatchID)
}

type callbacks struct {
	onSuccess func(core.Position)
	onError   func(error)
}

// ManualProvider delivers readings pushed by the host, for example fixes a
// browser frontend reports from its own geolocation API.
type ManualProvider struct {
	mu       sync.Mutex
	pending  []callbacks
	watchers map[WatchID]callbacks
	nextID   WatchID
}

// NewManualProvider creates a ManualProvider with no pending requests.
func NewManualProvider() *ManualProvider {
	return &ManualProvider{
		watchers: make(map[WatchID]callbacks),
	}
}

func (m *ManualProvider) CurrentPosition(onSuccess func(core.Position), onError func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, callbacks{onSuccess: onSuccess, onError: onError})
}

func (m *ManualProvider) WatchPosition(onSuccess func(core.Position), onError func(error)) WatchID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.watchers[m.nextID] = callbacks{onSuccess: onSuccess, onError: onError}
	return m.nextID
}

func (m *ManualProvider) ClearWatch(id WatchID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.watchers, id)
}

// take returns the pending one-shot requests and a copy of the watchers,
// clearing the pending list.
func (m *ManualProvider) take() ([]callbacks, []callbacks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pending := m.pending
	m.pending = nil
	watchers := make([]callbacks, 0, len(m.watchers))
	for _, w := range m.watchers {
		watchers = append(watchers, w)
	}
	return pending, watchers
}

// Push delivers p to every pending one-shot request and every active watch.
// Callbacks run on the caller's goroutine.
func (m *ManualProvider) Push(p core.Position) {
	pending, watchers := m.take()
	for _, c := range pending {
		c.onSuccess(p)
	}
	for _, c := range watchers {
		c.onSuccess(p)
	}
}

// PushError delivers err to every pending one-shot request and every active watch.
func (m *ManualProvider) PushError(err error) {
	pending, watchers := m.take()
	for _, c := range pending {
		c.onError(err)
	}
	for _, c := range watchers {
		c.onError(err)
	}
}

// Watching returns the number of active watches.
func (m *ManualProvider) Watching() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watchers)
}

// Pending returns the number of one-shot requests waiting for a reading.
func (m *ManualProvider) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
