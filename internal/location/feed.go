package location

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/myplaces/placemap/pkg/core"
)

const defaultBuffer = 16

// Dependencies holds the collaborators of a Feed.
type Dependencies struct {
	// Provider is the device capability. Nil means the device has none.
	Provider Provider
	Logger   *slog.Logger
	// Buffer is the number of readings held for a slow consumer.
	Buffer int
}

// Feed turns provider callbacks into sessions.
type Feed struct {
	provider Provider
	logger   *slog.Logger
	buffer   int

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewFeed creates a Feed over deps.Provider.
func NewFeed(deps Dependencies) *Feed {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	buffer := deps.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Feed{
		provider: deps.Provider,
		logger:   logger,
		buffer:   buffer,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Available reports whether a location capability is present.
func (f *Feed) Available() bool {
	return f.provider != nil
}

func (f *Feed) track(s *Session) {
	f.mu.Lock()
	f.sessions[s.id] = s
	f.mu.Unlock()

	go func() {
		<-s.done
		f.mu.Lock()
		delete(f.sessions, s.id)
		f.mu.Unlock()
	}()
}

// FetchOnce requests a single reading. It fails with ErrLocationUnavailable
// before registering anything when there is no provider.
func (f *Feed) FetchOnce() (*Session, error) {
	if f.provider == nil {
		return nil, core.ErrLocationUnavailable
	}

	s := newSession(true, f.buffer)
	f.track(s)
	f.logger.Debug("Location fetch requested", "session", s.id)

	// Providers may call back synchronously; registering off the caller's
	// goroutine keeps an unbuffered session from blocking its own creator.
	go f.provider.CurrentPosition(s.success, s.failure)
	return s, nil
}

// Watch starts continuous reporting. It fails with ErrLocationUnavailable
// when there is no provider.
func (f *Feed) Watch() (*Session, error) {
	if f.provider == nil {
		return nil, core.ErrLocationUnavailable
	}

	s := newSession(false, f.buffer)
	f.track(s)
	f.logger.Debug("Location watch started", "session", s.id)

	go func() {
		id := f.provider.WatchPosition(s.success, s.failure)
		s.setRelease(func() {
			f.provider.ClearWatch(id)
		})
	}()
	return s, nil
}

// Cancel stops the session with the given handle. Unknown or already
// cancelled handles are ignored.
func (f *Feed) Cancel(id uuid.UUID) {
	f.mu.Lock()
	s, ok := f.sessions[id]
	f.mu.Unlock()
	if !ok {
		return
	}
	s.Cancel()
	f.logger.Debug("Location session cancelled", "session", id)
}

// Active returns the number of sessions not yet cancelled.
func (f *Feed) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}
