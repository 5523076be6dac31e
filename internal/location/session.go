package location

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/google/uuid"

	"github.com/myplaces/placemap/internal/channel"
	"github.com/myplaces/placemap/pkg/core"
)

// Reading is a single provider callback: a position or a failure.
type Reading struct {
	Position core.Position
	Err      error
}

// Session is one fetch or watch registered with a Provider. Readings are
// delivered in provider order and never after Cancel returns.
type Session struct {
	id   uuid.UUID
	once bool

	ch   channel.Channel[Reading]
	done chan struct{}

	mu        sync.Mutex
	cancelled bool
	release   func()
	inflight  sync.WaitGroup
}

func newSession(once bool, buffer int) *Session {
	return &Session{
		id:   uuid.New(),
		once: once,
		ch:   channel.New[Reading](buffer),
		done: make(chan struct{}),
	}
}

// ID returns the opaque handle used with Feed.Cancel.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Once reports whether the session ends after its first reading.
func (s *Session) Once() bool {
	return s.once
}

// Done is closed when the session is cancelled.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Cancelled reports whether Cancel was called.
func (s *Session) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// emit hands r to the consumer. Readings that arrive after Cancel are dropped.
func (s *Session) emit(r Reading) {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	s.ch.SendOrDone(r, s.done)
}

func (s *Session) success(p core.Position) {
	s.emit(Reading{Position: p})
}

func (s *Session) failure(err error) {
	var locErr *core.LocationError
	if !errors.As(err, &locErr) {
		err = core.NewLocationError(err.Error())
	}
	s.emit(Reading{Err: err})
}

// setRelease installs the function that frees the provider registration.
// If the session is already cancelled it runs immediately.
func (s *Session) setRelease(release func()) {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		release()
		return
	}
	s.release = release
	s.mu.Unlock()
}

// Cancel stops the session. It is safe to call more than once.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	close(s.done)
	release := s.release
	s.release = nil
	s.mu.Unlock()

	if release != nil {
		release()
	}
	s.inflight.Wait()
	s.ch.Close()
}

// Next blocks for the next reading. It returns ErrSessionClosed once the
// session is cancelled, including for readings already queued at that time.
// A transient failure is returned as a *core.LocationError and leaves a watch
// session open. A one-shot session is cancelled after its only reading.
func (s *Session) Next(ctx context.Context) (core.Position, error) {
	select {
	case <-ctx.Done():
		return core.Position{}, ctx.Err()
	case <-s.done:
		return core.Position{}, core.ErrSessionClosed
	case r, ok := <-s.ch.Receive():
		if !ok || s.Cancelled() {
			return core.Position{}, core.ErrSessionClosed
		}
		if s.once {
			s.Cancel()
		}
		return r.Position, r.Err
	}
}

// Positions yields readings until the session closes or ctx is done.
// Transient failures are yielded with a zero Position.
func (s *Session) Positions(ctx context.Context) iter.Seq2[core.Position, error] {
	return func(yield func(core.Position, error) bool) {
		for {
			p, err := s.Next(ctx)
			if err != nil && (errors.Is(err, core.ErrSessionClosed) || ctx.Err() != nil) {
				return
			}
			if !yield(p, err) {
				return
			}
		}
	}
}
