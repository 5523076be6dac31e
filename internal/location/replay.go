package location

import (
	"sync"
	"time"

	"github.com/myplaces/placemap/internal/queue"
	"github.com/myplaces/placemap/pkg/core"
)

// ReplayProvider simulates a device by cycling through a fixed route.
// A one-shot request gets the next route point after one interval; a watch
// gets one point per interval until it is cleared.
type ReplayProvider struct {
	route    *queue.Queue[core.Position]
	interval time.Duration

	mu      sync.Mutex
	nextID  WatchID
	watches map[WatchID]chan struct{}
}

// NewReplayProvider creates a ReplayProvider over route. An empty route makes
// every reading fail with a LocationError.
func NewReplayProvider(route []core.Position, interval time.Duration) *ReplayProvider {
	return &ReplayProvider{
		route:    queue.New(route...),
		interval: interval,
		watches:  make(map[WatchID]chan struct{}),
	}
}

func (r *ReplayProvider) read(onSuccess func(core.Position), onError func(error)) {
	p, ok := r.route.Rotate()
	if !ok {
		onError(core.NewLocationError("replay route is empty"))
		return
	}
	if err := p.Validate(); err != nil {
		onError(core.NewLocationError(err.Error()))
		return
	}
	onSuccess(p)
}

func (r *ReplayProvider) CurrentPosition(onSuccess func(core.Position), onError func(error)) {
	time.AfterFunc(r.interval, func() {
		r.read(onSuccess, onError)
	})
}

func (r *ReplayProvider) WatchPosition(onSuccess func(core.Position), onError func(error)) WatchID {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	stop := make(chan struct{})
	r.watches[id] = stop
	r.mu.Unlock()

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				r.read(onSuccess, onError)
			}
		}
	}()

	return id
}

func (r *ReplayProvider) ClearWatch(id WatchID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stop, ok := r.watches[id]; ok {
		close(stop)
		delete(r.watches, id)
	}
}
