// Package monitor reports what is currently on the map and whether location
// tracking is running.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/myplaces/placemap/internal/geo"
	"github.com/myplaces/placemap/internal/tracker"
	"github.com/myplaces/placemap/pkg/core"
)

// MarkerSource is the read side of the marker store.
type MarkerSource interface {
	Count() int
	Positions() []core.Position
}

// TrackerSource is the read side of the self-location tracker.
type TrackerSource interface {
	State() tracker.State
	SelfMarker() (core.Marker, bool)
	SelfIndex() (int, bool)
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Markers MarkerSource
	Tracker TrackerSource
	// LocationAvailable reports whether the device has a location capability.
	LocationAvailable func() bool
	Logger            *slog.Logger
	// StatusFile is rewritten with the latest status on every tick. Empty disables it.
	StatusFile string
	Interval   time.Duration
}

// Bounds is the south-west and north-east corner of all markers.
type Bounds struct {
	SouthWest core.Position `json:"southWest"`
	NorthEast core.Position `json:"northEast"`
}

// Mercator is an EPSG:3857 coordinate.
type Mercator struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Status is a point-in-time snapshot.
type Status struct {
	Time              time.Time    `json:"time"`
	Markers           int          `json:"markers"`
	Tracking          string       `json:"tracking"`
	LocationAvailable bool         `json:"locationAvailable"`
	SelfMarker        *core.Marker `json:"selfMarker,omitempty"`
	SelfIndex         *int         `json:"selfIndex,omitempty"`
	// SelfMercator is the self marker in web mercator meters.
	SelfMercator *Mercator `json:"selfMercator,omitempty"`
	Bounds       *Bounds   `json:"bounds,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps   Dependencies
	logger *slog.Logger

	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
	stopped   chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:   deps,
		logger: logger,
	}
}

// GetStatus returns the current status.
func (s *Service) GetStatus() Status {
	st := Status{
		Time:     time.Now().UTC(),
		Tracking: tracker.Idle.String(),
	}

	if s.deps.Markers != nil {
		st.Markers = s.deps.Markers.Count()
		if sw, ne, ok := geo.BoundsCorners(s.deps.Markers.Positions()); ok {
			st.Bounds = &Bounds{SouthWest: sw, NorthEast: ne}
		}
	}

	if s.deps.Tracker != nil {
		st.Tracking = s.deps.Tracker.State().String()
		if m, ok := s.deps.Tracker.SelfMarker(); ok {
			st.SelfMarker = &m
			if point, err := geo.Project(m.Position); err == nil {
				if xy, ok := point.XY(); ok {
					st.SelfMercator = &Mercator{X: xy.X, Y: xy.Y}
				}
			}
		}
		if index, ok := s.deps.Tracker.SelfIndex(); ok {
			st.SelfIndex = &index
		}
	}

	if s.deps.LocationAvailable != nil {
		st.LocationAvailable = s.deps.LocationAvailable()
	}

	return st
}

// StatusJSON returns the current status as indented JSON.
func (s *Service) StatusJSON() (string, error) {
	data, err := json.MarshalIndent(s.GetStatus(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal status: %w", err)
	}
	return string(data), nil
}

// IsRunning returns whether the status file writer is running
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Start runs the status file writer until Stop or ctx is done.
func (s *Service) Start(ctx context.Context) error {
	if s.deps.StatusFile == "" {
		return nil
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.stopped = make(chan struct{})
	stop, stopped := s.stopChan, s.stopped
	s.mu.Unlock()

	go func() {
		defer close(stopped)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.logger.Debug("Starting status monitor", "file", s.deps.StatusFile, "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.writeStatus(); err != nil {
					s.logger.Warn("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

func (s *Service) writeStatus() error {
	data, err := s.StatusJSON()
	if err != nil {
		return err
	}
	tmp := s.deps.StatusFile + ".tmp"
	if err := os.WriteFile(tmp, []byte(data+"\n"), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.deps.StatusFile)
}

// Stop stops the status file writer and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	stopped := s.stopped
	s.isRunning = false
	s.mu.Unlock()

	<-stopped
}
