// Package handlers implements the host commands that edit markers and drive
// location tracking.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/myplaces/placemap/internal/dispatcher"
	"github.com/myplaces/placemap/internal/geo"
	"github.com/myplaces/placemap/internal/location"
	"github.com/myplaces/placemap/internal/markers"
	"github.com/myplaces/placemap/internal/monitor"
	"github.com/myplaces/placemap/internal/tracker"
	"github.com/myplaces/placemap/pkg/core"
)

// Command names understood by the host.
const (
	CmdMarkerAdd     = ":MARKER:ADD:"
	CmdMarkerRemove  = ":MARKER:REMOVE:"
	CmdMarkerUpdate  = ":MARKER:UPDATE:"
	CmdMarkerList    = ":MARKER:LIST:"
	CmdMarkerClicked = ":MARKER:CLICKED:"
	CmdMarkerDragEnd = ":MARKER:DRAGEND:"
	CmdMapClicked    = ":MAP:CLICKED:"
	CmdLocate        = ":LOCATE:"
	CmdTrackStart    = ":TRACK:START:"
	CmdTrackStop     = ":TRACK:STOP:"
	CmdStatus        = ":STATUS:"
	CmdDeviceFix     = ":DEVICE:FIX:"
	CmdDeviceError   = ":DEVICE:ERROR:"
)

// DemoPosition is where :MARKER:ADD: places a marker when no position is given.
var DemoPosition = core.Position{Lat: 28.625043, Lng: 79.810135}

const defaultLocateTimeout = 30 * time.Second

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Store   *markers.Store
	Tracker *tracker.Tracker
	Monitor *monitor.Service
	// Device receives fixes reported by the host. Nil when another
	// provider is in use.
	Device        *location.ManualProvider
	Logger        *slog.Logger
	LocateTimeout time.Duration
	// OnLocationError receives :LOCATE: and :TRACK:START: failures so the
	// host UI can show them. :LOCATE: is queued, so this is its only way out.
	OnLocationError func(error)
}

// MarkerResult is returned by commands that produce a single marker.
type MarkerResult struct {
	Index  int         `json:"index"`
	Marker core.Marker `json:"marker"`
}

// Service provides the handler for every host command.
type Service struct {
	deps   Dependencies
	ctx    context.Context
	logger *slog.Logger
}

// NewService creates a new handler service. ctx bounds continuous tracking
// started by :TRACK:START:.
func NewService(ctx context.Context, deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.LocateTimeout <= 0 {
		deps.LocateTimeout = defaultLocateTimeout
	}
	return &Service{
		deps:   deps,
		ctx:    ctx,
		logger: logger,
	}
}

// Register adds every command to d. :LOCATE: runs on its own queue because it
// waits for the device.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register(CmdMarkerAdd, s.MarkerAdd, dispatcher.Logged())
	d.Register(CmdMarkerRemove, s.MarkerRemove, dispatcher.Logged())
	d.Register(CmdMarkerUpdate, s.MarkerUpdate, dispatcher.Logged())
	d.Register(CmdMarkerList, s.MarkerList)
	d.Register(CmdMarkerClicked, s.MarkerClicked, dispatcher.Logged())
	d.Register(CmdMarkerDragEnd, s.MarkerDragEnd, dispatcher.Logged())
	d.Register(CmdMapClicked, s.MapClicked)
	d.Register(CmdLocate, s.Locate, dispatcher.Buffered(4), dispatcher.Logged())
	d.Register(CmdTrackStart, s.TrackStart, dispatcher.Logged())
	d.Register(CmdTrackStop, s.TrackStop, dispatcher.Logged())
	d.Register(CmdStatus, s.Status)

	if s.deps.Device != nil {
		d.Register(CmdDeviceFix, s.DeviceFix)
		d.Register(CmdDeviceError, s.DeviceError)
	}
}

func argCount(e dispatcher.Event, want int) error {
	if len(e.Args) < want {
		return fmt.Errorf("%w: %s expects %d argument(s), got %d", core.ErrInvalidArgument, e.Command, want, len(e.Args))
	}
	return nil
}

func argIndex(e dispatcher.Event, i int) (int, error) {
	index, err := strconv.Atoi(e.Args[i])
	if err != nil {
		return 0, fmt.Errorf("%w: index %q", core.ErrInvalidArgument, e.Args[i])
	}
	return index, nil
}

func argPosition(e dispatcher.Event, i int) (core.Position, error) {
	p, err := geo.PositionFromString(e.Args[i])
	if err != nil {
		return core.Position{}, fmt.Errorf("position %q: %w", e.Args[i], err)
	}
	return p, nil
}

// MarkerAdd adds a marker. Args: [position] [draggable]. Without a position
// the demo point is used; draggable defaults to true.
func (s *Service) MarkerAdd(e dispatcher.Event) (any, error) {
	p := DemoPosition
	draggable := true

	if len(e.Args) > 0 && e.Args[0] != "" {
		var err error
		if p, err = argPosition(e, 0); err != nil {
			return nil, err
		}
	}
	if len(e.Args) > 1 {
		v, err := strconv.ParseBool(e.Args[1])
		if err != nil {
			return nil, fmt.Errorf("%w: draggable %q", core.ErrInvalidArgument, e.Args[1])
		}
		draggable = v
	}

	m, index, err := s.deps.Store.AddMarker(p, draggable)
	if err != nil {
		return nil, err
	}
	return MarkerResult{Index: index, Marker: m}, nil
}

// MarkerRemove removes the marker at an index. Args: index.
func (s *Service) MarkerRemove(e dispatcher.Event) (any, error) {
	if err := argCount(e, 1); err != nil {
		return nil, err
	}
	index, err := argIndex(e, 0)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Store.Remove(index); err != nil {
		return nil, err
	}
	return s.deps.Store.Count(), nil
}

func (s *Service) update(e dispatcher.Event) (any, error) {
	if err := argCount(e, 2); err != nil {
		return nil, err
	}
	index, err := argIndex(e, 0)
	if err != nil {
		return nil, err
	}
	p, err := argPosition(e, 1)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Store.Update(index, p); err != nil {
		return nil, err
	}
	m, err := s.deps.Store.Get(index)
	if err != nil {
		return nil, err
	}
	return MarkerResult{Index: index, Marker: m}, nil
}

// MarkerUpdate moves the marker at an index. Args: index, position.
func (s *Service) MarkerUpdate(e dispatcher.Event) (any, error) {
	return s.update(e)
}

// MarkerDragEnd applies the end of a drag on the map. Args: index, position.
func (s *Service) MarkerDragEnd(e dispatcher.Event) (any, error) {
	return s.update(e)
}

// MarkerList returns every marker in index order.
func (s *Service) MarkerList(dispatcher.Event) (any, error) {
	return s.deps.Store.List(), nil
}

// MarkerClicked logs a click on a marker and returns it. Args: index.
func (s *Service) MarkerClicked(e dispatcher.Event) (any, error) {
	if err := argCount(e, 1); err != nil {
		return nil, err
	}
	index, err := argIndex(e, 0)
	if err != nil {
		return nil, err
	}
	m, err := s.deps.Store.Get(index)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Marker clicked", "index", index, "id", m.ID, "position", m.Position.String())
	return MarkerResult{Index: index, Marker: m}, nil
}

// MapClicked logs a click on the map. Args: position.
func (s *Service) MapClicked(e dispatcher.Event) (any, error) {
	if err := argCount(e, 1); err != nil {
		return nil, err
	}
	p, err := argPosition(e, 0)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Map clicked", "position", p.String())
	return p, nil
}

// Locate places the self marker at the device position once.
func (s *Service) Locate(dispatcher.Event) (any, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.deps.LocateTimeout)
	defer cancel()

	m, err := s.deps.Tracker.Locate(ctx)
	if err != nil {
		err = fmt.Errorf("locate: %w", err)
		s.locationFailed(err)
		return nil, err
	}
	index, _ := s.deps.Tracker.SelfIndex()
	s.logger.Info("Located", "index", index, "position", m.Position.String())
	return MarkerResult{Index: index, Marker: m}, nil
}

// TrackStart starts continuous tracking.
func (s *Service) TrackStart(dispatcher.Event) (any, error) {
	if err := s.deps.Tracker.LocateAndTrack(s.ctx); err != nil {
		err = fmt.Errorf("track: %w", err)
		s.locationFailed(err)
		return nil, err
	}
	return s.deps.Tracker.State().String(), nil
}

func (s *Service) locationFailed(err error) {
	if s.deps.OnLocationError != nil {
		s.deps.OnLocationError(err)
	}
}

// TrackStop stops continuous tracking. The self marker stays on the map.
func (s *Service) TrackStop(dispatcher.Event) (any, error) {
	s.deps.Tracker.Stop()
	return s.deps.Tracker.State().String(), nil
}

// Status returns the monitor snapshot as JSON.
func (s *Service) Status(dispatcher.Event) (any, error) {
	if s.deps.Monitor == nil {
		return nil, fmt.Errorf("%w: no monitor", core.ErrInvalidArgument)
	}
	return s.deps.Monitor.StatusJSON()
}

// DeviceFix reports a device position to the manual provider. Args: position.
func (s *Service) DeviceFix(e dispatcher.Event) (any, error) {
	if err := argCount(e, 1); err != nil {
		return nil, err
	}
	p, err := argPosition(e, 0)
	if err != nil {
		return nil, err
	}
	s.deps.Device.Push(p)
	return p, nil
}

// DeviceError reports a device failure to the manual provider. Args: [reason].
func (s *Service) DeviceError(e dispatcher.Event) (any, error) {
	reason := "position unavailable"
	if len(e.Args) > 0 && e.Args[0] != "" {
		reason = e.Args[0]
	}
	s.deps.Device.PushError(core.NewLocationError(reason))
	return reason, nil
}
