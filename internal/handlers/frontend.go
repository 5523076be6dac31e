package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/myplaces/placemap/internal/dispatcher"
	"github.com/myplaces/placemap/pkg/core"
	"github.com/myplaces/placemap/pkg/streaming"
)

// EventFromEnvelope converts a frontend message into the equivalent host
// command, so map interactions go through the same handlers as stdin.
func EventFromEnvelope(env streaming.Envelope) (dispatcher.Event, error) {
	e := dispatcher.Event{Source: dispatcher.SourceWebsocket, Timestamp: time.Now()}

	switch env.Type {
	case streaming.TypeMarkerClicked, streaming.TypeMarkerDragEnd:
		var p streaming.MarkerEventPayload
		if err := decodePayload(env, &p); err != nil {
			return e, err
		}
		e.Args = []string{strconv.Itoa(p.Index)}
		if env.Type == streaming.TypeMarkerClicked {
			e.Command = CmdMarkerClicked
			return e, nil
		}
		if p.Position == nil {
			return e, fmt.Errorf("%w: %s without position", core.ErrInvalidArgument, env.Type)
		}
		e.Command = CmdMarkerDragEnd
		e.Args = append(e.Args, p.Position.String())

	case streaming.TypeMapClicked, streaming.TypeDeviceFix:
		var p streaming.PositionPayload
		if err := decodePayload(env, &p); err != nil {
			return e, err
		}
		e.Command = CmdMapClicked
		if env.Type == streaming.TypeDeviceFix {
			e.Command = CmdDeviceFix
		}
		e.Args = []string{p.Position.String()}

	case streaming.TypeDeviceError:
		var p streaming.DeviceErrorPayload
		if len(env.Payload) > 0 {
			if err := decodePayload(env, &p); err != nil {
				return e, err
			}
		}
		e.Command = CmdDeviceError
		e.Args = []string{p.Reason}

	case streaming.TypeLocate:
		e.Command = CmdLocate
	case streaming.TypeTrackStart:
		e.Command = CmdTrackStart
	case streaming.TypeTrackStop:
		e.Command = CmdTrackStop

	default:
		return e, fmt.Errorf("%w: %q", dispatcher.ErrUnknownCommand, env.Type)
	}
	return e, nil
}

func decodePayload(env streaming.Envelope, v any) error {
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", core.ErrInvalidArgument, env.Type, err)
	}
	return nil
}

// Forward returns a callback that dispatches frontend messages to d.
// Failures are logged; the frontend gets no reply.
func Forward(d *dispatcher.Dispatcher, logger *slog.Logger) func(streaming.Envelope) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(env streaming.Envelope) {
		e, err := EventFromEnvelope(env)
		if err != nil {
			logger.Warn("Ignoring frontend message", "type", env.Type, "error", err)
			return
		}
		if _, err := d.Dispatch(e); err != nil {
			logger.Warn("Frontend command failed", "command", e.Command, "error", err)
		}
	}
}
