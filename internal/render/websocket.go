package render

import (
	"fmt"
	"log/slog"

	"github.com/myplaces/placemap/pkg/core"
	"github.com/myplaces/placemap/pkg/streaming"
)

// WebsocketConfig holds the map frontend connection settings.
type WebsocketConfig struct {
	URL    string
	Secret string

	// MapInit is sent on connect and on every reconnect.
	MapInit streaming.MapInitPayload
	// Snapshot calls view with the current markers in index order while no
	// marker mutation can run. It must hold the same lock the store holds when
	// it calls the renderer, so that every queued update is either covered by
	// the snapshot or issued after it. Optional.
	Snapshot func(view func(markers []core.Marker))
	// OnMessage receives every inbound frontend message except acks.
	// It runs on the read goroutine. Optional.
	OnMessage func(streaming.Envelope)

	Logger *slog.Logger
}

// WebsocketRenderer streams visual updates to a browser map frontend.
// Updates are fire-and-forget so they never block the marker store.
type WebsocketRenderer struct {
	conn *connection
	cfg  WebsocketConfig
}

// NewWebsocket creates a renderer for the frontend at cfg.URL. Call Init to connect.
func NewWebsocket(cfg WebsocketConfig) *WebsocketRenderer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	conn := newConnection(logger.With("component", "websocket"))
	r := &WebsocketRenderer{conn: conn, cfg: cfg}
	conn.replay = r.replay
	conn.onMessage = cfg.OnMessage
	return r
}

// Init connects, sends map_init and waits for the frontend to acknowledge it,
// then sends a snapshot of the current markers. Updates queued before the
// snapshot are dropped since the snapshot replaces the frontend's markers.
func (r *WebsocketRenderer) Init() error {
	r.conn.discardQueued()
	if err := r.conn.dial(r.cfg.URL, r.cfg.Secret); err != nil {
		return err
	}

	data, err := streaming.Marshal(streaming.TypeMapInit, r.cfg.MapInit)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", streaming.TypeMapInit, err)
	}
	if err := r.conn.sendAndWait(data, streaming.TypeMapInit, ackTimeout); err != nil {
		return err
	}

	r.withSnapshot(func(snap []byte) {
		r.conn.discardQueued()
		r.conn.send(snap)
	})
	return nil
}

// Close disconnects from the frontend.
func (r *WebsocketRenderer) Close() error {
	return r.conn.close()
}

// withSnapshot marshals the current markers and hands the message to fn while
// the store is locked.
func (r *WebsocketRenderer) withSnapshot(fn func(snap []byte)) {
	if r.cfg.Snapshot == nil {
		return
	}
	r.cfg.Snapshot(func(markers []core.Marker) {
		data, err := streaming.Marshal(streaming.TypeSnapshot, streaming.SnapshotPayload{Markers: markers})
		if err != nil {
			r.conn.logger.Error("Failed to marshal snapshot", "error", err)
			return
		}
		fn(data)
	})
}

// replay rebuilds the frontend state after a reconnect. Updates queued while
// disconnected are superseded by the snapshot and dropped.
func (r *WebsocketRenderer) replay() [][]byte {
	var msgs [][]byte
	if data, err := streaming.Marshal(streaming.TypeMapInit, r.cfg.MapInit); err == nil {
		msgs = append(msgs, data)
	}
	r.withSnapshot(func(snap []byte) {
		if n := r.conn.discardQueued(); n > 0 {
			r.conn.logger.Debug("Dropped updates covered by snapshot", "count", n)
		}
		msgs = append(msgs, snap)
	})
	return msgs
}

func (r *WebsocketRenderer) send(msgType string, payload any) {
	data, err := streaming.Marshal(msgType, payload)
	if err != nil {
		r.conn.logger.Error("Failed to marshal message", "type", msgType, "error", err)
		return
	}
	r.conn.send(data)
}

func (r *WebsocketRenderer) PlaceVisual(index int, m core.Marker) {
	r.send(streaming.TypePlaceMarker, streaming.MarkerPayload{Index: index, Marker: m})
}

func (r *WebsocketRenderer) RemoveVisual(index int, id core.MarkerID) {
	r.send(streaming.TypeRemoveMarker, streaming.RemoveMarkerPayload{Index: index, ID: id})
}

func (r *WebsocketRenderer) MoveVisual(index int, m core.Marker) {
	r.send(streaming.TypeMoveMarker, streaming.MarkerPayload{Index: index, Marker: m})
}

func (r *WebsocketRenderer) PanTo(p core.Position) {
	r.send(streaming.TypePanTo, streaming.PanToPayload{Position: p})
}

// LocationError tells the frontend that a locate or tracking request failed.
// It is not part of Renderer; the marker store never calls it.
func (r *WebsocketRenderer) LocationError(err error) {
	r.send(streaming.TypeLocationError, streaming.LocationErrorPayload{
		Reason:  core.LocationFailureReason(err),
		Message: err.Error(),
	})
}
