// Package streaming defines the JSON messages exchanged with the map frontend
// over its websocket.
package streaming

import (
	"encoding/json"

	"github.com/myplaces/placemap/pkg/core"
)

// Outbound message types, sent to the frontend.
const (
	TypeMapInit       = "map_init"
	TypeSnapshot      = "snapshot"
	TypePlaceMarker   = "place_marker"
	TypeRemoveMarker  = "remove_marker"
	TypeMoveMarker    = "move_marker"
	TypePanTo         = "pan_to"
	TypeLocationError = "location_error"
)

// Inbound message types, sent by the frontend.
const (
	TypeMarkerClicked = "marker_clicked"
	TypeMarkerDragEnd = "marker_dragend"
	TypeMapClicked    = "map_clicked"
	TypeLocate        = "locate"
	TypeTrackStart    = "track_start"
	TypeTrackStop     = "track_stop"
	TypeDeviceFix     = "device_fix"
	TypeDeviceError   = "device_error"
	TypeAck           = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage is the frontend's acknowledgement of a message that needs one.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// MapInitPayload carries the initial view of the map.
type MapInitPayload struct {
	Center      core.Position `json:"center"`
	Zoom        int           `json:"zoom"`
	TileURL     string        `json:"tileUrl"`
	Attribution string        `json:"attribution,omitempty"`
}

// SnapshotPayload carries every marker in index order and replaces whatever
// markers the frontend shows. It is sent after map_init so a reconnecting
// frontend can redraw.
type SnapshotPayload struct {
	Markers []core.Marker `json:"markers"`
}

// MarkerPayload is used by place_marker and move_marker.
type MarkerPayload struct {
	Index  int         `json:"index"`
	Marker core.Marker `json:"marker"`
}

// RemoveMarkerPayload identifies the marker to remove.
type RemoveMarkerPayload struct {
	Index int           `json:"index"`
	ID    core.MarkerID `json:"id"`
}

// PanToPayload centers the view on a position.
type PanToPayload struct {
	Position core.Position `json:"position"`
}

// LocationErrorPayload tells the frontend a locate or tracking request failed.
// Reason is one of "unavailable", "closed", "cancelled", "sensor" or "error".
type LocationErrorPayload struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// MarkerEventPayload is sent on marker_clicked and marker_dragend.
// Position is the drop position for marker_dragend.
type MarkerEventPayload struct {
	Index    int            `json:"index"`
	Position *core.Position `json:"position,omitempty"`
}

// PositionPayload is sent on map_clicked and device_fix.
type PositionPayload struct {
	Position core.Position `json:"position"`
}

// DeviceErrorPayload is sent on device_error.
type DeviceErrorPayload struct {
	Reason string `json:"reason"`
}

// Marshal builds a JSON-encoded Envelope from a message type and payload.
// A nil payload is omitted.
func Marshal(msgType string, payload any) ([]byte, error) {
	env := Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}
