// pkg/core/marker.go
package core

import "time"

// MarkerID is the stable identity of a marker. It never changes while the
// marker exists and is never reused, unlike the marker's positional index.
type MarkerID uint64

// Marker is a point of interest on the map
type Marker struct {
	ID        MarkerID `json:"id"`
	Position  Position `json:"position"`
	Draggable bool     `json:"draggable"`
	Label     string   `json:"label"`
}

// LabelFor builds the popup label shown for a marker at p.
func LabelFor(p Position) string {
	return formatCoord(p.Lat) + ",  " + formatCoord(p.Lng)
}

// Fix is a device location reading applied to the map by the tracker.
type Fix struct {
	Time     time.Time `json:"time"`
	Position Position  `json:"position"`
	MarkerID MarkerID  `json:"markerId"`
	// Moved is the great-circle distance in meters from the previous fix, 0 for the first.
	Moved float64 `json:"moved"`
}
