// pkg/core/position.go
package core

import (
	"fmt"
	"strconv"
)

// Position is a WGS84 coordinate in decimal degrees.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate reports ErrInvalidArgument when the position is outside the valid range.
func (p Position) Validate() error {
	if p.Lat != p.Lat || p.Lng != p.Lng {
		return fmt.Errorf("%w: position %s is NaN", ErrInvalidArgument, p)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidArgument, p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidArgument, p.Lng)
	}
	return nil
}

// String renders the position as "lat,lng" using the shortest exact float form.
func (p Position) String() string {
	return formatCoord(p.Lat) + "," + formatCoord(p.Lng)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
