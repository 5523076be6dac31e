package geo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/geo/s2"
	"github.com/myplaces/placemap/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// EarthRadiusMeters is the mean Earth radius used for great-circle distances.
const EarthRadiusMeters = 6371000.0

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = fmt.Errorf("%w: invalid coordinates provided", core.ErrInvalidArgument)

// PositionFromString parses a string in the format "lat,lng" into a validated core.Position.
// Surrounding whitespace around either component is ignored.
func PositionFromString(coords string) (core.Position, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) != 2 {
		return core.Position{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return core.Position{}, ErrInvalidCoordinates
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return core.Position{}, ErrInvalidCoordinates
	}
	p := core.Position{Lat: lat, Lng: lng}
	if err := p.Validate(); err != nil {
		return core.Position{}, err
	}
	return p, nil
}

// Project converts a WGS84 position (EPSG:4326) into a web mercator point (EPSG:3857).
func Project(p core.Position) (geom.Point, error) {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(p.Lng, p.Lat, 0)
	point, err := geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x, Y: y},
			Type: geom.DimXY,
		},
	)
	if err != nil {
		return geom.Point{}, fmt.Errorf("project %v: %w", p, err)
	}
	return point, nil
}

// Bounds returns the lng/lat envelope covering all positions.
// The envelope is empty when no positions are given.
func Bounds(positions []core.Position) (geom.Envelope, error) {
	xys := make([]geom.XY, len(positions))
	for i, p := range positions {
		xys[i] = geom.XY{X: p.Lng, Y: p.Lat}
	}
	return geom.NewEnvelope(xys)
}

// BoundsCorners returns the south-west and north-east corners of the positions' envelope.
// ok is false when there are no positions or one of them is not finite.
func BoundsCorners(positions []core.Position) (sw, ne core.Position, ok bool) {
	env, err := Bounds(positions)
	if err != nil {
		return core.Position{}, core.Position{}, false
	}
	minXY, maxXY, ok := env.MinMaxXYs()
	if !ok {
		return core.Position{}, core.Position{}, false
	}
	return core.Position{Lat: minXY.Y, Lng: minXY.X}, core.Position{Lat: maxXY.Y, Lng: maxXY.X}, true
}

// Distance returns the great-circle distance between two positions in meters.
func Distance(a, b core.Position) float64 {
	from := s2.LatLngFromDegrees(a.Lat, a.Lng)
	to := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return from.Distance(to).Radians() * EarthRadiusMeters
}
