// Package geo converts arena-plane coordinates to and from simple feature
// geometries. The arena is a flat plane, so no projection is involved.
package geo

import (
	"errors"
	"strconv"
	"strings"

	"github.com/OCAP2/arena/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Point converts an arena position to a 2D point.
func Point(v core.Vec2) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: v.X, Y: v.Y},
		Type: geom.DimXY,
	})
}

// Vec converts a point back to an arena position. ok is false for an empty point.
func Vec(p geom.Point) (v core.Vec2, ok bool) {
	c, ok := p.Coordinates()
	if !ok {
		return core.Vec2{}, false
	}
	return core.Vec2{X: c.X, Y: c.Y}, true
}

// ParseVec parses "x,y" into an arena position.
func ParseVec(s string) (core.Vec2, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return core.Vec2{}, ErrInvalidCoordinates
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return core.Vec2{}, ErrInvalidCoordinates
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return core.Vec2{}, ErrInvalidCoordinates
	}
	return core.Vec2{X: x, Y: y}, nil
}
