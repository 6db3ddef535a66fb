package geo

import (
	"encoding/json"
	"fmt"

	"github.com/OCAP2/arena/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ShotPath is the straight line a projectile travels from origin to target.
func ShotPath(origin, target core.Vec2) geom.LineString {
	seq := geom.NewSequence([]float64{origin.X, origin.Y, target.X, target.Y}, geom.DimXY)
	return geom.NewLineString(seq)
}

// PathEnds parses a WKT line string and returns its first and last vertex.
func PathEnds(wkt string) (start, end core.Vec2, err error) {
	g, err := geom.UnmarshalWKT(wkt)
	if err != nil {
		return start, end, fmt.Errorf("failed to parse path WKT: %w", err)
	}
	ls, ok := g.AsLineString()
	if !ok {
		return start, end, fmt.Errorf("path is a %s, not a line string", g.Type())
	}
	seq := ls.Coordinates()
	if seq.Length() < 2 {
		return start, end, fmt.Errorf("path must have at least 2 points, got %d", seq.Length())
	}
	first, last := seq.GetXY(0), seq.GetXY(seq.Length()-1)
	return core.Vec2{X: first.X, Y: first.Y}, core.Vec2{X: last.X, Y: last.Y}, nil
}

// ParseWaypoints parses a JSON array of coordinates into arena positions.
// Input format: "[[x1,y1],[x2,y2],...]"
func ParseWaypoints(input string) ([]core.Vec2, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("failed to parse waypoint JSON: %w", err)
	}

	if len(coords) < 2 {
		return nil, fmt.Errorf("route must have at least 2 points, got %d", len(coords))
	}

	points := make([]core.Vec2, len(coords))
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		points[i] = core.Vec2{X: coord[0], Y: coord[1]}
	}

	return points, nil
}
