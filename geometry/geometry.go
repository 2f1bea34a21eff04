// Package geometry validates the GeoJSON-like geometry objects carried
// by platform and observation locations. Only the geometry types the
// catalog actually stores are accepted; polygons must have closed,
// counter-clockwise outer rings per RFC 7946.
package geometry

import (
	"encoding/json"
	"fmt"
)

// Geometry is a GeoJSON geometry object. Coordinates stay raw until
// validation so unknown types are rejected before any parse.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Supported geometry types
const (
	TypePoint      = "Point"
	TypeLineString = "LineString"
	TypePolygon    = "Polygon"
)

// Validate checks the geometry's type, coordinate ranges and, for
// polygons, ring closure and winding order. A nil-coordinate or
// unknown-type geometry is a validation failure, never a panic.
func Validate(g Geometry) error {
	switch g.Type {
	case TypePoint:
		var pos []float64
		if err := json.Unmarshal(g.Coordinates, &pos); err != nil {
			return fmt.Errorf("point coordinates: %w", err)
		}
		return validatePosition(pos)

	case TypeLineString:
		var line [][]float64
		if err := json.Unmarshal(g.Coordinates, &line); err != nil {
			return fmt.Errorf("linestring coordinates: %w", err)
		}
		if len(line) < 2 {
			return fmt.Errorf("linestring needs at least 2 positions, got %d", len(line))
		}
		for i, pos := range line {
			if err := validatePosition(pos); err != nil {
				return fmt.Errorf("linestring position %d: %w", i, err)
			}
		}
		return nil

	case TypePolygon:
		var rings [][][]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return fmt.Errorf("polygon coordinates: %w", err)
		}
		if len(rings) == 0 {
			return fmt.Errorf("polygon needs at least one ring")
		}
		for i, ring := range rings {
			if err := validateRing(ring); err != nil {
				return fmt.Errorf("polygon ring %d: %w", i, err)
			}
			// Outer ring counter-clockwise, holes clockwise
			ccw := signedArea(ring) > 0
			if i == 0 && !ccw {
				return fmt.Errorf("polygon ring %d: outer ring must be counter-clockwise", i)
			}
			if i > 0 && ccw {
				return fmt.Errorf("polygon ring %d: interior ring must be clockwise", i)
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown geometry type %q", g.Type)
	}
}

func validatePosition(pos []float64) error {
	if len(pos) < 2 || len(pos) > 3 {
		return fmt.Errorf("position needs 2 or 3 elements, got %d", len(pos))
	}
	lon, lat := pos[0], pos[1]
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", lon)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	return nil
}

func validateRing(ring [][]float64) error {
	if len(ring) < 4 {
		return fmt.Errorf("ring needs at least 4 positions, got %d", len(ring))
	}
	for i, pos := range ring {
		if err := validatePosition(pos); err != nil {
			return fmt.Errorf("position %d: %w", i, err)
		}
	}
	first, last := ring[0], ring[len(ring)-1]
	if first[0] != last[0] || first[1] != last[1] {
		return fmt.Errorf("ring is not closed")
	}
	if selfIntersects(ring) {
		return fmt.Errorf("ring is self-intersecting")
	}
	return nil
}

// signedArea computes twice the signed area via the shoelace formula.
// Positive means counter-clockwise.
func signedArea(ring [][]float64) float64 {
	var area float64
	for i := 0; i < len(ring)-1; i++ {
		area += ring[i][0]*ring[i+1][1] - ring[i+1][0]*ring[i][1]
	}
	return area
}

// selfIntersects checks every non-adjacent segment pair. Rings here are
// small (platform footprints), so the quadratic check is fine.
func selfIntersects(ring [][]float64) bool {
	n := len(ring) - 1 // last position repeats the first
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			// Skip adjacent segments, including the closing wrap
			if i == 0 && j == n-1 {
				continue
			}
			if segmentsCross(ring[i], ring[i+1], ring[j], ring[j+1]) {
				return true
			}
		}
	}
	return false
}

func segmentsCross(a, b, c, d []float64) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func cross(o, a, p []float64) float64 {
	return (a[0]-o[0])*(p[1]-o[1]) - (a[1]-o[1])*(p[0]-o[0])
}
