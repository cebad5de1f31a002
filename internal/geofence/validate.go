package geofence

import (
	"errors"
	"fmt"
	"math"

	"geo-challenge/internal/model"
)

// Boundary validation errors.
var (
	ErrNoRings           = errors.New("boundary has no rings")
	ErrOpenRing          = errors.New("ring needs at least 3 distinct vertices")
	ErrInvalidCoordinate = errors.New("coordinate out of range")
	ErrSelfIntersecting  = errors.New("boundary edges intersect")
	ErrZeroArea          = errors.New("ring encloses no area")
	ErrHoleOutside       = errors.New("hole lies outside the outer ring")
)

// minRingAreaSqMeters is the smallest area a ring may enclose.
const minRingAreaSqMeters = 1.0

// Normalize returns a copy of p with closing vertices and consecutive
// duplicate vertices removed from every ring.
func Normalize(p model.Polygon) model.Polygon {
	out := model.Polygon{Rings: make([]model.Ring, 0, len(p.Rings))}
	for _, ring := range p.Rings {
		r := make(model.Ring, 0, len(ring))
		for _, c := range ring {
			if len(r) > 0 && r[len(r)-1] == c {
				continue
			}
			r = append(r, c)
		}
		for len(r) > 1 && r[len(r)-1] == r[0] {
			r = r[:len(r)-1]
		}
		out.Rings = append(out.Rings, r)
	}
	return out
}

// Validate checks that p is a well-formed, simple polygon with nonzero area.
// It never repairs the input. p should already be normalized.
func Validate(p model.Polygon) error {
	if len(p.Rings) == 0 {
		return ErrNoRings
	}

	for i, ring := range p.Rings {
		if len(ring) < 3 {
			return fmt.Errorf("ring %d: %w", i, ErrOpenRing)
		}
		for _, c := range ring {
			if !ValidCoordinate(c) {
				return fmt.Errorf("ring %d: %w: (%v, %v)", i, ErrInvalidCoordinate, c.Lat, c.Lng)
			}
		}
		if ringArea(ring) < minRingAreaSqMeters {
			return fmt.Errorf("ring %d: %w", i, ErrZeroArea)
		}
	}

	if err := checkIntersections(p); err != nil {
		return err
	}

	for i, hole := range p.Rings[1:] {
		if !containsInRing(p.Rings[0], hole[0]) {
			return fmt.Errorf("ring %d: %w", i+1, ErrHoleOutside)
		}
	}
	return nil
}

// ValidCoordinate reports whether c is a finite WGS84 coordinate.
func ValidCoordinate(c model.Coordinate) bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// ringArea is the shoelace area of the ring projected around its first vertex.
func ringArea(ring model.Ring) float64 {
	origin := ring[0]
	var sum float64
	n := len(ring)
	for i := 0; i < n; i++ {
		x1, y1 := project(origin, ring[i])
		x2, y2 := project(origin, ring[(i+1)%n])
		sum += x1*y2 - x2*y1
	}
	return math.Abs(sum) / 2
}

// project maps c onto a plane tangent at origin, in meters.
func project(origin, c model.Coordinate) (x, y float64) {
	x = toRadians(c.Lng-origin.Lng) * math.Cos(toRadians(origin.Lat)) * EarthRadiusMeters
	y = toRadians(c.Lat-origin.Lat) * EarthRadiusMeters
	return x, y
}

type edge struct {
	ring, index int
	a, b        model.Coordinate
}

// checkIntersections compares every pair of edges across all rings. Edges
// that share a vertex within a ring may only meet at that vertex.
func checkIntersections(p model.Polygon) error {
	var edges []edge
	for r, ring := range p.Rings {
		n := len(ring)
		for i := 0; i < n; i++ {
			edges = append(edges, edge{ring: r, index: i, a: ring[i], b: ring[(i+1)%n]})
		}
	}

	for i := 0; i < len(edges); i++ {
		for j := i + 1; j < len(edges); j++ {
			e1, e2 := edges[i], edges[j]
			if e1.ring == e2.ring && adjacent(e1.index, e2.index, len(p.Rings[e1.ring])) {
				if foldsBack(e1, e2) {
					return fmt.Errorf("ring %d edges %d and %d: %w", e1.ring, e1.index, e2.index, ErrSelfIntersecting)
				}
				continue
			}
			if segmentsIntersect(e1.a, e1.b, e2.a, e2.b) {
				return fmt.Errorf("ring %d edge %d and ring %d edge %d: %w",
					e1.ring, e1.index, e2.ring, e2.index, ErrSelfIntersecting)
			}
		}
	}
	return nil
}

func adjacent(i, j, n int) bool {
	if i > j {
		i, j = j, i
	}
	return j == i+1 || (i == 0 && j == n-1)
}

// foldsBack reports whether two adjacent edges overlap along a line, which
// happens when the shared vertex forms a zero-width spike.
func foldsBack(e1, e2 edge) bool {
	var shared, p, q model.Coordinate
	switch {
	case e1.b == e2.a:
		shared, p, q = e1.b, e1.a, e2.b
	case e2.b == e1.a:
		shared, p, q = e1.a, e1.b, e2.a
	default:
		return false
	}
	if orientation(p, shared, q) != 0 {
		return false
	}
	dot := (p.Lng-shared.Lng)*(q.Lng-shared.Lng) + (p.Lat-shared.Lat)*(q.Lat-shared.Lat)
	return dot > 0
}

// orientation returns the sign of the cross product (b-a) x (c-a).
func orientation(a, b, c model.Coordinate) int {
	v := (b.Lng-a.Lng)*(c.Lat-a.Lat) - (b.Lat-a.Lat)*(c.Lng-a.Lng)
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func onSegment(a, b, c model.Coordinate) bool {
	return c.Lng >= math.Min(a.Lng, b.Lng) && c.Lng <= math.Max(a.Lng, b.Lng) &&
		c.Lat >= math.Min(a.Lat, b.Lat) && c.Lat <= math.Max(a.Lat, b.Lat)
}

func segmentsIntersect(p1, p2, q1, q2 model.Coordinate) bool {
	o1 := orientation(p1, p2, q1)
	o2 := orientation(p1, p2, q2)
	o3 := orientation(q1, q2, p1)
	o4 := orientation(q1, q2, p2)

	if o1 != o2 && o3 != o4 {
		return true
	}
	switch {
	case o1 == 0 && onSegment(p1, p2, q1):
		return true
	case o2 == 0 && onSegment(p1, p2, q2):
		return true
	case o3 == 0 && onSegment(q1, q2, p1):
		return true
	case o4 == 0 && onSegment(q1, q2, p2):
		return true
	}
	return false
}
