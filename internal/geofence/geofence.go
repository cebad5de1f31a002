// Package geofence evaluates points against challenge boundaries.
//
// Ring edges are great-circle arcs, for containment and for distance alike,
// so a point reported outside is always a positive distance from an edge.
// Everything here is pure: no I/O, no shared state. An Evaluator may be used
// from any number of goroutines.
package geofence

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"geo-challenge/internal/model"
)

// EarthRadiusMeters is the mean Earth radius used for all distance math.
const EarthRadiusMeters = 6371008.8

// DefaultToleranceMeters is how close to an edge a point may be and still
// count as inside.
const DefaultToleranceMeters = 3.0

// Result is the outcome of evaluating a point against a boundary.
type Result struct {
	Inside bool
	// DistanceMeters is 0 when Inside, otherwise the distance from the point
	// to the nearest boundary edge.
	DistanceMeters float64
	// BearingDegrees points from the evaluated point towards the nearest
	// boundary point, clockwise from north. Meaningless when Inside.
	BearingDegrees float64
}

// Evaluator runs containment checks with a fixed edge tolerance.
type Evaluator struct {
	toleranceMeters float64
}

// NewEvaluator creates an Evaluator. A non-positive tolerance falls back to
// DefaultToleranceMeters.
func NewEvaluator(toleranceMeters float64) *Evaluator {
	if toleranceMeters <= 0 {
		toleranceMeters = DefaultToleranceMeters
	}
	return &Evaluator{toleranceMeters: toleranceMeters}
}

// Tolerance returns the edge tolerance in meters.
func (e *Evaluator) Tolerance() float64 {
	return e.toleranceMeters
}

// Evaluate reports whether pt lies within boundary and how far outside it is.
// The boundary is expected to have passed Validate.
func (e *Evaluator) Evaluate(boundary model.Polygon, pt model.Coordinate) Result {
	if len(boundary.Rings) == 0 {
		return Result{DistanceMeters: math.Inf(1)}
	}

	inside := containsInRing(boundary.Rings[0], pt)
	for _, hole := range boundary.Rings[1:] {
		if inside && containsInRing(hole, pt) {
			inside = false
		}
	}
	if inside {
		return Result{Inside: true}
	}

	dist, bearing := nearestEdge(boundary, pt)
	if dist <= e.toleranceMeters {
		return Result{Inside: true}
	}
	return Result{DistanceMeters: dist, BearingDegrees: bearing}
}

// containsInRing tests pt against the spherical loop through ring's
// vertices. Rings may wind either way; the loop is taken as the smaller of
// the two regions the ring bounds.
func containsInRing(ring model.Ring, pt model.Coordinate) bool {
	return ringLoop(ring).ContainsPoint(toPoint(pt))
}

func ringLoop(ring model.Ring) *s2.Loop {
	pts := make([]s2.Point, len(ring))
	for i, c := range ring {
		pts[i] = toPoint(c)
	}
	loop := s2.LoopFromPoints(pts)
	loop.Normalize()
	return loop
}

// nearestEdge returns the great-circle distance in meters from pt to the
// closest edge of any ring, and the initial bearing towards the closest
// point on that edge. Edges are taken as great-circle arcs.
func nearestEdge(boundary model.Polygon, pt model.Coordinate) (float64, float64) {
	x := toPoint(pt)
	best := s1.InfAngle()
	var closest s2.Point
	for _, ring := range boundary.Rings {
		n := len(ring)
		for i := 0; i < n; i++ {
			a, b := toPoint(ring[i]), toPoint(ring[(i+1)%n])
			var d s1.Angle
			if a == b {
				d = x.Distance(a)
			} else {
				d = s2.DistanceFromSegment(x, a, b)
			}
			if d < best {
				best = d
				if a == b {
					closest = a
				} else {
					closest = s2.Project(x, a, b)
				}
			}
		}
	}
	return best.Radians() * EarthRadiusMeters, initialBearing(pt, s2.LatLngFromPoint(closest))
}

func toPoint(c model.Coordinate) s2.Point {
	return s2.PointFromLatLng(s2.LatLngFromDegrees(c.Lat, c.Lng))
}

// initialBearing is the forward azimuth from c to ll in degrees clockwise
// from north.
func initialBearing(c model.Coordinate, ll s2.LatLng) float64 {
	lat1, lat2 := toRadians(c.Lat), ll.Lat.Radians()
	dLng := ll.Lng.Radians() - toRadians(c.Lng)
	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	deg := math.Atan2(y, x) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// CompassPoint names the 8-wind direction for a bearing in degrees.
func CompassPoint(bearing float64) string {
	names := [...]string{"north", "north-east", "east", "south-east", "south", "south-west", "west", "north-west"}
	idx := int(math.Floor(math.Mod(bearing+22.5, 360) / 45))
	if idx < 0 || idx >= len(names) {
		idx = 0
	}
	return names[idx]
}
