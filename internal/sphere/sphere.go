// Package sphere embeds geographic coordinates on the unit sphere and tests
// containment in longitude/latitude boxes that may wrap the prime meridian.
package sphere

import (
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// DefaultSpanThreshold is the longitude span, in degrees, above which a blob's
// bounding box is treated as wrapping.
const DefaultSpanThreshold = 180.0

// Project maps (lat, lon) in degrees to the unit vector
// (cos lon cos lat, sin lon cos lat, sin lat).
func Project(lat, lon float64) s2.Point {
	return s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))
}

// ChordRadius converts an angular separation in degrees to the squared chord
// length 4·sin²(θ/2) between unit vectors. Comparisons against it are exact
// for great-circle separation at any angle.
func ChordRadius(deg float64) s1.ChordAngle {
	return s1.ChordAngleFromAngle(s1.Angle(deg) * s1.Degree)
}

// Separation returns the chord angle between two projected points.
func Separation(a, b s2.Point) s1.ChordAngle {
	return s2.ChordAngleBetweenPoints(a, b)
}

// Box is a blob's reported latitude/longitude extent in degrees.
type Box struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Wraps reports whether the box spans more than threshold degrees of
// longitude, meaning its real extent is [MaxLon, 360) ∪ [0, MinLon].
func (b Box) Wraps(threshold float64) bool {
	return b.MaxLon-b.MinLon > threshold
}

// Rect returns the region the box covers. Wrapping boxes get the inverted
// longitude interval from MaxLon eastward to MinLon.
func (b Box) Rect(threshold float64) s2.Rect {
	lat := r1.Interval{Lo: radians(b.MinLat), Hi: radians(b.MaxLat)}

	var lng s1.Interval
	switch {
	case b.MaxLon-b.MinLon >= 360:
		lng = s1.FullInterval()
	case b.Wraps(threshold):
		lng = s1.IntervalFromEndpoints(wrapLon(b.MaxLon), wrapLon(b.MinLon))
	default:
		lng = s1.IntervalFromEndpoints(wrapLon(b.MinLon), wrapLon(b.MaxLon))
	}
	return s2.Rect{Lat: lat, Lng: lng}
}

// Contains reports whether (lat, lon) in degrees lies inside rect. Longitudes
// in [0, 360) and [-180, 180] are both accepted.
func Contains(rect s2.Rect, lat, lon float64) bool {
	return rect.ContainsLatLng(s2.LatLngFromDegrees(lat, lon).Normalized())
}

func radians(deg float64) float64 {
	return (s1.Angle(deg) * s1.Degree).Radians()
}

// wrapLon matches the normalization LatLng.Normalized applies to points.
func wrapLon(deg float64) float64 {
	return math.Remainder(radians(deg), 2*math.Pi)
}
