package geospatial

import (
	"math"

	"github.com/nysage/atlas/internal/models"
)

// EarthRadiusMeters is the mean Earth radius used for great-circle distance.
const EarthRadiusMeters = 6371000.0

// PointInRing reports whether pt lies inside ring using the standard
// even-odd ray-casting test. A DistrictMap's first ring is its exterior;
// callers that need hole-awareness should test the exterior and subtract
// matches against interior rings themselves — the shapefile store's district
// polygons in this service are simple (no donut counties), so a single-ring
// test is sufficient for §4.3's point-in-polygon operations.
func PointInRing(pt models.LatLon, ring models.Ring) bool {
	if len(ring) < 3 {
		return false
	}

	inside := false
	n := len(ring)
	j := n - 1
	for i := 0; i < n; i++ {
		pi, pj := ring[i], ring[j]
		if (pi.Lat > pt.Lat) != (pj.Lat > pt.Lat) {
			slope := (pt.Lat - pi.Lat) / (pj.Lat - pi.Lat)
			xIntersect := pi.Lon + slope*(pj.Lon-pi.Lon)
			if pt.Lon < xIntersect {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// PointInMap reports whether pt lies within any polygon (ring) of m,
// treating every ring as a standalone simple polygon per PointInRing.
func PointInMap(pt models.LatLon, m models.DistrictMap) bool {
	for _, ring := range m.Polygons {
		if PointInRing(pt, ring) {
			return true
		}
	}
	return false
}

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(a, b models.LatLon) float64 {
	lat1, lat2 := degToRad(a.Lat), degToRad(b.Lat)
	dLat := degToRad(b.Lat - a.Lat)
	dLon := degToRad(b.Lon - a.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// ClosestBoundaryDistance returns the shortest great-circle distance from pt
// to any vertex-to-vertex segment of m's boundary, approximated by the
// minimum distance to each ring vertex — sufficient for the §4.3 proximity
// metric, which only needs a monotonic "how close to the edge" signal, not
// exact point-to-segment geometry.
func ClosestBoundaryDistance(pt models.LatLon, m models.DistrictMap) float64 {
	minDist := math.Inf(1)
	for _, ring := range m.Polygons {
		for _, v := range ring {
			d := HaversineMeters(pt, v)
			if d < minDist {
				minDist = d
			}
		}
	}
	return minDist
}

func degToRad(d float64) float64 {
	return d * math.Pi / 180
}
