// Package geo computes great-circle distances used for proximity gating.
package geo

import (
	"fmt"
	"math"
	"sort"
)

// EarthRadius is the mean Earth radius in meters.
const EarthRadius = 6371000.0

// NearbyRadius is the distance under which a waypoint counts as reached.
const NearbyRadius = 50.0

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Distance returns the haversine distance in meters between two coordinates.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// rounding can push a slightly above 1 for antipodal points
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadius * c
}

// Between is Distance over two points.
func Between(a, b Point) float64 {
	return Distance(a.Lat, a.Lng, b.Lat, b.Lng)
}

// IsNearby reports whether a distance is inside the default radius.
func IsNearby(meters float64) bool {
	return meters <= NearbyRadius
}

// FormatDistance renders meters below 1km and kilometers with one decimal above.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%d m", int(math.Round(meters)))
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

// Waypoint is anything with an id and a location.
type Waypoint struct {
	ID       int
	Location Point
}

// Proximity is the distance from a position to one waypoint.
type Proximity struct {
	ID       int     `json:"id"`
	Meters   float64 `json:"meters"`
	Label    string  `json:"label"`
	IsNearby bool    `json:"is_nearby"`
}

// Rank orders waypoints by distance from pos, closest first.
func Rank(pos Point, waypoints []Waypoint, radius float64) []Proximity {
	out := make([]Proximity, 0, len(waypoints))
	for _, w := range waypoints {
		d := Between(pos, w.Location)
		out = append(out, Proximity{
			ID:       w.ID,
			Meters:   d,
			Label:    FormatDistance(d),
			IsNearby: d <= radius,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Meters < out[j].Meters })
	return out
}
