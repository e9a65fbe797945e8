package maps

import (
	"math"
	"sort"
)

const earthRadiusMeters = 6371000.0

// DistanceMeters returns the great-circle distance between two points.
func DistanceMeters(a, b LatLng) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)
	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// WithinRadius keeps the places no farther than radiusMeters from anchor,
// nearest first. Ties keep the API's relevance order.
func WithinRadius(places []PlaceSummary, anchor LatLng, radiusMeters uint) []PlaceSummary {
	type ranked struct {
		place PlaceSummary
		dist  float64
	}
	kept := make([]ranked, 0, len(places))
	for _, p := range places {
		d := DistanceMeters(anchor, p.Location)
		if radiusMeters > 0 && d > float64(radiusMeters) {
			continue
		}
		kept = append(kept, ranked{place: p, dist: d})
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].dist < kept[j].dist })

	out := make([]PlaceSummary, len(kept))
	for i, k := range kept {
		out[i] = k.place
	}
	return out
}
