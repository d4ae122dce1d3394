// README: Common geographic value objects used across modules.
package types

// ID identifies riders, trips, and saved places.
type ID string

// GeoPoint is an addressed coordinate pair. Points are replaced wholesale,
// never mutated field by field, so the address can not drift away from the
// coordinates it was resolved for.
type GeoPoint struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// Valid reports whether the coordinates are inside the WGS84 domain.
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// HasAddress reports whether the point carries a human-readable address.
// A point without one is still being edited and is not a valid trip leg.
func (p GeoPoint) HasAddress() bool {
	return p.Address != ""
}

// RouteSummary is the aggregate distance and duration for one leg,
// independent of turn-by-turn geometry.
type RouteSummary struct {
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
}
