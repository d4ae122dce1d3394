// README: Location resolver: free-text search, reverse geocoding, device position.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"googlemaps.github.io/maps"

	"triply/internal/types"
)

// ErrLocationUnavailable is returned when the device position can not be
// acquired within the configured timeout. Retrying is the only recovery.
var ErrLocationUnavailable = errors.New("location unavailable")

// UnknownAddress is the fail-soft value for reverse geocoding.
const UnknownAddress = "unknown location"

// maxSearchResults caps how many ranked candidates a search returns.
const maxSearchResults = 5

// minQueryLength is the shortest free-text query worth a transport call.
const minQueryLength = 3

// geoAPI is the slice of the Google Maps client the resolver consumes.
// *maps.Client satisfies it.
type geoAPI interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
	ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// PositionSource yields the device's current coordinates. The platform
// position provider is an external collaborator; only fresh fixes are
// acceptable, so implementations must not serve cached positions.
type PositionSource interface {
	Position(ctx context.Context) (lat, lng float64, err error)
}

// Resolver turns free-text queries and raw coordinates into addressed
// geographic points. Search and reverse geocoding are advisory and fail soft;
// only Current surfaces a hard error.
type Resolver struct {
	api     geoAPI
	source  PositionSource
	timeout time.Duration
	log     *logrus.Logger
}

func NewResolver(client *maps.Client, source PositionSource, timeout time.Duration, log *logrus.Logger) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Resolver{api: client, source: source, timeout: timeout, log: log}
}

// Current acquires the device position, bounded by the resolver timeout, and
// reverse geocodes it so the returned point carries an address. Fails with
// ErrLocationUnavailable when the source denies or times out.
func (r *Resolver) Current(ctx context.Context) (types.GeoPoint, error) {
	if r.source == nil {
		return types.GeoPoint{}, ErrLocationUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	lat, lng, err := r.source.Position(ctx)
	if err != nil {
		return types.GeoPoint{}, fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	}
	return types.GeoPoint{Lat: lat, Lng: lng, Address: r.ReverseGeocode(ctx, lat, lng)}, nil
}

// Search returns at most five ranked candidates for a free-text query.
// Queries shorter than three characters and transport failures both yield an
// empty result without error: search is advisory, not load-bearing.
func (r *Resolver) Search(ctx context.Context, query string) []types.GeoPoint {
	if len([]rune(query)) < minQueryLength {
		return nil
	}
	results, err := r.api.Geocode(ctx, &maps.GeocodingRequest{Address: query})
	if err != nil {
		r.log.WithError(err).WithField("query", query).Debug("location search failed")
		return nil
	}
	points := make([]types.GeoPoint, 0, maxSearchResults)
	for _, res := range results {
		points = append(points, types.GeoPoint{
			Lat:     res.Geometry.Location.Lat,
			Lng:     res.Geometry.Location.Lng,
			Address: res.FormattedAddress,
		})
		if len(points) == maxSearchResults {
			break
		}
	}
	return points
}

// ReverseGeocode returns a human-readable address for the coordinates, or
// UnknownAddress when the geocoder fails or has no answer. It never errors.
func (r *Resolver) ReverseGeocode(ctx context.Context, lat, lng float64) string {
	results, err := r.api.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: lat, Lng: lng},
	})
	if err != nil {
		r.log.WithError(err).Debug("reverse geocode failed")
		return UnknownAddress
	}
	if len(results) == 0 || results[0].FormattedAddress == "" {
		return UnknownAddress
	}
	return results[0].FormattedAddress
}
