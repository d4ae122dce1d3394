// README: Route provider: leg distance/duration via Google Directions.
package geocode

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"

	"triply/internal/types"
)

var ErrNoRoute = errors.New("no route found")

// RouteProvider yields the aggregate distance and duration between two
// points. The core consumes only this summary; route geometry stays with the
// provider.
type RouteProvider interface {
	Route(ctx context.Context, origin, dest types.GeoPoint) (types.RouteSummary, error)
}

// GoogleRoutes implements RouteProvider on the Google Directions API.
type GoogleRoutes struct {
	client *maps.Client
}

func NewGoogleRoutes(client *maps.Client) *GoogleRoutes {
	return &GoogleRoutes{client: client}
}

func (g *GoogleRoutes) Route(ctx context.Context, origin, dest types.GeoPoint) (types.RouteSummary, error) {
	req := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", origin.Lat, origin.Lng),
		Destination: fmt.Sprintf("%f,%f", dest.Lat, dest.Lng),
		Mode:        maps.TravelModeDriving,
	}
	routes, _, err := g.client.Directions(ctx, req)
	if err != nil {
		return types.RouteSummary{}, fmt.Errorf("directions request: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return types.RouteSummary{}, ErrNoRoute
	}

	var summary types.RouteSummary
	for _, leg := range routes[0].Legs {
		summary.DistanceMeters += float64(leg.Distance.Meters)
		summary.DurationSeconds += leg.Duration.Seconds()
	}
	return summary, nil
}
