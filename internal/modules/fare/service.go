// README: Fare calculator: pure estimate with floor and rounding rules.
package fare

import (
	"errors"
	"math"

	"triply/internal/types"
)

var ErrUnknownClass = errors.New("unknown vehicle class")

// Service computes fare estimates from a fixed rule table. It performs no
// I/O; the same inputs always yield the same output.
type Service struct {
	table Table
}

func NewService(table Table) *Service {
	return &Service{table: table}
}

// Estimate returns the raw price for a vehicle class over the given route.
// A nil route quotes the class floor price, used before a route exists.
// The result is never below the class MinFare.
func (s *Service) Estimate(class Class, route *types.RouteSummary) (float64, error) {
	rule, ok := s.table[class]
	if !ok {
		return 0, ErrUnknownClass
	}
	if route == nil {
		return rule.MinFare, nil
	}
	distanceKm := route.DistanceMeters / 1000
	durationMin := route.DurationSeconds / 60
	price := rule.BaseFare + rule.PerKm*distanceKm + rule.PerMin*durationMin
	return math.Max(price, rule.MinFare), nil
}

// DisplayEstimate rounds a raw estimate to the nearest integer. This is
// presentation precision only; billing uses ConfirmedPrice.
func DisplayEstimate(price float64) int {
	return int(math.Round(price))
}

// ConfirmedPrice rounds a raw estimate to two decimal places at confirmation
// time. The display and confirmed values intentionally round differently.
func ConfirmedPrice(price float64) float64 {
	return math.Round(price*100) / 100
}
