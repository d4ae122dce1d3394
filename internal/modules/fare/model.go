// README: Vehicle classes and fare rule definitions.
package fare

// Class is one of the fixed vehicle classes a rider can request.
type Class string

const (
	ClassCar        Class = "car"
	ClassMotorcycle Class = "motorcycle"
	ClassScooter    Class = "scooter"
)

// Classes lists every supported vehicle class in display order.
var Classes = []Class{ClassCar, ClassMotorcycle, ClassScooter}

// Known reports whether c is a supported vehicle class.
func Known(c Class) bool {
	for _, k := range Classes {
		if k == c {
			return true
		}
	}
	return false
}

// Rule holds the pricing parameters for one vehicle class. Rules are loaded
// once at startup and never mutated at runtime.
type Rule struct {
	BaseFare float64
	PerKm    float64
	PerMin   float64
	MinFare  float64
}

// Table maps every vehicle class to its fare rule.
type Table map[Class]Rule

// DefaultTable returns the built-in fare rules, used when no override rows
// exist in the fare_rules table.
func DefaultTable() Table {
	return Table{
		ClassCar:        {BaseFare: 5, PerKm: 5.0, PerMin: 0.30, MinFare: 15},
		ClassMotorcycle: {BaseFare: 3, PerKm: 2.5, PerMin: 0.20, MinFare: 10},
		ClassScooter:    {BaseFare: 2, PerKm: 1.5, PerMin: 0.15, MinFare: 8},
	}
}
