// README: Trip aggregate and status definitions.
package trip

import (
	"time"

	"triply/internal/modules/fare"
	"triply/internal/types"
)

type Status string

const (
	StatusSearching Status = "searching"
	StatusAccepted  Status = "accepted"
	StatusArrived   Status = "arrived"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ActiveStatuses are the non-terminal statuses. At most one trip per rider
// may hold any of them at a time.
var ActiveStatuses = []Status{StatusSearching, StatusAccepted, StatusArrived, StatusStarted}

// Terminal reports whether a trip in this status can never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// DriverInfo is attached by the dispatch side once a driver accepts. The
// rider client only ever reads it.
type DriverInfo struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	VehicleModel string  `json:"vehicle_model"`
	VehiclePlate string  `json:"vehicle_plate"`
	Rating       float64 `json:"rating"`
	ETA          string  `json:"eta,omitempty"`
}

// Trip is owned by the backing store once created. The client holds a
// read-mostly projection: every field except status (and the
// completion-time fields) is set once at creation.
type Trip struct {
	ID            types.ID       `json:"id"`
	RiderID       types.ID       `json:"rider_id"`
	Pickup        types.GeoPoint `json:"pickup"`
	Dropoff       types.GeoPoint `json:"dropoff"`
	VehicleClass  fare.Class     `json:"vehicle_class"`
	Price         float64        `json:"price"`
	FinalPrice    *float64       `json:"final_price,omitempty"`
	Status        Status         `json:"status"`
	StatusVersion int            `json:"-"`
	DriverInfo    *DriverInfo    `json:"driver_info,omitempty"`
	CancelReason  *string        `json:"cancellation_reason,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// AllowedTransitions represents the trip status flow as code. The client only
// ever initiates the searching and cancelled entries; everything else is
// asserted by the authoritative store.
var AllowedTransitions = map[Status][]Status{
	StatusSearching: {StatusAccepted, StatusCancelled},
	StatusAccepted:  {StatusArrived, StatusCancelled},
	StatusArrived:   {StatusStarted, StatusCancelled},
	StatusStarted:   {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
