// README: Client-side trip lifecycle: write-once initiator, read-through projection.
package trip

import (
	"context"
	"sync"

	"triply/internal/modules/fare"
	"triply/internal/types"
)

// Phase is the rider's view of where a trip request stands. Before a trip
// exists the machine advances locally; from searching onward it only mirrors
// server-asserted status.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseSelectingVehicle Phase = "selecting_vehicle"
	PhaseSearching        Phase = "searching"
	PhaseAccepted         Phase = "accepted"
	PhaseArrived          Phase = "arrived"
	PhaseStarted          Phase = "started"
	PhaseCompleted        Phase = "completed"
	PhaseCancelled        Phase = "cancelled"
)

// Creator confirms trip requests. *Service satisfies it.
type Creator interface {
	Confirm(ctx context.Context, cmd ConfirmCommand) (*Trip, error)
}

// Lifecycle drives one rider session from intent to a tracked trip. All
// methods are safe for concurrent use; background completions (route fetch,
// sync updates) and user edits serialize on one lock.
type Lifecycle struct {
	riderID types.ID
	creator Creator
	fares   *fare.Service

	mu         sync.Mutex
	phase      Phase
	pickup     *types.GeoPoint
	dropoff    *types.GeoPoint
	legGen     uint64
	route      *types.RouteSummary
	confirming bool
	trip       *Trip
}

func NewLifecycle(riderID types.ID, creator Creator, fares *fare.Service) *Lifecycle {
	return &Lifecycle{riderID: riderID, creator: creator, fares: fares, phase: PhaseIdle}
}

func (l *Lifecycle) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

// Trip returns the adopted trip, or nil before confirmation.
func (l *Lifecycle) Trip() *Trip {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trip
}

// SetPickup replaces the pickup point wholesale. Any computed route and
// estimate are discarded; the phase follows from whether both legs are
// addressed. Edits are ignored once a trip exists.
func (l *Lifecycle) SetPickup(p *types.GeoPoint) {
	l.setPoint(&l.pickup, p)
}

// SetDropoff replaces the drop-off point wholesale; see SetPickup.
func (l *Lifecycle) SetDropoff(p *types.GeoPoint) {
	l.setPoint(&l.dropoff, p)
}

func (l *Lifecycle) setPoint(field **types.GeoPoint, p *types.GeoPoint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.trip != nil {
		return
	}
	*field = p
	// Either point changing invalidates the route for the old pair and
	// retires any fetch still in flight for it.
	l.route = nil
	l.legGen++
	l.phase = l.planningPhase()
}

// Points returns the current pickup and drop-off, either of which may be nil,
// together with the generation of that leg pair. A route fetch issued for the
// pair must hand the generation back to AttachRoute.
func (l *Lifecycle) Points() (pickup, dropoff *types.GeoPoint, gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pickup, l.dropoff, l.legGen
}

// AttachRoute records the route summary for the leg pair identified by gen.
// It is a no-op outside vehicle selection or when gen is not the current
// generation, so a late route callback for a pair the rider already edited
// away cannot resurrect a stale summary.
func (l *Lifecycle) AttachRoute(gen uint64, rs types.RouteSummary) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.phase != PhaseSelectingVehicle || gen != l.legGen {
		return
	}
	l.route = &rs
}

// Route returns the current route summary, or nil if none is attached.
func (l *Lifecycle) Route() *types.RouteSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.route
}

// DisplayEstimate quotes the integer-rounded price for a class given what is
// currently known. With no route attached it quotes the class floor.
func (l *Lifecycle) DisplayEstimate(class fare.Class) (int, error) {
	l.mu.Lock()
	route := l.route
	l.mu.Unlock()
	raw, err := l.fares.Estimate(class, route)
	if err != nil {
		return 0, err
	}
	return fare.DisplayEstimate(raw), nil
}

// Confirm turns the current selection into a trip with status searching.
// Preconditions: both legs addressed, a vehicle class, and a fresh route;
// otherwise ErrIncompleteTrip and no state change. A concurrent second
// Confirm fails with ErrTripInFlight rather than creating a duplicate.
func (l *Lifecycle) Confirm(ctx context.Context, class fare.Class) (*Trip, error) {
	l.mu.Lock()
	if l.confirming {
		l.mu.Unlock()
		return nil, ErrTripInFlight
	}
	if l.phase != PhaseSelectingVehicle || l.pickup == nil || l.dropoff == nil ||
		!l.pickup.HasAddress() || !l.dropoff.HasAddress() || l.route == nil || !fare.Known(class) {
		l.mu.Unlock()
		return nil, ErrIncompleteTrip
	}
	raw, err := l.fares.Estimate(class, l.route)
	if err != nil {
		l.mu.Unlock()
		return nil, ErrIncompleteTrip
	}
	cmd := ConfirmCommand{
		RiderID:  l.riderID,
		Pickup:   *l.pickup,
		Dropoff:  *l.dropoff,
		Class:    class,
		Route:    l.route,
		RawPrice: raw,
	}
	l.confirming = true
	l.mu.Unlock()

	t, err := l.creator.Confirm(ctx, cmd)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.confirming = false
	if err != nil {
		return nil, err
	}
	l.trip = t
	l.phase = PhaseSearching
	return t, nil
}

// Reset abandons the current selection: back to editing locations with any
// computed route and estimate discarded. It does not touch an adopted trip.
func (l *Lifecycle) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.trip != nil {
		return
	}
	l.route = nil
	l.legGen++
	l.phase = l.planningPhase()
}

// Apply folds a server-asserted trip (or its absence) into the local view.
// nil means the authority reports no active trip: the adopted trip is dropped
// and the machine falls back to planning. A trip with an unknown id is
// adopted only when none is held; updates for the held trip always win.
func (l *Lifecycle) Apply(t *Trip) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t == nil {
		if l.trip != nil && !l.trip.Status.Terminal() {
			l.trip = nil
			l.phase = l.planningPhase()
		}
		return
	}
	if l.trip != nil && l.trip.ID != t.ID {
		return
	}
	l.trip = t
	l.phase = phaseFor(t.Status)
}

// planningPhase derives the pre-trip phase from the leg points. A point
// without an address is still being edited and does not count.
func (l *Lifecycle) planningPhase() Phase {
	if l.pickup != nil && l.dropoff != nil && l.pickup.HasAddress() && l.dropoff.HasAddress() {
		return PhaseSelectingVehicle
	}
	return PhaseIdle
}

func phaseFor(s Status) Phase {
	switch s {
	case StatusSearching:
		return PhaseSearching
	case StatusAccepted:
		return PhaseAccepted
	case StatusArrived:
		return PhaseArrived
	case StatusStarted:
		return PhaseStarted
	case StatusCompleted:
		return PhaseCompleted
	case StatusCancelled:
		return PhaseCancelled
	}
	return PhaseIdle
}
