// README: Per-rider orchestration tying location, fare, trip and sync together.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"triply/internal/geocode"
	"triply/internal/modules/fare"
	"triply/internal/modules/trip"
	"triply/internal/types"
)

// Locator resolves device position and free-text searches. *geocode.Resolver
// satisfies it.
type Locator interface {
	Current(ctx context.Context) (types.GeoPoint, error)
	Search(ctx context.Context, query string) []types.GeoPoint
}

// Syncer produces active-trip subscriptions. *trip.Sync satisfies it.
type Syncer interface {
	Subscribe(ctx context.Context, riderID types.ID, onChange func(*trip.Trip)) *trip.Subscription
}

// Session is one rider's live booking flow. It owns a Lifecycle for local
// state, a Debouncer for typed search, and an active-trip subscription that
// keeps the local view aligned with the store.
type Session struct {
	riderID   types.ID
	locator   Locator
	routes    geocode.RouteProvider
	debouncer *geocode.Debouncer
	lifecycle *trip.Lifecycle
	syncer    Syncer
	log       *logrus.Logger

	// ctx bounds background work (route fetches); Close cancels it.
	ctx     context.Context
	cancel  context.CancelFunc
	fetches sync.WaitGroup

	mu  sync.Mutex
	sub *trip.Subscription
}

// Config carries the collaborators a Session needs. SearchDebounce falls back
// to the debouncer's default window when zero.
type Config struct {
	RiderID        types.ID
	Locator        Locator
	Routes         geocode.RouteProvider
	Creator        trip.Creator
	Fares          *fare.Service
	Syncer         Syncer
	SearchDebounce time.Duration
	Log            *logrus.Logger
}

func New(cfg Config) *Session {
	if cfg.Log == nil {
		cfg.Log = logrus.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		riderID:   cfg.RiderID,
		locator:   cfg.Locator,
		routes:    cfg.Routes,
		debouncer: geocode.NewDebouncer(searcherFunc(cfg.Locator.Search), cfg.SearchDebounce),
		lifecycle: trip.NewLifecycle(cfg.RiderID, cfg.Creator, cfg.Fares),
		syncer:    cfg.Syncer,
		log:       cfg.Log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

type searcherFunc func(ctx context.Context, query string) []types.GeoPoint

func (f searcherFunc) Search(ctx context.Context, query string) []types.GeoPoint {
	return f(ctx, query)
}

// ResolveCurrent resolves the device position into an addressed point and
// installs it as the pickup.
func (s *Session) ResolveCurrent(ctx context.Context) (types.GeoPoint, error) {
	p, err := s.locator.Current(ctx)
	if err != nil {
		return types.GeoPoint{}, err
	}
	s.SetPickup(p)
	return p, nil
}

// TypeSearch feeds one keystroke state into the debounced search. deliver
// runs with the candidates once the quiet window elapses.
func (s *Session) TypeSearch(ctx context.Context, query string, deliver func([]types.GeoPoint)) {
	s.debouncer.Type(ctx, query, deliver)
}

// SetPickup installs the pickup point and refreshes the route when both legs
// are set. The fetch runs in the background; until it lands, estimates quote
// the class floor. A failure leaves the lifecycle without a route, which
// Confirm treats as incomplete.
func (s *Session) SetPickup(p types.GeoPoint) {
	s.lifecycle.SetPickup(&p)
	s.refreshRoute()
}

// SetDropoff installs the drop-off point; see SetPickup.
func (s *Session) SetDropoff(p types.GeoPoint) {
	s.lifecycle.SetDropoff(&p)
	s.refreshRoute()
}

// refreshRoute fetches the route for the current leg pair without blocking
// the caller. The pair's generation pins the result: if the rider edits a
// point while the fetch is in flight, the late summary is dropped by
// AttachRoute. Close cancels outstanding fetches through s.ctx.
func (s *Session) refreshRoute() {
	if s.lifecycle.Phase() != trip.PhaseSelectingVehicle {
		return
	}
	pickup, dropoff, gen := s.lifecycle.Points()
	if pickup == nil || dropoff == nil {
		return
	}
	origin, dest := *pickup, *dropoff
	s.fetches.Add(1)
	go func() {
		defer s.fetches.Done()
		rs, err := s.routes.Route(s.ctx, origin, dest)
		if err != nil {
			s.log.WithError(err).Debug("route fetch failed")
			return
		}
		s.lifecycle.AttachRoute(gen, rs)
	}()
}

// EstimateFare quotes the rounded display price for a vehicle class.
func (s *Session) EstimateFare(class fare.Class) (int, error) {
	return s.lifecycle.DisplayEstimate(class)
}

// ConfirmTrip submits the current selection as a trip request and starts
// following its server-side state.
func (s *Session) ConfirmTrip(ctx context.Context, class fare.Class) (*trip.Trip, error) {
	t, err := s.lifecycle.Confirm(ctx, class)
	if err != nil {
		return nil, err
	}
	s.follow(ctx)
	return t, nil
}

// SubscribeActiveTrip starts mirroring the rider's authoritative active trip
// into the local lifecycle, and additionally invokes onChange with each
// state. Pass nil when only the mirroring is wanted.
func (s *Session) SubscribeActiveTrip(ctx context.Context, onChange func(*trip.Trip)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		s.sub.Cancel()
	}
	s.sub = s.syncer.Subscribe(ctx, s.riderID, func(t *trip.Trip) {
		s.lifecycle.Apply(t)
		if onChange != nil {
			onChange(t)
		}
	})
}

func (s *Session) follow(ctx context.Context) {
	s.mu.Lock()
	following := s.sub != nil
	s.mu.Unlock()
	if !following {
		s.SubscribeActiveTrip(ctx, nil)
	}
}

// Phase reports where the booking flow stands.
func (s *Session) Phase() trip.Phase {
	return s.lifecycle.Phase()
}

// Trip returns the adopted trip, or nil before confirmation.
func (s *Session) Trip() *trip.Trip {
	return s.lifecycle.Trip()
}

// Reset abandons the current selection; see trip.Lifecycle.Reset.
func (s *Session) Reset() {
	s.lifecycle.Reset()
}

// Close cancels in-flight route fetches and releases the debouncer and any
// active subscription.
func (s *Session) Close() {
	s.cancel()
	s.debouncer.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		s.sub.Cancel()
		s.sub = nil
	}
}
