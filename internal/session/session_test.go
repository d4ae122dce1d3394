// README: Session orchestration tests with stub collaborators.
package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"triply/internal/geocode"
	"triply/internal/modules/fare"
	"triply/internal/modules/trip"
	"triply/internal/types"
)

type stubLocator struct {
	current    types.GeoPoint
	currentErr error
	results    []types.GeoPoint
}

func (s *stubLocator) Current(ctx context.Context) (types.GeoPoint, error) {
	return s.current, s.currentErr
}

func (s *stubLocator) Search(ctx context.Context, query string) []types.GeoPoint {
	return s.results
}

type stubRoutes struct {
	mu    sync.Mutex
	rs    types.RouteSummary
	err   error
	calls int
}

func (s *stubRoutes) Route(ctx context.Context, origin, dest types.GeoPoint) (types.RouteSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.rs, s.err
}

func (s *stubRoutes) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubCreator struct {
	trip *trip.Trip
	err  error
}

func (s *stubCreator) Confirm(ctx context.Context, cmd trip.ConfirmCommand) (*trip.Trip, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.trip, nil
}

// stubTripReader backs a real trip.Sync for subscription tests.
type stubTripReader struct {
	mu    sync.Mutex
	trips []*trip.Trip
}

func (s *stubTripReader) ActiveByRider(ctx context.Context, riderID types.ID) ([]*trip.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trips, nil
}

type stubFeed struct {
	ticks chan struct{}
}

func (f *stubFeed) Changes(ctx context.Context, riderID types.ID) (<-chan struct{}, func(), error) {
	return f.ticks, func() {}, nil
}

// blockingRoutes parks every fetch until release is closed (or the context
// ends), so tests can observe sessions mid-fetch.
type blockingRoutes struct {
	release chan struct{}
	rs      types.RouteSummary

	mu    sync.Mutex
	calls int
}

func (b *blockingRoutes) Route(ctx context.Context, origin, dest types.GeoPoint) (types.RouteSummary, error) {
	b.mu.Lock()
	b.calls++
	n := b.calls
	b.mu.Unlock()
	select {
	case <-b.release:
	case <-ctx.Done():
		return types.RouteSummary{}, ctx.Err()
	}
	// The first pair's summary is deliberately wrong so a stale attach
	// shows up in the estimate.
	if n == 1 {
		return types.RouteSummary{DistanceMeters: 99999, DurationSeconds: 9999}, nil
	}
	return b.rs, nil
}

// waitRoutes blocks until background route fetches settle.
func (s *Session) waitRoutes() {
	s.fetches.Wait()
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func addressed(addr string) types.GeoPoint {
	return types.GeoPoint{Lat: 25.03, Lng: 121.56, Address: addr}
}

func newTestSession(locator Locator, routes geocode.RouteProvider, creator trip.Creator, syncer Syncer) *Session {
	return New(Config{
		RiderID:        "r1",
		Locator:        locator,
		Routes:         routes,
		Creator:        creator,
		Fares:          fare.NewService(fare.DefaultTable()),
		Syncer:         syncer,
		SearchDebounce: 5 * time.Millisecond,
		Log:            quietLogger(),
	})
}

func defaultSyncer() Syncer {
	return trip.NewSync(&stubTripReader{}, &stubFeed{ticks: make(chan struct{})}, quietLogger())
}

func TestSession_ResolveCurrentInstallsPickup(t *testing.T) {
	locator := &stubLocator{current: addressed("1 Harbour Rd")}
	routes := &stubRoutes{rs: types.RouteSummary{DistanceMeters: 4000, DurationSeconds: 600}}
	s := newTestSession(locator, routes, &stubCreator{}, defaultSyncer())
	defer s.Close()

	p, err := s.ResolveCurrent(context.Background())
	if err != nil {
		t.Fatalf("ResolveCurrent: %v", err)
	}
	if p.Address != "1 Harbour Rd" {
		t.Errorf("point = %+v", p)
	}
	// One leg only: still idle, no route fetched.
	if s.Phase() != trip.PhaseIdle {
		t.Errorf("phase = %s, want %s", s.Phase(), trip.PhaseIdle)
	}
	s.waitRoutes()
	if routes.callCount() != 0 {
		t.Errorf("route fetched with one leg set")
	}
}

func TestSession_ResolveCurrentError(t *testing.T) {
	locator := &stubLocator{currentErr: geocode.ErrLocationUnavailable}
	s := newTestSession(locator, &stubRoutes{}, &stubCreator{}, defaultSyncer())
	defer s.Close()

	if _, err := s.ResolveCurrent(context.Background()); !errors.Is(err, geocode.ErrLocationUnavailable) {
		t.Errorf("err = %v, want ErrLocationUnavailable", err)
	}
}

func TestSession_BothLegsFetchRoute(t *testing.T) {
	routes := &stubRoutes{rs: types.RouteSummary{DistanceMeters: 4000, DurationSeconds: 600}}
	s := newTestSession(&stubLocator{}, routes, &stubCreator{}, defaultSyncer())
	defer s.Close()

	s.SetPickup(addressed("1 Harbour Rd"))
	s.SetDropoff(addressed("99 Hill St"))
	s.waitRoutes()

	if s.Phase() != trip.PhaseSelectingVehicle {
		t.Fatalf("phase = %s, want %s", s.Phase(), trip.PhaseSelectingVehicle)
	}
	if routes.callCount() != 1 {
		t.Errorf("route fetches = %d, want 1", routes.callCount())
	}

	est, err := s.EstimateFare(fare.ClassCar)
	if err != nil {
		t.Fatalf("EstimateFare: %v", err)
	}
	if est != 28 {
		t.Errorf("estimate = %d, want 28", est)
	}
}

func TestSession_RouteFailureQuotesFloor(t *testing.T) {
	routes := &stubRoutes{err: geocode.ErrNoRoute}
	s := newTestSession(&stubLocator{}, routes, &stubCreator{}, defaultSyncer())
	defer s.Close()

	s.SetPickup(addressed("1 Harbour Rd"))
	s.SetDropoff(addressed("99 Hill St"))
	s.waitRoutes()

	est, err := s.EstimateFare(fare.ClassCar)
	if err != nil {
		t.Fatalf("EstimateFare: %v", err)
	}
	if est != 15 {
		t.Errorf("estimate = %d, want class floor 15", est)
	}
	// And confirmation is blocked without a route.
	if _, err := s.ConfirmTrip(context.Background(), fare.ClassCar); err != trip.ErrIncompleteTrip {
		t.Errorf("ConfirmTrip err = %v, want ErrIncompleteTrip", err)
	}
}

// Point edits return while the fetch is still on the wire, and a fetch
// superseded by a point swap never lands.
func TestSession_RouteFetchDoesNotBlockEdits(t *testing.T) {
	routes := &blockingRoutes{
		release: make(chan struct{}),
		rs:      types.RouteSummary{DistanceMeters: 4000, DurationSeconds: 600},
	}
	s := newTestSession(&stubLocator{}, routes, &stubCreator{}, defaultSyncer())
	defer s.Close()

	s.SetPickup(addressed("1 Harbour Rd"))
	s.SetDropoff(addressed("99 Hill St"))

	// The first fetch is parked; the session is usable meanwhile and quotes
	// the class floor.
	est, err := s.EstimateFare(fare.ClassCar)
	if err != nil {
		t.Fatalf("EstimateFare: %v", err)
	}
	if est != 15 {
		t.Errorf("estimate mid-fetch = %d, want class floor 15", est)
	}

	// Swap the drop-off while the first fetch is in flight, then let both
	// fetches finish. Only the second pair's summary may land.
	s.SetDropoff(addressed("12 New St"))
	close(routes.release)
	s.waitRoutes()

	est, err = s.EstimateFare(fare.ClassCar)
	if err != nil {
		t.Fatalf("EstimateFare: %v", err)
	}
	if est != 28 {
		t.Errorf("estimate = %d, want 28 from the current pair", est)
	}
}

func TestSession_CloseCancelsRouteFetch(t *testing.T) {
	routes := &blockingRoutes{release: make(chan struct{})} // never released
	s := newTestSession(&stubLocator{}, routes, &stubCreator{}, defaultSyncer())

	s.SetPickup(addressed("1 Harbour Rd"))
	s.SetDropoff(addressed("99 Hill St"))
	s.Close()

	done := make(chan struct{})
	go func() {
		s.waitRoutes()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("route fetch survived Close")
	}
	if s.lifecycle.Route() != nil {
		t.Error("cancelled fetch attached a route")
	}
}

func TestSession_TypeSearchDelivers(t *testing.T) {
	locator := &stubLocator{results: []types.GeoPoint{addressed("Central Station")}}
	s := newTestSession(locator, &stubRoutes{}, &stubCreator{}, defaultSyncer())
	defer s.Close()

	delivered := make(chan []types.GeoPoint, 1)
	s.TypeSearch(context.Background(), "central", func(res []types.GeoPoint) { delivered <- res })

	select {
	case res := <-delivered:
		if len(res) != 1 || res[0].Address != "Central Station" {
			t.Errorf("delivered %v", res)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for search delivery")
	}
}

func TestSession_ConfirmAdoptsTrip(t *testing.T) {
	created := &trip.Trip{ID: "t1", RiderID: "r1", Status: trip.StatusSearching, CreatedAt: time.Now().UTC()}
	routes := &stubRoutes{rs: types.RouteSummary{DistanceMeters: 4000, DurationSeconds: 600}}
	reader := &stubTripReader{trips: []*trip.Trip{created}}
	syncer := trip.NewSync(reader, &stubFeed{ticks: make(chan struct{})}, quietLogger())
	s := newTestSession(&stubLocator{}, routes, &stubCreator{trip: created}, syncer)
	defer s.Close()

	s.SetPickup(addressed("1 Harbour Rd"))
	s.SetDropoff(addressed("99 Hill St"))
	s.waitRoutes()

	tr, err := s.ConfirmTrip(context.Background(), fare.ClassCar)
	if err != nil {
		t.Fatalf("ConfirmTrip: %v", err)
	}
	if tr.ID != "t1" {
		t.Errorf("trip = %+v", tr)
	}
	if s.Phase() != trip.PhaseSearching {
		t.Errorf("phase = %s, want %s", s.Phase(), trip.PhaseSearching)
	}
	if s.Trip() == nil || s.Trip().ID != "t1" {
		t.Errorf("session trip = %+v", s.Trip())
	}
}

func TestSession_SubscriptionMirrorsServerState(t *testing.T) {
	reader := &stubTripReader{}
	feed := &stubFeed{ticks: make(chan struct{}, 1)}
	syncer := trip.NewSync(reader, feed, quietLogger())
	s := newTestSession(&stubLocator{}, &stubRoutes{}, &stubCreator{}, syncer)
	defer s.Close()

	deliveries := make(chan *trip.Trip, 4)
	s.SubscribeActiveTrip(context.Background(), func(t *trip.Trip) { deliveries <- t })

	// Initial read: no active trip.
	select {
	case got := <-deliveries:
		if got != nil {
			t.Fatalf("initial delivery = %+v, want nil", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial delivery")
	}

	// A trip appears server-side; the session adopts it on the next tick.
	reader.mu.Lock()
	reader.trips = []*trip.Trip{{ID: "t_remote", RiderID: "r1", Status: trip.StatusAccepted, CreatedAt: time.Now().UTC()}}
	reader.mu.Unlock()
	feed.ticks <- struct{}{}

	select {
	case got := <-deliveries:
		if got == nil || got.ID != "t_remote" {
			t.Fatalf("delivery = %+v, want t_remote", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for tick delivery")
	}
	if s.Phase() != trip.PhaseAccepted {
		t.Errorf("phase = %s, want %s", s.Phase(), trip.PhaseAccepted)
	}
}
