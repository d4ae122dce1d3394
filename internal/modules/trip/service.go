// README: Trip service: confirmation, cancellation, and externally driven status moves.
package trip

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"triply/internal/modules/fare"
	"triply/internal/types"
)

var (
	ErrIncompleteTrip = errors.New("incomplete trip request")
	ErrTripInFlight   = errors.New("trip confirmation already in flight")
	ErrActiveTrip     = errors.New("rider already has an active trip")
	ErrNotFound       = errors.New("trip not found")
	ErrInvalidState   = errors.New("invalid status transition")
	ErrConflict       = errors.New("trip status conflict")
	ErrForbidden      = errors.New("trip belongs to another rider")
)

// store is the persistence contract the service needs. *Store satisfies it.
type store interface {
	Create(ctx context.Context, t *Trip) error
	Get(ctx context.Context, id types.ID) (*Trip, error)
	ActiveByRider(ctx context.Context, riderID types.ID) ([]*Trip, error)
	HasActiveByRider(ctx context.Context, riderID types.ID) (bool, error)
	ListByRider(ctx context.Context, riderID types.ID) ([]*Trip, error)
	ListCompletedByRider(ctx context.Context, riderID types.ID, limit int) ([]*Trip, error)
	UpdateStatus(ctx context.Context, upd StatusUpdate) (bool, error)
}

// Notifier announces that some trip of the rider changed, so subscribers can
// re-read the authoritative record.
type Notifier interface {
	TripChanged(ctx context.Context, riderID types.ID)
}

type Service struct {
	store    store
	notifier Notifier
	log      *logrus.Logger

	mu       sync.Mutex
	inFlight map[types.ID]struct{}
}

func NewService(store store, notifier Notifier, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{store: store, notifier: notifier, log: log, inFlight: make(map[types.ID]struct{})}
}

// ConfirmCommand carries everything a rider must have settled before a trip
// can exist: both addressed legs, a vehicle class, and a fresh route summary.
type ConfirmCommand struct {
	RiderID types.ID
	Pickup  types.GeoPoint
	Dropoff types.GeoPoint
	Class   fare.Class
	Route   *types.RouteSummary
	// RawPrice is the unrounded estimate for Class over Route.
	RawPrice float64
}

type CancelCommand struct {
	TripID  types.ID
	RiderID types.ID
	Reason  string
}

// AdvanceCommand is the opaque external transition: the dispatch side moves a
// trip through accepted/arrived/started/completed. The rider client never
// issues it.
type AdvanceCommand struct {
	TripID     types.ID
	To         Status
	Driver     *DriverInfo
	FinalPrice *float64
}

// Confirm creates the trip with status searching and the price rounded to
// two decimal places. It is single-flight per rider: a concurrent second call
// fails with ErrTripInFlight instead of creating a duplicate.
func (s *Service) Confirm(ctx context.Context, cmd ConfirmCommand) (*Trip, error) {
	if cmd.RiderID == "" || !cmd.Pickup.HasAddress() || !cmd.Dropoff.HasAddress() ||
		!cmd.Pickup.Valid() || !cmd.Dropoff.Valid() || !fare.Known(cmd.Class) || cmd.Route == nil {
		return nil, ErrIncompleteTrip
	}

	s.mu.Lock()
	if _, busy := s.inFlight[cmd.RiderID]; busy {
		s.mu.Unlock()
		return nil, ErrTripInFlight
	}
	s.inFlight[cmd.RiderID] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, cmd.RiderID)
		s.mu.Unlock()
	}()

	active, err := s.store.HasActiveByRider(ctx, cmd.RiderID)
	if err != nil {
		return nil, fmt.Errorf("active trip check: %w", err)
	}
	if active {
		return nil, ErrActiveTrip
	}

	t := &Trip{
		ID:           newID(),
		RiderID:      cmd.RiderID,
		Pickup:       cmd.Pickup,
		Dropoff:      cmd.Dropoff,
		VehicleClass: cmd.Class,
		Price:        fare.ConfirmedPrice(cmd.RawPrice),
		Status:       StatusSearching,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create trip: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"trip_id":       t.ID,
		"vehicle_class": t.VehicleClass,
		"price":         t.Price,
	}).Info("trip confirmed")
	s.notify(ctx, cmd.RiderID)
	return t, nil
}

// Cancel moves a rider's own trip to cancelled from any non-terminal status.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	t, err := s.store.Get(ctx, cmd.TripID)
	if err != nil {
		return err
	}
	if t.RiderID != cmd.RiderID {
		return ErrForbidden
	}
	if !CanTransition(t.Status, StatusCancelled) {
		return ErrInvalidState
	}
	var reason *string
	if cmd.Reason != "" {
		reason = &cmd.Reason
	}
	ok, err := s.store.UpdateStatus(ctx, StatusUpdate{
		TripID:  t.ID,
		From:    t.Status,
		To:      StatusCancelled,
		Version: t.StatusVersion,
		Reason:  reason,
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.notify(ctx, t.RiderID)
	return nil
}

// Advance applies an externally asserted status move. Invalid moves are
// rejected; concurrent moves lose against the version check.
func (s *Service) Advance(ctx context.Context, cmd AdvanceCommand) error {
	t, err := s.store.Get(ctx, cmd.TripID)
	if err != nil {
		return err
	}
	if !CanTransition(t.Status, cmd.To) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, StatusUpdate{
		TripID:     t.ID,
		From:       t.Status,
		To:         cmd.To,
		Version:    t.StatusVersion,
		Driver:     cmd.Driver,
		FinalPrice: cmd.FinalPrice,
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.notify(ctx, t.RiderID)
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Trip, error) {
	return s.store.Get(ctx, id)
}

// Active returns the rider's current non-terminal trip, or nil. If the store
// reports more than one, the earliest-created wins and the rest are never
// surfaced.
func (s *Service) Active(ctx context.Context, riderID types.ID) (*Trip, error) {
	trips, err := s.store.ActiveByRider(ctx, riderID)
	if err != nil {
		return nil, err
	}
	return earliest(trips), nil
}

func (s *Service) ListByRider(ctx context.Context, riderID types.ID) ([]*Trip, error) {
	return s.store.ListByRider(ctx, riderID)
}

// RecentCompleted returns the rider's latest completed trips, newest first.
func (s *Service) RecentCompleted(ctx context.Context, riderID types.ID, limit int) ([]*Trip, error) {
	return s.store.ListCompletedByRider(ctx, riderID, limit)
}

func (s *Service) notify(ctx context.Context, riderID types.ID) {
	if s.notifier == nil {
		return
	}
	s.notifier.TripChanged(ctx, riderID)
}

// earliest picks the earliest-created trip regardless of input order.
func earliest(trips []*Trip) *Trip {
	var first *Trip
	for _, t := range trips {
		if first == nil || t.CreatedAt.Before(first.CreatedAt) {
			first = t
		}
	}
	return first
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
