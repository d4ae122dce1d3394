// README: Active-trip sync: live projection of the rider's current trip.
package trip

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"triply/internal/types"
)

// activeQuerier reads the authoritative active-trip state. *Store satisfies it.
type activeQuerier interface {
	ActiveByRider(ctx context.Context, riderID types.ID) ([]*Trip, error)
}

// ChangeFeed delivers a tick whenever some trip of the rider may have
// changed. The returned channel closes when the transport drops; stop
// releases the underlying subscription. Reconnection policy belongs to the
// transport, not here.
type ChangeFeed interface {
	Changes(ctx context.Context, riderID types.ID) (<-chan struct{}, func(), error)
}

// Sync keeps a caller's view of "the rider's current trip" consistent with
// the backing store. On every feed tick it re-reads the authoritative record,
// so updates apply in delivery order and the last write wins.
type Sync struct {
	store activeQuerier
	feed  ChangeFeed
	log   *logrus.Logger
}

func NewSync(store activeQuerier, feed ChangeFeed, log *logrus.Logger) *Sync {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sync{store: store, feed: feed, log: log}
}

// Subscription is the cancellation handle for one Subscribe call.
type Subscription struct {
	mu        sync.Mutex
	cancelled bool
	onChange  func(*Trip)
	stop      func()
	cancelCtx context.CancelFunc
}

// Cancel stops all future onChange invocations. It is safe to call multiple
// times and takes effect synchronously: once Cancel returns, no callback is
// running or will run.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	s.mu.Unlock()

	if s.cancelCtx != nil {
		s.cancelCtx()
	}
	if s.stop != nil {
		s.stop()
	}
}

// deliver invokes onChange unless the subscription was cancelled. Holding the
// lock through the callback is what makes Cancel synchronous.
func (s *Subscription) deliver(t *Trip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	s.onChange(t)
}

// Subscribe watches the rider's current non-terminal trip and invokes
// onChange with each new authoritative state. nil means "no active trip" —
// including the subscription-error case, where failing to nil beats leaving
// the caller a stale trip. If the store ever reports more than one active
// trip, the earliest-created wins and the rest are never surfaced.
func (s *Sync) Subscribe(ctx context.Context, riderID types.ID, onChange func(*Trip)) *Subscription {
	sub := &Subscription{onChange: onChange}

	fctx, cancel := context.WithCancel(ctx)
	sub.cancelCtx = cancel

	ticks, stop, err := s.feed.Changes(fctx, riderID)
	if err != nil {
		s.log.WithError(err).WithField("rider_id", riderID).Warn("trip feed subscribe failed")
		cancel()
		sub.deliver(nil)
		return sub
	}
	sub.stop = stop

	sub.deliver(s.read(fctx, riderID))

	go func() {
		defer cancel()
		for range ticks {
			sub.deliver(s.read(fctx, riderID))
		}
		// Feed closed: transport dropped or subscription cancelled.
		// Better to report no active trip than to keep showing a stale one.
		sub.deliver(nil)
	}()

	return sub
}

func (s *Sync) read(ctx context.Context, riderID types.ID) *Trip {
	trips, err := s.store.ActiveByRider(ctx, riderID)
	if err != nil {
		s.log.WithError(err).WithField("rider_id", riderID).Warn("active trip read failed")
		return nil
	}
	return earliest(trips)
}
