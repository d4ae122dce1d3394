// README: Active-trip sync tests (delivery, tie-break, fail-to-nil, cancel).
package trip

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"triply/internal/types"
)

// stubFeed is a hand-cranked ChangeFeed.
type stubFeed struct {
	mu     sync.Mutex
	ticks  chan struct{}
	err    error
	stops  int
	closed bool
}

func newStubFeed() *stubFeed {
	return &stubFeed{ticks: make(chan struct{}, 8)}
}

func (f *stubFeed) Changes(ctx context.Context, riderID types.ID) (<-chan struct{}, func(), error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.ticks, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.stops++
		if !f.closed {
			f.closed = true
			close(f.ticks)
		}
	}, nil
}

func (f *stubFeed) tick() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.ticks <- struct{}{}
	}
}

// collector gathers deliveries for assertions.
type collector struct {
	mu    sync.Mutex
	got   []*Trip
	fresh chan struct{}
}

func newCollector() *collector {
	return &collector{fresh: make(chan struct{}, 64)}
}

func (c *collector) onChange(t *Trip) {
	c.mu.Lock()
	c.got = append(c.got, t)
	c.mu.Unlock()
	c.fresh <- struct{}{}
}

func (c *collector) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.fresh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func (c *collector) last(t *testing.T) *Trip {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.got) == 0 {
		t.Fatal("no deliveries")
	}
	return c.got[len(c.got)-1]
}

func TestSync_InitialAndTickDelivery(t *testing.T) {
	store := newMemStore()
	feed := newStubFeed()
	s := NewSync(store, feed, quietLogger())
	ctx := context.Background()

	tr := &Trip{ID: "t1", RiderID: "r1", Status: StatusSearching, CreatedAt: time.Now().UTC()}
	_ = store.Create(ctx, tr)

	col := newCollector()
	sub := s.Subscribe(ctx, "r1", col.onChange)
	defer sub.Cancel()

	col.wait(t)
	if got := col.last(t); got == nil || got.ID != "t1" {
		t.Fatalf("initial delivery = %+v, want t1", got)
	}

	// Status change lands on the next tick.
	_, _ = store.UpdateStatus(ctx, StatusUpdate{TripID: "t1", From: StatusSearching, To: StatusAccepted})
	feed.tick()
	col.wait(t)
	if got := col.last(t); got == nil || got.Status != StatusAccepted {
		t.Errorf("after tick = %+v, want accepted", got)
	}
}

func TestSync_NoActiveTripDeliversNil(t *testing.T) {
	s := NewSync(newMemStore(), newStubFeed(), quietLogger())
	col := newCollector()
	sub := s.Subscribe(context.Background(), "r_nobody", col.onChange)
	defer sub.Cancel()

	col.wait(t)
	if got := col.last(t); got != nil {
		t.Errorf("delivery = %+v, want nil", got)
	}
}

func TestSync_DuplicateActivesEarliestWins(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	_ = store.Create(ctx, &Trip{ID: "t_new", RiderID: "r1", Status: StatusSearching, CreatedAt: time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC)})
	_ = store.Create(ctx, &Trip{ID: "t_old", RiderID: "r1", Status: StatusSearching, CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)})

	s := NewSync(store, newStubFeed(), quietLogger())
	col := newCollector()
	sub := s.Subscribe(ctx, "r1", col.onChange)
	defer sub.Cancel()

	col.wait(t)
	if got := col.last(t); got == nil || got.ID != "t_old" {
		t.Errorf("delivery = %+v, want earliest-created t_old", got)
	}
}

func TestSync_SubscribeErrorFailsToNil(t *testing.T) {
	feed := newStubFeed()
	feed.err = errors.New("transport down")
	s := NewSync(newMemStore(), feed, quietLogger())

	col := newCollector()
	sub := s.Subscribe(context.Background(), "r1", col.onChange)
	defer sub.Cancel()

	col.wait(t)
	if got := col.last(t); got != nil {
		t.Errorf("delivery on subscribe error = %+v, want nil", got)
	}
}

func TestSync_ReadErrorFailsToNil(t *testing.T) {
	store := newMemStore()
	store.activeErr = errors.New("db down")
	s := NewSync(store, newStubFeed(), quietLogger())

	col := newCollector()
	sub := s.Subscribe(context.Background(), "r1", col.onChange)
	defer sub.Cancel()

	col.wait(t)
	if got := col.last(t); got != nil {
		t.Errorf("delivery on read error = %+v, want nil", got)
	}
}

func TestSync_FeedCloseDeliversNil(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	_ = store.Create(ctx, &Trip{ID: "t1", RiderID: "r1", Status: StatusSearching, CreatedAt: time.Now().UTC()})

	feed := newStubFeed()
	s := NewSync(store, feed, quietLogger())
	col := newCollector()
	sub := s.Subscribe(ctx, "r1", col.onChange)
	defer sub.Cancel()

	col.wait(t) // initial trip

	feed.mu.Lock()
	feed.closed = true
	close(feed.ticks)
	feed.mu.Unlock()

	col.wait(t)
	if got := col.last(t); got != nil {
		t.Errorf("delivery after feed close = %+v, want nil (stale beats wrong)", got)
	}
}

func TestSync_CancelIsSynchronousAndIdempotent(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	_ = store.Create(ctx, &Trip{ID: "t1", RiderID: "r1", Status: StatusSearching, CreatedAt: time.Now().UTC()})

	feed := newStubFeed()
	s := NewSync(store, feed, quietLogger())

	var mu sync.Mutex
	deliveries := 0
	sub := s.Subscribe(ctx, "r1", func(*Trip) {
		mu.Lock()
		deliveries++
		mu.Unlock()
	})

	sub.Cancel()
	sub.Cancel() // idempotent

	mu.Lock()
	after := deliveries
	mu.Unlock()

	// Ticks after Cancel must never invoke the callback.
	feed.tick()
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	if deliveries != after {
		t.Errorf("deliveries after Cancel: %d -> %d", after, deliveries)
	}
	mu.Unlock()
}
