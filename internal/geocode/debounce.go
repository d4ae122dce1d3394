// README: Debounced search: coalesces keystrokes into one in-flight request.
package geocode

import (
	"context"
	"sync"
	"time"

	"triply/internal/types"
)

// Searcher is the search contract the debouncer wraps. *Resolver satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string) []types.GeoPoint
}

// Debouncer coalesces a stream of evolving search queries so that at most one
// transport request is in flight per quiet window. A new keystroke before the
// window elapses supersedes the pending call; a superseded call's eventual
// completion never delivers. The geocoder behind this is rate limited, so the
// window bounds request volume no matter how fast the rider types.
type Debouncer struct {
	searcher Searcher
	delay    time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	cancel  context.CancelFunc
	gen     uint64
	stopped bool
}

func NewDebouncer(searcher Searcher, delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return &Debouncer{searcher: searcher, delay: delay}
}

// Type registers the current state of the rider's text buffer. Queries below
// the minimum length clear results immediately without a transport call.
// Otherwise deliver is invoked with the candidates once the quiet window
// elapses and the search completes. deliver must not call back into the
// Debouncer.
func (d *Debouncer) Type(ctx context.Context, query string, deliver func([]types.GeoPoint)) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.gen++
	myGen := d.gen
	d.supersedeLocked()

	if len([]rune(query)) < minQueryLength {
		d.mu.Unlock()
		deliver(nil)
		return
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.fire(ctx, myGen, query, deliver)
	})
	d.mu.Unlock()
}

// Stop cancels any pending and in-flight search. Safe to call multiple times;
// after Stop no deliver callback will run.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.supersedeLocked()
}

// supersedeLocked discards the pending timer and cancels the in-flight search.
func (d *Debouncer) supersedeLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Debouncer) fire(ctx context.Context, gen uint64, query string, deliver func([]types.GeoPoint)) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	sctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.mu.Unlock()

	results := d.searcher.Search(sctx, query)
	cancel()

	d.mu.Lock()
	defer d.mu.Unlock()
	// The view may have moved on while the request was in flight.
	if d.stopped || gen != d.gen {
		return
	}
	deliver(results)
}
