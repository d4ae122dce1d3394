// README: Redis pub/sub bus carrying trip-change notifications.
package trip

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"triply/internal/types"
)

const riderChannelPrefix = "triply:trips:rider:"

func riderChannel(riderID types.ID) string {
	return riderChannelPrefix + string(riderID)
}

// RedisBus implements Notifier and ChangeFeed on one Redis client. Writers
// publish after every successful trip write; subscribers get a tick per
// message and re-read the store, so the payload itself carries no state.
type RedisBus struct {
	rdb *redis.Client
	log *logrus.Logger
}

func NewRedisBus(rdb *redis.Client, log *logrus.Logger) *RedisBus {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RedisBus{rdb: rdb, log: log}
}

func (b *RedisBus) TripChanged(ctx context.Context, riderID types.ID) {
	if err := b.rdb.Publish(ctx, riderChannel(riderID), "1").Err(); err != nil {
		// Subscribers miss this tick but recover on the next write; the
		// write itself already succeeded.
		b.log.WithError(err).WithField("rider_id", riderID).Warn("trip change publish failed")
	}
}

func (b *RedisBus) Changes(ctx context.Context, riderID types.ID) (<-chan struct{}, func(), error) {
	sub := b.rdb.Subscribe(ctx, riderChannel(riderID))
	// Force the SUBSCRIBE round-trip so transport errors surface here
	// instead of as a silently dead channel.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	ticks := make(chan struct{}, 1)
	go func() {
		defer close(ticks)
		for range sub.Channel() {
			// Coalesce bursts: one pending tick is enough, the reader
			// re-queries the latest state anyway.
			select {
			case ticks <- struct{}{}:
			default:
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() { _ = sub.Close() })
	}
	return ticks, stop, nil
}
