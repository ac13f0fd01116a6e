package chat

import (
	"sync"

	"github.com/rs/zerolog/log"

	"community-chat/internal/observability"
	"community-chat/internal/realtime"
)

// liveFeed holds one source subscription and can reopen it after the source
// ended it with an error.
type liveFeed struct {
	name      string
	subscribe func(onError realtime.ErrorHandler) realtime.Subscription

	mu     sync.Mutex
	gen    uint64
	sub    realtime.Subscription
	failed bool
	closed bool
}

func newLiveFeed(name string, subscribe func(realtime.ErrorHandler) realtime.Subscription) *liveFeed {
	return &liveFeed{name: name, subscribe: subscribe}
}

// start opens a fresh subscription. Errors from earlier ones are ignored.
func (f *liveFeed) start() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.gen++
	gen := f.gen
	f.failed = false
	f.mu.Unlock()

	sub := f.subscribe(func(err error) { f.fail(gen, err) })

	f.mu.Lock()
	if f.closed || gen != f.gen {
		f.mu.Unlock()
		sub.Cancel()
		return
	}
	prev := f.sub
	f.sub = sub
	if f.failed {
		f.sub = nil
	}
	f.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}
}

func (f *liveFeed) fail(gen uint64, err error) {
	log.Warn().Err(err).Str("feed", f.name).Msg("live feed failed, keeping last data")
	observability.IncSubscriptionError(f.name)
	f.mu.Lock()
	if gen == f.gen {
		f.failed = true
		f.sub = nil
	}
	f.mu.Unlock()
}

// revive restarts the feed if its subscription failed and reports whether it
// did.
func (f *liveFeed) revive() bool {
	f.mu.Lock()
	dead := f.failed && !f.closed
	f.mu.Unlock()
	if !dead {
		return false
	}
	log.Info().Str("feed", f.name).Msg("reopening live feed")
	f.start()
	return true
}

func (f *liveFeed) close() {
	f.mu.Lock()
	sub := f.sub
	f.sub = nil
	f.closed = true
	f.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}
