package pipeline

import (
	"container/list"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/wxwire/wxwire/internal/types"
)

// DedupFilter suppresses repeat deliveries of the same product. The
// weather wire re-sends products across reconnects and both sites carry
// the same traffic, so the fingerprint of every passing event is held
// in a bounded LRU set; an event whose fingerprint is already present
// within the window is rejected with reason "duplicate".
type DedupFilter struct {
	maxEntries int
	window     time.Duration
	clock      clockwork.Clock

	mu      sync.Mutex
	order   *list.List // front = most recent
	entries map[string]*list.Element
}

type dedupEntry struct {
	fingerprint string
	seenAt      time.Time
}

// NewDedupFilter builds a duplicate-suppression filter bounded by
// maxEntries and window, whichever binds first.
func NewDedupFilter(maxEntries int, window time.Duration, clock clockwork.Clock) *DedupFilter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &DedupFilter{
		maxEntries: maxEntries,
		window:     window,
		clock:      clock,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (f *DedupFilter) Name() string { return "dedup" }

// Allow admits an event whose fingerprint has not been seen within the
// window, recording it. Events without a fingerprint pass untouched.
func (f *DedupFilter) Allow(ev types.Event) (bool, string) {
	we, ok := ev.(*types.WeatherEvent)
	if !ok || we.Fingerprint == "" {
		return true, ""
	}

	now := f.clock.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.evictExpired(now)

	if el, seen := f.entries[we.Fingerprint]; seen {
		el.Value.(*dedupEntry).seenAt = now
		f.order.MoveToFront(el)
		return false, "duplicate"
	}

	f.entries[we.Fingerprint] = f.order.PushFront(&dedupEntry{
		fingerprint: we.Fingerprint,
		seenAt:      now,
	})
	for f.order.Len() > f.maxEntries {
		f.evictOldest()
	}
	return true, ""
}

// Len reports the current number of tracked fingerprints.
func (f *DedupFilter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.order.Len()
}

func (f *DedupFilter) evictExpired(now time.Time) {
	for {
		back := f.order.Back()
		if back == nil {
			return
		}
		e := back.Value.(*dedupEntry)
		if now.Sub(e.seenAt) < f.window {
			return
		}
		f.order.Remove(back)
		delete(f.entries, e.fingerprint)
	}
}

func (f *DedupFilter) evictOldest() {
	back := f.order.Back()
	if back == nil {
		return
	}
	e := back.Value.(*dedupEntry)
	f.order.Remove(back)
	delete(f.entries, e.fingerprint)
}
