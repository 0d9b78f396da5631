package feed

import (
	"sync"
	"time"

	"blobview/internal/mirror"
)

// rateStaleAfter is how long after the last received snapshot the rate
// estimate decays to zero.
const rateStaleAfter = 2 * time.Second

// Buffer is the single synchronized handoff between the read loop and the
// consumer. Latest value wins: a newer snapshot replaces the prior one
// whether or not it was read, so a slow consumer skips intermediates
// instead of falling behind real time. The lock is held only for the swap;
// parsing happens on the network side before Publish.
type Buffer struct {
	mu     sync.Mutex
	latest mirror.Update
	fresh  bool

	samples []sample
	next    int
	filled  bool
}

type sample struct {
	at    time.Time
	bytes int
	seq   uint64
}

func NewBuffer(history int) *Buffer {
	if history < 2 {
		history = 2
	}
	return &Buffer{samples: make([]sample, history)}
}

// Publish replaces the latest snapshot. Read-loop side only.
func (b *Buffer) Publish(u mirror.Update, wireBytes int, at time.Time) {
	b.mu.Lock()
	b.latest = u
	b.fresh = true
	b.samples[b.next] = sample{at: at, bytes: wireBytes, seq: u.Snapshot.Seq}
	b.next++
	if b.next == len(b.samples) {
		b.next = 0
		b.filled = true
	}
	b.mu.Unlock()
}

// Latest returns the most recent snapshot not yet handed out.
func (b *Buffer) Latest() (mirror.Update, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.fresh {
		return mirror.Update{}, false
	}
	b.fresh = false
	return b.latest, true
}

// ClearFresh drops the unread flag so the consumer does not reconcile a
// snapshot from a connection that is already gone. The entity population is
// untouched; entities fade via the removal rules.
func (b *Buffer) ClearFresh() {
	b.mu.Lock()
	b.fresh = false
	b.mu.Unlock()
}

// ReceiveFPS estimates the incoming snapshot rate over the recent ring.
func (b *Buffer) ReceiveFPS(now time.Time) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.next
	if b.filled {
		n = len(b.samples)
	}
	if n < 2 {
		return 0
	}
	newest := b.samples[(b.next-1+len(b.samples))%len(b.samples)]
	oldest := b.samples[0]
	if b.filled {
		oldest = b.samples[b.next]
	}
	if now.Sub(newest.at) > rateStaleAfter {
		return 0
	}
	span := newest.at.Sub(oldest.at)
	if span <= 0 {
		return 0
	}
	return float64(n-1) / span.Seconds()
}
