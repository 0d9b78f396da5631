package mirror

import (
	"time"

	"blobview/internal/protocol"
)

// Update is one published snapshot plus the connection session it arrived
// on. Sequence numbers restart with each session.
type Update struct {
	Session  uint64
	Snapshot protocol.SnapshotMsg
}

// Reconciler diffs incoming snapshots against the population and applies
// create/update/remove. It is the only writer of the population; callers
// drive it from a single goroutine (the display loop).
type Reconciler struct {
	pop       *Population
	tolerance int
	duration  time.Duration

	session uint64
	lastSeq uint64
	applied uint64
}

// NewReconciler builds a reconciler over pop. tolerance is the number of
// consecutive snapshots an identity may be absent from before its entity is
// removed; transition is the interpolation duration per target update.
func NewReconciler(pop *Population, tolerance int, transition time.Duration) *Reconciler {
	if tolerance < 0 {
		tolerance = 0
	}
	return &Reconciler{pop: pop, tolerance: tolerance, duration: transition}
}

// Apply reconciles one snapshot. Snapshots that are not newer than the last
// applied one in the same session are ignored; sequence gaps are fine (the
// buffer skips intermediates by design). Reports whether it applied.
func (r *Reconciler) Apply(u Update) bool {
	if u.Session != r.session {
		r.session = u.Session
		r.lastSeq = 0
	} else if r.lastSeq != 0 && u.Snapshot.Seq <= r.lastSeq {
		return false
	}

	p := r.pop
	p.mu.Lock()
	defer p.mu.Unlock()

	seq := u.Snapshot.Seq
	seen := make(map[string]struct{}, len(u.Snapshot.Objects))
	// Records apply in order; a duplicate identity retargets again, so the
	// last occurrence wins.
	for _, rec := range u.Snapshot.Objects {
		seen[rec.ID] = struct{}{}
		if e, ok := p.ents[rec.ID]; ok {
			e.retarget(rec, seq)
			continue
		}
		p.ents[rec.ID] = newEntity(rec, seq)
	}

	// A single missed snapshot is usually a dropped frame, not a removal;
	// entities go only after more than tolerance consecutive misses.
	for id, e := range p.ents {
		if _, ok := seen[id]; ok {
			continue
		}
		e.misses++
		if e.misses > r.tolerance {
			delete(p.ents, id)
		}
	}

	r.lastSeq = seq
	r.applied++
	return true
}

// Advance moves interpolation forward by elapsed wall time. Invoked by the
// display loop, independent of snapshot arrival.
func (r *Reconciler) Advance(elapsed time.Duration) {
	p := r.pop
	p.mu.Lock()
	for _, e := range p.ents {
		e.advance(elapsed, r.duration)
	}
	p.mu.Unlock()
}

// Clear removes every entity. Used when the producer has been gone past
// the disconnect timeout.
func (r *Reconciler) Clear() {
	p := r.pop
	p.mu.Lock()
	p.ents = make(map[string]*Entity)
	p.mu.Unlock()
}

// Applied reports how many snapshots have been reconciled.
func (r *Reconciler) Applied() uint64 { return r.applied }
