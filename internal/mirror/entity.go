package mirror

import (
	"time"

	"blobview/internal/protocol"
)

// Vec3 is a world-space position in the producer's coordinate system.
type Vec3 [3]float64

// Lerp interpolates component-wise between a and b. Callers clamp t.
func (a Vec3) Lerp(b Vec3, t float64) Vec3 {
	return Vec3{
		a[0] + (b[0]-a[0])*t,
		a[1] + (b[1]-a[1])*t,
		a[2] + (b[2]-a[2])*t,
	}
}

// Entity mirrors one simulated object. Identity and category are fixed for
// the entity's lifetime; everything else tracks the most recent snapshot.
// All fields are owned by the Reconciler, external collaborators only ever
// see EntityView copies.
type Entity struct {
	id       string
	category string
	state    string
	attrs    map[string]any

	source Vec3
	target Vec3
	srcYaw float64
	tgtYaw float64

	// progress runs 0..1 from source to target, advanced by the display
	// loop's elapsed time, reset to 0 on each retarget.
	progress float64

	lastSeen uint64
	misses   int
}

func newEntity(rec protocol.ObjectRecord, seq uint64) *Entity {
	e := &Entity{
		id:       rec.ID,
		category: rec.Category,
		state:    rec.State,
		attrs:    rec.Attrs,
		source:   Vec3(rec.Pos),
		target:   Vec3(rec.Pos),
		progress: 1, // no motion on spawn
		lastSeen: seq,
	}
	if rec.Yaw != nil {
		e.srcYaw = *rec.Yaw
		e.tgtYaw = *rec.Yaw
	}
	return e
}

// retarget folds a newer record into the entity. Interpolation restarts
// from the currently rendered position so motion stays continuous even
// when the previous transition had not finished.
func (e *Entity) retarget(rec protocol.ObjectRecord, seq uint64) {
	e.source = e.renderedPos()
	e.srcYaw = e.renderedYaw()
	e.target = Vec3(rec.Pos)
	if rec.Yaw != nil {
		e.tgtYaw = *rec.Yaw
	}
	e.progress = 0
	e.state = rec.State
	e.attrs = rec.Attrs
	e.lastSeen = seq
	e.misses = 0
}

func (e *Entity) advance(elapsed, duration time.Duration) {
	if duration <= 0 {
		e.progress = 1
		return
	}
	e.progress += float64(elapsed) / float64(duration)
	if e.progress > 1 {
		e.progress = 1
	}
}

func (e *Entity) renderedPos() Vec3 {
	if e.progress >= 1 {
		return e.target
	}
	return e.source.Lerp(e.target, e.progress)
}

func (e *Entity) renderedYaw() float64 {
	if e.progress >= 1 {
		return e.tgtYaw
	}
	return e.srcYaw + (e.tgtYaw-e.srcYaw)*e.progress
}

// EntityView is the read-only copy handed to render-side consumers.
type EntityView struct {
	ID       string
	Category string
	State    string
	Attrs    map[string]any

	// Pos is the interpolated position to draw this display frame;
	// Target is where the simulation last placed the object.
	Pos      Vec3
	Target   Vec3
	Yaw      float64
	Progress float64

	LastSeen uint64
}

func (e *Entity) view() EntityView {
	v := EntityView{
		ID:       e.id,
		Category: e.category,
		State:    e.state,
		Pos:      e.renderedPos(),
		Target:   e.target,
		Yaw:      e.renderedYaw(),
		Progress: e.progress,
		LastSeen: e.lastSeen,
	}
	if len(e.attrs) > 0 {
		v.Attrs = make(map[string]any, len(e.attrs))
		for k, val := range e.attrs {
			v.Attrs[k] = val
		}
	}
	return v
}
