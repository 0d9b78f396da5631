package mirror

import "time"

// FeedStats is the transport-side half of the diagnostics surface.
type FeedStats struct {
	State           string  `json:"state"`
	Session         uint64  `json:"session"`
	FramesReceived  uint64  `json:"frames_received"`
	BytesReceived   uint64  `json:"bytes_received"`
	MalformedFrames uint64  `json:"malformed_frames"`
	UnknownMessages uint64  `json:"unknown_messages"`
	DroppedRecords  uint64  `json:"dropped_records"`
	LastSeq         uint64  `json:"last_seq"`
	LastError       string  `json:"last_error,omitempty"`
	ReceiveFPS      float64 `json:"receive_fps"`
}

// Source is the feed side of the engine: the latest published snapshot,
// the connection state, and the receive counters. *feed.Listener satisfies
// it.
type Source interface {
	// Latest returns the most recent snapshot not yet handed out.
	Latest() (Update, bool)
	// Connected reports whether a producer is currently attached.
	Connected() bool
	// Stats reports the receive counters.
	Stats(now time.Time) FeedStats
}

// Engine ties the feed to the mirrored population. The display loop calls
// Update once per frame; camera/scene/draw collaborators read entities
// through the population and never block on network I/O.
type Engine struct {
	src Source
	rec *Reconciler
	pop *Population

	disconnectTimeout time.Duration

	lastTick     time.Time
	connected    bool
	disconnected time.Time
}

func NewEngine(src Source, pop *Population, rec *Reconciler, disconnectTimeout time.Duration) *Engine {
	return &Engine{
		src:               src,
		rec:               rec,
		pop:               pop,
		disconnectTimeout: disconnectTimeout,
	}
}

// Update advances interpolation by the wall time since the previous call,
// pulls the newest buffered snapshot if one arrived, reconciles it, and
// applies the disconnect-timeout rule.
func (g *Engine) Update(now time.Time) {
	var elapsed time.Duration
	if !g.lastTick.IsZero() {
		elapsed = now.Sub(g.lastTick)
	}
	g.lastTick = now

	// Advance with the elapsed wall time first so entities retargeted by a
	// snapshot applied this frame come out of Update at progress 0.
	if elapsed > 0 {
		g.rec.Advance(elapsed)
	}

	if u, ok := g.src.Latest(); ok {
		g.rec.Apply(u)
	}

	if g.src.Connected() {
		g.connected = true
		g.disconnected = time.Time{}
	} else {
		if g.connected {
			g.connected = false
			g.disconnected = now
		}
		// Entities fade via the miss rule while the producer is only
		// briefly gone; past the timeout the whole mirror is stale.
		if !g.disconnected.IsZero() && g.disconnectTimeout > 0 &&
			now.Sub(g.disconnected) >= g.disconnectTimeout && g.pop.Len() > 0 {
			g.rec.Clear()
		}
	}
}

// Stats is the consumer diagnostics view: feed counters plus population
// aggregates, so render-side collaborators never hold the transport handle.
type Stats struct {
	Feed       FeedStats      `json:"feed"`
	Entities   int            `json:"entities"`
	ByCategory map[string]int `json:"by_category"`
	ByState    map[string]int `json:"by_state"`
}

func (g *Engine) Stats(now time.Time) Stats {
	return Stats{
		Feed:       g.src.Stats(now),
		Entities:   g.pop.Len(),
		ByCategory: g.pop.CountsByCategory(),
		ByState:    g.pop.CountsByState(),
	}
}

// Entities returns read-only views of every live entity.
func (g *Engine) Entities() []EntityView { return g.pop.Entities() }

// Population exposes the read API (lookups, counts) to collaborators.
func (g *Engine) Population() *Population { return g.pop }
