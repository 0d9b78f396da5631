package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"time"

	"blobview/internal/protocol"
	"blobview/internal/transport/feed"
)

// simfeed is a development producer: it dials the viewer and streams
// synthetic snapshots over the length-prefixed wire, close enough to the
// real simulation to soak-test reconciliation, miss tolerance, and the
// malformed-frame path.

const (
	worldSize    = 100.0
	walkSpeed    = 5.0 // units per second
	blobStateMin = 2 * time.Second
	blobStateMax = 6 * time.Second
)

type blob struct {
	id    string
	pos   [3]float64
	dir   [2]float64
	state string
	until time.Time
}

func (b *blob) step(r *rand.Rand, now time.Time, dt float64) {
	if now.After(b.until) {
		if b.state == protocol.StateWalking {
			b.state = protocol.StateIdle
			if r.Intn(3) == 0 {
				b.state = protocol.StateResting
			}
		} else {
			b.state = protocol.StateWalking
			angle := r.Float64() * 2 * math.Pi
			b.dir = [2]float64{math.Cos(angle), math.Sin(angle)}
		}
		b.until = now.Add(blobStateMin + time.Duration(r.Int63n(int64(blobStateMax-blobStateMin))))
	}
	if b.state != protocol.StateWalking {
		return
	}
	b.pos[0] += b.dir[0] * walkSpeed * dt
	b.pos[1] += b.dir[1] * walkSpeed * dt
	for i := 0; i < 2; i++ {
		if b.pos[i] < 0 {
			b.pos[i] = 0
			b.state = protocol.StateIdle
		}
		if b.pos[i] > worldSize {
			b.pos[i] = worldSize
			b.state = protocol.StateIdle
		}
	}
}

func angleOf(dir [2]float64) float64 {
	if dir[0] == 0 && dir[1] == 0 {
		return 0
	}
	return math.Atan2(dir[1], dir[0])
}

func main() {
	var (
		addr          = flag.String("addr", "127.0.0.1:5000", "viewer address")
		rate          = flag.Int("rate", 60, "snapshots per second")
		blobs         = flag.Int("blobs", 4, "number of wandering blobs")
		things        = flag.Int("things", 6, "number of static things")
		seed          = flag.Int64("seed", 1, "rng seed")
		malformedEvry = flag.Int("malformed_every", 0, "inject a garbage frame every N snapshots (0: never)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[simfeed] ", log.LstdFlags|log.Lmicroseconds)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for ctx.Err() == nil {
		conn, err := net.Dial("tcp", *addr)
		if err != nil {
			logger.Printf("dial %s: %v (retrying)", *addr, err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		logger.Printf("connected to %s", *addr)
		if err := stream(ctx, conn, logger, *rate, *blobs, *things, *seed, *malformedEvry); err != nil {
			logger.Printf("stream: %v", err)
		}
		_ = conn.Close()
	}
}

func stream(ctx context.Context, conn net.Conn, logger *log.Logger, rate, nblobs, nthings int, seed int64, malformedEvery int) error {
	r := rand.New(rand.NewSource(seed))

	bs := make([]*blob, nblobs)
	for i := range bs {
		bs[i] = &blob{
			id:    fmt.Sprintf("blob_%d", i+1),
			pos:   [3]float64{r.Float64() * worldSize, r.Float64() * worldSize, 0},
			state: protocol.StateIdle,
		}
	}
	thingTypes := []string{"food", "water", "obstacle", "shelter"}
	thingRecs := make([]protocol.ObjectRecord, nthings)
	for i := range thingRecs {
		tt := thingTypes[i%len(thingTypes)]
		thingRecs[i] = protocol.ObjectRecord{
			ID:       fmt.Sprintf("thing_%d", i+1),
			Category: protocol.CategoryThing,
			Pos:      [3]float64{r.Float64() * worldSize, r.Float64() * worldSize, 0},
			State:    tt,
			Attrs:    map[string]any{"type": tt},
		}
	}

	tick := time.NewTicker(time.Second / time.Duration(rate))
	defer tick.Stop()

	var seq uint64
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-tick.C:
			dt := now.Sub(last).Seconds()
			last = now
			seq++

			if malformedEvery > 0 && seq%uint64(malformedEvery) == 0 {
				if _, err := conn.Write(feed.AppendFrame(nil, []byte("{garbage"))); err != nil {
					return err
				}
				continue
			}

			snap := protocol.SnapshotMsg{
				Type:            protocol.TypeSnapshot,
				ProtocolVersion: protocol.Version,
				Seq:             seq,
				SimTime:         float64(seq) / float64(rate),
				Objects:         make([]protocol.ObjectRecord, 0, len(bs)+len(thingRecs)),
			}
			for _, b := range bs {
				b.step(r, now, dt)
				yaw := angleOf(b.dir)
				snap.Objects = append(snap.Objects, protocol.ObjectRecord{
					ID:       b.id,
					Category: protocol.CategoryBlob,
					Pos:      b.pos,
					Yaw:      &yaw,
					State:    b.state,
					Attrs:    map[string]any{"name": b.id, "alive": true},
				})
			}
			snap.Objects = append(snap.Objects, thingRecs...)

			payload, err := json.Marshal(snap)
			if err != nil {
				return err
			}
			if err := conn.SetWriteDeadline(time.Now().Add(2 * time.Second)); err != nil {
				return err
			}
			if _, err := conn.Write(feed.AppendFrame(nil, payload)); err != nil {
				return err
			}
			if seq%uint64(rate*10) == 0 {
				logger.Printf("sent %d snapshots", seq)
			}
		}
	}
}
