package feed

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"sync/atomic"
	"time"

	"blobview/internal/mirror"
	"blobview/internal/protocol"
)

// State is the listener's connection lifecycle.
type State int32

const (
	StateListening State = iota
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

type Config struct {
	// Addr is the host:port the producer dials into.
	Addr string
	// DisconnectTimeout bounds the idle wait between frames; a producer
	// silent for longer is treated as gone and the listener re-arms.
	DisconnectTimeout time.Duration
	// ReadTimeout bounds the delivery of a frame's remainder once its
	// length header arrived.
	ReadTimeout time.Duration
	// MaxFrameBytes caps a single frame payload.
	MaxFrameBytes int
}

// Listener accepts one producer connection at a time and feeds parsed
// snapshots into the buffer. Connection loss is routine: the read loop ends,
// the fresh flag clears, and the listener waits for the next dial. Only the
// initial bind is fatal.
type Listener struct {
	cfg Config
	log *log.Logger
	buf *Buffer

	ln    net.Listener
	state atomic.Int32

	session        atomic.Uint64
	frames         atomic.Uint64
	bytes          atomic.Uint64
	malformed      atomic.Uint64
	unknownMsgs    atomic.Uint64
	droppedRecords atomic.Uint64
	lastSeq        atomic.Uint64
	lastErr        atomic.Value // string, a protocol.E_* code
}

func NewListener(cfg Config, buf *Buffer, logger *log.Logger) *Listener {
	return &Listener{cfg: cfg, buf: buf, log: logger}
}

// Listen binds the configured address. Separate from Run so callers can
// fail fast on a bad bind and learn the bound address (tests use :0).
func (l *Listener) Listen() error {
	ln, err := net.Listen("tcp", l.cfg.Addr)
	if err != nil {
		return err
	}
	l.ln = ln
	l.state.Store(int32(StateListening))
	return nil
}

func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Run accepts producers until ctx is done, serving one connection at a
// time; further dials wait in the accept backlog until the active producer
// goes away.
func (l *Listener) Run(ctx context.Context) error {
	if l.ln == nil {
		if err := l.Listen(); err != nil {
			return err
		}
	}
	go func() {
		<-ctx.Done()
		_ = l.ln.Close()
	}()
	l.log.Printf("listening for producer on %s", l.ln.Addr())

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.log.Printf("accept: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		sess := l.session.Add(1)
		l.state.Store(int32(StateConnected))
		l.log.Printf("producer connected from %s (session %d)", conn.RemoteAddr(), sess)

		l.serveConn(ctx, conn, sess)

		l.state.Store(int32(StateDisconnected))
		l.buf.ClearFresh()
		l.state.Store(int32(StateListening))
		l.log.Printf("producer disconnected (session %d); listening", sess)
	}
}

func (l *Listener) serveConn(ctx context.Context, conn net.Conn, sess uint64) {
	defer conn.Close()

	// Unblock the read on shutdown.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	fr := NewFrameReader(conn, l.cfg.MaxFrameBytes)
	var autoSeq uint64
	for {
		payload, err := fr.Next(l.cfg.DisconnectTimeout, l.cfg.ReadTimeout)
		if err != nil {
			switch {
			case errors.Is(err, ErrFrameTooLarge):
				l.malformed.Add(1)
				l.noteError(protocol.ErrFrameDecode)
				l.log.Printf("%s: oversized frame skipped (session %d)", protocol.ErrFrameDecode, sess)
				continue
			case isTimeout(err):
				l.noteError(protocol.ErrStaleConn)
				l.log.Printf("%s: no complete frame within %s (session %d)", protocol.ErrStaleConn, l.cfg.DisconnectTimeout, sess)
			case errors.Is(err, io.EOF):
				// Peer closed between frames.
			case ctx.Err() != nil:
			default:
				l.noteError(protocol.ErrTransport)
				l.log.Printf("%s: read: %v (session %d)", protocol.ErrTransport, err, sess)
			}
			return
		}
		l.bytes.Add(uint64(len(payload) + 4))

		base, err := protocol.DecodeBase(payload)
		if err != nil {
			// A single bad frame never drops the connection.
			l.malformed.Add(1)
			l.noteError(protocol.ErrFrameDecode)
			l.log.Printf("%s: %v (session %d)", protocol.ErrFrameDecode, err, sess)
			continue
		}
		if base.Type != protocol.TypeSnapshot {
			// A newer producer may send message types this viewer does not
			// know yet; skip them without dropping the connection.
			l.unknownMsgs.Add(1)
			l.noteError(protocol.ErrUnknownType)
			l.log.Printf("%s: %q skipped (session %d)", protocol.ErrUnknownType, base.Type, sess)
			continue
		}

		snap, droppedRecs, err := protocol.DecodeSnapshot(payload)
		if err != nil {
			l.malformed.Add(1)
			l.noteError(protocol.ErrFrameDecode)
			l.log.Printf("%s: %v (session %d)", protocol.ErrFrameDecode, err, sess)
			continue
		}
		if droppedRecs > 0 {
			l.droppedRecords.Add(uint64(droppedRecs))
			l.noteError(protocol.ErrRecordInvalid)
			l.log.Printf("%s: dropped %d record(s) from snapshot seq=%d", protocol.ErrRecordInvalid, droppedRecs, snap.Seq)
		}

		// Producers that leave seq at zero get arrival-order sequencing.
		if snap.Seq == 0 {
			autoSeq++
			snap.Seq = autoSeq
		} else {
			autoSeq = snap.Seq
		}

		l.frames.Add(1)
		l.lastSeq.Store(snap.Seq)
		l.buf.Publish(mirror.Update{Session: sess, Snapshot: snap}, len(payload)+4, time.Now())
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// noteError records the most recent diagnostic code. Codes outside the
// protocol's taxonomy never reach the stats surface.
func (l *Listener) noteError(code string) {
	if protocol.IsKnownCode(code) {
		l.lastErr.Store(code)
	}
}

// State reports the connection lifecycle state.
func (l *Listener) State() State { return State(l.state.Load()) }

// Connected reports whether a producer is currently attached. Part of the
// mirror.Source contract.
func (l *Listener) Connected() bool { return l.State() == StateConnected }

// Latest hands out the most recent buffered snapshot. Part of the
// mirror.Source contract.
func (l *Listener) Latest() (mirror.Update, bool) { return l.buf.Latest() }

// Stats is the diagnostics view of the feed. Part of the mirror.Source
// contract.
type Stats = mirror.FeedStats

func (l *Listener) Stats(now time.Time) Stats {
	lastErr, _ := l.lastErr.Load().(string)
	return Stats{
		State:           l.State().String(),
		Session:         l.session.Load(),
		FramesReceived:  l.frames.Load(),
		BytesReceived:   l.bytes.Load(),
		MalformedFrames: l.malformed.Load(),
		UnknownMessages: l.unknownMsgs.Load(),
		DroppedRecords:  l.droppedRecords.Load(),
		LastSeq:         l.lastSeq.Load(),
		LastError:       lastErr,
		ReceiveFPS:      l.buf.ReceiveFPS(now),
	}
}
