package observer

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"blobview/internal/mirror"
	"blobview/internal/observerproto"
	"blobview/internal/transport/feed"
)

// Server exposes the engine's diagnostics to local tooling. It only reads
// the feed counters and the population; it cannot mutate either.
type Server struct {
	feed     *feed.Listener
	pop      *mirror.Population
	log      *log.Logger
	interval time.Duration

	upgrader websocket.Upgrader
}

func NewServer(l *feed.Listener, pop *mirror.Population, interval time.Duration, logger *log.Logger) *Server {
	if interval <= 0 {
		interval = time.Second
	}
	return &Server{
		feed:     l,
		pop:      pop,
		log:      logger,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) stats(now time.Time) observerproto.StatsResponse {
	fs := s.feed.Stats(now)
	return observerproto.StatsResponse{
		ProtocolVersion: observerproto.Version,
		ConnectionState: fs.State,
		Session:         fs.Session,
		FramesReceived:  fs.FramesReceived,
		BytesReceived:   fs.BytesReceived,
		MalformedFrames: fs.MalformedFrames,
		UnknownMessages: fs.UnknownMessages,
		DroppedRecords:  fs.DroppedRecords,
		LastSeq:         fs.LastSeq,
		LastError:       fs.LastError,
		ReceiveFPS:      fs.ReceiveFPS,
		Entities:        s.pop.Len(),
		ByCategory:      s.pop.CountsByCategory(),
		ByState:         s.pop.CountsByState(),
	}
}

func (s *Server) StatsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(s.stats(time.Now()))
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// The reader goroutine only detects the client going away.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		push := func(now time.Time) error {
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			return conn.WriteJSON(s.stats(now))
		}
		if err := push(time.Now()); err != nil {
			return
		}

		tick := time.NewTicker(s.interval)
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-tick.C:
				if err := push(now); err != nil {
					return
				}
			}
		}
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
