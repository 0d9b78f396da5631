package observer

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"blobview/internal/mirror"
	"blobview/internal/observerproto"
	"blobview/internal/protocol"
	"blobview/internal/transport/feed"
)

func newTestServer(t *testing.T) (*Server, *mirror.Reconciler) {
	t.Helper()
	buf := feed.NewBuffer(8)
	l := feed.NewListener(feed.Config{Addr: "127.0.0.1:0"}, buf, log.New(io.Discard, "", 0))
	pop := mirror.NewPopulation()
	rec := mirror.NewReconciler(pop, 2, 100*time.Millisecond)
	return NewServer(l, pop, 10*time.Millisecond, log.New(io.Discard, "", 0)), rec
}

func seedEntities(t *testing.T, rec *mirror.Reconciler) {
	t.Helper()
	ok := rec.Apply(mirror.Update{Session: 1, Snapshot: protocol.SnapshotMsg{
		Type: protocol.TypeSnapshot,
		Seq:  1,
		Objects: []protocol.ObjectRecord{
			{ID: "b1", Category: protocol.CategoryBlob, Pos: [3]float64{0, 0, 0}, State: protocol.StateIdle},
			{ID: "t1", Category: protocol.CategoryThing, Pos: [3]float64{1, 1, 0}, State: "food"},
		},
	}})
	if !ok {
		t.Fatalf("seed apply failed")
	}
}

func TestStatsHandler(t *testing.T) {
	s, rec := newTestServer(t)
	seedEntities(t, rec)

	srv := httptest.NewServer(s.StatsHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var got observerproto.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ProtocolVersion != observerproto.Version {
		t.Fatalf("protocol version = %q", got.ProtocolVersion)
	}
	if got.ConnectionState != "listening" {
		t.Fatalf("connection state = %q", got.ConnectionState)
	}
	if got.Entities != 2 || got.ByCategory[protocol.CategoryBlob] != 1 || got.ByCategory[protocol.CategoryThing] != 1 {
		t.Fatalf("entity counts = %+v", got)
	}
}

func TestStatsHandler_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.StatsHandler())
	defer srv.Close()

	resp, err := http.Post(srv.URL, "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

func TestWSHandler_PushesStats(t *testing.T) {
	s, rec := newTestServer(t)
	seedEntities(t, rec)

	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// First push is immediate; a second one follows on the interval.
	for i := 0; i < 2; i++ {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got observerproto.StatsResponse
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if got.Entities != 2 {
			t.Fatalf("push %d entities = %d, want 2", i, got.Entities)
		}
	}
}
