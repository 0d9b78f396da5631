package protocol

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeSnapshot_Valid(t *testing.T) {
	b := []byte(`{
	  "type":"SNAPSHOT",
	  "protocol_version":"1.0",
	  "seq":7,
	  "sim_time":12.5,
	  "objects":[
	    {"id":"b1","category":"blob","pos":[1,2,3],"state":"walking","attrs":{"name":"Bob","alive":true}},
	    {"id":"t1","category":"thing","pos":[4,5,0],"state":"food"}
	  ]
	}`)
	snap, dropped, err := DecodeSnapshot(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dropped != 0 {
		t.Fatalf("dropped = %d, want 0", dropped)
	}
	want := SnapshotMsg{
		Type:            TypeSnapshot,
		ProtocolVersion: "1.0",
		Seq:             7,
		SimTime:         12.5,
		Objects: []ObjectRecord{
			{ID: "b1", Category: CategoryBlob, Pos: [3]float64{1, 2, 3}, State: StateWalking, Attrs: map[string]any{"name": "Bob", "alive": true}},
			{ID: "t1", Category: CategoryThing, Pos: [3]float64{4, 5, 0}, State: "food"},
		},
	}
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeSnapshot_UnknownFieldsIgnored(t *testing.T) {
	b := []byte(`{"type":"SNAPSHOT","protocol_version":"1.1","seq":1,"future_field":{"x":1},
	  "objects":[{"id":"a","category":"blob","pos":[0,0,0],"shiny":"yes"}]}`)
	snap, dropped, err := DecodeSnapshot(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dropped != 0 || len(snap.Objects) != 1 {
		t.Fatalf("dropped=%d objects=%d, want 0/1", dropped, len(snap.Objects))
	}
}

func TestDecodeSnapshot_DropsInvalidRecords(t *testing.T) {
	b := []byte(`{"type":"SNAPSHOT","protocol_version":"1.0","seq":2,"objects":[
	  {"id":"a","category":"blob","pos":[0,0,0]},
	  {"category":"blob","pos":[1,1,1]},
	  {"id":"c","pos":[2,2,2]},
	  {"id":"d","category":"blob","pos":"not a position"},
	  "not an object",
	  {"id":"e","category":"thing","pos":[9,9,9]}
	]}`)
	snap, dropped, err := DecodeSnapshot(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dropped != 4 {
		t.Fatalf("dropped = %d, want 4", dropped)
	}
	if len(snap.Objects) != 2 || snap.Objects[0].ID != "a" || snap.Objects[1].ID != "e" {
		t.Fatalf("surviving records = %+v", snap.Objects)
	}
}

func TestDecodeSnapshot_BadFrame(t *testing.T) {
	cases := []struct {
		name string
		b    []byte
	}{
		{"truncated json", []byte(`{"type":"SNAPSHOT","seq":1,"objects":[`)},
		{"not json", []byte("hello world")},
		{"wrong type", []byte(`{"type":"HELLO","protocol_version":"1.0"}`)},
		{"empty", nil},
	}
	for _, tc := range cases {
		_, _, err := DecodeSnapshot(tc.b)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("%s: error %v is not a *DecodeError", tc.name, err)
		}
	}
}

func TestDecodeSnapshot_DuplicateIDsSurviveDecode(t *testing.T) {
	// De-duplication is the reconciler's job (last occurrence wins there);
	// the codec must preserve order and both occurrences.
	b := []byte(`{"type":"SNAPSHOT","seq":3,"objects":[
	  {"id":"a","category":"blob","pos":[0,0,0]},
	  {"id":"a","category":"blob","pos":[5,0,0]}
	]}`)
	snap, dropped, err := DecodeSnapshot(b)
	if err != nil || dropped != 0 {
		t.Fatalf("decode: err=%v dropped=%d", err, dropped)
	}
	if len(snap.Objects) != 2 || snap.Objects[1].Pos != [3]float64{5, 0, 0} {
		t.Fatalf("objects = %+v", snap.Objects)
	}
}
