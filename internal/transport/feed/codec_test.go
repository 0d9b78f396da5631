package feed

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestFrameReader_MultipleFrames(t *testing.T) {
	var wire []byte
	wire = AppendFrame(wire, []byte("first"))
	wire = AppendFrame(wire, []byte(""))
	wire = AppendFrame(wire, []byte("third frame payload"))

	fr := NewFrameReader(bytes.NewReader(wire), 1024)
	want := []string{"first", "", "third frame payload"}
	for i, w := range want {
		got, err := fr.Next(0, 0)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if string(got) != w {
			t.Fatalf("frame %d = %q, want %q", i, got, w)
		}
	}
	if _, err := fr.Next(0, 0); err != io.EOF {
		t.Fatalf("after last frame: err = %v, want io.EOF", err)
	}
}

// chunkReader hands out one byte per Read to force partial reads.
type chunkReader struct {
	data []byte
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	p[0] = c.data[0]
	c.data = c.data[1:]
	return 1, nil
}

func TestFrameReader_PartialReadsBuffered(t *testing.T) {
	var wire []byte
	wire = AppendFrame(wire, []byte("slow and steady"))
	wire = AppendFrame(wire, []byte("second"))

	fr := NewFrameReader(&chunkReader{data: wire}, 1024)
	got, err := fr.Next(0, 0)
	if err != nil || string(got) != "slow and steady" {
		t.Fatalf("first frame = %q, %v", got, err)
	}
	got, err = fr.Next(0, 0)
	if err != nil || string(got) != "second" {
		t.Fatalf("second frame = %q, %v", got, err)
	}
}

func TestFrameReader_OversizedFrameSkipsAndRealigns(t *testing.T) {
	var wire []byte
	wire = AppendFrame(wire, bytes.Repeat([]byte("x"), 100))
	wire = AppendFrame(wire, []byte("ok"))

	fr := NewFrameReader(bytes.NewReader(wire), 64)
	_, err := fr.Next(0, 0)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("err = %v, want ErrFrameTooLarge", err)
	}
	got, err := fr.Next(0, 0)
	if err != nil || string(got) != "ok" {
		t.Fatalf("frame after skip = %q, %v", got, err)
	}
}

func TestFrameReader_TruncatedFrame(t *testing.T) {
	var wire []byte
	wire = AppendFrame(wire, []byte("complete"))
	wire = append(wire, AppendFrame(nil, []byte("truncated"))[:7]...)

	fr := NewFrameReader(bytes.NewReader(wire), 1024)
	if _, err := fr.Next(0, 0); err != nil {
		t.Fatalf("complete frame: %v", err)
	}
	if _, err := fr.Next(0, 0); err == nil {
		t.Fatalf("truncated frame should error")
	}
}
