package feed

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"time"
)

// ErrFrameTooLarge reports a frame whose payload was skipped because it
// exceeded the configured limit. The stream stays aligned; only that frame
// is lost.
var ErrFrameTooLarge = errors.New("frame exceeds max size")

type deadlineSetter interface {
	SetReadDeadline(t time.Time) error
}

// FrameReader extracts whole frames from the producer stream. A frame is a
// 4-byte big-endian payload length followed by that many bytes of UTF-8
// JSON; the prefix is part of the wire contract. Partial reads are buffered
// until a full frame is available.
type FrameReader struct {
	br  *bufio.Reader
	ds  deadlineSetter
	max int
}

func NewFrameReader(r io.Reader, maxBytes int) *FrameReader {
	fr := &FrameReader{
		br:  bufio.NewReaderSize(r, 64*1024),
		max: maxBytes,
	}
	if ds, ok := r.(deadlineSetter); ok {
		fr.ds = ds
	}
	return fr
}

// Next blocks until a full frame is available and returns its payload.
// idle bounds the wait for the next header, busy bounds the wait for the
// remainder of a frame once its header arrived; zero disables either.
func (fr *FrameReader) Next(idle, busy time.Duration) ([]byte, error) {
	fr.setDeadline(idle)
	var hdr [4]byte
	if _, err := io.ReadFull(fr.br, hdr[:]); err != nil {
		return nil, err
	}

	fr.setDeadline(busy)
	n := int64(binary.BigEndian.Uint32(hdr[:]))
	if n > int64(fr.max) {
		// Skip the payload so the stream stays aligned.
		if _, err := io.CopyN(io.Discard, fr.br, n); err != nil {
			return nil, err
		}
		return nil, ErrFrameTooLarge
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(fr.br, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (fr *FrameReader) setDeadline(d time.Duration) {
	if fr.ds == nil || d <= 0 {
		return
	}
	_ = fr.ds.SetReadDeadline(time.Now().Add(d))
}

// AppendFrame encodes one payload in wire framing. Shared with the
// development producer and the tests.
func AppendFrame(dst, payload []byte) []byte {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	return append(dst, payload...)
}
