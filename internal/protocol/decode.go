package protocol

import (
	"encoding/json"
	"fmt"
)

// DecodeError marks a frame that could not be parsed as a snapshot. Only
// the frame is discarded; the connection it arrived on survives.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode snapshot: %v", e.Cause) }
func (e *DecodeError) Unwrap() error { return e.Cause }

// snapshotEnvelope defers record decoding so one bad record cannot poison
// the rest of the snapshot.
type snapshotEnvelope struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	Seq             uint64            `json:"seq"`
	SimTime         float64           `json:"sim_time"`
	Objects         []json.RawMessage `json:"objects"`
}

// DecodeSnapshot parses one frame payload into a snapshot. Records missing
// an id or a category, or not decodable at all, are dropped from the
// snapshot; dropped reports how many. A structural failure of the frame
// itself returns a *DecodeError.
func DecodeSnapshot(b []byte) (SnapshotMsg, int, error) {
	var env snapshotEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return SnapshotMsg{}, 0, &DecodeError{Cause: err}
	}
	if env.Type != TypeSnapshot {
		return SnapshotMsg{}, 0, &DecodeError{Cause: fmt.Errorf("unexpected type %q", env.Type)}
	}

	snap := SnapshotMsg{
		Type:            env.Type,
		ProtocolVersion: env.ProtocolVersion,
		Seq:             env.Seq,
		SimTime:         env.SimTime,
		Objects:         make([]ObjectRecord, 0, len(env.Objects)),
	}
	dropped := 0
	for _, raw := range env.Objects {
		var rec ObjectRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			dropped++
			continue
		}
		if rec.ID == "" || rec.Category == "" {
			dropped++
			continue
		}
		snap.Objects = append(snap.Objects, rec)
	}
	return snap, dropped, nil
}
