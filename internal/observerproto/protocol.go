package observerproto

const Version = "1.0"

// StatsResponse is the diagnostics payload served on GET /v1/stats and
// pushed periodically over /v1/ws. Read-only; diagnostic clients never
// participate in synchronization.
type StatsResponse struct {
	ProtocolVersion string `json:"protocol_version"`

	// Feed side.
	ConnectionState string  `json:"connection_state"`
	Session         uint64  `json:"session"`
	FramesReceived  uint64  `json:"frames_received"`
	BytesReceived   uint64  `json:"bytes_received"`
	MalformedFrames uint64  `json:"malformed_frames"`
	UnknownMessages uint64  `json:"unknown_messages"`
	DroppedRecords  uint64  `json:"dropped_records"`
	LastSeq         uint64  `json:"last_seq"`
	LastError       string  `json:"last_error,omitempty"`
	ReceiveFPS      float64 `json:"receive_fps"`

	// Mirror side.
	Entities   int            `json:"entities"`
	ByCategory map[string]int `json:"by_category"`
	ByState    map[string]int `json:"by_state"`
}
