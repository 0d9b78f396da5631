package protocol

// Error codes reported on the diagnostics surface.
const (
	// Frame/record validation.
	ErrFrameDecode   = "E_FRAME_DECODE"
	ErrRecordInvalid = "E_RECORD_INVALID"
	ErrUnknownType   = "E_UNKNOWN_TYPE"

	// Connection lifecycle.
	ErrTransport = "E_TRANSPORT"
	ErrStaleConn = "E_STALE_CONNECTION"
)

var knownCodes = map[string]struct{}{
	ErrFrameDecode:   {},
	ErrRecordInvalid: {},
	ErrUnknownType:   {},
	ErrTransport:     {},
	ErrStaleConn:     {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
