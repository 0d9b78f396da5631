package protocol

// Object categories. Unknown categories pass through untouched so the
// producer can introduce new kinds of objects without a viewer upgrade.
const (
	CategoryBlob  = "blob"
	CategoryThing = "thing"
)

// Visual-state tags carried by blob records. Thing records use their type
// ("food", "water", "obstacle", "shelter", ...) as the tag.
const (
	StateIdle         = "idle"
	StateWalking      = "walking"
	StateWalkingTimed = "walking_timed"
	StateResting      = "resting"
	StateDead         = "dead"
)

// SNAPSHOT (producer -> viewer): one complete update of all object states.
// seq must be monotonically increasing per connection; a producer that
// leaves it at zero gets arrival-order sequencing assigned on receive.
type SnapshotMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Seq             uint64         `json:"seq"`
	SimTime         float64        `json:"sim_time,omitempty"`
	Objects         []ObjectRecord `json:"objects"`
}

// ObjectRecord is one simulated object inside a snapshot. Unknown fields
// are ignored so the contract stays versionable.
type ObjectRecord struct {
	ID       string         `json:"id"`
	Category string         `json:"category"`
	Pos      [3]float64     `json:"pos"`
	Yaw      *float64       `json:"yaw,omitempty"`
	State    string         `json:"state,omitempty"`
	Attrs    map[string]any `json:"attrs,omitempty"`
}
