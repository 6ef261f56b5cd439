package observerproto

// Version is the observer protocol version.
const Version = "1.0"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeCancel    = "CANCEL"
)

// Client -> Server. First message on the observer WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// MaxQueue is how many frames may wait for a slow client before older
	// ones are dropped.
	MaxQueue int `json:"max_queue,omitempty"`
}

// Client -> Server. Asks the site to cancel its build.
type ControlMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// HTTP response for GET /v1/bootstrap. Frames on the observer socket are
// binary msgpack site frames.
type BootstrapResponse struct {
	ProtocolVersion string     `json:"protocol_version"`
	Tick            uint64     `json:"tick"`
	Site            SiteParams `json:"site"`
	BlockPalette    []string   `json:"block_palette"`
}

type SiteParams struct {
	SnapshotID   string `json:"snapshot_id"`
	SnapshotName string `json:"snapshot_name"`
	TickRateHz   int    `json:"tick_rate_hz"`
	Origin       [3]int `json:"origin"`
	Facing       int    `json:"facing"`
	BoxMin       [3]int `json:"box_min"`
	BoxMax       [3]int `json:"box_max"`
	CapacityMJ   uint64 `json:"capacity_mj"`
}

// NormalizeQueue clamps a requested frame queue length.
func NormalizeQueue(n int) int {
	if n <= 0 {
		return 8
	}
	if n > 64 {
		return 64
	}
	return n
}
