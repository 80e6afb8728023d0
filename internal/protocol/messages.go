package protocol

// CHAT (bridge -> server)
type ChatMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Author          string  `json:"author"`
	Message         string  `json:"message"`
	IsPaid          bool    `json:"is_paid,omitempty"`
	PaidAmount      float64 `json:"paid_amount,omitempty"`
}

// METRICS (bridge -> server). Absent counters are left unchanged.
type MetricsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Likes           *int64 `json:"likes,omitempty"`
	Subscribers     *int64 `json:"subscribers,omitempty"`
}

// BLOCK_BROKEN (renderer -> server)
type BlockBrokenMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Block           string `json:"block"`
}

// ACK (server -> bridge)
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Queued          int    `json:"queued"`
	Evicted         bool   `json:"evicted,omitempty"` // the oldest queued message was dropped to make room
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

// Event kinds carried by EventMsg.
const (
	EventAccepted    = "ACCEPTED"
	EventRejected    = "REJECTED"
	EventScore       = "SCORE"
	EventLeaderboard = "LEADERBOARD"
	EventIntent      = "INTENT"
	EventReset       = "RESET"
)

// EVENT (server -> observers)
type EventMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Tick            uint64 `json:"tick"`
	Kind            string `json:"kind"`

	Author            string  `json:"author,omitempty"`
	Token             string  `json:"token,omitempty"`
	PossessionChanged bool    `json:"possession_changed,omitempty"`
	Previous          string  `json:"previous,omitempty"`
	Code              string  `json:"code,omitempty"`
	RemainingSeconds  float64 `json:"remaining_seconds,omitempty"`

	Block  string `json:"block,omitempty"`
	Points int    `json:"points,omitempty"`

	Leaderboard []Standing `json:"leaderboard,omitempty"`
	Intent      *Intent    `json:"intent,omitempty"`
}

type Standing struct {
	Player       string `json:"player"`
	Score        int    `json:"score"`
	BlocksBroken int    `json:"blocks_broken"`
}

// Intent is a request to the renderer. Times are unix milliseconds.
type Intent struct {
	Op      string  `json:"op"`
	Token   string  `json:"token"`
	Author  string  `json:"author,omitempty"`
	Units   int     `json:"units,omitempty"`
	Steps   int     `json:"steps,omitempty"`
	Speed   float64 `json:"speed,omitempty"`
	Tool    string  `json:"tool,omitempty"`
	AtMS    int64   `json:"at_ms"`
	UntilMS int64   `json:"until_ms,omitempty"`
}
