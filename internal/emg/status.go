package emg

// Quality is the discrete per-channel activity level, ordered weakest first.
type Quality int

const (
	Standby Quality = iota // at rest / below activation threshold
	Weak
	Good
	Strong
	Optimal
)

func (q Quality) String() string {
	switch q {
	case Standby:
		return "STANDBY"
	case Weak:
		return "WEAK"
	case Good:
		return "GOOD"
	case Strong:
		return "STRONG"
	case Optimal:
		return "OPTIMAL"
	default:
		return "UNKNOWN"
	}
}

// ChannelStatus is a point-in-time snapshot of one channel's tracker state.
type ChannelStatus struct {
	Channel    int     `json:"ch"`
	Value      float64 `json:"value"`    // last raw sample, µV
	Baseline   float64 `json:"baseline"` // µV
	NoiseLevel float64 `json:"noise"`    // µV
	Ratio      float64 `json:"ratio"`    // deviation / noise
	Quality    Quality `json:"quality"`  // 0..4
}

// StatusUpdate is the periodic per-channel status message published on MQTT.
type StatusUpdate struct {
	Elapsed   float64                    `json:"elapsed"` // seconds since stream start
	Ticks     uint64                     `json:"ticks"`
	Seeding   bool                       `json:"seeding"`
	Strength  float64                    `json:"strength"` // 0..100 aggregate
	Channels  [NumChannels]ChannelStatus `json:"channels"`
	Connected bool                       `json:"connected"`
}

// RecordingStatus reports recording state transitions on MQTT.
type RecordingStatus struct {
	State   string  `json:"state"` // "idle", "recording", "finalized"
	Label   string  `json:"label,omitempty"`
	Elapsed float64 `json:"elapsed,omitempty"` // seconds
	Frames  int     `json:"frames,omitempty"`
	Path    string  `json:"path,omitempty"` // archive path, set on finalize
	Ready   bool    `json:"ready"`          // vision collaborator loaded
	Error   string  `json:"error,omitempty"`
}

// RecordingCommand is the start/stop control message consumed by the producer.
type RecordingCommand struct {
	Action string `json:"action"` // "start" or "stop"
	Label  string `json:"label,omitempty"`
}

// GestureLabels are the labels offered for recording sessions.
var GestureLabels = []string{
	"fist", "open", "pinch", "thumbs_up", "peace", "pointing", "wave", "rest", "custom",
}
