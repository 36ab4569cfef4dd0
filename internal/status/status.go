// Package status provides a thread-safe status tracker for the rf-receiver daemon.
// It is read by the HTTP handlers and by the MQTT system events.
package status

import (
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"github.com/sweeney/rf-receiver/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

// DefaultNetworkEnvFile is where pi-helper writes the current network state.
const DefaultNetworkEnvFile = "/run/pi-helper.env"

// ReadNetworkInfo reads network state from the pi-helper env file, falling
// back to the process environment when the file is absent.
// Returns nil if no network status is known.
func ReadNetworkInfo(path string) *NetworkInfo {
	get := os.Getenv
	if path != "" {
		if env, err := godotenv.Read(path); err == nil {
			get = func(k string) string {
				if v, ok := env[k]; ok {
					return v
				}
				return os.Getenv(k)
			}
		}
	}

	s := get(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &NetworkInfo{
		Type:       get(envNetworkType),
		IP:         get(envNetworkIP),
		Status:     s,
		Gateway:    get(envNetworkGateway),
		WifiStatus: get(envNetworkWifiStatus),
		SSID:       get(envNetworkWifiSSID),
	}
}

// Config contains daemon configuration for display.
type Config struct {
	Chip        string
	GPIOMode    string
	DebounceMs  int64
	PollMs      int64
	SampleMode  string
	SampleMs    int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	Lines       map[logic.Channel]int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type; Config.Lines is shared and must not be modified.
type Snapshot struct {
	RunID         string
	State         logic.State
	Counts        logic.Counts
	Samples       int
	LastChange    time.Time
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Transitions returns the total number of level changes across all channels.
func (s Snapshot) Transitions() int {
	n := 0
	for _, c := range logic.Channels {
		n += s.Counts.Transitions(c)
	}
	return n
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot

	lastHeartbeat time.Time

	// now is replaced in tests.
	now func() time.Time
}

// NewTracker creates a Tracker with the given start time, run ID and config.
func NewTracker(startTime time.Time, runID string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			RunID:     runID,
			StartTime: startTime,
			Config:    cfg,
		},
		lastHeartbeat: startTime,
		now:           time.Now,
	}
}

// Update sets channel levels, edge counts and the history length.
// Called from runLoop on every sample.
func (t *Tracker) Update(state logic.State, counts logic.Counts, samples int) {
	t.mu.Lock()
	t.snap.State = state
	t.snap.Counts = counts
	t.snap.Samples = samples
	t.mu.Unlock()
}

// MarkChange records the time of the latest channel transition.
func (t *Tracker) MarkChange(at time.Time) {
	t.mu.Lock()
	if at.After(t.snap.LastChange) {
		t.snap.LastChange = at
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// HeartbeatDue reports whether interval has elapsed since the last
// heartbeat (or startup) and, if so, restarts the interval at now.
// A zero interval disables heartbeats.
func (t *Tracker) HeartbeatDue(now time.Time, interval time.Duration) bool {
	if interval <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if now.Sub(t.lastHeartbeat) < interval {
		return false
	}
	t.lastHeartbeat = now
	return true
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
