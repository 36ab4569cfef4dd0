package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/rf-receiver/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string                 `json:"event,omitempty"`
	Reason        string                 `json:"reason,omitempty"`
	RunID         string                 `json:"run_id"`
	Channels      map[string]ChannelJSON `json:"channels"`
	Samples       int                    `json:"samples"`
	LastChange    string                 `json:"last_change,omitempty"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	StartTime     string                 `json:"start_time"`
	Timestamp     string                 `json:"timestamp"`
	MQTT          MQTTStatus             `json:"mqtt"`
	Network       *NetworkJSON           `json:"network,omitempty"`
	Config        ConfigJSON             `json:"config"`
}

// ChannelJSON reports one channel's level and edge counts.
type ChannelJSON struct {
	State      string `json:"state"`
	Line       *int   `json:"line,omitempty"`
	Asserts    int    `json:"asserts"`
	Deasserts  int    `json:"deasserts"`
	Duplicates int    `json:"duplicates"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Chip        string `json:"chip"`
	GPIOMode    string `json:"gpio_mode"`
	DebounceMs  int64  `json:"debounce_ms"`
	PollMs      int64  `json:"poll_ms,omitempty"`
	SampleMode  string `json:"sample_mode"`
	SampleMs    int64  `json:"sample_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

// ChannelsJSON renders the per-channel block keyed by lowercase channel name.
func ChannelsJSON(state logic.State, counts logic.Counts, lines map[logic.Channel]int) map[string]ChannelJSON {
	out := make(map[string]ChannelJSON, logic.NumChannels)
	for _, c := range logic.Channels {
		cj := ChannelJSON{
			State:      logic.LevelString(state.Level(c)),
			Asserts:    counts[c].Asserts,
			Deasserts:  counts[c].Deasserts,
			Duplicates: counts[c].Duplicates,
		}
		if line, ok := lines[c]; ok {
			cj.Line = &line
		}
		out[c.Key()] = cj
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		RunID:         snap.RunID,
		Channels:      ChannelsJSON(snap.State, snap.Counts, snap.Config.Lines),
		Samples:       snap.Samples,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			Chip:        snap.Config.Chip,
			GPIOMode:    snap.Config.GPIOMode,
			DebounceMs:  snap.Config.DebounceMs,
			PollMs:      snap.Config.PollMs,
			SampleMode:  snap.Config.SampleMode,
			SampleMs:    snap.Config.SampleMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	if !snap.LastChange.IsZero() {
		inner.LastChange = snap.LastChange.UTC().Format(time.RFC3339Nano)
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
