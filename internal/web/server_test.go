package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/rf-receiver/internal/logic"
	"github.com/sweeney/rf-receiver/internal/metrics"
	"github.com/sweeney/rf-receiver/internal/status"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker, *logic.History) {
	t.Helper()
	cfg := status.Config{
		Chip:        "gpiochip0",
		GPIOMode:    "edge",
		DebounceMs:  20,
		SampleMode:  "tick",
		SampleMs:    50,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPAddr:    ":8080",
		Lines:       map[logic.Channel]int{logic.North: 23, logic.South: 24},
	}
	tr := status.NewTracker(start, "run-1", cfg)
	h := logic.NewHistory()
	srv := New(":0", Deps{Tracker: tr, History: h, Metrics: metrics.New()})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr, h
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	var counts logic.Counts
	counts[logic.North].Asserts = 5
	counts[logic.North].Deasserts = 2
	tr.Update(logic.State{logic.North: true}, counts, 7)
	tr.SetMQTTConnected(true)

	resp, body := get(t, ts.URL+"/index.json")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.Unmarshal([]byte(body), &sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.Channels["north"].State != "HIGH" {
		t.Errorf("north: got %+v", sj.Status.Channels["north"])
	}
	if sj.Status.Channels["south"].State != "LOW" {
		t.Errorf("south: got %+v", sj.Status.Channels["south"])
	}
	if sj.Status.Channels["north"].Asserts != 5 {
		t.Errorf("north asserts: got %d, want 5", sj.Status.Channels["north"].Asserts)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Samples != 7 {
		t.Errorf("Samples: got %d, want 7", sj.Status.Samples)
	}
	if sj.Status.Config.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("Config.Broker: got %q", sj.Status.Config.Broker)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	_, body := get(t, ts.URL+"/index.json")
	var sj status.StatusJSON
	if err := json.Unmarshal([]byte(body), &sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr, h := newTestServer(t)
	tr.Update(logic.State{logic.North: true}, logic.Counts{}, 2)
	h.Append(start, logic.State{})
	h.Append(start.Add(time.Second), logic.State{logic.North: true})

	resp, body := get(t, ts.URL+"/")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
	if !strings.Contains(body, `id="north-state" class="high">HIGH`) {
		t.Error("north should render HIGH")
	}
	if !strings.Contains(body, `id="common-state" class="low">LOW`) {
		t.Error("common should render LOW")
	}
	if !strings.Contains(body, "<svg") {
		t.Error("expected inline timing diagram")
	}
	if !strings.Contains(body, "run-1") {
		t.Error("expected run id")
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, _ := get(t, ts.URL+"/index.html")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, _ := get(t, ts.URL+"/nonexistent")
	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestHistoryJSON(t *testing.T) {
	ts, _, h := newTestServer(t)
	h.Append(start, logic.State{})
	h.Append(start.Add(100*time.Millisecond), logic.State{logic.South: true})
	h.Append(start.Add(200*time.Millisecond), logic.State{logic.South: true, logic.Common: true})

	resp, body := get(t, ts.URL+"/history.json")
	if resp.StatusCode != 200 {
		t.Fatalf("status: got %d", resp.StatusCode)
	}

	var hj HistoryJSON
	if err := json.Unmarshal([]byte(body), &hj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	want := []string{"north", "south", "east", "west", "common"}
	if strings.Join(hj.Channels, ",") != strings.Join(want, ",") {
		t.Errorf("Channels: got %v", hj.Channels)
	}
	if len(hj.Samples) != 3 {
		t.Fatalf("Samples: got %d, want 3", len(hj.Samples))
	}
	if hj.Samples[1].Timestamp != "2026-01-01T00:00:00.1Z" {
		t.Errorf("timestamp: got %q", hj.Samples[1].Timestamp)
	}
	if !hj.Samples[1].Levels[logic.South] || hj.Samples[1].Levels[logic.North] {
		t.Errorf("sample 1 levels: got %v", hj.Samples[1].Levels)
	}
	if !hj.Samples[2].Levels[logic.Common] {
		t.Errorf("sample 2 levels: got %v", hj.Samples[2].Levels)
	}
}

func TestHistoryJSONLimit(t *testing.T) {
	ts, _, h := newTestServer(t)
	for i := 0; i < 10; i++ {
		h.Append(start.Add(time.Duration(i)*time.Second), logic.State{logic.East: i%2 == 1})
	}

	_, body := get(t, ts.URL+"/history.json?limit=3")
	var hj HistoryJSON
	if err := json.Unmarshal([]byte(body), &hj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(hj.Samples) != 3 {
		t.Fatalf("Samples: got %d, want 3", len(hj.Samples))
	}
	if hj.Samples[0].Timestamp != "2026-01-01T00:00:07Z" {
		t.Errorf("expected the newest samples, first is %q", hj.Samples[0].Timestamp)
	}
}

func TestHistoryBadLimit(t *testing.T) {
	ts, _, _ := newTestServer(t)

	for _, path := range []string{"/history.json?limit=x", "/history.svg?limit=-1"} {
		resp, _ := get(t, ts.URL+path)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", path, resp.StatusCode)
		}
	}
}

func TestHistorySVG(t *testing.T) {
	ts, _, h := newTestServer(t)
	h.Append(start, logic.State{})
	h.Append(start.Add(time.Second), logic.State{logic.West: true})

	resp, body := get(t, ts.URL+"/history.svg")
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type: got %q", ct)
	}
	if !strings.HasPrefix(body, "<svg") || !strings.HasSuffix(body, "</svg>") {
		t.Errorf("not an svg document: %q", body)
	}
	if strings.Count(body, "<polyline") != logic.NumChannels {
		t.Errorf("expected one polyline per channel")
	}
}

func TestHealthLive(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, body := get(t, ts.URL+"/health/live")
	if resp.StatusCode != 200 || body != "ok\n" {
		t.Errorf("got %d %q", resp.StatusCode, body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, body := get(t, ts.URL+"/metrics")
	if resp.StatusCode != 200 {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	if !strings.Contains(body, `rf_receiver_channel_level{channel="north"} 0`) {
		t.Error("expected channel level gauge in /metrics output")
	}
}

func TestMetricsDisabled(t *testing.T) {
	tr := status.NewTracker(start, "", status.Config{})
	srv := New(":0", Deps{Tracker: tr, History: logic.NewHistory()})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, _ := get(t, ts.URL+"/metrics")
	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr, _ := newTestServer(t)

	_, body := get(t, ts.URL+"/index.json")
	var sj1 status.StatusJSON
	json.Unmarshal([]byte(body), &sj1)
	if sj1.Status.Channels["west"].State != "LOW" {
		t.Error("expected west LOW initially")
	}

	tr.Update(logic.State{logic.West: true}, logic.Counts{}, 1)
	tr.SetMQTTConnected(true)

	_, body = get(t, ts.URL+"/index.json")
	var sj2 status.StatusJSON
	json.Unmarshal([]byte(body), &sj2)

	if sj2.Status.Channels["west"].State != "HIGH" {
		t.Errorf("west: got %q, want HIGH", sj2.Status.Channels["west"].State)
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}
