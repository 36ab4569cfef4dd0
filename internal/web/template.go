package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/rf-receiver/internal/logic"
	"github.com/sweeney/rf-receiver/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"level": logic.LevelString,
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>RF Receiver</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.high { color: green; font-weight: bold; }
.low { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.timing { color: #333; border: 1px solid #ddd; }
</style>
</head>
<body>
<h1>RF Receiver</h1>

<h2>Channels</h2>
<table>
<tr><th>Channel</th><th>Line</th><th>Level</th><th>Asserts</th><th>Deasserts</th><th>Duplicates</th></tr>
{{range .Channels}}<tr><th>{{.Name}}</th><td>{{if .Wired}}{{.Line}}{{else}}-{{end}}</td><td id="{{.Key}}-state" class="{{if .High}}high{{else}}low{{end}}">{{level .High}}</td><td>{{.Counts.Asserts}}</td><td>{{.Counts.Deasserts}}</td><td>{{.Counts.Duplicates}}</td></tr>
{{end}}</table>

<h2>Timing</h2>
{{.Timing}}
<p>{{.Samples}} samples{{if not .LastChange.IsZero}}, last change {{.LastChange.UTC.Format "2006-01-02T15:04:05.000Z"}}{{end}}</p>

<h2>Connectivity</h2>
<table>
{{if .Config.Broker}}<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>{{else}}<tr><th>MQTT</th><td>disabled</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Run</th><td>{{.RunID}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>GPIO</th><td>{{.Config.Chip}} ({{.Config.GPIOMode}})</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Sampler</th><td>{{.Config.SampleMode}}{{if eq .Config.SampleMode "tick"}} every {{.Config.SampleMs}}ms{{end}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/history.json">History</a> | <a href="/history.svg">SVG</a></p>
</body>
</html>
`

type channelRow struct {
	Name   string
	Key    string
	Line   int
	Wired  bool
	High   bool
	Counts logic.ChannelCounts
}

func renderHTML(w io.Writer, snap status.Snapshot, samples []logic.Sample) error {
	rows := make([]channelRow, 0, logic.NumChannels)
	for _, c := range logic.Channels {
		line, wired := snap.Config.Lines[c]
		rows = append(rows, channelRow{
			Name:   c.String(),
			Key:    c.Key(),
			Line:   line,
			Wired:  wired,
			High:   snap.State.Level(c),
			Counts: snap.Counts[c],
		})
	}

	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime   time.Duration
		Channels []channelRow
		Timing   template.HTML
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Channels: rows,
		Timing:   template.HTML(timingSVG(samples)),
	}
	return indexTmpl.Execute(w, data)
}
