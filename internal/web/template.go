package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/quad-decoder/internal/logic"
	"github.com/sweeney/quad-decoder/internal/status"
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
	"bits": func(b byte) string {
		return fmt.Sprintf("%08b", b)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Quadrature Decoder</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
table.grid th, table.grid td { width: auto; text-align: right; }
.connected { color: green; }
.disconnected { color: red; }
.unknown { color: orange; }
</style>
</head>
<body>
<h1>Quadrature Decoder</h1>

<h2>Counters</h2>
<table class="grid">
<tr><th>Group</th><th>0</th><th>1</th><th>2</th><th>3</th><th>Raw</th></tr>
{{range .Groups}}<tr><th>{{.Name}}</th>{{$g := .Name}}{{range $i, $c := .Counters}}<td id="c-{{$g}}{{$i}}">{{$c}}</td>{{end}}<td>{{bits .Sample}}</td></tr>
{{end}}</table>

<h2>Sampling</h2>
<table>
<tr><th>Ready</th><td class="{{if .Decoder.Seeded}}connected{{else}}unknown{{end}}">{{if .Decoder.Seeded}}yes{{else}}no{{end}}</td></tr>
<tr><th>Iterations</th><td id="iterations">{{.Decoder.Iterations}}</td></tr>
<tr><th>Read errors</th><td>{{.ReadErrors}}</td></tr>
<tr><th>Backend</th><td>{{.Config.Backend}}</td></tr>
<tr><th>Interval</th><td>{{if eq .Config.SampleIntervalUs 0}}continuous{{else}}{{.Config.SampleIntervalUs}}us{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
<tr><th>Serial</th><td>{{if .Config.SerialDevice}}{{.Config.SerialDevice}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Report</th><td>{{.Config.ReportMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/counters.json">Counters</a></p>
<script>
(function() {
  function refresh() {
    fetch("/counters.json").then(function(r) { return r.json(); }).then(function(msg) {
      Object.keys(msg.counters).forEach(function(g) {
        msg.counters[g].forEach(function(v, i) {
          var el = document.getElementById("c-" + g + i);
          if (el) { el.textContent = v; }
        });
      });
      document.getElementById("iterations").textContent = msg.iterations;
    }).catch(function() {});
  }
  setInterval(refresh, 1000);
})();
</script>
</body>
</html>
`

type groupRow struct {
	Name     string
	Counters [logic.ChannelsPerGroup]int32
	Sample   byte
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Groups []groupRow
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	for _, g := range logic.Groups {
		data.Groups = append(data.Groups, groupRow{
			Name:     g.String(),
			Counters: snap.Decoder.Counters[g],
			Sample:   snap.Decoder.Samples[g],
		})
	}
	indexTmpl.Execute(w, data)
}
