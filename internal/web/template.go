package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/date-slicer/internal/daterange"
	"github.com/sweeney/date-slicer/internal/status"
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
	"day": func(t time.Time) string {
		return t.Format(daterange.DateLayout)
	},
	"presetLabel": func(p daterange.PresetID) string {
		return p.Label()
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Date Slicer</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.manual { color: #b60; font-weight: bold; }
.preset { color: green; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
form { margin: 1em 0; }
#pick-result { margin-left: 1em; }
</style>
</head>
<body>
<h1>Date Slicer <small>{{.Config.Dashboard}}/{{.Config.Widget}}</small></h1>

<h2>Selection</h2>
<table>
{{with .Widget.State.Selection}}<tr><th>Range</th><td id="selection">{{day .From}} .. {{day .To}}</td></tr>{{else}}<tr><th>Range</th><td id="selection" class="unknown">none</td></tr>{{end}}
<tr><th>Source</th><td class="{{if .Widget.State.HasManualSelection}}manual{{else}}preset{{end}}">{{if .Widget.State.HasManualSelection}}manual{{else}}{{presetLabel .Widget.State.ActivePreset}}{{end}}</td></tr>
<tr><th>Modes</th><td>{{range .Widget.State.Modes}}{{.}} {{else}}-{{end}}</td></tr>
<tr><th>Last rule</th><td>{{if .Widget.State.LastRule}}{{.Widget.State.LastRule}}{{else}}-{{end}}</td></tr>
<tr><th>Ready</th><td>{{if .Widget.Ready}}yes{{else}}no{{end}}</td></tr>
{{if .LastError}}<tr><th>Last error</th><td class="disconnected">{{.LastError}}</td></tr>{{end}}
</table>

<form id="pick">
<input type="date" name="from" required> .. <input type="date" name="to" required>
<button type="submit">Apply</button><span id="pick-result"></span>
</form>

<h2>Dataset</h2>
<table>
<tr><th>Column</th><td>{{.Config.Table}}.{{.Config.Column}}</td></tr>
{{if not .Widget.State.Bounds.IsZero}}<tr><th>Min</th><td>{{day .Widget.State.Bounds.Min}}</td></tr>
<tr><th>Max</th><td>{{day .Widget.State.Bounds.Max}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>Counts</h2>
<table>
<tr><th>Ticks</th><td>{{.Widget.Counts.Ticks}}</td></tr>
<tr><th>Writes</th><td>{{.Widget.Counts.Writes}}</td></tr>
<tr><th>Write errors</th><td>{{.Widget.Counts.WriteErrors}}</td></tr>
<tr><th>Echoes</th><td>{{.Widget.Counts.Echoes}}</td></tr>
<tr><th>Clear-alls</th><td>{{.Widget.Counts.ClearAlls}}</td></tr>
<tr><th>Restores</th><td>{{.Widget.Counts.Restores}}</td></tr>
<tr><th>Adopted</th><td>{{.Widget.Counts.Adoptions}}</td></tr>
<tr><th>User changes</th><td>{{.Widget.Counts.UserChanges}}</td></tr>
<tr><th>Rejected updates</th><td>{{.Widget.Counts.Rejected}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Preset setting</th><td>{{.Config.Preset}}</td></tr>
<tr><th>Flag timeout</th><td>{{.Config.FlagTimeoutMs}}ms</td></tr>
<tr><th>Revalidate</th><td>{{if eq .Config.RevalidateMs 0}}disabled{{else}}{{.Config.RevalidateMs}}ms{{end}}</td></tr>
<tr><th>Time zone</th><td>{{.Config.Location}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/api/bookmarks">Bookmarks</a></p>
<script>
(function() {
  var form = document.getElementById("pick");
  var out = document.getElementById("pick-result");
  form.addEventListener("submit", function(e) {
    e.preventDefault();
    fetch("/api/selection", {
      method: "POST",
      headers: { "Content-Type": "application/json" },
      body: JSON.stringify({ from: form.from.value, to: form.to.value })
    }).then(function(resp) {
      if (resp.ok) { location.reload(); return; }
      return resp.json().then(function(body) { out.textContent = body.error; });
    }).catch(function() { out.textContent = "request failed"; });
  });
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
