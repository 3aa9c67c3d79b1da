package webui

import (
	"html/template"
)

// Templates contains the HTML templates for the status page
var Templates = template.Must(template.New("").Funcs(template.FuncMap{
	"levelClass": func(level string) string {
		switch level {
		case "error", "fatal":
			return "log-error"
		case "warn":
			return "log-warn"
		case "debug":
			return "log-debug"
		default:
			return "log-info"
		}
	},
}).Parse(`
{{define "status"}}
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <meta http-equiv="refresh" content="15">
    <title>alertbatch status</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, sans-serif; background: #0d1117; color: #e6edf3; margin: 2rem; }
        h1, h2 { font-weight: 600; }
        table { border-collapse: collapse; margin-bottom: 1.5rem; }
        td, th { border: 1px solid #30363d; padding: 0.3rem 0.8rem; text-align: left; }
        .muted { color: #8b949e; }
        .log-error { color: #f85149; }
        .log-warn { color: #d29922; }
        .log-debug { color: #6e7681; }
        .log-info { color: #e6edf3; }
        pre { font-family: 'JetBrains Mono', monospace; font-size: 0.85rem; white-space: pre-wrap; }
    </style>
</head>
<body>
    <h1>alertbatch</h1>
    <p class="muted">{{.Version}} &middot; up {{.Uptime}} &middot; flush every {{.Interval}}</p>

    <h2>Pending alerts ({{.PendingTotal}})</h2>
    {{if .Pending}}
    <table>
        <tr><th>Type</th><th>Alerts</th></tr>
        {{range $type, $n := .Pending}}<tr><td>{{$type}}</td><td>{{$n}}</td></tr>{{end}}
    </table>
    {{else}}<p class="muted">Nothing pending.</p>{{end}}

    <h2>Last flush cycle</h2>
    {{with .LastCycle}}{{if .ID}}
    <table>
        <tr><th>Cycle</th><td>{{.ID}}</td></tr>
        <tr><th>Started</th><td>{{.StartedAt.Format "2006-01-02 15:04:05 MST"}}</td></tr>
        <tr><th>Result</th><td>{{.Stage}}{{if .Err}}: {{.Err}}{{end}}</td></tr>
        <tr><th>Alerts / recovered</th><td>{{.Snapshot}} / {{.Recovered}}</td></tr>
        <tr><th>Messages sent / failed</th><td>{{.Sent}} / {{.SendFailures}}</td></tr>
    </table>
    {{else}}<p class="muted">No cycle has run yet.</p>{{end}}{{end}}

    <h2>Recent logs</h2>
    <pre>{{range .Logs}}<span class="{{levelClass .Level}}">{{.Timestamp.Format "15:04:05"}} {{.Level}} {{.Message}}</span>
{{end}}</pre>
</body>
</html>
{{end}}
`))
