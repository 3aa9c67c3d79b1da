// Package decorator renders the title and body of an aggregated alert message.
package decorator

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/netspec/alertbatch/internal/types"
)

var contentTemplate = template.Must(template.New("content").Funcs(template.FuncMap{
	"ts": func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
}).Parse(`{{.Count}} alert(s) still firing since the last report.
{{range .Sections}}
== {{.Type}} ({{len .Alerts}}) ==
{{range .Alerts}}- [{{if .Severity}}{{.Severity}}{{else}}unknown{{end}}] {{.Device}}{{if .Entity}} {{.Entity}}{{end}}{{if .Message}}: {{.Message}}{{end}}
  first fired {{ts .FiredAt}}, last seen {{ts .LastSeen}}{{if gt .Occurrences 1}}, repeated {{.Occurrences}} times{{end}}
{{end}}{{end}}`))

type section struct {
	Type   types.AlertType
	Alerts []types.Alert
}

// Decorator renders grouped alerts as plain text.
type Decorator struct {
	prefix string
}

// New creates a decorator whose titles start with prefix, e.g. "[alertbatch]".
func New(prefix string) *Decorator {
	return &Decorator{prefix: prefix}
}

// TitleAndContent renders one message for the given alerts.
func (d *Decorator) TitleAndContent(alerts types.AlertsByType) (string, string, error) {
	alertTypes := alerts.Types()
	sections := make([]section, 0, len(alertTypes))
	names := make([]string, 0, len(alertTypes))
	for _, t := range alertTypes {
		sections = append(sections, section{Type: t, Alerts: alerts[t].Sorted()})
		names = append(names, string(t))
	}

	title := fmt.Sprintf("%d alert(s): %s", alerts.Count(), strings.Join(names, ", "))
	if d.prefix != "" {
		title = d.prefix + " " + title
	}

	var buf bytes.Buffer
	err := contentTemplate.Execute(&buf, map[string]interface{}{
		"Count":    alerts.Count(),
		"Sections": sections,
	})
	if err != nil {
		return "", "", fmt.Errorf("render content: %w", err)
	}

	return title, buf.String(), nil
}
