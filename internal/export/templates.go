package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var timelineTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
		"formatOptionalDate": func(t *time.Time, layout string) string {
			if t == nil {
				return "—"
			}
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/timeline.html")
	if err != nil {
		// Fallback to built-in template if file not found
		timelineTemplate = template.Must(template.New("timeline").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	timelineTemplate = template.Must(template.New("timeline").Funcs(funcMap).Parse(string(templateContent)))
}

// RenderTimelineHTML renders the timeline report template.
func RenderTimelineHTML(report Report) (string, error) {
	var buf bytes.Buffer
	if err := timelineTemplate.Execute(&buf, report); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Address}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .stage { padding: 0.5rem 1rem; margin: 0.5rem 0; border-left: 3px solid #333; }
    .message { background: #f5f5f5; padding: 1rem; margin: 1rem 0; }
  </style>
</head>
<body>
  <h1>{{.Address}}</h1>
  <div class="meta">{{.Postcode}} | {{.Status}} | generated {{.GeneratedAt.Format "Jan 2, 2006"}}</div>
  {{range .Stages}}<div class="stage">{{.Position}}. {{.Name}} — {{.Status}}</div>{{end}}
  {{if .Messages}}
  <h2>Correspondence</h2>
  {{range .Messages}}<div class="message"><strong>{{.Sender}}</strong>: {{.Content}}</div>{{end}}
  {{end}}
</body>
</html>`
