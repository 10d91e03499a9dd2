package report

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/aelpxy/dockup/internal/backup"
)

// Message is a rendered report ready for delivery.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

type summaryView struct {
	Host        string
	RunID       string
	Started     string
	Timestamp   string
	Duration    string
	Status      string
	AbortReason string
	Total       int
	Success     int
	Partial     int
	Failed      int
	Transferred string
	Apps        []appView
}

type appView struct {
	Name        string
	Status      string
	Duration    string
	Transferred string
	RemotePath  string
	Phases      []phaseView
	Errors      []string
}

type phaseView struct {
	Kind   string
	Target string
	Status string
	Size   string
}

func newSummaryView(host string, run *backup.RunReport) summaryView {
	counts := run.Counts()
	view := summaryView{
		Host:        host,
		RunID:       run.RunID,
		Started:     run.StartedAt.Format("2006-01-02 15:04:05 MST"),
		Timestamp:   run.RunTimestamp(),
		Duration:    formatDuration(run.Duration),
		Status:      string(run.Status),
		Total:       len(run.Results),
		Success:     counts[backup.StatusSuccess],
		Partial:     counts[backup.StatusPartial],
		Failed:      counts[backup.StatusFailed],
		Transferred: humanize.Bytes(uint64(run.TransferredBytes())),
	}
	if run.AbortReason != nil {
		view.AbortReason = run.AbortReason.Error()
	}

	for _, result := range run.Results {
		app := appView{
			Name:        result.App(),
			Status:      string(result.Status()),
			Duration:    formatDuration(result.Duration()),
			Transferred: humanize.Bytes(uint64(result.TransferredBytes())),
			RemotePath:  result.RemotePath(),
		}
		for _, phase := range result.Phases() {
			pv := phaseView{Kind: string(phase.Kind), Target: phase.Target, Status: string(phase.Status)}
			if phase.Status == backup.PhaseOK && phase.Bytes > 0 {
				pv.Size = humanize.Bytes(uint64(phase.Bytes))
			}
			app.Phases = append(app.Phases, pv)
		}
		for _, err := range result.Errors() {
			app.Errors = append(app.Errors, err.Error())
		}
		view.Apps = append(view.Apps, app)
	}
	return view
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

func subject(view summaryView) string {
	if view.AbortReason != "" {
		return fmt.Sprintf("[dockup] %s on %s: run aborted", view.Status, view.Host)
	}
	return fmt.Sprintf("[dockup] %s on %s: %d/%d applications backed up",
		view.Status, view.Host, view.Success, view.Total)
}

var textReport = template.Must(template.New("text").Parse(`dockup backup report for {{.Host}}

run:          {{.RunID}}
started:      {{.Started}} ({{.Timestamp}})
duration:     {{.Duration}}
status:       {{.Status}}
{{- if .AbortReason}}
aborted:      {{.AbortReason}}
{{- else}}
applications: {{.Total}} ({{.Success}} success, {{.Partial}} partial, {{.Failed}} failed)
transferred:  {{.Transferred}}
{{- end}}
{{range .Apps}}
[{{.Status}}] {{.Name}} ({{.Duration}}, {{.Transferred}})
{{- if .RemotePath}}
  remote: {{.RemotePath}}
{{- end}}
{{- range .Phases}}
  {{printf "%-15s" .Kind}} {{printf "%-8s" .Status}} {{.Target}}{{if .Size}} {{.Size}}{{end}}
{{- end}}
{{- if .Errors}}
  errors:
{{- range .Errors}}
    - {{.}}
{{- end}}
{{- end}}
{{end}}`))

var htmlReport = htmltemplate.Must(htmltemplate.New("html").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif">
<h2>dockup backup report for {{.Host}}</h2>
<table>
<tr><td>run</td><td>{{.RunID}}</td></tr>
<tr><td>started</td><td>{{.Started}} ({{.Timestamp}})</td></tr>
<tr><td>duration</td><td>{{.Duration}}</td></tr>
<tr><td>status</td><td><strong>{{.Status}}</strong></td></tr>
{{- if .AbortReason}}
<tr><td>aborted</td><td>{{.AbortReason}}</td></tr>
{{- else}}
<tr><td>applications</td><td>{{.Total}} ({{.Success}} success, {{.Partial}} partial, {{.Failed}} failed)</td></tr>
<tr><td>transferred</td><td>{{.Transferred}}</td></tr>
{{- end}}
</table>
{{range .Apps}}
<h3>[{{.Status}}] {{.Name}}</h3>
<p>{{.Duration}}, {{.Transferred}}{{if .RemotePath}}, <code>{{.RemotePath}}</code>{{end}}</p>
<table border="1" cellpadding="4" style="border-collapse: collapse">
<tr><th>phase</th><th>target</th><th>status</th><th>size</th></tr>
{{- range .Phases}}
<tr><td>{{.Kind}}</td><td>{{.Target}}</td><td>{{.Status}}</td><td>{{.Size}}</td></tr>
{{- end}}
</table>
{{- if .Errors}}
<ul>
{{- range .Errors}}
<li>{{.}}</li>
{{- end}}
</ul>
{{- end}}
{{end}}
</body>
</html>
`))

// Render produces the subject and both bodies for a run.
func Render(host string, run *backup.RunReport) (Message, error) {
	view := newSummaryView(host, run)

	var text bytes.Buffer
	if err := textReport.Execute(&text, view); err != nil {
		return Message{}, fmt.Errorf("failed to render text report: %w", err)
	}

	var html bytes.Buffer
	if err := htmlReport.Execute(&html, view); err != nil {
		return Message{}, fmt.Errorf("failed to render html report: %w", err)
	}

	return Message{
		Subject: subject(view),
		Text:    strings.TrimRight(text.String(), "\n") + "\n",
		HTML:    html.String(),
	}, nil
}
