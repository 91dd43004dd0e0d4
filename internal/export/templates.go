package export

import (
	"bytes"
	_ "embed"
	"html/template"
	"strings"
	"time"

	"migrationhub/api/internal/hub"
	"migrationhub/api/internal/reports"
)

//go:embed templates/report.html
var reportHTML string

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"formatDate": func(t time.Time) string {
		return t.Format("Jan 2, 2006")
	},
	"statusClass": func(s hub.Status) string {
		return strings.ReplaceAll(strings.ToLower(string(s)), " ", "-")
	},
}).Parse(reportHTML))

// TemplateData holds data for report template rendering
type TemplateData struct {
	Title       string
	GeneratedBy string
	reports.Report
	Attention []reports.MigrationStatus
}

func newTemplateData(req Request) TemplateData {
	data := TemplateData{
		Title:       "Migration Hub Report",
		GeneratedBy: req.GeneratedBy,
		Report:      req.Report,
	}
	for _, st := range req.Statuses {
		if st.Evaluation.Status == hub.StatusBehind || st.Evaluation.Status == hub.StatusAtRisk {
			data.Attention = append(data.Attention, st)
		}
	}
	return data
}

// RenderReportHTML renders the report template with provided data
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
