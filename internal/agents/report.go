package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"time"

	"precheck/internal/models"
)

type reportRisk struct {
	ClauseID   string              `json:"clause_id"`
	RiskLevel  models.RiskLevel    `json:"risk_level"`
	RiskType   string              `json:"risk_type"`
	Confidence float64             `json:"confidence"`
	Summary    string              `json:"summary"`
	Suggestion string              `json:"suggestion,omitempty"`
	Status     string              `json:"status"`
	QCFlags    map[string]string   `json:"qc_flags,omitempty"`
	Citations  []models.KBCitation `json:"citations,omitempty"`
}

type reportPayload struct {
	TaskID      string                   `json:"task_id"`
	GeneratedAt time.Time                `json:"generated_at"`
	ClauseCount int                      `json:"clause_count"`
	RiskCounts  map[models.RiskLevel]int `json:"risk_counts"`
	Risks       []reportRisk             `json:"risks"`
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Precheck report {{.TaskID}}</title></head>
<body>
<h1>Contract precheck report</h1>
<p>Task {{.TaskID}} · generated {{.GeneratedAt.Format "2006-01-02 15:04:05 UTC"}} · {{.ClauseCount}} clauses</p>
<h2>Risk summary</h2>
<ul>
{{- range $level, $n := .RiskCounts}}
<li>{{$level}}: {{$n}}</li>
{{- end}}
</ul>
<h2>Risks</h2>
{{- range .Risks}}
<div>
<h3>[{{.RiskLevel}}] {{.RiskType}} (clause {{.ClauseID}}, confidence {{printf "%.2f" .Confidence}})</h3>
<p>{{.Summary}}</p>
{{- if .Suggestion}}<p>Suggestion: {{.Suggestion}}</p>{{- end}}
{{- if .QCFlags}}<p>QC flags: {{range $k, $v := .QCFlags}}{{$k}}={{$v}} {{end}}</p>{{- end}}
{{- if .Citations}}
<ul>
{{- range .Citations}}
<li>chunk {{.ChunkID}} (doc version {{.DocVersion}}): {{.QuoteText}}</li>
{{- end}}
</ul>
{{- end}}
</div>
{{- end}}
</body>
</html>
`))

// ReportActivity renders the JSON and HTML report artifacts, uploads them and
// records the report rows.
func (a *Agents) ReportActivity(ctx context.Context, job Job) (Result, error) {
	return a.run(ctx, job, "REPORTING", func(ctx context.Context) (map[string]any, error) {
		payload, err := a.buildReportPayload(ctx, job.TaskID)
		if err != nil {
			return nil, err
		}

		jsonData, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal report: %w", err)
		}
		jsonKey := reportKey(job.TaskID, "json")
		if err := a.store.Upload(ctx, jsonKey, jsonData, "application/json"); err != nil {
			return nil, fmt.Errorf("upload json report: %w", err)
		}
		if _, err := a.reports.InsertReport(ctx, job.TaskID, "json", jsonKey); err != nil {
			return nil, err
		}

		var html strings.Builder
		if err := reportTemplate.Execute(&html, payload); err != nil {
			return nil, fmt.Errorf("render html report: %w", err)
		}
		htmlKey := reportKey(job.TaskID, "html")
		if err := a.store.Upload(ctx, htmlKey, []byte(html.String()), "text/html"); err != nil {
			return nil, fmt.Errorf("upload html report: %w", err)
		}
		if _, err := a.reports.InsertReport(ctx, job.TaskID, "html", htmlKey); err != nil {
			return nil, err
		}

		return map[string]any{"json_key": jsonKey, "html_key": htmlKey, "risk_count": len(payload.Risks)}, nil
	}), nil
}

func (a *Agents) buildReportPayload(ctx context.Context, taskID string) (reportPayload, error) {
	clauses, err := a.clauses.ListClauses(ctx, taskID)
	if err != nil {
		return reportPayload{}, err
	}
	counts, err := a.risks.CountRisksByLevel(ctx, taskID)
	if err != nil {
		return reportPayload{}, err
	}
	risks, err := a.risks.ListRisks(ctx, taskID)
	if err != nil {
		return reportPayload{}, err
	}

	out := reportPayload{
		TaskID:      taskID,
		GeneratedAt: time.Now().UTC(),
		ClauseCount: len(clauses),
		RiskCounts:  counts,
		Risks:       make([]reportRisk, 0, len(risks)),
	}
	for _, risk := range risks {
		citations, err := a.risks.ListCitations(ctx, risk.ID)
		if err != nil {
			return reportPayload{}, err
		}
		out.Risks = append(out.Risks, reportRisk{
			ClauseID:   risk.ClauseID,
			RiskLevel:  risk.RiskLevel,
			RiskType:   risk.RiskType,
			Confidence: risk.Confidence,
			Summary:    risk.Summary,
			Suggestion: risk.Suggestion,
			Status:     risk.Status,
			QCFlags:    risk.QCFlags,
			Citations:  citations,
		})
	}
	return out, nil
}
