// Package ticket synthesizes the final triage ticket from the stage reports:
// priority, executive summary, recommendations, and the provider-written
// narrative.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"opstriage-agent/src/config"
	"opstriage-agent/src/contracts"
	"opstriage-agent/src/logger"
	"opstriage-agent/src/provider"
	"opstriage-agent/src/sanitize"
)

// Placeholder used when the analysis provider cannot narrate.
const narrativeUnavailable = "Automated narrative unavailable; see structured findings."

// Synthesizer builds tickets. It never fails: missing data and provider
// outages degrade to explicit placeholder content.
type Synthesizer struct {
	thresholds config.Thresholds
	maxRecs    int
	client     provider.Client
	log        logger.Logger

	// Injection points for deterministic tests.
	now      func() time.Time
	idSuffix func() int
}

func NewSynthesizer(cfg config.Config, client provider.Client, log logger.Logger) *Synthesizer {
	return &Synthesizer{
		thresholds: cfg.Thresholds,
		maxRecs:    cfg.MaxRecommendations,
		client:     client,
		log:        log,
		now:        time.Now,
		idSuffix:   func() int { return rand.Intn(10000) },
	}
}

// Synthesize assembles the ticket for one analyzed query.
func (s *Synthesizer) Synthesize(ctx context.Context, q contracts.Query,
	lr *contracts.LogReport, cr *contracts.CodeReport,
	mr *contracts.MetricsReport, ir *contracts.IncidentReport) *contracts.Ticket {

	createdAt := s.now()
	t := &contracts.Ticket{
		ID:        fmt.Sprintf("OPS-%s-%04d", createdAt.Format("20060102"), s.idSuffix()),
		TaskID:    q.TaskID,
		CreatedAt: createdAt,
		Log:       lr,
		Code:      cr,
		Metrics:   mr,
		Incidents: ir,
	}

	t.Priority = s.derivePriority(lr, cr, mr)
	t.Labels = buildLabels(q, t.Priority)
	t.Recommendations = s.buildRecommendations(lr, cr, mr)
	t.Executive = buildExecutive(q.TaskID, lr, cr, mr, ir, t.Recommendations)
	t.NextSteps = buildNextSteps(q.TaskID, ir)

	t.Problem, t.RootCause = s.narrate(ctx, q, lr, cr, mr, ir)
	return t
}

// derivePriority applies the threshold ladder over the strongest signal from
// every stage. The first matching rung wins.
func (s *Synthesizer) derivePriority(lr *contracts.LogReport, cr *contracts.CodeReport, mr *contracts.MetricsReport) contracts.Severity {
	var errCount, duration int
	var cpu float64
	if mr != nil && mr.Found {
		errCount = mr.Record.ErrorCount
		cpu = mr.Record.CPUUsagePct
		duration = mr.Record.DurationSeconds
	}

	maxRank := -1
	issueCount := 0
	if lr != nil {
		for _, entry := range lr.Errors {
			if r := entry.Severity.Rank(); r > maxRank {
				maxRank = r
			}
		}
		issueCount += len(lr.Errors)
	}
	if cr != nil {
		for _, issue := range cr.Issues {
			if r := issue.Severity.Rank(); r > maxRank {
				maxRank = r
			}
		}
		issueCount += len(cr.Issues)
	}

	th := s.thresholds
	switch {
	case maxRank >= contracts.SeverityCritical.Rank(),
		errCount > th.CriticalErrorCount,
		cpu > th.CriticalCPUPct:
		return contracts.SeverityCritical
	case maxRank >= contracts.SeverityHigh.Rank(),
		errCount > th.HighErrorCount,
		cpu > th.HighCPUPct,
		duration > th.HighDurationSeconds:
		return contracts.SeverityHigh
	case issueCount > 0,
		errCount > 0,
		cpu > th.MediumCPUPct:
		return contracts.SeverityMedium
	default:
		return contracts.SeverityLow
	}
}

// Recommendation texts keyed by their trigger, checked in fixed order.
var recommendationRules = []struct {
	trigger string
	text    string
}{
	{"nullpointer", "Add null checks and defensive handling around the failing call path."},
	{"timeout", "Increase timeout configuration and add retries with backoff."},
	{"memory", "Profile memory usage and review heap limits for the task."},
	{"database", "Review database connection pool settings and query performance."},
}

// buildRecommendations scans the combined findings text for known failure
// signatures, one recommendation per trigger, capped at the configured limit.
func (s *Synthesizer) buildRecommendations(lr *contracts.LogReport, cr *contracts.CodeReport, mr *contracts.MetricsReport) []string {
	var b strings.Builder
	if lr != nil {
		b.WriteString(strings.ToLower(lr.Summary))
		for _, tc := range lr.TopErrorTypes {
			b.WriteString(" " + strings.ToLower(string(tc.Type)))
		}
	}
	if cr != nil {
		for _, issue := range cr.Issues {
			b.WriteString(" " + strings.ToLower(issue.IssueType) + " " + strings.ToLower(issue.Description))
		}
	}
	if mr != nil && mr.Found {
		b.WriteString(" " + strings.ToLower(mr.Record.Status))
	}
	text := b.String()

	var recs []string
	for _, rule := range recommendationRules {
		if strings.Contains(text, rule.trigger) {
			recs = append(recs, rule.text)
			if len(recs) == s.maxRecs {
				break
			}
		}
	}
	return recs
}

// buildExecutive derives the short human-facing digest. The status is a
// contains-check ladder over the aggregated findings text: failed/error wins,
// then warning, else OK.
func buildExecutive(taskID string, lr *contracts.LogReport, cr *contracts.CodeReport,
	mr *contracts.MetricsReport, ir *contracts.IncidentReport, recs []string) contracts.ExecutiveSummary {

	status := "OK"
	statusLine := fmt.Sprintf("Task %s appears healthy; no failures detected.", taskID)

	text := aggregatedFindingsText(lr, cr, mr, ir)
	switch {
	case strings.Contains(text, "failed"), strings.Contains(text, "error"):
		status = "CRITICAL"
		statusLine = fmt.Sprintf("Task %s has failed and requires immediate attention.", taskID)
	case strings.Contains(text, "warning"):
		status = "WARNING"
		statusLine = fmt.Sprintf("Task %s shows warning conditions; review the findings below.", taskID)
	}

	var findings []string
	if lr != nil && !lr.Empty() {
		findings = append(findings, fmt.Sprintf("%d error log lines across %d sources", len(lr.Errors), lr.SourcesScanned))
		if len(lr.TopErrorTypes) > 0 {
			top := lr.TopErrorTypes[0]
			findings = append(findings, fmt.Sprintf("dominant error type %s (%d occurrences)", top.Type, top.Count))
		}
	}
	if cr != nil && len(cr.Issues) > 0 {
		findings = append(findings, fmt.Sprintf("%d code issues in %d analyzed files", len(cr.Issues), cr.FilesAnalyzed))
	}
	if mr != nil && mr.Found {
		findings = append(findings, fmt.Sprintf("metrics: status=%s cpu=%.1f%% errors=%d duration=%ds",
			mr.Record.Status, mr.Record.CPUUsagePct, mr.Record.ErrorCount, mr.Record.DurationSeconds))
	}
	if ir != nil && len(ir.Matches) > 0 {
		findings = append(findings, fmt.Sprintf("%d similar past incidents (matched by %s)", len(ir.Matches), ir.MatchedBy))
	}
	if len(findings) == 0 {
		findings = append(findings, "no data found for this task in logs, code, metrics, or incident history")
	}

	return contracts.ExecutiveSummary{
		Status:          status,
		StatusLine:      statusLine,
		KeyFindings:     findings,
		Recommendations: recs,
	}
}

// aggregatedFindingsText flattens the raw stage findings into one lowercased
// string for the status ladder. Only raw content goes in; report labels like
// "0 errors" would trip the contains checks.
func aggregatedFindingsText(lr *contracts.LogReport, cr *contracts.CodeReport,
	mr *contracts.MetricsReport, ir *contracts.IncidentReport) string {

	var b strings.Builder
	if lr != nil {
		for _, entry := range lr.Timeline {
			b.WriteString(entry.Content + "\n")
		}
		for _, entry := range lr.Errors {
			b.WriteString(entry.Content + "\n")
		}
		for _, tc := range lr.TopErrorTypes {
			b.WriteString(string(tc.Type) + "\n")
		}
	}
	if cr != nil {
		for _, issue := range cr.Issues {
			b.WriteString(issue.IssueType + " " + issue.Description + "\n")
		}
	}
	if mr != nil && mr.Found {
		b.WriteString(mr.Record.Status + "\n")
	}
	if ir != nil {
		for _, rec := range ir.Matches {
			b.WriteString(rec.Description + "\n")
		}
	}
	return strings.ToLower(b.String())
}

func buildNextSteps(taskID string, ir *contracts.IncidentReport) []string {
	steps := []string{"Acknowledge the ticket and assign an owner."}
	if ir != nil {
		for _, rec := range ir.Matches {
			if rec.Resolution != "" {
				steps = append(steps, fmt.Sprintf("Review resolution of %s: %s", rec.IncidentID, rec.Resolution))
				break
			}
		}
	}
	steps = append(steps,
		"Apply the recommendations and redeploy if code changes are required.",
		fmt.Sprintf("Monitor task %s for recurrence after the fix.", taskID))
	return steps
}

func buildLabels(q contracts.Query, priority contracts.Severity) []string {
	labels := []string{"triage", strings.ToLower(string(priority))}
	if q.IsPerformance {
		labels = append(labels, "performance")
	}
	if q.IsError {
		labels = append(labels, "error")
	}
	return labels
}

const narratorRole = "You are an operations triage assistant. You write concise, factual " +
	"prose for incident tickets based strictly on the structured findings you are given. " +
	"Never invent details that are not in the findings."

// narrate asks the provider for the problem statement and the root cause
// hypothesis. Provider failure degrades to placeholders.
func (s *Synthesizer) narrate(ctx context.Context, q contracts.Query,
	lr *contracts.LogReport, cr *contracts.CodeReport,
	mr *contracts.MetricsReport, ir *contracts.IncidentReport) (problem, rootCause string) {

	digest := sanitize.Scrub(findingsDigest(q, lr, cr, mr, ir))

	problem, err := s.client.Complete(ctx, narratorRole,
		"Write a 2-3 sentence problem statement for this triage ticket.\n\nFindings:\n"+digest)
	if err != nil {
		if !errors.Is(err, provider.ErrUnavailable) {
			s.log.Error("[Ticket] Problem narrative failed: %v", err)
		}
		return narrativeUnavailable, narrativeUnavailable
	}

	rootCause, err = s.client.Complete(ctx, narratorRole,
		"Write a 2-3 sentence root cause hypothesis for this triage ticket.\n\nFindings:\n"+digest)
	if err != nil {
		if !errors.Is(err, provider.ErrUnavailable) {
			s.log.Error("[Ticket] Root cause narrative failed: %v", err)
		}
		rootCause = narrativeUnavailable
	}
	return problem, rootCause
}

// findingsDigest flattens the stage reports into the prompt material.
func findingsDigest(q contracts.Query, lr *contracts.LogReport, cr *contracts.CodeReport,
	mr *contracts.MetricsReport, ir *contracts.IncidentReport) string {

	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\nTask: %s\n", q.Raw, q.TaskID)

	if lr != nil && !lr.Empty() {
		fmt.Fprintf(&b, "Logs: %s\n", lr.Summary)
	} else {
		b.WriteString("Logs: no entries found.\n")
	}

	if cr != nil && len(cr.Issues) > 0 {
		fmt.Fprintf(&b, "Code: %d issues in %d files.", len(cr.Issues), cr.FilesAnalyzed)
		limit := len(cr.Issues)
		if limit > 5 {
			limit = 5
		}
		for _, issue := range cr.Issues[:limit] {
			fmt.Fprintf(&b, " [%s %s:%d %s]", issue.Severity, issue.File, issue.Line, issue.IssueType)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("Code: no issues found.\n")
	}

	if mr != nil && mr.Found {
		fmt.Fprintf(&b, "Metrics: status=%s duration=%ds cpu=%.1f%% memory=%dMB errors=%d\n",
			mr.Record.Status, mr.Record.DurationSeconds, mr.Record.CPUUsagePct,
			mr.Record.MemoryUsageMB, mr.Record.ErrorCount)
	} else {
		b.WriteString("Metrics: no record found.\n")
	}

	if ir != nil && len(ir.Matches) > 0 {
		fmt.Fprintf(&b, "Similar incidents (%s):", ir.MatchedBy)
		for _, rec := range ir.Matches {
			fmt.Fprintf(&b, " [%s %s: %s]", rec.IncidentID, rec.Severity, rec.Description)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("Similar incidents: none.\n")
	}
	return b.String()
}
