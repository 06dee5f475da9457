package ticket

import (
	"fmt"
	"strings"

	"opstriage-agent/src/contracts"
	"opstriage-agent/src/sanitize"
)

// Render formats a ticket as the text document shown on the CLI and returned
// by the MCP tools. Sections with no data say so explicitly.
func Render(t *contracts.Ticket) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s [%s] task %s\n", t.ID, t.Priority, t.TaskID)
	fmt.Fprintf(&b, "Created: %s\n", t.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Labels: %s\n\n", strings.Join(t.Labels, ", "))

	fmt.Fprintf(&b, "## Status: %s\n%s\n\n", t.Executive.Status, t.Executive.StatusLine)

	b.WriteString("## Problem\n" + t.Problem + "\n\n")
	b.WriteString("## Root Cause\n" + t.RootCause + "\n\n")

	b.WriteString("## Key Findings\n")
	for _, f := range t.Executive.KeyFindings {
		b.WriteString("- " + f + "\n")
	}
	b.WriteString("\n")

	b.WriteString("## Log Analysis\n")
	if t.Log == nil || t.Log.Empty() {
		b.WriteString("No log entries found.\n")
	} else {
		fmt.Fprintf(&b, "%s\n", t.Log.Summary)
		for _, tc := range t.Log.TopErrorTypes {
			fmt.Fprintf(&b, "- %s: %d\n", tc.Type, tc.Count)
		}
	}
	b.WriteString("\n")

	b.WriteString("## Code Analysis\n")
	if t.Code == nil || len(t.Code.Issues) == 0 {
		b.WriteString("No code issues found.\n")
	} else {
		fmt.Fprintf(&b, "%d issues across %d files (%d task-related).\n",
			len(t.Code.Issues), t.Code.FilesAnalyzed, len(t.Code.TaskRelatedFiles))
		limit := len(t.Code.Issues)
		if limit > 10 {
			limit = 10
		}
		for _, issue := range t.Code.Issues[:limit] {
			fmt.Fprintf(&b, "- [%s] %s:%d %s: %s\n",
				issue.Severity, issue.File, issue.Line, issue.IssueType, issue.Description)
		}
	}
	b.WriteString("\n")

	b.WriteString("## Metrics\n")
	if t.Metrics == nil || !t.Metrics.Found {
		note := "No metrics record found."
		if t.Metrics != nil && t.Metrics.Note != "" {
			note = t.Metrics.Note
		}
		b.WriteString(note + "\n")
	} else {
		r := t.Metrics.Record
		fmt.Fprintf(&b, "Status: %s | Duration: %ds | CPU: %.1f%% | Memory: %dMB | Errors: %d\n",
			r.Status, r.DurationSeconds, r.CPUUsagePct, r.MemoryUsageMB, r.ErrorCount)
	}
	b.WriteString("\n")

	b.WriteString("## Similar Incidents\n")
	if t.Incidents == nil || len(t.Incidents.Matches) == 0 {
		b.WriteString("No similar incidents found.\n")
	} else {
		for _, rec := range t.Incidents.Matches {
			fmt.Fprintf(&b, "- %s (%s, %s): %s", rec.IncidentID, rec.Date, rec.Severity, rec.Description)
			if rec.Resolution != "" {
				fmt.Fprintf(&b, " | Resolution: %s", rec.Resolution)
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")

	if len(t.Recommendations) > 0 {
		b.WriteString("## Recommendations\n")
		for i, rec := range t.Recommendations {
			fmt.Fprintf(&b, "%d. %s\n", i+1, rec)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Next Steps\n")
	for i, step := range t.NextSteps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}

	return sanitize.Scrub(b.String())
}
