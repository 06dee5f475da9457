package ticket

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"opstriage-agent/src/config"
	"opstriage-agent/src/contracts"
	"opstriage-agent/src/logger"
	"opstriage-agent/src/provider"
)

type fakeClient struct {
	response string
	prompts  []string
}

func (f *fakeClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, nil
}

func newTestSynthesizer(client provider.Client) *Synthesizer {
	s := NewSynthesizer(config.Default(), client, logger.NewSilentLogger())
	s.now = func() time.Time { return time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC) }
	s.idSuffix = func() int { return 42 }
	return s
}

func emptyReports(taskID string) (*contracts.LogReport, *contracts.CodeReport, *contracts.MetricsReport, *contracts.IncidentReport) {
	return &contracts.LogReport{TaskID: taskID},
		&contracts.CodeReport{TaskID: taskID},
		&contracts.MetricsReport{TaskID: taskID},
		&contracts.IncidentReport{TaskID: taskID, MatchedBy: "none"}
}

func TestTicketIDFormat(t *testing.T) {
	s := newTestSynthesizer(provider.Unavailable{})
	lr, cr, mr, ir := emptyReports("TID-1")

	tk := s.Synthesize(context.Background(), contracts.Query{TaskID: "TID-1"}, lr, cr, mr, ir)
	if tk.ID != "OPS-20240115-0042" {
		t.Errorf("ticket ID = %q, expected OPS-20240115-0042", tk.ID)
	}
	if !regexp.MustCompile(`^OPS-\d{8}-\d{4}$`).MatchString(tk.ID) {
		t.Errorf("ticket ID %q does not match the OPS-YYYYMMDD-NNNN shape", tk.ID)
	}
}

func TestPriorityCriticalFromCPU(t *testing.T) {
	s := newTestSynthesizer(provider.Unavailable{})
	lr, cr, _, ir := emptyReports("TID-12346")
	mr := &contracts.MetricsReport{
		TaskID: "TID-12346",
		Found:  true,
		Record: &contracts.MetricsRecord{TaskID: "TID-12346", Status: "completed", CPUUsagePct: 95},
	}

	tk := s.Synthesize(context.Background(), contracts.Query{TaskID: "TID-12346"}, lr, cr, mr, ir)
	if tk.Priority != contracts.SeverityCritical {
		t.Errorf("priority = %q, expected CRITICAL for cpu=95", tk.Priority)
	}
}

func TestPriorityHighFromNullPointerLogs(t *testing.T) {
	s := newTestSynthesizer(provider.Unavailable{})
	_, cr, mr, ir := emptyReports("TID-12345")
	lr := &contracts.LogReport{
		TaskID: "TID-12345",
		Errors: []contracts.LogEntry{
			{Content: "NullPointerException in TaskProcessor", IsError: true,
				ErrorType: contracts.ErrorNullPointer, Severity: contracts.SeverityHigh},
		},
		TopErrorTypes: []contracts.ErrorTypeCount{{Type: contracts.ErrorNullPointer, Count: 1}},
		Summary:       "Task TID-12345: 1 errors.",
	}

	tk := s.Synthesize(context.Background(), contracts.Query{TaskID: "TID-12345"}, lr, cr, mr, ir)
	if tk.Priority.Rank() < contracts.SeverityHigh.Rank() {
		t.Errorf("priority = %q, expected at least HIGH for an NPE", tk.Priority)
	}
	found := false
	for _, rec := range tk.Recommendations {
		if strings.Contains(strings.ToLower(rec), "null") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a null-check recommendation, got %v", tk.Recommendations)
	}
}

func TestPriorityLadder(t *testing.T) {
	tests := []struct {
		name     string
		record   *contracts.MetricsRecord
		expected contracts.Severity
	}{
		{"errors over critical threshold", &contracts.MetricsRecord{ErrorCount: 6}, contracts.SeverityCritical},
		{"errors over high threshold", &contracts.MetricsRecord{ErrorCount: 3}, contracts.SeverityHigh},
		{"long duration", &contracts.MetricsRecord{DurationSeconds: 301}, contracts.SeverityHigh},
		{"moderate cpu", &contracts.MetricsRecord{CPUUsagePct: 55}, contracts.SeverityMedium},
		{"one error", &contracts.MetricsRecord{ErrorCount: 1}, contracts.SeverityMedium},
		{"quiet task", &contracts.MetricsRecord{}, contracts.SeverityLow},
	}

	s := newTestSynthesizer(provider.Unavailable{})
	for _, tt := range tests {
		lr, cr, _, _ := emptyReports("TID-1")
		mr := &contracts.MetricsReport{TaskID: "TID-1", Found: true, Record: tt.record}
		if got := s.derivePriority(lr, cr, mr); got != tt.expected {
			t.Errorf("%s: priority = %q, expected %q", tt.name, got, tt.expected)
		}
	}
}

func TestNoDataTicketIsLow(t *testing.T) {
	s := newTestSynthesizer(provider.Unavailable{})
	lr, cr, mr, ir := emptyReports(contracts.UnknownTaskID)

	tk := s.Synthesize(context.Background(), contracts.Query{Raw: "help", TaskID: contracts.UnknownTaskID}, lr, cr, mr, ir)
	if tk.Priority != contracts.SeverityLow {
		t.Errorf("priority = %q, expected LOW with no data", tk.Priority)
	}
	if tk.Executive.Status != "OK" {
		t.Errorf("status = %q, expected OK with no data", tk.Executive.Status)
	}
	if len(tk.Executive.KeyFindings) != 1 || !strings.Contains(tk.Executive.KeyFindings[0], "no data") {
		t.Errorf("expected an explicit no-data finding, got %v", tk.Executive.KeyFindings)
	}
}

func TestExecutiveStatusWording(t *testing.T) {
	tests := []struct {
		status   string
		expected string
	}{
		{"failed", "CRITICAL"},
		{"error", "CRITICAL"},
		{"completed_with_warnings", "WARNING"},
		{"completed", "OK"},
	}

	for _, tt := range tests {
		mr := &contracts.MetricsReport{TaskID: "TID-1", Found: true,
			Record: &contracts.MetricsRecord{Status: tt.status}}
		exec := buildExecutive("TID-1", &contracts.LogReport{}, &contracts.CodeReport{}, mr, nil, nil)
		if exec.Status != tt.expected {
			t.Errorf("metrics status %q: executive status = %q, expected %q", tt.status, exec.Status, tt.expected)
		}
	}
}

func TestExecutiveCriticalFromLogErrorsAlone(t *testing.T) {
	lr := &contracts.LogReport{Errors: []contracts.LogEntry{
		{Content: "ERROR [worker-1] Task TID-12345 failed after 3 attempts", IsError: true,
			ErrorType: contracts.ErrorGeneral, Severity: contracts.SeverityHigh},
	}}
	exec := buildExecutive("TID-12345", lr, nil, nil, nil, nil)
	if exec.Status != "CRITICAL" {
		t.Errorf("status = %q, expected CRITICAL when the findings mention failures", exec.Status)
	}
}

func TestExecutiveWarningFromWarnOnlyLogs(t *testing.T) {
	// Timeline carries a warning line but nothing failed anywhere.
	lr := &contracts.LogReport{Timeline: []contracts.LogEntry{
		{Content: "WARNING [system] Memory usage at 85% for task TID-12348"},
	}}
	exec := buildExecutive("TID-12348", lr, nil, nil, nil, nil)
	if exec.Status != "WARNING" {
		t.Errorf("status = %q, expected WARNING from warning-level findings", exec.Status)
	}
}

func TestExecutiveStatusLadderPrefersCritical(t *testing.T) {
	// A warning in the logs must not mask a failed metrics status.
	lr := &contracts.LogReport{Timeline: []contracts.LogEntry{
		{Content: "WARNING [worker-1] Retrying task TID-1"},
	}}
	mr := &contracts.MetricsReport{TaskID: "TID-1", Found: true,
		Record: &contracts.MetricsRecord{Status: "failed"}}
	exec := buildExecutive("TID-1", lr, nil, mr, nil, nil)
	if exec.Status != "CRITICAL" {
		t.Errorf("status = %q, expected CRITICAL to win over WARNING", exec.Status)
	}
}

func TestRecommendationsOrderAndCap(t *testing.T) {
	s := newTestSynthesizer(provider.Unavailable{})
	lr := &contracts.LogReport{
		Summary: "nullpointer timeout memory database failures everywhere",
	}

	recs := s.buildRecommendations(lr, nil, nil)
	if len(recs) != 3 {
		t.Fatalf("expected the cap of 3 recommendations, got %d: %v", len(recs), recs)
	}
	if !strings.Contains(strings.ToLower(recs[0]), "null") {
		t.Errorf("first recommendation should address null pointers, got %q", recs[0])
	}
	if !strings.Contains(strings.ToLower(recs[1]), "timeout") {
		t.Errorf("second recommendation should address timeouts, got %q", recs[1])
	}
}

func TestNarrativeDegradesWhenProviderUnavailable(t *testing.T) {
	s := newTestSynthesizer(provider.Unavailable{})
	lr, cr, mr, ir := emptyReports("TID-1")

	tk := s.Synthesize(context.Background(), contracts.Query{TaskID: "TID-1"}, lr, cr, mr, ir)
	if tk.Problem != narrativeUnavailable || tk.RootCause != narrativeUnavailable {
		t.Errorf("expected placeholder narrative, got %q / %q", tk.Problem, tk.RootCause)
	}
}

func TestNarrativeUsesProvider(t *testing.T) {
	client := &fakeClient{response: "The task failed with repeated null pointer errors."}
	s := newTestSynthesizer(client)
	lr, cr, mr, ir := emptyReports("TID-12345")

	tk := s.Synthesize(context.Background(), contracts.Query{Raw: "why failing", TaskID: "TID-12345"}, lr, cr, mr, ir)
	if tk.Problem != client.response {
		t.Errorf("problem = %q, expected provider text", tk.Problem)
	}
	if len(client.prompts) != 2 {
		t.Fatalf("expected 2 provider calls, got %d", len(client.prompts))
	}
	for _, prompt := range client.prompts {
		if !strings.Contains(prompt, "TID-12345") {
			t.Errorf("prompt should carry the task ID: %q", prompt)
		}
	}
}

func TestPromptsAreScrubbed(t *testing.T) {
	client := &fakeClient{response: "ok"}
	s := newTestSynthesizer(client)
	lr, cr, mr, ir := emptyReports("TID-1")
	lr.Timeline = []contracts.LogEntry{{Content: "x"}}
	lr.Summary = "config dump password=hunter2 in logs"

	s.Synthesize(context.Background(), contracts.Query{TaskID: "TID-1"}, lr, cr, mr, ir)
	for _, prompt := range client.prompts {
		if strings.Contains(prompt, "hunter2") {
			t.Errorf("credential leaked into provider prompt: %q", prompt)
		}
	}
}

func TestLabels(t *testing.T) {
	s := newTestSynthesizer(provider.Unavailable{})
	lr, cr, mr, ir := emptyReports("TID-1")

	q := contracts.Query{TaskID: "TID-1", IsPerformance: true, IsError: true}
	tk := s.Synthesize(context.Background(), q, lr, cr, mr, ir)

	want := map[string]bool{"triage": true, "low": true, "performance": true, "error": true}
	if len(tk.Labels) != len(want) {
		t.Fatalf("labels = %v", tk.Labels)
	}
	for _, l := range tk.Labels {
		if !want[l] {
			t.Errorf("unexpected label %q", l)
		}
	}
}

func TestRenderSections(t *testing.T) {
	s := newTestSynthesizer(provider.Unavailable{})
	lr, cr, mr, ir := emptyReports("TID-1")
	tk := s.Synthesize(context.Background(), contracts.Query{TaskID: "TID-1"}, lr, cr, mr, ir)

	out := Render(tk)
	for _, section := range []string{"## Status", "## Problem", "## Root Cause", "## Log Analysis",
		"## Code Analysis", "## Metrics", "## Similar Incidents", "## Next Steps"} {
		if !strings.Contains(out, section) {
			t.Errorf("rendered ticket missing section %q", section)
		}
	}
	if !strings.Contains(out, "No log entries found.") {
		t.Error("empty log section should say so explicitly")
	}
	if !strings.Contains(out, tk.ID) {
		t.Error("rendered ticket should carry the ticket ID")
	}
}
