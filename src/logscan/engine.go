// Package logscan provides the log analysis engine. It streams raw lines from
// configured sources, classifies error lines, and builds a task timeline with
// aggregate error statistics.
package logscan

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"opstriage-agent/src/contracts"
	"opstriage-agent/src/logger"
)

// Source enumerates raw log lines from one log. Implementations are read-only.
type Source interface {
	// Name identifies the source in reports (e.g. the file name).
	Name() string
	// Lines returns every raw line in order. Line numbers are 1-based
	// positions in the returned slice.
	Lines(ctx context.Context) ([]string, error)
}

// Timestamp patterns tried in order; first match wins.
var timestampFormats = []struct {
	pattern *regexp.Regexp
	layout  string
}{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`), "2006-01-02 15:04:05"},
	{regexp.MustCompile(`\d{2}/\d{2}/\d{4} \d{2}:\d{2}:\d{2}`), "01/02/2006 15:04:05"},
	{regexp.MustCompile(`[A-Z][a-z]{2} \d{2} \d{2}:\d{2}:\d{2}`), "Jan 02 15:04:05"},
}

// Engine analyzes log sources for one task.
type Engine struct {
	errorKeywords []string
	topN          int
	log           logger.Logger
}

// NewEngine builds a log engine with the given error keyword set and top-N
// size for the error-type ranking.
func NewEngine(errorKeywords []string, topN int, log logger.Logger) *Engine {
	if topN <= 0 {
		topN = 5
	}
	return &Engine{
		errorKeywords: errorKeywords,
		topN:          topN,
		log:           log,
	}
}

type sourceResult struct {
	related []contracts.LogEntry
	errors  []contracts.LogEntry
	err     error
}

// Analyze scans every source for lines related to taskID and classifies error
// lines. Sources are scanned in parallel; the merge preserves source order so
// the aggregates are reproducible. An unreadable source is skipped, not fatal.
// No sources or no matches yields an empty report, never an error.
func (e *Engine) Analyze(ctx context.Context, taskID string, sources []Source) (*contracts.LogReport, error) {
	report := &contracts.LogReport{
		TaskID:             taskID,
		ErrorTypeFrequency: make(map[contracts.ErrorType]int),
		SeverityHistogram:  make(map[contracts.Severity]int),
		SourcesScanned:     len(sources),
	}

	if taskID == contracts.UnknownTaskID {
		report.Summary = "No task identifier in query; log scan skipped."
		return report, nil
	}
	if len(sources) == 0 {
		report.Summary = fmt.Sprintf("No log sources configured; no entries for %s.", taskID)
		return report, nil
	}

	results := make([]sourceResult, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(idx int, src Source) {
			defer wg.Done()
			results[idx] = e.scanSource(ctx, taskID, src)
		}(i, src)
	}
	wg.Wait()

	// Merge in input order for deterministic aggregates.
	for i, res := range results {
		if res.err != nil {
			e.log.Error("[LogEngine] Skipping source %s: %v", sources[i].Name(), res.err)
			continue
		}
		report.Timeline = append(report.Timeline, res.related...)
		report.Errors = append(report.Errors, res.errors...)
	}

	report.Timeline = dedupeEntries(report.Timeline)
	sortTimeline(report.Timeline)

	for _, entry := range report.Errors {
		report.ErrorTypeFrequency[entry.ErrorType]++
		report.SeverityHistogram[entry.Severity]++
	}
	report.TopErrorTypes = topErrorTypes(report.Errors, e.topN)
	report.Summary = buildSummary(report)

	return report, nil
}

// scanSource reads one source and classifies its lines. Task-related lines go
// to related (classified as errors when they also match the error keywords);
// every error line goes to errors regardless of task relation.
func (e *Engine) scanSource(ctx context.Context, taskID string, src Source) sourceResult {
	lines, err := src.Lines(ctx)
	if err != nil {
		return sourceResult{err: fmt.Errorf("reading source: %w", err)}
	}

	var res sourceResult
	taskLower := strings.ToLower(taskID)

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		lower := strings.ToLower(trimmed)
		isError := e.isErrorLine(lower)
		entry := contracts.LogEntry{
			Source:     src.Name(),
			LineNumber: i + 1,
			Content:    trimmed,
			IsError:    isError,
		}
		entry.Timestamp, entry.At = extractTimestamp(trimmed)
		if isError {
			entry.ErrorType = classifyError(lower)
			entry.Severity = classifySeverity(lower)
			res.errors = append(res.errors, entry)
		}

		if strings.Contains(lower, taskLower) {
			res.related = append(res.related, entry)
		}
	}

	return res
}

func (e *Engine) isErrorLine(lower string) bool {
	for _, kw := range e.errorKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// classifyError applies the ordered classification rules; the first matching
// rule wins.
func classifyError(lower string) contracts.ErrorType {
	switch {
	case strings.Contains(lower, "null pointer") || strings.Contains(lower, "nullpointerexception"):
		return contracts.ErrorNullPointer
	case strings.Contains(lower, "timeout"):
		return contracts.ErrorTimeout
	case strings.Contains(lower, "connection") && (strings.Contains(lower, "refused") || strings.Contains(lower, "failed")):
		return contracts.ErrorConnection
	case strings.Contains(lower, "memory"):
		return contracts.ErrorMemory
	case strings.Contains(lower, "security") || strings.Contains(lower, "unauthorized"):
		return contracts.ErrorSecurity
	case strings.Contains(lower, "database") || strings.Contains(lower, "sql"):
		return contracts.ErrorDatabase
	default:
		return contracts.ErrorGeneral
	}
}

// classifySeverity maps an error line to a severity; the first matching rule
// wins, everything else is LOW.
func classifySeverity(lower string) contracts.Severity {
	switch {
	case strings.Contains(lower, "fatal") || strings.Contains(lower, "critical") || strings.Contains(lower, "emergency"):
		return contracts.SeverityCritical
	case strings.Contains(lower, "error") || strings.Contains(lower, "exception") || strings.Contains(lower, "failed"):
		return contracts.SeverityHigh
	case strings.Contains(lower, "warning") || strings.Contains(lower, "warn"):
		return contracts.SeverityMedium
	default:
		return contracts.SeverityLow
	}
}

// extractTimestamp tries the known timestamp patterns in order. It returns the
// matched text and parsed time, or empty values when no pattern matches.
func extractTimestamp(line string) (string, time.Time) {
	for _, tf := range timestampFormats {
		if m := tf.pattern.FindString(line); m != "" {
			if at, err := time.Parse(tf.layout, m); err == nil {
				return m, at
			}
			return m, time.Time{}
		}
	}
	return "", time.Time{}
}

// dedupeEntries removes duplicates by (source, line number), keeping the first
// occurrence. A task-related error line would otherwise appear twice.
func dedupeEntries(entries []contracts.LogEntry) []contracts.LogEntry {
	type key struct {
		source string
		line   int
	}
	seen := make(map[key]bool, len(entries))
	out := entries[:0]
	for _, entry := range entries {
		k := key{entry.Source, entry.LineNumber}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, entry)
	}
	return out
}

// sortTimeline orders entries by timestamp ascending. Entries without a
// timestamp sort last; the sort is stable so equal keys keep input order.
func sortTimeline(entries []contracts.LogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		ti, tj := entries[i].At, entries[j].At
		if ti.IsZero() {
			return false
		}
		if tj.IsZero() {
			return true
		}
		return ti.Before(tj)
	})
}

// topErrorTypes ranks error types by count descending, breaking ties by
// first-seen order, capped to n.
func topErrorTypes(errors []contracts.LogEntry, n int) []contracts.ErrorTypeCount {
	counts := make(map[contracts.ErrorType]int)
	var order []contracts.ErrorType
	for _, entry := range errors {
		if _, ok := counts[entry.ErrorType]; !ok {
			order = append(order, entry.ErrorType)
		}
		counts[entry.ErrorType]++
	}

	firstSeen := make(map[contracts.ErrorType]int, len(order))
	for i, t := range order {
		firstSeen[t] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		ci, cj := counts[order[i]], counts[order[j]]
		if ci != cj {
			return ci > cj
		}
		return firstSeen[order[i]] < firstSeen[order[j]]
	})

	if len(order) > n {
		order = order[:n]
	}
	out := make([]contracts.ErrorTypeCount, 0, len(order))
	for _, t := range order {
		out = append(out, contracts.ErrorTypeCount{Type: t, Count: counts[t]})
	}
	return out
}

// buildSummary produces the compact digest consumed by the code and incident
// stages. It deliberately carries error-type names and sample error content so
// downstream keyword matching has material to work with.
func buildSummary(r *contracts.LogReport) string {
	if r.Empty() {
		return fmt.Sprintf("No log entries found for task %s.", r.TaskID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Task %s: %d timeline entries, %d errors.", r.TaskID, len(r.Timeline), len(r.Errors))
	if len(r.TopErrorTypes) > 0 {
		b.WriteString(" Top error types:")
		for _, tc := range r.TopErrorTypes {
			fmt.Fprintf(&b, " %s(%d)", tc.Type, tc.Count)
		}
		b.WriteString(".")
	}
	// Sample up to three task-related error lines for keyword context.
	sampled := 0
	for _, entry := range r.Timeline {
		if !entry.IsError {
			continue
		}
		fmt.Fprintf(&b, " | %s", entry.Content)
		sampled++
		if sampled == 3 {
			break
		}
	}
	return b.String()
}
