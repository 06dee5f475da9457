// Package codescan provides the code analysis engine: per-line heuristic
// checks plus a best-effort structural pass over Python and Java sources.
package codescan

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"opstriage-agent/src/contracts"
	"opstriage-agent/src/logger"
)

// File is one source file with its full text.
type File struct {
	Path    string
	Content string
}

// Source enumerates code files under the tracked extensions. Read-only.
type Source interface {
	Files(ctx context.Context) ([]File, error)
}

// Engine scans code files for issues related to one task.
type Engine struct {
	longLineLimit  int
	minTokenLength int
	log            logger.Logger
}

func NewEngine(longLineLimit, minTokenLength int, log logger.Logger) *Engine {
	if longLineLimit <= 0 {
		longLineLimit = 120
	}
	if minTokenLength <= 0 {
		minTokenLength = 3
	}
	return &Engine{
		longLineLimit:  longLineLimit,
		minTokenLength: minTokenLength,
		log:            log,
	}
}

type fileResult struct {
	related bool
	issues  []contracts.CodeIssue
}

// Analyze scans every file independently and in parallel; a failure in one
// file degrades to a single recorded issue and never aborts the others. The
// log-stage summary contributes extra keywords for task-relatedness only.
func (e *Engine) Analyze(ctx context.Context, taskID, logSummary string, src Source) (*contracts.CodeReport, error) {
	report := &contracts.CodeReport{
		TaskID:            taskID,
		IssuesByCategory:  make(map[contracts.IssueCategory][]contracts.CodeIssue),
		SeverityHistogram: make(map[contracts.Severity]int),
	}

	keywords := summaryTokens(logSummary, e.minTokenLength)

	// Without a task token or any summary keywords there is nothing to relate
	// files to; skip the scan entirely.
	if taskID == contracts.UnknownTaskID && len(keywords) == 0 {
		return report, nil
	}

	files, err := src.Files(ctx)
	if err != nil {
		// The whole repository being unreadable is a degraded stage, not a
		// pipeline failure.
		e.log.Error("[CodeEngine] Code source unavailable: %v", err)
		return report, nil
	}
	report.FilesAnalyzed = len(files)

	results := make([]fileResult, len(files))
	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(idx int, f File) {
			defer wg.Done()
			results[idx] = e.analyzeFile(ctx, taskID, keywords, f)
		}(i, f)
	}
	wg.Wait()

	// Merge in enumeration order for reproducible reports.
	for i, res := range results {
		if res.related {
			report.TaskRelatedFiles = append(report.TaskRelatedFiles, files[i].Path)
		}
		report.Issues = append(report.Issues, res.issues...)
	}

	for _, issue := range report.Issues {
		report.IssuesByCategory[issue.Category] = append(report.IssuesByCategory[issue.Category], issue)
		report.SeverityHistogram[issue.Severity]++
	}

	return report, nil
}

// analyzeFile runs the per-line heuristics and the structural pass for one
// file. Any panic from the structural machinery is captured as a single
// analysis-error issue.
func (e *Engine) analyzeFile(ctx context.Context, taskID string, keywords []string, f File) (res fileResult) {
	defer func() {
		if r := recover(); r != nil {
			res.issues = append(res.issues, analysisErrorIssue(f.Path, fmt.Sprintf("panic: %v", r)))
		}
	}()

	contentLower := strings.ToLower(f.Content)
	res.related = isTaskRelated(contentLower, taskID, keywords)

	lines := strings.Split(f.Content, "\n")
	for i, line := range lines {
		var next string
		if i+1 < len(lines) {
			next = lines[i+1]
		}
		res.issues = append(res.issues, e.checkLine(f.Path, i+1, line, next)...)
	}

	res.issues = append(res.issues, structuralPass(ctx, f)...)
	return res
}

// isTaskRelated reports whether the file mentions the task token or shares a
// keyword with the log summary.
func isTaskRelated(contentLower, taskID string, keywords []string) bool {
	if taskID != contracts.UnknownTaskID && strings.Contains(contentLower, strings.ToLower(taskID)) {
		return true
	}
	for _, kw := range keywords {
		if strings.Contains(contentLower, kw) {
			return true
		}
	}
	return false
}

// summaryTokens splits the log summary into lowercase keywords longer than
// min characters, deduplicated in first-seen order.
func summaryTokens(summary string, min int) []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, tok := range strings.Fields(strings.ToLower(summary)) {
		tok = strings.Trim(tok, ".,:;|()[]{}'\"")
		if len(tok) <= min || seen[tok] {
			continue
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}
	return tokens
}

// checkLine applies the independent heuristics to one physical line. Each
// check yields at most one issue.
func (e *Engine) checkLine(path string, num int, line, next string) []contracts.CodeIssue {
	var issues []contracts.CodeIssue
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}
	lower := strings.ToLower(trimmed)

	add := func(issueType, desc string, sev contracts.Severity, cat contracts.IssueCategory) {
		issues = append(issues, contracts.CodeIssue{
			File:        path,
			Line:        num,
			IssueType:   issueType,
			Description: desc,
			Severity:    sev,
			Category:    cat,
			Snippet:     snippet(trimmed),
		})
	}

	// Accessor call without a nearby null/none check.
	if containsAny(trimmed, ".get(", ".fetch(", ".find(") &&
		!strings.Contains(lower, "null") && !strings.Contains(lower, "none") {
		add("NullPointerRisk", "potential null pointer access without null check",
			contracts.SeverityHigh, contracts.CategoryGeneral)
	}

	// Connection/stream/file opened without a visible close or scoped
	// acquisition in the same statement.
	if containsAny(lower, "connection(", "open(", "stream(") &&
		!strings.Contains(lower, "close()") && !strings.Contains(lower, "with") {
		add("ResourceLeak", "potential resource leak - missing close()",
			contracts.SeverityMedium, contracts.CategoryGeneral)
	}

	// SQL built from request input.
	if containsAny(lower, "sql", "query", "execute") &&
		containsAny(lower, "input", "request", "param") {
		add("SQLInjection", "potential SQL injection vulnerability",
			contracts.SeverityCritical, contracts.CategorySecurity)
	}

	// Quoted literal assigned to a credential-looking name.
	if containsAny(lower, "password", "apikey", "secret", "token") &&
		strings.Contains(trimmed, "=") && containsAny(trimmed, `"`, "'") {
		add("HardcodedCredential", "potential hardcoded credential",
			contracts.SeverityHigh, contracts.CategorySecurity)
	}

	// Synchronous sleep blocks the worker.
	if containsAny(lower, "sleep(", "thread.sleep", "time.sleep") {
		add("BlockingCall", "synchronous sleep may block execution",
			contracts.SeverityMedium, contracts.CategoryPerformance)
	}

	// Loop opening immediately followed by a more-indented loop opening.
	if isLoopOpening(lower) && isNestedLoop(line, next) {
		add("NestedLoop", "nested loop detected - potential performance impact",
			contracts.SeverityMedium, contracts.CategoryPerformance)
	}

	if len(trimmed) > e.longLineLimit {
		add("LongLine", fmt.Sprintf("long line (%d characters) - consider refactoring", len(trimmed)),
			contracts.SeverityLow, contracts.CategorySmell)
	}

	if strings.Contains(lower, "todo") || strings.Contains(lower, "fixme") {
		add("TodoComment", "TODO/FIXME marker present",
			contracts.SeverityLow, contracts.CategorySmell)
	}

	return issues
}

func isLoopOpening(lower string) bool {
	return strings.HasPrefix(lower, "for ") || strings.HasPrefix(lower, "for(") ||
		strings.HasPrefix(lower, "while ") || strings.HasPrefix(lower, "while(")
}

// isNestedLoop reports whether next is a loop opening indented deeper than
// line.
func isNestedLoop(line, next string) bool {
	nextTrimmed := strings.TrimSpace(next)
	if nextTrimmed == "" || !isLoopOpening(strings.ToLower(nextTrimmed)) {
		return false
	}
	return indentOf(next) > indentOf(line)
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func snippet(trimmed string) string {
	if len(trimmed) > 100 {
		return trimmed[:100] + "..."
	}
	return trimmed
}

// analysisErrorIssue is the single LOW-severity issue recorded when a file
// cannot be analyzed.
func analysisErrorIssue(path, detail string) contracts.CodeIssue {
	return contracts.CodeIssue{
		File:        path,
		Line:        0,
		IssueType:   "AnalysisError",
		Description: "error analyzing file: " + detail,
		Severity:    contracts.SeverityLow,
		Category:    contracts.CategoryGeneral,
	}
}

// SortIssues orders issues by severity rank descending, then file, then line.
// Reports use it for stable presentation.
func SortIssues(issues []contracts.CodeIssue) {
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Severity.Rank() != issues[j].Severity.Rank() {
			return issues[i].Severity.Rank() > issues[j].Severity.Rank()
		}
		if issues[i].File != issues[j].File {
			return issues[i].File < issues[j].File
		}
		return issues[i].Line < issues[j].Line
	})
}
