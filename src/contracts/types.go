// Package contracts defines the value records exchanged between pipeline stages.
// Every type here is produced once by exactly one stage and never mutated after
// that stage completes.
package contracts

import "time"

// UnknownTaskID is the sentinel used when a query carries no task token.
// Downstream stages treat it as "no results", never as a failure.
const UnknownTaskID = "UNKNOWN"

// Severity is a triage severity level, ordered CRITICAL > HIGH > MEDIUM > LOW.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Rank returns the priority rank of a severity; higher means more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// ErrorType classifies an error log line into a coarse failure family.
type ErrorType string

const (
	ErrorNullPointer ErrorType = "NullPointerException"
	ErrorTimeout     ErrorType = "TimeoutError"
	ErrorConnection  ErrorType = "ConnectionError"
	ErrorMemory      ErrorType = "MemoryError"
	ErrorSecurity    ErrorType = "SecurityError"
	ErrorDatabase    ErrorType = "DatabaseError"
	ErrorGeneral     ErrorType = "GeneralError"
)

// Query is a parsed triage query.
type Query struct {
	// Raw is the original free-text query.
	Raw string `json:"raw"`
	// TaskID is the extracted task token, or UnknownTaskID when absent.
	TaskID string `json:"task_id"`
	// IsPerformance is set when the query mentions slowness or latency.
	IsPerformance bool `json:"is_performance"`
	// IsError is set when the query mentions failures or crashes.
	IsError bool `json:"is_error"`
}

// LogEntry is a single classified log line.
type LogEntry struct {
	// Source names the log source (e.g. the file) the line came from.
	Source string `json:"source"`
	// LineNumber is the 1-based position within the source.
	LineNumber int `json:"line_number"`
	// Timestamp is the raw timestamp text matched in the line, empty if none.
	Timestamp string `json:"timestamp,omitempty"`
	// At is the parsed timestamp; the zero value means no timestamp was found.
	At time.Time `json:"-"`
	// Content is the raw log line.
	Content string `json:"content"`
	// IsError marks lines that matched the error keyword set.
	IsError bool `json:"is_error"`
	// ErrorType is set only for error lines.
	ErrorType ErrorType `json:"error_type,omitempty"`
	// Severity is set only for error lines.
	Severity Severity `json:"severity,omitempty"`
}

// ErrorTypeCount pairs an error type with its occurrence count.
type ErrorTypeCount struct {
	Type  ErrorType `json:"type"`
	Count int       `json:"count"`
}

// LogReport is the output of the log analysis stage.
type LogReport struct {
	TaskID string `json:"task_id"`
	// Timeline holds all task-related lines, deduplicated and ordered by
	// timestamp ascending with untimed entries last.
	Timeline []LogEntry `json:"timeline"`
	// Errors holds every error line seen across all sources.
	Errors []LogEntry `json:"errors"`
	// ErrorTypeFrequency counts error lines per error type.
	ErrorTypeFrequency map[ErrorType]int `json:"error_type_frequency"`
	// TopErrorTypes is the top 5 error types by count, first-seen order on ties.
	TopErrorTypes []ErrorTypeCount `json:"top_error_types"`
	// SeverityHistogram counts error lines per severity.
	SeverityHistogram map[Severity]int `json:"severity_histogram"`
	// Summary is a compact text digest consumed by the code and incident stages.
	Summary string `json:"summary"`
	// SourcesScanned is the number of log sources enumerated.
	SourcesScanned int `json:"sources_scanned"`
}

// Empty reports whether the stage found nothing task-related.
func (r *LogReport) Empty() bool {
	return len(r.Timeline) == 0 && len(r.Errors) == 0
}

// IssueCategory groups code issues for reporting.
type IssueCategory string

const (
	CategoryGeneral     IssueCategory = "general"
	CategorySecurity    IssueCategory = "security"
	CategoryPerformance IssueCategory = "performance"
	CategorySmell       IssueCategory = "smell"
)

// CodeIssue is one heuristic or structural finding in a source file.
type CodeIssue struct {
	File        string        `json:"file"`
	Line        int           `json:"line"`
	IssueType   string        `json:"issue_type"`
	Description string        `json:"description"`
	Severity    Severity      `json:"severity"`
	Category    IssueCategory `json:"category"`
	// Snippet is the offending line, trimmed.
	Snippet string `json:"snippet,omitempty"`
}

// CodeReport is the output of the code analysis stage.
type CodeReport struct {
	TaskID            string                        `json:"task_id"`
	FilesAnalyzed     int                           `json:"files_analyzed"`
	TaskRelatedFiles  []string                      `json:"task_related_files"`
	Issues            []CodeIssue                   `json:"issues"`
	IssuesByCategory  map[IssueCategory][]CodeIssue `json:"issues_by_category"`
	SeverityHistogram map[Severity]int              `json:"severity_histogram"`
}

// Empty reports whether the stage found no task-related files.
func (r *CodeReport) Empty() bool {
	return len(r.TaskRelatedFiles) == 0 && len(r.Issues) == 0
}

// MetricsRecord is one row of task execution metrics.
type MetricsRecord struct {
	TaskID          string  `json:"task_id"`
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time"`
	DurationSeconds int     `json:"duration_seconds"`
	Status          string  `json:"status"`
	CPUUsagePct     float64 `json:"cpu_usage_pct"`
	MemoryUsageMB   int     `json:"memory_usage_mb"`
	ErrorCount      int     `json:"error_count"`
}

// MetricsReport is the output of the metrics stage. A missing record is a
// normal outcome, not an error.
type MetricsReport struct {
	TaskID string         `json:"task_id"`
	Found  bool           `json:"found"`
	Record *MetricsRecord `json:"record,omitempty"`
	// Note annotates degraded lookups (e.g. store unreachable).
	Note string `json:"note,omitempty"`
}

// IncidentRecord is one historical incident from the ledger.
type IncidentRecord struct {
	IncidentID  string `json:"incident_id"`
	Date        string `json:"date"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Resolution  string `json:"resolution,omitempty"`
}

// IncidentReport is the output of the incident matching stage.
type IncidentReport struct {
	TaskID  string           `json:"task_id"`
	Matches []IncidentRecord `json:"matches"`
	// MatchedBy records which pass produced the matches: "task-id",
	// "keywords", or "none".
	MatchedBy string `json:"matched_by"`
}

// ExecutiveSummary is the short human-facing digest attached to a ticket.
type ExecutiveSummary struct {
	// Status is OK, WARNING, or CRITICAL.
	Status string `json:"status"`
	// StatusLine is the one-sentence wording for the status.
	StatusLine string `json:"status_line"`
	// KeyFindings lists notable signals detected across stages.
	KeyFindings []string `json:"key_findings"`
	// Recommendations holds at most the top three recommendations.
	Recommendations []string `json:"recommendations"`
}

// Ticket is the final synthesized triage document.
type Ticket struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Priority  Severity  `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
	Labels    []string  `json:"labels"`

	// Problem and RootCause are narrative prose from the analysis provider;
	// both degrade to a placeholder when the provider is unavailable.
	Problem   string `json:"problem"`
	RootCause string `json:"root_cause"`

	Executive       ExecutiveSummary `json:"executive_summary"`
	Recommendations []string         `json:"recommendations"`
	NextSteps       []string         `json:"next_steps"`

	Log       *LogReport      `json:"log,omitempty"`
	Code      *CodeReport     `json:"code,omitempty"`
	Metrics   *MetricsReport  `json:"metrics,omitempty"`
	Incidents *IncidentReport `json:"incidents,omitempty"`
}
