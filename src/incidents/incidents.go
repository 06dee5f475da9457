// Package incidents matches a task against the historical incident ledger.
package incidents

import (
	"context"
	"strings"

	"opstriage-agent/src/contracts"
	"opstriage-agent/src/logger"
)

// Ledger enumerates historical incident records in ledger order.
type Ledger interface {
	Records(ctx context.Context) ([]contracts.IncidentRecord, error)
}

// Match provenance values for IncidentReport.MatchedBy.
const (
	MatchedByTaskID   = "task-id"
	MatchedByKeywords = "keywords"
	MatchedByNone     = "none"
)

// Matcher finds past incidents similar to the task under triage.
type Matcher struct {
	ledger         Ledger
	maxResults     int
	minTokenLength int
	keywordLimit   int
	log            logger.Logger
}

func NewMatcher(ledger Ledger, maxResults, minTokenLength int, log logger.Logger) *Matcher {
	if maxResults <= 0 {
		maxResults = 5
	}
	if minTokenLength <= 0 {
		minTokenLength = 3
	}
	return &Matcher{
		ledger:         ledger,
		maxResults:     maxResults,
		minTokenLength: minTokenLength,
		keywordLimit:   5,
		log:            log,
	}
}

// Match runs two passes over the ledger: first exact task-token containment,
// then, only when that finds nothing, keyword overlap with the log summary.
// Results keep ledger order and are capped at maxResults. An unreadable ledger
// degrades to an empty report.
func (m *Matcher) Match(ctx context.Context, taskID, logSummary string) (*contracts.IncidentReport, error) {
	report := &contracts.IncidentReport{TaskID: taskID, MatchedBy: MatchedByNone}

	if m.ledger == nil {
		return report, nil
	}
	records, err := m.ledger.Records(ctx)
	if err != nil {
		m.log.Error("[Incidents] Ledger unavailable: %v", err)
		return report, nil
	}

	if taskID != contracts.UnknownTaskID {
		taskLower := strings.ToLower(taskID)
		for _, rec := range records {
			if strings.Contains(strings.ToLower(rec.Description), taskLower) {
				report.Matches = append(report.Matches, rec)
				if len(report.Matches) == m.maxResults {
					break
				}
			}
		}
		if len(report.Matches) > 0 {
			report.MatchedBy = MatchedByTaskID
			return report, nil
		}
	}

	keywords := m.summaryKeywords(logSummary)
	if len(keywords) == 0 {
		return report, nil
	}
	for _, rec := range records {
		descLower := strings.ToLower(rec.Description)
		for _, kw := range keywords {
			if strings.Contains(descLower, kw) {
				report.Matches = append(report.Matches, rec)
				break
			}
		}
		if len(report.Matches) == m.maxResults {
			break
		}
	}
	if len(report.Matches) > 0 {
		report.MatchedBy = MatchedByKeywords
	}
	return report, nil
}

// summaryKeywords picks the first few distinct long-enough tokens from the log
// summary, lowercased.
func (m *Matcher) summaryKeywords(summary string) []string {
	seen := make(map[string]bool)
	var keywords []string
	for _, tok := range strings.Fields(strings.ToLower(summary)) {
		tok = strings.Trim(tok, ".,:;|()[]{}'\"")
		if len(tok) <= m.minTokenLength || seen[tok] {
			continue
		}
		seen[tok] = true
		keywords = append(keywords, tok)
		if len(keywords) == m.keywordLimit {
			break
		}
	}
	return keywords
}
