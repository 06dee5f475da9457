// Package pipeline runs the triage stages in dependency order over a shared
// analysis context and returns the synthesized ticket. It is used by the CLI
// (local mode), the worker (distributed mode), and the MCP server.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"opstriage-agent/src/codescan"
	"opstriage-agent/src/config"
	"opstriage-agent/src/contracts"
	"opstriage-agent/src/incidents"
	"opstriage-agent/src/logger"
	"opstriage-agent/src/logscan"
	"opstriage-agent/src/metrics"
	"opstriage-agent/src/provider"
	"opstriage-agent/src/query"
	"opstriage-agent/src/ticket"
)

// Deps holds the stage collaborators for an Executor. Tests substitute
// in-memory implementations.
type Deps struct {
	Extractor  *query.Extractor
	LogEngine  *logscan.Engine
	LogSources func(ctx context.Context) []logscan.Source
	CodeEngine *codescan.Engine
	CodeSource codescan.Source
	Metrics    *metrics.Correlator
	Incidents  *incidents.Matcher
	Ticket     *ticket.Synthesizer
	Logger     logger.Logger
}

// Executor runs the full triage pipeline for one query at a time. Stage
// order: query extraction, log analysis, then code analysis and metrics
// lookup in parallel (both depend only on the log summary), then incident
// matching, then ticket synthesis. Every stage degrades instead of failing,
// so Analyze always yields a ticket.
type Executor struct {
	deps Deps
}

func New(deps Deps) *Executor {
	return &Executor{deps: deps}
}

// FromConfig builds an executor with the file-backed collaborators named in
// the configuration. metricsStore may be nil when no metrics database is
// provisioned.
func FromConfig(cfg config.Config, client provider.Client, metricsStore metrics.Store, log logger.Logger) *Executor {
	return New(Deps{
		Extractor: query.NewExtractor(cfg.PerformanceKeywords, cfg.ErrorQueryKeywords),
		LogEngine: logscan.NewEngine(cfg.LogErrorKeywords, cfg.TopErrorTypes, log),
		LogSources: func(ctx context.Context) []logscan.Source {
			sources, err := logscan.DirSources(cfg.LogDir)
			if err != nil {
				log.Error("[Pipeline] Enumerating log sources: %v", err)
				return nil
			}
			return sources
		},
		CodeEngine: codescan.NewEngine(cfg.LongLineLimit, cfg.MinTokenLength, log),
		CodeSource: codescan.NewDirSource(cfg.CodebaseDir, cfg.CodeExtensions),
		Metrics:    metrics.NewCorrelator(metricsStore, log),
		Incidents:  incidents.NewMatcher(incidents.NewCSVLedger(cfg.IncidentsCSV), cfg.MaxIncidentResults, cfg.MinTokenLength, log),
		Ticket:     ticket.NewSynthesizer(cfg, client, log),
		Logger:     log,
	})
}

// Analyze runs every stage for one raw query and returns the ticket along
// with the analysis context holding each stage's result.
func (e *Executor) Analyze(ctx context.Context, rawQuery string) (*contracts.Ticket, *Context) {
	actx := NewContext()
	d := e.deps

	q := d.Extractor.Extract(rawQuery)
	actx.Set(KeyQuery, q)
	d.Logger.Info("[Pipeline] Query parsed: task=%s performance=%v error=%v", q.TaskID, q.IsPerformance, q.IsError)

	var sources []logscan.Source
	if d.LogSources != nil {
		sources = d.LogSources(ctx)
	}
	logReport, _ := d.LogEngine.Analyze(ctx, q.TaskID, sources)
	actx.Set(KeyLog, logReport)

	// Downstream stages use the log summary only as a keyword source. An empty
	// log stage must not leak its placeholder wording into their matching.
	summaryHint := logReport.Summary
	if logReport.Empty() {
		summaryHint = ""
	}

	// Code analysis and metrics lookup are independent once the log summary
	// exists; run them concurrently. Results land in the context in fixed
	// order regardless of completion order.
	var (
		wg         sync.WaitGroup
		codeReport *contracts.CodeReport
		metricsRep *contracts.MetricsReport
	)
	codeSource := d.CodeSource
	if codeSource == nil {
		codeSource = codescan.NewMemorySources()
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		codeReport, _ = d.CodeEngine.Analyze(ctx, q.TaskID, summaryHint, codeSource)
	}()
	go func() {
		defer wg.Done()
		var err error
		metricsRep, err = d.Metrics.Correlate(ctx, q.TaskID)
		if errors.Is(err, metrics.ErrUnavailable) {
			// Recovered: the stage continues with the annotated empty report.
			d.Logger.Error("[Pipeline] Metrics lookup degraded: %v", err)
		}
	}()
	wg.Wait()
	actx.Set(KeyCode, codeReport)
	actx.Set(KeyMetrics, metricsRep)

	incidentReport, _ := d.Incidents.Match(ctx, q.TaskID, summaryHint)
	actx.Set(KeyIncidents, incidentReport)

	tk := d.Ticket.Synthesize(ctx, q, logReport, codeReport, metricsRep, incidentReport)
	actx.Set(KeyTicket, tk)
	d.Logger.Info("[Pipeline] Ticket %s synthesized with priority %s", tk.ID, tk.Priority)

	return tk, actx
}
