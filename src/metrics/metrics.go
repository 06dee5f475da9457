// Package metrics looks up task execution metrics for the triage pipeline.
package metrics

import (
	"context"
	"errors"
	"fmt"

	"opstriage-agent/src/contracts"
	"opstriage-agent/src/logger"
)

// ErrNotFound is returned by stores when no metrics row exists for a task.
// It is a normal outcome, distinct from a store failure.
var ErrNotFound = errors.New("no metrics recorded for task")

// ErrUnavailable marks a store-connectivity failure. Callers recover it and
// continue with the annotated report the Correlator returns alongside.
var ErrUnavailable = errors.New("metrics store unavailable")

// Store reads task metrics rows. Implementations are safe for concurrent use.
type Store interface {
	// Lookup returns the metrics row for taskID, or ErrNotFound.
	Lookup(ctx context.Context, taskID string) (*contracts.MetricsRecord, error)
	Close() error
}

// Correlator resolves the metrics stage for one task. A missing row degrades
// to an annotated empty report; an unreachable store additionally surfaces
// ErrUnavailable so the caller can record the outage.
type Correlator struct {
	store Store
	log   logger.Logger
}

func NewCorrelator(store Store, log logger.Logger) *Correlator {
	return &Correlator{store: store, log: log}
}

// Correlate fetches metrics for taskID. The returned report always carries the
// task ID; Found is set only when a row exists. On a store failure the report
// is still usable and the error wraps ErrUnavailable.
func (c *Correlator) Correlate(ctx context.Context, taskID string) (*contracts.MetricsReport, error) {
	report := &contracts.MetricsReport{TaskID: taskID}

	if taskID == contracts.UnknownTaskID {
		report.Note = "no task identifier in query; metrics lookup skipped"
		return report, nil
	}
	if c.store == nil {
		report.Note = "no metrics store configured"
		return report, nil
	}

	record, err := c.store.Lookup(ctx, taskID)
	switch {
	case errors.Is(err, ErrNotFound):
		report.Note = fmt.Sprintf("no metrics recorded for %s", taskID)
	case err != nil:
		report.Note = fmt.Sprintf("metrics store unavailable: %v", err)
		return report, fmt.Errorf("%w: lookup for %s: %v", ErrUnavailable, taskID, err)
	default:
		report.Found = true
		report.Record = record
	}
	return report, nil
}
