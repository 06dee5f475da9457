package metrics

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"opstriage-agent/src/contracts"
	"opstriage-agent/src/logger"
)

type fakeStore struct {
	records map[string]contracts.MetricsRecord
	err     error
}

func (f *fakeStore) Lookup(ctx context.Context, taskID string) (*contracts.MetricsRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.records[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (f *fakeStore) Close() error { return nil }

func TestCorrelateFound(t *testing.T) {
	store := &fakeStore{records: map[string]contracts.MetricsRecord{
		"TID-12345": {TaskID: "TID-12345", Status: "failed", CPUUsagePct: 95.5, ErrorCount: 7},
	}}
	c := NewCorrelator(store, logger.NewSilentLogger())

	report, err := c.Correlate(context.Background(), "TID-12345")
	if err != nil {
		t.Fatalf("Correlate: %v", err)
	}
	if !report.Found {
		t.Fatal("expected the record to be found")
	}
	if report.Record.CPUUsagePct != 95.5 || report.Record.ErrorCount != 7 {
		t.Errorf("unexpected record: %+v", report.Record)
	}
}

func TestCorrelateNotFound(t *testing.T) {
	c := NewCorrelator(&fakeStore{records: map[string]contracts.MetricsRecord{}}, logger.NewSilentLogger())

	report, err := c.Correlate(context.Background(), "TID-99999")
	if err != nil {
		t.Fatalf("a missing row must not fail the stage: %v", err)
	}
	if report.Found || report.Record != nil {
		t.Error("expected an empty report")
	}
	if report.Note == "" {
		t.Error("expected an explanatory note")
	}
}

func TestCorrelateStoreFailureSurfacesErrUnavailable(t *testing.T) {
	c := NewCorrelator(&fakeStore{err: errors.New("connection refused")}, logger.NewSilentLogger())

	report, err := c.Correlate(context.Background(), "TID-12345")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	// The report stays usable so the pipeline can continue with it.
	if report == nil || report.Found {
		t.Fatalf("expected an annotated empty report, got %+v", report)
	}
	if !strings.Contains(report.Note, "unavailable") {
		t.Errorf("note should mention the degraded store, got %q", report.Note)
	}
}

func TestCorrelateUnknownTaskSkipsLookup(t *testing.T) {
	// A store failure must not surface: the lookup is never attempted.
	c := NewCorrelator(&fakeStore{err: errors.New("should not be called")}, logger.NewSilentLogger())

	report, err := c.Correlate(context.Background(), contracts.UnknownTaskID)
	if err != nil {
		t.Fatal(err)
	}
	if report.Found {
		t.Error("unknown task must yield an empty report")
	}
	if !strings.Contains(report.Note, "skipped") {
		t.Errorf("note should mention the skip, got %q", report.Note)
	}
}

func TestCorrelateNoStoreConfigured(t *testing.T) {
	c := NewCorrelator(nil, logger.NewSilentLogger())

	report, err := c.Correlate(context.Background(), "TID-12345")
	if err != nil {
		t.Fatal(err)
	}
	if report.Found {
		t.Error("expected an empty report without a store")
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	rec := contracts.MetricsRecord{
		TaskID:          "TID-12345",
		StartTime:       "2024-01-15 14:31:12",
		EndTime:         "2024-01-15 14:31:45",
		DurationSeconds: 33,
		Status:          "failed",
		CPUUsagePct:     95.5,
		MemoryUsageMB:   2048,
		ErrorCount:      7,
	}
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := store.Lookup(ctx, "TID-12345")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if *got != rec {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, rec)
	}

	if _, err := store.Lookup(ctx, "TID-00000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing row should return ErrNotFound, got %v", err)
	}
}

func TestSQLiteInsertIsUpsert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	first := contracts.MetricsRecord{TaskID: "TID-1", StartTime: "a", EndTime: "b", Status: "running"}
	second := contracts.MetricsRecord{TaskID: "TID-1", StartTime: "a", EndTime: "c", Status: "completed"}
	if err := store.Insert(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := store.Insert(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := store.Lookup(ctx, "TID-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "completed" {
		t.Errorf("expected the second insert to win, got %+v", got)
	}
}
