package incidents

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"opstriage-agent/src/contracts"
)

// csvHeader is the expected column order of the incident ledger file.
var csvHeader = []string{"date", "incident_id", "severity", "description", "resolution", "resolved_by"}

// CSVLedger reads the incident history from a CSV file. The file is re-read on
// every call so ledger updates are picked up without a restart.
type CSVLedger struct {
	path string
}

func NewCSVLedger(path string) *CSVLedger {
	return &CSVLedger{path: path}
}

// Records parses the ledger file in row order. A missing file yields no
// records, not an error.
func (l *CSVLedger) Records(ctx context.Context) ([]contracts.IncidentRecord, error) {
	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open incident ledger: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse incident ledger: %w", err)
	}

	var records []contracts.IncidentRecord
	for i, row := range rows {
		if i == 0 && isHeaderRow(row) {
			continue
		}
		if len(row) < 4 {
			continue
		}
		rec := contracts.IncidentRecord{
			Date:        row[0],
			IncidentID:  row[1],
			Severity:    row[2],
			Description: row[3],
		}
		if len(row) > 4 {
			rec.Resolution = row[4]
		}
		records = append(records, rec)
	}
	return records, nil
}

func isHeaderRow(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), csvHeader[0])
}

// WriteCSV writes records as a full ledger file with header; used by the
// sample data seeder.
func WriteCSV(path string, records []contracts.IncidentRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create incident ledger: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write ledger header: %w", err)
	}
	for _, rec := range records {
		row := []string{rec.Date, rec.IncidentID, rec.Severity, rec.Description, rec.Resolution, ""}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write ledger row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush incident ledger: %w", err)
	}
	return nil
}

// MemoryLedger serves records from memory; used in tests.
type MemoryLedger struct {
	records []contracts.IncidentRecord
	err     error
}

func NewMemoryLedger(records ...contracts.IncidentRecord) *MemoryLedger {
	return &MemoryLedger{records: records}
}

// NewFailingLedger returns a ledger whose Records always fails; used in tests.
func NewFailingLedger(err error) *MemoryLedger {
	return &MemoryLedger{err: err}
}

func (m *MemoryLedger) Records(ctx context.Context) ([]contracts.IncidentRecord, error) {
	return m.records, m.err
}
