package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"opstriage-agent/src/codescan"
	"opstriage-agent/src/config"
	"opstriage-agent/src/contracts"
	"opstriage-agent/src/incidents"
	"opstriage-agent/src/logger"
	"opstriage-agent/src/logscan"
	"opstriage-agent/src/metrics"
	"opstriage-agent/src/pipeline"
	"opstriage-agent/src/provider"
	"opstriage-agent/src/query"
	"opstriage-agent/src/store"
	"opstriage-agent/src/ticket"
)

func newTestServer() *Server {
	return newTestServerWith(store.NewInMemoryStore(), logger.NewSilentLogger())
}

func newTestServerWith(st store.Store, serverLog logger.Logger) *Server {
	cfg := config.Default()
	log := logger.NewSilentLogger()

	executor := pipeline.New(pipeline.Deps{
		Extractor: query.NewExtractor(cfg.PerformanceKeywords, cfg.ErrorQueryKeywords),
		LogEngine: logscan.NewEngine(cfg.LogErrorKeywords, cfg.TopErrorTypes, log),
		LogSources: func(ctx context.Context) []logscan.Source {
			return []logscan.Source{logscan.NewMemorySource("app.log",
				"2024-01-15 14:31:15 ERROR [worker-1] NullPointerException for TID-12345")}
		},
		CodeEngine: codescan.NewEngine(cfg.LongLineLimit, cfg.MinTokenLength, log),
		CodeSource: codescan.NewMemorySources(),
		Metrics:    metrics.NewCorrelator(nil, log),
		Incidents:  incidents.NewMatcher(incidents.NewMemoryLedger(), cfg.MaxIncidentResults, cfg.MinTokenLength, log),
		Ticket:     ticket.NewSynthesizer(cfg, provider.Unavailable{}, log),
		Logger:     log,
	})

	return NewServer(executor, st, serverLog)
}

type recordingLogger struct {
	errors []string
}

func (r *recordingLogger) Info(msg string, args ...interface{})  {}
func (r *recordingLogger) Debug(msg string, args ...interface{}) {}
func (r *recordingLogger) Error(msg string, args ...interface{}) {
	r.errors = append(r.errors, fmt.Sprintf(msg, args...))
}

// statusFailStore saves tickets normally but cannot record status updates.
type statusFailStore struct {
	store.Store
}

func (s statusFailStore) UpdateRequestStatus(ctx context.Context, status *contracts.RequestStatus) error {
	return errors.New("status table unavailable")
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", result.Content[0])
	}
	return text.Text
}

func TestTriageQueryTool(t *testing.T) {
	s := newTestServer()

	result, err := s.handleTriageQuery(context.Background(),
		callRequest(map[string]any{"query": "Why is task TID-12345 failing?"}))
	if err != nil {
		t.Fatalf("handleTriageQuery: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", textOf(t, result))
	}

	text := textOf(t, result)
	if !strings.Contains(text, "TID-12345") {
		t.Error("rendered ticket should mention the task")
	}
	if !strings.Contains(text, "OPS-") {
		t.Error("rendered ticket should carry a ticket ID")
	}
}

func TestTriageQueryRequiresQuery(t *testing.T) {
	s := newTestServer()

	result, err := s.handleTriageQuery(context.Background(), callRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handleTriageQuery: %v", err)
	}
	if !result.IsError {
		t.Error("missing query should produce a tool error")
	}
}

func TestGetTicketRoundTrip(t *testing.T) {
	s := newTestServer()
	ctx := context.Background()

	result, err := s.handleTriageQuery(ctx,
		callRequest(map[string]any{"query": "Why is task TID-12345 failing?"}))
	if err != nil || result.IsError {
		t.Fatalf("triage failed: %v %v", err, result)
	}

	// Pull the ticket ID out of the rendered header: "OPS-... [PRIORITY] ...".
	text := textOf(t, result)
	ticketID := strings.Fields(text)[0]

	got, err := s.handleGetTicket(ctx, callRequest(map[string]any{"ticket_id": ticketID}))
	if err != nil {
		t.Fatalf("handleGetTicket: %v", err)
	}
	if got.IsError {
		t.Fatalf("unexpected tool error: %s", textOf(t, got))
	}

	var tk contracts.Ticket
	if err := json.Unmarshal([]byte(textOf(t, got)), &tk); err != nil {
		t.Fatalf("ticket JSON: %v", err)
	}
	if tk.ID != ticketID || tk.TaskID != "TID-12345" {
		t.Errorf("unexpected ticket: %+v", tk)
	}
}

func TestGetTicketNotFound(t *testing.T) {
	s := newTestServer()

	result, err := s.handleGetTicket(context.Background(),
		callRequest(map[string]any{"ticket_id": "OPS-00000000-0000"}))
	if err != nil {
		t.Fatalf("handleGetTicket: %v", err)
	}
	if !result.IsError {
		t.Error("unknown ticket should produce a tool error")
	}
}

func TestTriageQueryLogsStatusUpdateFailure(t *testing.T) {
	log := &recordingLogger{}
	s := newTestServerWith(statusFailStore{store.NewInMemoryStore()}, log)

	result, err := s.handleTriageQuery(context.Background(),
		callRequest(map[string]any{"query": "Why is task TID-12345 failing?"}))
	if err != nil {
		t.Fatalf("handleTriageQuery: %v", err)
	}
	if result.IsError {
		t.Fatalf("a failed status update must not fail the call: %s", textOf(t, result))
	}
	if len(log.errors) == 0 {
		t.Fatal("the status update failure should be logged")
	}
	if !strings.Contains(log.errors[0], "status") {
		t.Errorf("unexpected log line: %q", log.errors[0])
	}
}
