// Package mcp exposes the triage pipeline over the Model Context Protocol so
// agent frontends can submit queries and retrieve tickets.
package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"opstriage-agent/src/contracts"
	"opstriage-agent/src/logger"
	"opstriage-agent/src/pipeline"
	"opstriage-agent/src/store"
	"opstriage-agent/src/ticket"
)

// Server is the MCP server for opstriage.
type Server struct {
	mcpServer *server.MCPServer
	executor  *pipeline.Executor
	store     store.Store
	log       logger.Logger
}

// NewServer wires the triage executor and ticket store behind the MCP tools.
// The logger must stay off stdout when the server runs on stdio.
func NewServer(executor *pipeline.Executor, st store.Store, log logger.Logger) *Server {
	s := server.NewMCPServer(
		"opstriage",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	srv := &Server{
		mcpServer: s,
		executor:  executor,
		store:     st,
		log:       log,
	}
	srv.registerTools()
	return srv
}

func (s *Server) registerTools() {
	triageTool := mcp.NewTool("triage_query",
		mcp.WithDescription("Run the full triage pipeline for an operations query "+
			"(log analysis, code heuristics, metrics, incident history) and return the "+
			"synthesized ticket. Include a task token like TID-12345 in the query when known."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Free-text triage query, e.g. 'Why is task TID-12345 failing?'"),
		),
	)

	ticketTool := mcp.NewTool("get_ticket",
		mcp.WithDescription("Fetch a previously synthesized triage ticket as JSON, "+
			"including every stage report. Use the ticket ID from a triage_query response."),
		mcp.WithString("ticket_id",
			mcp.Required(),
			mcp.Description("Ticket ID (e.g. OPS-20240115-0042)"),
		),
	)

	s.mcpServer.AddTool(triageTool, s.handleTriageQuery)
	s.mcpServer.AddTool(ticketTool, s.handleGetTicket)
}

// Run starts the MCP server on stdio.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// handleTriageQuery runs the pipeline and returns the rendered ticket.
func (s *Server) handleTriageQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawQuery := request.GetString("query", "")
	if rawQuery == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	requestID := generateRequestID()
	if err := s.store.CreateRequest(ctx, requestID, rawQuery); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to record request: %v", err)), nil
	}

	tk, _ := s.executor.Analyze(ctx, rawQuery)

	if err := s.store.SaveTicket(ctx, requestID, tk); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save ticket: %v", err)), nil
	}
	err := s.store.UpdateRequestStatus(ctx, &contracts.RequestStatus{
		RequestID: requestID,
		Query:     rawQuery,
		Status:    "completed",
		TicketID:  tk.ID,
	})
	if err != nil {
		// The ticket is already saved; only the status row is stale.
		s.log.Error("[MCP] Failed to update status for request %s: %v", requestID, err)
	}

	return mcp.NewToolResultText(ticket.Render(tk)), nil
}

// handleGetTicket returns a stored ticket, stage reports included, as JSON.
func (s *Server) handleGetTicket(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ticketID := request.GetString("ticket_id", "")
	if ticketID == "" {
		return mcp.NewToolResultError("ticket_id parameter is required"), nil
	}

	tk, err := s.store.GetTicket(ctx, ticketID)
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("ticket not found: %s", ticketID)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load ticket: %v", err)), nil
	}

	jsonBytes, err := json.Marshal(tk)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal ticket: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// generateRequestID creates a unique request identifier.
func generateRequestID() string {
	timestamp := time.Now().UTC().Format("20060102T150405")
	randomBytes := make([]byte, 4)
	rand.Read(randomBytes)
	return fmt.Sprintf("req-%s-%s", timestamp, hex.EncodeToString(randomBytes))
}
