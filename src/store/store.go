// Package store persists triage requests and their tickets for the
// distributed mode and the MCP server.
package store

import (
	"context"
	"errors"

	"opstriage-agent/src/contracts"
)

// ErrNotFound is returned when a request or ticket does not exist.
var ErrNotFound = errors.New("not found")

// Store persists request lifecycle state and completed tickets.
type Store interface {
	// CreateRequest records a new triage request in the pending state.
	CreateRequest(ctx context.Context, requestID string, query string) error

	// GetRequestStatus returns the lifecycle state of a request.
	GetRequestStatus(ctx context.Context, requestID string) (*contracts.RequestStatus, error)

	// UpdateRequestStatus updates the lifecycle state of a request.
	UpdateRequestStatus(ctx context.Context, status *contracts.RequestStatus) error

	// SaveTicket persists a completed ticket for a request.
	SaveTicket(ctx context.Context, requestID string, ticket *contracts.Ticket) error

	// GetTicket returns a ticket by its ticket ID.
	GetTicket(ctx context.Context, ticketID string) (*contracts.Ticket, error)

	// GetTicketByRequest returns the ticket produced for a request.
	GetTicketByRequest(ctx context.Context, requestID string) (*contracts.Ticket, error)

	// Close closes the store connection.
	Close() error
}
