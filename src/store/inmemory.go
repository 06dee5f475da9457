package store

import (
	"context"
	"sync"

	"opstriage-agent/src/contracts"
)

// InMemoryStore is a thread-safe Store used for local mode and the MCP server.
type InMemoryStore struct {
	mu        sync.RWMutex
	requests  map[string]contracts.RequestStatus
	tickets   map[string]*contracts.Ticket // ticket_id -> ticket
	byRequest map[string]string            // request_id -> ticket_id
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		requests:  make(map[string]contracts.RequestStatus),
		tickets:   make(map[string]*contracts.Ticket),
		byRequest: make(map[string]string),
	}
}

func (s *InMemoryStore) CreateRequest(ctx context.Context, requestID string, query string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[requestID]; !exists {
		s.requests[requestID] = contracts.RequestStatus{
			RequestID: requestID,
			Query:     query,
			Status:    "pending",
		}
	}
	return nil
}

func (s *InMemoryStore) GetRequestStatus(ctx context.Context, requestID string) (*contracts.RequestStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, ok := s.requests[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	return &status, nil
}

func (s *InMemoryStore) UpdateRequestStatus(ctx context.Context, status *contracts.RequestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[status.RequestID]; !ok {
		return ErrNotFound
	}
	s.requests[status.RequestID] = *status
	return nil
}

func (s *InMemoryStore) SaveTicket(ctx context.Context, requestID string, ticket *contracts.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tickets[ticket.ID] = ticket
	s.byRequest[requestID] = ticket.ID
	return nil
}

func (s *InMemoryStore) GetTicket(ctx context.Context, ticketID string) (*contracts.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticket, ok := s.tickets[ticketID]
	if !ok {
		return nil, ErrNotFound
	}
	return ticket, nil
}

func (s *InMemoryStore) GetTicketByRequest(ctx context.Context, requestID string) (*contracts.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticketID, ok := s.byRequest[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return nil, ErrNotFound
	}
	return ticket, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
