package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"opstriage-agent/src/broker"
	"opstriage-agent/src/contracts"
	"opstriage-agent/src/store"
)

// Submitter enqueues triage requests for the worker and answers status
// queries. It is the requester side of the distributed mode.
type Submitter struct {
	broker broker.Broker
	store  store.Store
}

func NewSubmitter(brk broker.Broker, st store.Store) *Submitter {
	return &Submitter{broker: brk, store: st}
}

// Submit records and publishes one triage request, returning its request ID.
func (s *Submitter) Submit(ctx context.Context, rawQuery string) (string, error) {
	requestID := fmt.Sprintf("req-%d", time.Now().UnixNano())

	req := contracts.TriageRequest{
		RequestID: requestID,
		Query:     rawQuery,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	if err := s.store.CreateRequest(ctx, requestID, rawQuery); err != nil {
		return "", fmt.Errorf("failed to create request record: %w", err)
	}
	if err := s.broker.Publish(ctx, contracts.TopicRequests, requestID, data); err != nil {
		return "", fmt.Errorf("failed to publish request: %w", err)
	}
	return requestID, nil
}

// Status returns the lifecycle state of a request.
func (s *Submitter) Status(ctx context.Context, requestID string) (*contracts.RequestStatus, error) {
	return s.store.GetRequestStatus(ctx, requestID)
}

// Ticket returns the completed ticket for a request, or store.ErrNotFound
// while it is still being processed.
func (s *Submitter) Ticket(ctx context.Context, requestID string) (*contracts.Ticket, error) {
	return s.store.GetTicketByRequest(ctx, requestID)
}
