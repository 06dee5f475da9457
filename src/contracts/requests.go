// Message types and topics for the distributed triage mode.
package contracts

// TriageRequest asks the worker to analyze one query.
// Published to: opstriage.requests
// Key: {request_id}
type TriageRequest struct {
	RequestID string `json:"request_id"`
	Query     string `json:"query"`
	Timestamp string `json:"timestamp"`
}

// RequestStatus tracks one triage request end to end.
type RequestStatus struct {
	RequestID string
	Query     string
	Status    string // pending, processing, completed, failed
	TicketID  string
}

// Topic names used by the distributed triage mode.
const (
	// TopicRequests carries triage requests for the worker.
	TopicRequests = "opstriage.requests"

	// TopicTickets carries completed tickets, keyed by request ID.
	TopicTickets = "opstriage.tickets"
)
