package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"opstriage-agent/src/broker"
	"opstriage-agent/src/contracts"
	"opstriage-agent/src/logger"
	"opstriage-agent/src/store"
)

// Worker consumes triage requests from the broker, runs the pipeline, and
// publishes the completed tickets. It backs the distributed mode.
type Worker struct {
	executor *Executor
	broker   broker.Broker
	store    store.Store
	logger   logger.Logger
}

func NewWorker(executor *Executor, brk broker.Broker, st store.Store, log logger.Logger) *Worker {
	return &Worker{
		executor: executor,
		broker:   brk,
		store:    st,
		logger:   log,
	}
}

// Run subscribes to the request topic and processes messages until the
// context ends or the broker closes. A failed request is recorded as failed
// and never stops the loop.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("[Worker] Starting...")

	msgChan, err := w.broker.Subscribe(ctx, contracts.TopicRequests, "opstriage-worker")
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", contracts.TopicRequests, err)
	}
	w.logger.Info("[Worker] Listening for triage requests on '%s'...", contracts.TopicRequests)

	for {
		select {
		case msg, ok := <-msgChan:
			if !ok {
				w.logger.Info("[Worker] Message channel closed, shutting down")
				return nil
			}
			if err := w.processRequest(ctx, msg); err != nil {
				w.logger.Error("[Worker] Error processing request: %v", err)
			}

		case <-ctx.Done():
			w.logger.Info("[Worker] Context cancelled, shutting down")
			return ctx.Err()
		}
	}
}

// processRequest runs the pipeline for one request and publishes the ticket,
// keyed by request ID.
func (w *Worker) processRequest(ctx context.Context, msg broker.Message) error {
	var req contracts.TriageRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return fmt.Errorf("failed to unmarshal request: %w", err)
	}

	w.logger.Info("[Worker] Processing request %s: %q", req.RequestID, req.Query)

	// The requester normally creates the record; cover direct publishes too.
	if err := w.store.CreateRequest(ctx, req.RequestID, req.Query); err != nil {
		return fmt.Errorf("failed to ensure request record: %w", err)
	}
	w.setStatus(ctx, req, "processing", "")

	tk, _ := w.executor.Analyze(ctx, req.Query)

	if err := w.store.SaveTicket(ctx, req.RequestID, tk); err != nil {
		w.setStatus(ctx, req, "failed", "")
		return fmt.Errorf("failed to save ticket: %w", err)
	}
	w.setStatus(ctx, req, "completed", tk.ID)

	data, err := json.Marshal(tk)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket: %w", err)
	}
	if err := w.broker.Publish(ctx, contracts.TopicTickets, req.RequestID, data); err != nil {
		return fmt.Errorf("failed to publish ticket: %w", err)
	}

	w.logger.Info("[Worker] Request %s completed with ticket %s (%s)", req.RequestID, tk.ID, tk.Priority)
	return nil
}

func (w *Worker) setStatus(ctx context.Context, req contracts.TriageRequest, status, ticketID string) {
	err := w.store.UpdateRequestStatus(ctx, &contracts.RequestStatus{
		RequestID: req.RequestID,
		Query:     req.Query,
		Status:    status,
		TicketID:  ticketID,
	})
	if err != nil {
		w.logger.Error("[Worker] Failed to update status for %s: %v", req.RequestID, err)
	}
}
