package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BTreeMap/NutriPipe/internal/models"
)

// Handler processes one inbound message. *flow.Conversation satisfies it.
type Handler interface {
	Handle(ctx context.Context, in models.Inbound) error
}

// DefaultErrorMessage is sent when the handler fails or panics.
const DefaultErrorMessage = "⚠️ We encountered an issue processing your message. Please try again."

// ResponseHandler reads Responses() and dispatches each message to the Handler.
// Messages from one identity are handled one at a time in arrival order;
// different identities are handled concurrently.
type ResponseHandler struct {
	msgService   Service
	handler      Handler
	errorMessage string

	mu     sync.Mutex
	queues map[string][]models.Inbound // an entry exists while a worker drains it
	wg     sync.WaitGroup
}

// NewResponseHandler creates a ResponseHandler for svc.
func NewResponseHandler(svc Service, h Handler) *ResponseHandler {
	return &ResponseHandler{
		msgService:   svc,
		handler:      h,
		errorMessage: DefaultErrorMessage,
		queues:       make(map[string][]models.Inbound),
	}
}

// SetErrorMessage overrides the failure reply.
func (rh *ResponseHandler) SetErrorMessage(message string) {
	rh.errorMessage = message
}

// Start begins processing responses until the channel closes or ctx is done.
func (rh *ResponseHandler) Start(ctx context.Context) {
	slog.Info("ResponseHandler starting response processing")
	go func() {
		defer slog.Info("ResponseHandler stopped response processing")
		for {
			select {
			case in, ok := <-rh.msgService.Responses():
				if !ok {
					slog.Debug("ResponseHandler responses channel closed")
					return
				}
				if err := rh.ProcessResponse(ctx, in); err != nil {
					slog.Error("ResponseHandler failed to process response", "error", err, "from", in.From)
				}
			case <-ctx.Done():
				slog.Debug("ResponseHandler stopping due to context cancellation")
				return
			}
		}
	}()
}

// ProcessResponse canonicalizes the sender and queues the message behind
// any earlier ones from the same identity.
func (rh *ResponseHandler) ProcessResponse(ctx context.Context, in models.Inbound) error {
	from, err := rh.msgService.ValidateAndCanonicalizeRecipient(in.From)
	if err != nil {
		slog.Error("ResponseHandler ProcessResponse validation failed", "error", err, "from", in.From)
		return fmt.Errorf("invalid sender: %w", err)
	}
	in.From = from

	rh.mu.Lock()
	defer rh.mu.Unlock()
	if q, busy := rh.queues[from]; busy {
		rh.queues[from] = append(q, in)
		slog.Debug("ResponseHandler queued behind active worker", "from", from, "depth", len(q)+1)
		return nil
	}
	rh.queues[from] = []models.Inbound{in}
	rh.wg.Add(1)
	go rh.drain(ctx, from)
	return nil
}

// Pending returns the number of identities with queued or in-flight messages.
func (rh *ResponseHandler) Pending() int {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	return len(rh.queues)
}

// Wait blocks until every worker has drained its queue.
func (rh *ResponseHandler) Wait() {
	rh.wg.Wait()
}

func (rh *ResponseHandler) drain(ctx context.Context, from string) {
	defer rh.wg.Done()
	for {
		rh.mu.Lock()
		q := rh.queues[from]
		if len(q) == 0 {
			delete(rh.queues, from)
			rh.mu.Unlock()
			return
		}
		in := q[0]
		rh.queues[from] = q[1:]
		rh.mu.Unlock()

		rh.handleOne(ctx, in)
	}
}

func (rh *ResponseHandler) handleOne(ctx context.Context, in models.Inbound) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("ResponseHandler handler panicked", "panic", r, "from", in.From)
			rh.sendError(ctx, in.From)
		}
	}()
	if err := rh.handler.Handle(ctx, in); err != nil {
		slog.Error("ResponseHandler handler failed", "error", err, "from", in.From)
		rh.sendError(ctx, in.From)
		return
	}
	slog.Debug("ResponseHandler message handled", "from", in.From)
}

func (rh *ResponseHandler) sendError(ctx context.Context, to string) {
	if err := rh.msgService.SendMessage(ctx, to, rh.errorMessage); err != nil {
		slog.Error("ResponseHandler failed to send error message", "error", err, "to", to)
	}
}
