package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Server handles requests one at a time.
type Server[Req, Resp any] interface {
	Name() string
	Handle(ctx context.Context, req Req) Resp
}

// Request is the envelope processed by a ServerActor. The response is sent
// on Reply, which is owned by the requester.
type Request[Req, Resp any] struct {
	Payload Req
	Reply   Sender[Resp]
}

// ServerActor runs a Server behind a bounded request mailbox, serializing
// every call to Handle.
type ServerActor[Req, Resp any] struct {
	server Server[Req, Resp]
	inbox  *Mailbox[Request[Req, Resp]]
	send   Sender[Request[Req, Resp]]
	logger *slog.Logger
}

// NewServerActor wraps server with a request mailbox of the given capacity.
func NewServerActor[Req, Resp any](server Server[Req, Resp], capacity int, logger *slog.Logger) *ServerActor[Req, Resp] {
	if logger == nil {
		logger = slog.Default()
	}
	inbox := NewMailbox[Request[Req, Resp]](server.Name(), capacity)
	return &ServerActor[Req, Resp]{
		server: server,
		inbox:  inbox,
		send:   inbox.Sender(),
		logger: logger,
	}
}

// Name returns the name of the wrapped server.
func (a *ServerActor[Req, Resp]) Name() string {
	return a.server.Name()
}

// Handle returns a new handle to call the server.
func (a *ServerActor[Req, Resp]) Handle() *ServerHandle[Req, Resp] {
	return &ServerHandle[Req, Resp]{requests: a.inbox.Sender()}
}

// ConnectConsumer lets an actor send requests and receive the responses on
// its own mailbox. Responses are delivered in request order.
func (a *ServerActor[Req, Resp]) ConnectConsumer(name string, responses Sender[Resp]) Sender[Req] {
	return MapSender[Req, Request[Req, Resp]](&replyBinder[Req, Resp]{
		requests: a.inbox.Sender(),
		reply:    responses,
	}, func(req Req) Request[Req, Resp] {
		return Request[Req, Resp]{Payload: req}
	})
}

// Run serves requests until every handle is closed or ctx is done.
func (a *ServerActor[Req, Resp]) Run(ctx context.Context) error {
	// The actor's own handle only keeps the inbox alive until Run starts.
	a.send.Close()

	for {
		req, ok := a.inbox.Recv(ctx)
		if !ok {
			return nil
		}
		resp := a.server.Handle(ctx, req.Payload)
		if req.Reply == nil {
			continue
		}
		if err := req.Reply.Send(ctx, resp); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			a.logger.Debug("Dropping server response", "server", a.Name(), "error", err)
		}
	}
}

// replyBinder attaches a fixed reply sender to every request.
type replyBinder[Req, Resp any] struct {
	requests Sender[Request[Req, Resp]]
	reply    Sender[Resp]
}

func (b *replyBinder[Req, Resp]) Send(ctx context.Context, req Request[Req, Resp]) error {
	req.Reply = b.reply
	return b.requests.Send(ctx, req)
}

func (b *replyBinder[Req, Resp]) Close() {
	b.requests.Close()
}

// ServerHandle performs synchronous calls to a ServerActor.
type ServerHandle[Req, Resp any] struct {
	requests Sender[Request[Req, Resp]]
}

// Call sends req and waits for the response.
func (h *ServerHandle[Req, Resp]) Call(ctx context.Context, req Req) (Resp, error) {
	var zero Resp

	reply := NewMailbox[Resp]("reply", 1)
	replySender := reply.Sender()
	defer reply.Close()

	if err := h.requests.Send(ctx, Request[Req, Resp]{Payload: req, Reply: replySender}); err != nil {
		replySender.Close()
		return zero, fmt.Errorf("send request: %w", err)
	}
	resp, ok := reply.Recv(ctx)
	if !ok {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, ErrMailboxClosed
	}
	return resp, nil
}

// Close releases the handle.
func (h *ServerHandle[Req, Resp]) Close() {
	h.requests.Close()
}
