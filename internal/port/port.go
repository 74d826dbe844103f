package port

import (
	"context"
	"errors"

	"github.com/behrlich/ttyline/internal/constants"
)

// ErrClosed is returned by Submit/Send after Close.
var ErrClosed = errors.New("port: closed")

// Port is the dispatcher's inbound message channel: device requests, the
// timer alarm, interrupt notifications, and signals all funnel through
// the same buffered channel so the dispatcher can block on one thing
// (ctx.Done() aside). Depth matches constants.MessagePortDepth, sized so
// a burst of interrupts from several devices never blocks their delivery
// goroutines against the single-threaded dispatcher.
type Port struct {
	ch     chan Message
	closed chan struct{}
}

// New creates a Port with the module's default buffer depth.
func New() *Port {
	return &Port{
		ch:     make(chan Message, constants.MessagePortDepth),
		closed: make(chan struct{}),
	}
}

// Messages returns the channel the dispatcher's select loop reads from.
func (p *Port) Messages() <-chan Message { return p.ch }

// Send enqueues a message, blocking if the port is full. Used by request
// submitters (the public Server API) that must not drop work.
func (p *Port) Send(ctx context.Context, msg Message) error {
	select {
	case <-p.closed:
		return ErrClosed
	default:
	}
	select {
	case p.ch <- msg:
		return nil
	case <-p.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues a message without blocking, used by interrupt and
// alarm delivery goroutines that must never stall behind a full port --
// losing a redundant wakeup is harmless because the dispatcher always
// rescans every line's events flag before blocking again.
func (p *Port) TrySend(msg Message) bool {
	select {
	case p.ch <- msg:
		return true
	default:
		return false
	}
}

// SubmitRequest sends a device request and waits for its reply: submit,
// then block for the one completion that belongs to this submission.
func SubmitRequest(ctx context.Context, p *Port, req *Request) (Reply, error) {
	req.Reply = make(chan Reply, 1)
	if err := p.Send(ctx, Message{Kind: KindRequest, Request: req}); err != nil {
		return Reply{}, err
	}
	select {
	case reply := <-req.Reply:
		return reply, nil
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

// Close shuts the port down; further Send (and SubmitRequest) calls fail
// with ErrClosed. TrySend does not consult the closed state.
func (p *Port) Close() {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
}
