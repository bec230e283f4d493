package rendezvous

import (
	"context"

	"github.com/dkeye/Meet/internal/domain"
)

// Client implements core.Mailbox over the hub's inboxes. Push appends,
// Listen replays the backlog FIFO then streams new arrivals, and the ack
// sent by the read pump before delivery implements delete-on-consume.

func (c *Client) Send(_ context.Context, inbox string, msg domain.SignalMessage) error {
	m := msg
	return c.enqueue(Frame{Op: OpPush, Inbox: inbox, Message: &m})
}

func (c *Client) Listen(inbox string, fn func(domain.SignalMessage)) (func(), error) {
	c.mu.Lock()
	c.listeners[inbox] = fn
	c.mu.Unlock()
	if err := c.enqueue(Frame{Op: OpListen, Inbox: inbox}); err != nil {
		return nil, err
	}
	return func() {
		c.mu.Lock()
		delete(c.listeners, inbox)
		c.mu.Unlock()
	}, nil
}

func (c *Client) Purge(_ context.Context, inbox string) error {
	return c.enqueue(Frame{Op: OpPurge, Inbox: inbox})
}

func (c *Client) GuardInbox(_ context.Context, inbox string) error {
	return c.enqueue(Frame{Op: OpGuard, Inbox: inbox})
}
