package engine

import (
	"context"
	"fmt"

	"github.com/feedsync/feedsync/internal/feed"
	"github.com/feedsync/feedsync/internal/relay"
)

// cursor pages one user's refs from one relay with single-item lookahead.
// The relay contract guarantees refs arrive newest first, so the head is
// always the most recent ref not yet reconciled on that relay.
type cursor struct {
	client   relay.Client
	user     feed.UserID
	pageSize int

	buf  []feed.ItemRef
	next string
	done bool
}

func newCursor(client relay.Client, user feed.UserID, pageSize int) *cursor {
	return &cursor{
		client:   client,
		user:     user,
		pageSize: pageSize,
	}
}

// peek returns the head ref without consuming it. Repeated calls return the
// same ref until advance. ok is false once the relay has no more refs.
func (c *cursor) peek(ctx context.Context) (feed.ItemRef, bool, error) {
	for len(c.buf) == 0 && !c.done {
		refs, next, err := c.client.ListRefs(ctx, c.user, c.next, c.pageSize)
		if err != nil {
			return feed.ItemRef{}, false, fmt.Errorf("listing refs: %w", err)
		}
		c.buf = refs
		c.next = next
		if next == "" {
			c.done = true
		}
	}
	if len(c.buf) == 0 {
		return feed.ItemRef{}, false, nil
	}
	return c.buf[0], true, nil
}

// advance consumes the head returned by the previous peek. Calling it
// without a buffered head is a programming fault.
func (c *cursor) advance() {
	if len(c.buf) == 0 {
		panic("cursor: advance without a peeked head")
	}
	c.buf = c.buf[1:]
}
