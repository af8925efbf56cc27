package dispatch

import (
	"sync"
	"time"

	"github.com/mcpkit/mcpkit/logging"
	"github.com/mcpkit/mcpkit/protocol"
)

// RespondFunc is the transport's reply callback for one inbound message.
type RespondFunc func(*protocol.Response)

// replyCell makes a RespondFunc single-assignment: the first Send wins, any
// later Send is a programming error and is logged loudly instead of being
// silently ignored.
type replyCell struct {
	mu      sync.Mutex
	sent    bool
	respond RespondFunc
	logger  logging.Logger
	method  string
}

func newReplyCell(respond RespondFunc, logger logging.Logger, method string) *replyCell {
	return &replyCell{respond: respond, logger: logger, method: method}
}

// Send delivers the response exactly once.
func (c *replyCell) Send(resp *protocol.Response) {
	c.mu.Lock()
	if c.sent {
		c.mu.Unlock()
		c.logger.Error("respond called more than once for a single request", &logging.Entry{
			Timestamp: time.Now().UTC(),
			Context: &logging.RequestDetails{
				Method:    c.method,
				Timestamp: time.Now().UTC(),
			},
		})
		return
	}
	c.sent = true
	c.mu.Unlock()

	c.respond(resp)
}

// Sent reports whether the reply has been delivered.
func (c *replyCell) Sent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}
