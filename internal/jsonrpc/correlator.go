package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"muster/internal/domain"
)

// pendingCall tracks one outstanding request awaiting a response.
type pendingCall struct {
	method string
	ch     chan *Message
}

// Correlator pairs outgoing requests to their eventual responses by id. A
// single Correlator is shared by one child connection: Call enqueues a
// pendingCall under a fresh id, Resolve (called from the codec's recv
// loop) delivers the matching response, and CloseAll fans out a
// connection-lost error to every still-pending caller when the underlying
// stream dies.
type Correlator struct {
	codec   *Codec
	nextID  int64
	mu      sync.Mutex
	pending map[int64]*pendingCall
	closed  bool
}

// NewCorrelator builds a Correlator that sends through codec.
func NewCorrelator(codec *Codec) *Correlator {
	return &Correlator{
		codec:   codec,
		pending: make(map[int64]*pendingCall),
	}
}

// Call sends method with params and blocks until a matching response
// arrives, ctx is cancelled, or the connection is declared lost. The
// returned Message is the raw response (caller unmarshals Result/Error).
func (c *Correlator) Call(ctx context.Context, method string, params interface{}) (*Message, error) {
	id := atomic.AddInt64(&c.nextID, 1)

	req, err := NewRequest(id, method, params)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", method, err)
	}

	ch := make(chan *Message, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, &domain.ServerUnavailableError{Reason: "connection closed"}
	}
	c.pending[id] = &pendingCall{method: method, ch: ch}
	c.mu.Unlock()

	if err := c.codec.Send(req); err != nil {
		c.drop(id)
		return nil, fmt.Errorf("send request %s: %w", method, err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		c.drop(id)
		return nil, &domain.RequestTimeoutError{Method: method, ID: id}
	}
}

// Notify sends a fire-and-forget notification; no id is allocated and no
// response is awaited.
func (c *Correlator) Notify(method string, params interface{}) error {
	msg, err := NewNotification(method, params)
	if err != nil {
		return fmt.Errorf("build notification %s: %w", method, err)
	}
	return c.codec.Send(msg)
}

// Resolve delivers an incoming response message to its waiting caller, if
// any. Responses with an id that matches no pending call (already timed
// out, or a duplicate) are dropped silently.
func (c *Correlator) Resolve(msg *Message) {
	id, ok := numericID(msg.ID)
	if !ok {
		return
	}

	c.mu.Lock()
	call, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if ok {
		call.ch <- msg
	}
}

// CloseAll marks the correlator closed and fans connErr out to every
// pending call as a synthetic error response, unblocking every waiting
// Call. It is invoked once, from the codec's onClosed callback.
func (c *Correlator) CloseAll(connErr error) {
	c.mu.Lock()
	c.closed = true
	pending := c.pending
	c.pending = make(map[int64]*pendingCall)
	c.mu.Unlock()

	reason := "connection closed"
	if connErr != nil {
		reason = connErr.Error()
	}

	for id, call := range pending {
		call.ch <- NewError(id, CodeInternalError, reason)
	}
}

// Pending reports how many calls are currently awaiting a response.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Correlator) drop(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// numericID normalizes a decoded id (json.Number, float64, or int64 from
// our own Call) to an int64 key.
func numericID(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case float64:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

// CallTimeout is the default per-call deadline applied by connection
// owners that don't derive a tighter one from an McpServer's configured
// timeout.
const CallTimeout = 30 * time.Second
