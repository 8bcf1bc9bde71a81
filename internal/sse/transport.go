// Package sse implements the per-session Server-Sent Events transport:
// the initial endpoint event, a bounded outbound queue, periodic keepalive
// comments, and teardown on client disconnect.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"muster/pkg/logging"
)

const (
	// queueDepth bounds the number of outbound frames buffered for a slow
	// client before the writer starts blocking the sender.
	queueDepth = 64

	keepaliveInterval = 30 * time.Second

	subsystem = "SSETransport"
)

// shutdownSentinel is pushed onto a session's queue to signal a clean
// teardown, distinguishing "no more messages, close the stream" from an
// empty queue that is merely waiting for more work.
var shutdownSentinel = struct{}{}

// Transport owns one SSE connection's outbound frame queue and keepalive
// ticker. Callers hand over message values; Serve JSON-encodes each one as
// it writes the frame.
type Transport struct {
	SessionID string

	queue chan interface{}
	done  chan struct{}
}

// NewTransport builds a Transport with a bounded outbound queue.
func NewTransport(sessionID string) *Transport {
	return &Transport{
		SessionID: sessionID,
		queue:     make(chan interface{}, queueDepth),
		done:      make(chan struct{}),
	}
}

// Send enqueues payload for delivery as a "data:" frame. It blocks if the
// queue is full, applying backpressure to a caller that is producing
// faster than the client can drain. httpapi calls it from the POST
// message handler, so a full queue holds that POST request until the SSE
// writer drains a frame or ctx ends.
func (t *Transport) Send(ctx context.Context, payload interface{}) error {
	select {
	case t.queue <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return fmt.Errorf("session %s: transport closed", t.SessionID)
	}
}

// Close signals a clean shutdown: Serve's loop drains any already-queued
// frames, then exits after observing the sentinel.
func (t *Transport) Close() {
	select {
	case t.queue <- shutdownSentinel:
	default:
		// Queue full; still mark done so Serve's select wakes regardless.
	}
	close(t.done)
}

// Serve writes the endpoint event, then streams queued frames as SSE
// "data:" events with periodic keepalive comments, until the request
// context is cancelled (client disconnect) or Close is called.
// endpointURL is the value of the initial "event: endpoint" frame — the
// URL the client should POST JSON-RPC messages back to, carrying this
// session's id (SPEC_FULL.md §8's chosen endpoint-event variant).
func (t *Transport) Serve(w http.ResponseWriter, r *http.Request, endpointURL string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: endpoint\ndata: %s\n\n", endpointURL)
	flusher.Flush()

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	keepaliveN := 0
	for {
		select {
		case <-r.Context().Done():
			logging.Debug(subsystem, "session %s: client disconnected", logging.TruncateSessionID(t.SessionID))
			return r.Context().Err()

		case <-ticker.C:
			keepaliveN++
			fmt.Fprintf(w, ": keepalive-%d\n\n", keepaliveN)
			flusher.Flush()

		case <-t.done:
			// Close may have found the queue full and dropped the sentinel:
			// stop once every queued frame has been written.
			if len(t.queue) == 0 {
				return nil
			}

		case frame := <-t.queue:
			if frame == shutdownSentinel {
				logging.Debug(subsystem, "session %s: shutdown sentinel observed", logging.TruncateSessionID(t.SessionID))
				return nil
			}
			data, err := json.Marshal(frame)
			if err != nil {
				logging.Warn(subsystem, "session %s: failed to encode frame: %v", logging.TruncateSessionID(t.SessionID), err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
