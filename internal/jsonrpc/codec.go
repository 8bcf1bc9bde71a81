package jsonrpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"muster/pkg/logging"
)

// maxLineSize bounds a single JSON-RPC frame. MCP payloads (tool schemas,
// call results) can be large; 10MiB comfortably covers real-world servers
// without letting a misbehaving child exhaust memory.
const maxLineSize = 10 * 1024 * 1024

// Codec frames JSON-RPC messages one-per-line over an underlying
// ReadWriteCloser (typically a child process's stdin/stdout pipes). Writes
// are serialized with the wg mutex so concurrent callers never interleave
// partial lines on the wire.
type Codec struct {
	w  io.Writer
	r  *bufio.Scanner
	wg sync.Mutex

	subsystem string
}

// NewCodec wraps w/r as a line-framed JSON-RPC stream. subsystem is used
// only for log attribution.
func NewCodec(w io.Writer, r io.Reader, subsystem string) *Codec {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Codec{w: w, r: scanner, subsystem: subsystem}
}

// Send encodes msg as a single compact JSON line terminated by "\n".
func (c *Codec) Send(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	data = append(data, '\n')

	c.wg.Lock()
	defer c.wg.Unlock()
	if _, err := c.w.Write(data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// RecvLoop reads one JSON object per line until the stream closes or
// ctx-equivalent cancellation happens upstream, invoking onMessage for
// each well-formed Message and skipping lines that fail to parse (a
// single malformed line from a noisy child must not tear down the whole
// connection). onClosed is invoked exactly once when the stream ends.
func (c *Codec) RecvLoop(onMessage func(*Message), onClosed func(error)) {
	for c.r.Scan() {
		line := c.r.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			logging.Warn(c.subsystem, "skipping malformed JSON-RPC line: %v", err)
			continue
		}
		onMessage(&msg)
	}
	onClosed(c.r.Err())
}
