// Package jsonrpc implements the line-framed JSON-RPC 2.0 codec shared by
// every child MCP server connection: one JSON object per newline, a
// write-mutex to keep concurrent callers from interleaving frames, a
// receive loop that demultiplexes responses to their caller by id, and a
// connection-lost fan-out that unblocks every pending call when the
// underlying stream closes.
package jsonrpc

import "encoding/json"

// Message is the wire envelope for a JSON-RPC 2.0 request, response, or
// notification. Fields are tagged `omitempty` so a single type can encode
// all three without emitting nulls the spec doesn't expect.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is the JSON-RPC 2.0 error shape.
type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error satisfies the error interface so an ErrorObject returned from a
// call can be propagated like any other Go error.
func (e *ErrorObject) Error() string {
	return e.Message
}

// Standard JSON-RPC 2.0 error codes, plus the MCP-specific method-not-found
// usage documented in spec.md §4.F.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// IsRequest reports whether m carries a method and is therefore a request
// (if ID is set) or a notification (if ID is absent).
func (m *Message) IsRequest() bool {
	return m.Method != ""
}

// IsNotification reports whether m is a request-shaped message with no id.
func (m *Message) IsNotification() bool {
	return m.Method != "" && m.ID == nil
}

// IsResponse reports whether m carries a result or error and no method —
// i.e. it answers a previously sent request.
func (m *Message) IsResponse() bool {
	return m.Method == "" && (m.Result != nil || m.Error != nil)
}

// NewRequest builds a request Message for method with the given id and
// JSON-encoded params.
func NewRequest(id interface{}, method string, params interface{}) (*Message, error) {
	raw, err := encodeParams(params)
	if err != nil {
		return nil, err
	}
	return &Message{JSONRPC: "2.0", ID: id, Method: method, Params: raw}, nil
}

// NewNotification builds a notification Message (no id) for method.
func NewNotification(method string, params interface{}) (*Message, error) {
	raw, err := encodeParams(params)
	if err != nil {
		return nil, err
	}
	return &Message{JSONRPC: "2.0", Method: method, Params: raw}, nil
}

// NewResult builds a success response Message for the given request id.
func NewResult(id interface{}, result interface{}) (*Message, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Message{JSONRPC: "2.0", ID: id, Result: raw}, nil
}

// NewError builds an error response Message for the given request id.
func NewError(id interface{}, code int, message string) *Message {
	return &Message{JSONRPC: "2.0", ID: id, Error: &ErrorObject{Code: code, Message: message}}
}

func encodeParams(params interface{}) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	return json.Marshal(params)
}
