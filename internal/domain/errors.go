package domain

import "fmt"

// ProjectNotFoundError indicates a lookup against an unknown project.
type ProjectNotFoundError struct {
	ID string
}

func (e *ProjectNotFoundError) Error() string {
	return fmt.Sprintf("project not found: %s", e.ID)
}

// ServerNotFoundError indicates a lookup against an unknown MCP server.
type ServerNotFoundError struct {
	ProjectID string
	ServerID  string
}

func (e *ServerNotFoundError) Error() string {
	return fmt.Sprintf("mcp server not found: project=%s server=%s", e.ProjectID, e.ServerID)
}

// SessionNotFoundError indicates a lookup against an unknown SSE session.
type SessionNotFoundError struct {
	SessionID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session not found: %s", e.SessionID)
}

// InvalidSessionIDError indicates a session ID that failed format
// validation (it must be a UUID).
type InvalidSessionIDError struct {
	SessionID string
}

func (e *InvalidSessionIDError) Error() string {
	return fmt.Sprintf("invalid session id: %s", e.SessionID)
}

// ToolNotFoundError indicates a tools/call against a name that is not in
// the current (possibly namespaced) tool set.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

// ToolDisabledError indicates a tools/call against a tool that exists but
// has been disabled via ToolPreference.
type ToolDisabledError struct {
	Name string
}

func (e *ToolDisabledError) Error() string {
	return fmt.Sprintf("tool disabled: %s", e.Name)
}

// ServerUnavailableError indicates the backing child process is not in a
// state that can accept a request (not started, closing, or dead).
type ServerUnavailableError struct {
	ServerID string
	Reason   string
}

func (e *ServerUnavailableError) Error() string {
	return fmt.Sprintf("server unavailable: %s (%s)", e.ServerID, e.Reason)
}

// ChildProcessError wraps a failure surfaced by a child MCP server process,
// classified via ClassifyError.
type ChildProcessError struct {
	ServerID string
	Type     ServerErrorType
	Message  string
}

func (e *ChildProcessError) Error() string {
	return fmt.Sprintf("child process error [%s] server=%s: %s", e.Type, e.ServerID, e.Message)
}

// ProtocolError indicates a malformed or out-of-sequence JSON-RPC message.
type ProtocolError struct {
	Detail string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Detail)
}

// RequestTimeoutError indicates a correlated JSON-RPC call exceeded its
// deadline without a matching response.
type RequestTimeoutError struct {
	Method string
	ID     interface{}
}

func (e *RequestTimeoutError) Error() string {
	return fmt.Sprintf("request timed out: method=%s id=%v", e.Method, e.ID)
}

// AuthenticationError indicates a failed auth hook verification.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}
