// Package mcptypes re-exports the wire-shape types used by the Model
// Context Protocol from github.com/mark3labs/mcp-go, aliasing them under
// names scoped to this module so call sites don't reach into the SDK
// package directly. Only the type definitions are used here — the
// transport/server/client machinery in mcp-go is not: the codec, child
// process lifecycle, and SSE transport in this module are hand-rolled to
// match the protocol's on-the-wire framing exactly (see internal/jsonrpc
// and internal/sse).
package mcptypes

import "github.com/mark3labs/mcp-go/mcp"

// Tool describes one callable tool, matching the MCP tools/list shape.
type Tool = mcp.Tool

// Resource describes one addressable resource, matching resources/list.
type Resource = mcp.Resource

// Prompt describes one prompt template, matching prompts/list.
type Prompt = mcp.Prompt

// CallToolResult is the tools/call response payload.
type CallToolResult = mcp.CallToolResult

// Implementation identifies a client or server by name and version during
// the initialize handshake.
type Implementation = mcp.Implementation

// ClientCapabilities is advertised by a client during initialize.
type ClientCapabilities = mcp.ClientCapabilities

// ServerCapabilities is advertised by a server during initialize.
type ServerCapabilities = mcp.ServerCapabilities

// ProtocolVersion is the MCP protocol revision this module speaks.
const ProtocolVersion = "2024-11-05"
