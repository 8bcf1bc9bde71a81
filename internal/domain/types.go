// Package domain holds the persisted entity types shared by the repository,
// scheduler, and aggregator: projects, their MCP servers and tools, per-project
// tool preferences, and the append-only log entities.
package domain

import (
	"strings"
	"time"
)

// ServerStatus is the lifecycle status of an McpServer as tracked by the
// scheduler and surfaced to the aggregator.
type ServerStatus string

const (
	ServerStatusActive   ServerStatus = "active"
	ServerStatusInactive ServerStatus = "inactive"
	ServerStatusError    ServerStatus = "error"
	ServerStatusStarting ServerStatus = "starting"
	ServerStatusStopping ServerStatus = "stopping"
)

// TransportType identifies how the core talks to an MCP server's process.
// The core implements "stdio" only; other values are reserved for
// collaborators outside the core.
type TransportType string

const (
	TransportStdio TransportType = "stdio"
)

// Project is the tenant boundary: it owns a set of MCP servers and governs
// whether SSE/message endpoints require an authenticated identity.
type Project struct {
	ID                  string
	Name                string
	Slug                string
	SSEAuthRequired     bool
	MessageAuthRequired bool
	UnifiedMCPEnabled   bool
	AllowedIPRanges     []string // CIDR strings; nil means unrestricted
}

// McpServer is a child process definition scoped to a Project. Args and Env
// are plaintext here; the repository implementation is responsible for
// decrypting them on read and encrypting them on write via the secret
// provider (see internal/secret).
type McpServer struct {
	ID             string
	ProjectID      string
	Name           string
	Command        string
	Args           []string
	Env            map[string]string
	TimeoutSeconds int
	IsEnabled      bool
	Transport      TransportType
	Status         ServerStatus
	LastStartedAt  *time.Time
	LastError      string
	TotalToolCalls int64
	LastUsedAt     *time.Time
}

// EffectiveTimeout returns the configured timeout, or a supplied default if
// unset/non-positive.
func (s *McpServer) EffectiveTimeout(def time.Duration) time.Duration {
	if s.TimeoutSeconds <= 0 {
		return def
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// McpTool is a tool discovered on an McpServer by the scheduler's
// tools/list probe.
type McpTool struct {
	ID           string
	ServerID     string
	Name         string
	Description  string
	InputSchema  map[string]interface{}
	DiscoveredAt time.Time
	LastSeenAt   time.Time
	UsageCount   int64
}

// ToolPreference records whether a (project, server, tool) triple is
// enabled. Absence of a row is treated as enabled by every consumer.
type ToolPreference struct {
	ProjectID string
	ServerID  string
	ToolName  string
	IsEnabled bool
}

// ServerHealthStatus is the in-memory, per-unified-session health state of
// a backing server (spec.md §3 ServerHealth).
type ServerHealthStatus string

const (
	HealthHealthy    ServerHealthStatus = "healthy"
	HealthDegraded   ServerHealthStatus = "degraded"
	HealthFailed     ServerHealthStatus = "failed"
	HealthRecovering ServerHealthStatus = "recovering"
)

// ServerErrorType classifies a failure for health-transition and log
// purposes. It is derived from the error message text, matching the
// classification rules in spec.md §4.F/§7.
type ServerErrorType string

const (
	ErrorTypeConnection     ServerErrorType = "connection"
	ErrorTypeTimeout        ServerErrorType = "timeout"
	ErrorTypeProtocol       ServerErrorType = "protocol"
	ErrorTypeInitialization ServerErrorType = "initialization"
	ErrorTypeToolExecution  ServerErrorType = "tool_execution"
	ErrorTypeUnknown        ServerErrorType = "unknown"
)

// ClassifyError implements the shared classification rules from spec.md:
// "timeout/timed out" -> timeout; "connection/refused/reset" -> connection;
// "initialize/initialization" -> initialization; "protocol/invalid message"
// -> protocol; "tool" -> tool execution; otherwise unknown.
func ClassifyError(errMsg string) ServerErrorType {
	msg := strings.ToLower(errMsg)
	contains := func(s string) bool {
		return strings.Contains(msg, s)
	}
	switch {
	case contains("timeout") || contains("timed out"):
		return ErrorTypeTimeout
	case contains("connection") || contains("refused") || contains("reset"):
		return ErrorTypeConnection
	case contains("initialize") || contains("initialization"):
		return ErrorTypeInitialization
	case contains("protocol") || contains("invalid message"):
		return ErrorTypeProtocol
	case contains("tool"):
		return ErrorTypeToolExecution
	default:
		return ErrorTypeUnknown
	}
}

// WorkerConfig is the singleton runtime configuration for the status &
// tool-discovery scheduler (spec.md §3 WorkerConfig).
type WorkerConfig struct {
	ServerCheckIntervalSeconds int  // 60..3600
	MaxWorkers                 int
	Coalesce                   bool
	MaxInstances               int
}

// DefaultWorkerConfig returns the documented defaults (spec.md §4.G).
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		ServerCheckIntervalSeconds: 300,
		MaxWorkers:                 1,
		Coalesce:                   true,
		MaxInstances:               1,
	}
}

// Interval returns the configured check interval as a time.Duration.
func (w WorkerConfig) Interval() time.Duration {
	return time.Duration(w.ServerCheckIntervalSeconds) * time.Second
}

// LogLevel mirrors the severity used for ServerLog entries.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ServerLog is an append-only log entry about server lifecycle/health.
type ServerLog struct {
	ServerID  string
	ProjectID string
	Level     LogLevel
	Category  string
	Message   string
	Details   map[string]interface{}
	Timestamp time.Time
}

// ToolCallStatus is the outcome of one tool invocation.
type ToolCallStatus string

const (
	ToolCallSuccess ToolCallStatus = "success"
	ToolCallFailed  ToolCallStatus = "failed"
)

// ToolCallLog is an append-only log entry about one tools/call invocation.
type ToolCallLog struct {
	ServerID        string
	ProjectID       string
	ToolName        string
	Input           map[string]interface{}
	Output          interface{}
	Status          ToolCallStatus
	ExecutionTimeMs int64
	Error           string
	Timestamp       time.Time
}

// JobHistoryEntry records one run of the scheduler's check_all_servers job
// (spec.md §4.G, supplemented per SPEC_FULL.md §2).
type JobHistoryEntry struct {
	ProjectID   string
	RunAt       time.Time
	Duration    time.Duration
	Checked     int
	Updated     int
	Errored     int
	ToolsSynced int
}
