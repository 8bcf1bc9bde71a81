// Package repository defines the external persistence boundary for
// projects, MCP servers, discovered tools, tool preferences, and the
// append-only log entities, plus a file-backed YAML implementation
// adapted from the teacher's internal/config.Storage.
package repository

import "muster/internal/domain"

// Repository is the CRUD boundary every other component depends on
// through this interface, never a concrete storage type, so the
// aggregator/scheduler/httpapi layers can be tested against an in-memory
// fake.
type Repository interface {
	// Projects
	GetProject(id string) (*domain.Project, error)
	ListProjects() ([]domain.Project, error)
	SaveProject(p *domain.Project) error
	DeleteProject(id string) error

	// MCP servers
	GetServer(projectID, serverID string) (*domain.McpServer, error)
	ListServers(projectID string) ([]domain.McpServer, error)
	SaveServer(s *domain.McpServer) error
	DeleteServer(projectID, serverID string) error

	// Discovered tools
	ListTools(serverID string) ([]domain.McpTool, error)
	ReplaceTools(serverID string, tools []domain.McpTool) error

	// Tool preferences
	ListToolPreferences(projectID string) ([]domain.ToolPreference, error)
	SaveToolPreference(p *domain.ToolPreference) error

	// Logs
	AppendServerLog(entry *domain.ServerLog) error
	AppendToolCallLog(entry *domain.ToolCallLog) error
	AppendJobHistory(entry *domain.JobHistoryEntry) error
	ListJobHistory(projectID string) ([]domain.JobHistoryEntry, error)

	// Worker configuration (singleton, runtime-editable cadence per
	// spec.md §4.G)
	GetWorkerConfig() (domain.WorkerConfig, error)
	SaveWorkerConfig(cfg domain.WorkerConfig) error
}
