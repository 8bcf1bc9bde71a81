package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"muster/internal/domain"
	"muster/internal/secret"
)

// YAMLStorage is a file-backed Repository, adapted from the teacher's
// internal/config.Storage: one YAML file per entity (or per entity
// collection, for append-only logs) under a root directory, guarded by a
// single mutex since writes are infrequent relative to reads.
//
// Layout:
//
//	<root>/projects/<projectID>.yaml
//	<root>/servers/<projectID>/<serverID>.yaml
//	<root>/tools/<serverID>.yaml          (list of McpTool)
//	<root>/preferences/<projectID>.yaml   (list of ToolPreference)
//	<root>/logs/server/<projectID>.yaml   (list of ServerLog, append)
//	<root>/logs/toolcall/<projectID>.yaml (list of ToolCallLog, append)
//	<root>/job_history/<projectID>.yaml   (list of JobHistoryEntry, append)
//	<root>/worker.yaml
type YAMLStorage struct {
	root   string
	secret secret.Provider

	mu sync.Mutex
}

// NewYAMLStorage builds a YAMLStorage rooted at dir, creating it if
// necessary. secretProvider decrypts/encrypts McpServer args/env around
// every read/write.
func NewYAMLStorage(dir string, secretProvider secret.Provider) (*YAMLStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", dir, err)
	}
	return &YAMLStorage{root: dir, secret: secretProvider}, nil
}

func (s *YAMLStorage) path(parts ...string) string {
	return filepath.Join(append([]string{s.root}, parts...)...)
}

func (s *YAMLStorage) save(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s *YAMLStorage) load(path string, v interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return true, nil
}

// --- Projects ---

func (s *YAMLStorage) GetProject(id string) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p domain.Project
	found, err := s.load(s.path("projects", id+".yaml"), &p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &domain.ProjectNotFoundError{ID: id}
	}
	return &p, nil
}

func (s *YAMLStorage) ListProjects() ([]domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.path("projects")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	var out []domain.Project
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var p domain.Project
		if _, err := s.load(filepath.Join(dir, e.Name()), &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *YAMLStorage) SaveProject(p *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(s.path("projects", p.ID+".yaml"), p)
}

func (s *YAMLStorage) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path("projects", id+".yaml")); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	return nil
}

// --- MCP servers ---

func (s *YAMLStorage) GetServer(projectID, serverID string) (*domain.McpServer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var server domain.McpServer
	found, err := s.load(s.path("servers", projectID, serverID+".yaml"), &server)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &domain.ServerNotFoundError{ProjectID: projectID, ServerID: serverID}
	}
	if err := s.decryptServer(&server); err != nil {
		return nil, err
	}
	return &server, nil
}

func (s *YAMLStorage) ListServers(projectID string) ([]domain.McpServer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.path("servers", projectID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list servers for %s: %w", projectID, err)
	}

	var out []domain.McpServer
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var server domain.McpServer
		if _, err := s.load(filepath.Join(dir, e.Name()), &server); err != nil {
			return nil, err
		}
		if err := s.decryptServer(&server); err != nil {
			return nil, err
		}
		out = append(out, server)
	}
	return out, nil
}

func (s *YAMLStorage) SaveServer(server *domain.McpServer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	toStore := *server
	if s.secret != nil {
		encArgs, err := s.secret.EncryptArgs(server.Args)
		if err != nil {
			return fmt.Errorf("encrypt args for %s: %w", server.ID, err)
		}
		encEnv, err := s.secret.EncryptEnv(server.Env)
		if err != nil {
			return fmt.Errorf("encrypt env for %s: %w", server.ID, err)
		}
		toStore.Args = encArgs
		toStore.Env = encEnv
	}
	return s.save(s.path("servers", server.ProjectID, server.ID+".yaml"), &toStore)
}

func (s *YAMLStorage) DeleteServer(projectID, serverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path("servers", projectID, serverID+".yaml")); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete server %s/%s: %w", projectID, serverID, err)
	}
	return nil
}

func (s *YAMLStorage) decryptServer(server *domain.McpServer) error {
	if s.secret == nil {
		return nil
	}
	args, err := s.secret.DecryptArgs(server.Args)
	if err != nil {
		return fmt.Errorf("decrypt args for %s: %w", server.ID, err)
	}
	env, err := s.secret.DecryptEnv(server.Env)
	if err != nil {
		return fmt.Errorf("decrypt env for %s: %w", server.ID, err)
	}
	server.Args = args
	server.Env = env
	return nil
}

// --- Discovered tools ---

func (s *YAMLStorage) ListTools(serverID string) ([]domain.McpTool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tools []domain.McpTool
	if _, err := s.load(s.path("tools", serverID+".yaml"), &tools); err != nil {
		return nil, err
	}
	return tools, nil
}

func (s *YAMLStorage) ReplaceTools(serverID string, tools []domain.McpTool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(s.path("tools", serverID+".yaml"), tools)
}

// --- Tool preferences ---

func (s *YAMLStorage) ListToolPreferences(projectID string) ([]domain.ToolPreference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prefs []domain.ToolPreference
	if _, err := s.load(s.path("preferences", projectID+".yaml"), &prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

func (s *YAMLStorage) SaveToolPreference(pref *domain.ToolPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path("preferences", pref.ProjectID+".yaml")
	var prefs []domain.ToolPreference
	if _, err := s.load(path, &prefs); err != nil {
		return err
	}

	replaced := false
	for i, existing := range prefs {
		if existing.ServerID == pref.ServerID && existing.ToolName == pref.ToolName {
			prefs[i] = *pref
			replaced = true
			break
		}
	}
	if !replaced {
		prefs = append(prefs, *pref)
	}
	return s.save(path, prefs)
}

// --- Logs ---

func (s *YAMLStorage) AppendServerLog(entry *domain.ServerLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path("logs", "server", entry.ProjectID+".yaml")
	var entries []domain.ServerLog
	if _, err := s.load(path, &entries); err != nil {
		return err
	}
	entries = append(entries, *entry)
	return s.save(path, entries)
}

func (s *YAMLStorage) AppendToolCallLog(entry *domain.ToolCallLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path("logs", "toolcall", entry.ProjectID+".yaml")
	var entries []domain.ToolCallLog
	if _, err := s.load(path, &entries); err != nil {
		return err
	}
	entries = append(entries, *entry)
	return s.save(path, entries)
}

func (s *YAMLStorage) AppendJobHistory(entry *domain.JobHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path("job_history", entry.ProjectID+".yaml")
	var entries []domain.JobHistoryEntry
	if _, err := s.load(path, &entries); err != nil {
		return err
	}
	entries = append(entries, *entry)
	return s.save(path, entries)
}

func (s *YAMLStorage) ListJobHistory(projectID string) ([]domain.JobHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []domain.JobHistoryEntry
	if _, err := s.load(s.path("job_history", projectID+".yaml"), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// --- Worker configuration ---

func (s *YAMLStorage) GetWorkerConfig() (domain.WorkerConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := domain.DefaultWorkerConfig()
	if _, err := s.load(s.path("worker.yaml"), &cfg); err != nil {
		return domain.WorkerConfig{}, err
	}
	return cfg, nil
}

func (s *YAMLStorage) SaveWorkerConfig(cfg domain.WorkerConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(s.path("worker.yaml"), cfg)
}

var _ Repository = (*YAMLStorage)(nil)
