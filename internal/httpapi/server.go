// Package httpapi wires the gateway's HTTP surface: per-server and
// unified SSE endpoints, the POST message endpoint sessions use to send
// JSON-RPC requests, and the additive unified health endpoint.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"muster/internal/aggregator"
	"muster/internal/authhook"
	"muster/internal/domain"
	"muster/internal/jsonrpc"
	"muster/internal/mcpserver"
	"muster/internal/mcptypes"
	"muster/internal/namespace"
	"muster/internal/registry"
	"muster/internal/repository"
	"muster/internal/sse"
	"muster/pkg/logging"
)

const subsystem = "HTTPAPI"

// Server composes every other package's pieces into the gateway's HTTP
// surface. One Server serves every project; per-project/per-server
// routing happens from the URL path.
type Server struct {
	repo      repository.Repository
	pool      *registry.ChildPool
	sessions  *registry.SessionRegistry
	namespace string // default separator for newly created unified facades
	auth      authhook.Hook

	mu         sync.Mutex
	transports map[string]*sse.Transport      // sessionID -> transport
	handlers   map[string]*aggregator.Handler // sessionID -> single-server dispatch
	facades    map[string]*aggregator.Facade  // sessionID -> unified dispatch
}

// NewServer builds a Server over the given dependencies.
func NewServer(repo repository.Repository, pool *registry.ChildPool, sessions *registry.SessionRegistry, namespaceSeparator string, auth authhook.Hook) *Server {
	if auth == nil {
		auth = authhook.NoopHook{}
	}
	return &Server{
		repo:       repo,
		pool:       pool,
		sessions:   sessions,
		namespace:  namespaceSeparator,
		auth:       auth,
		transports: make(map[string]*sse.Transport),
		handlers:   make(map[string]*aggregator.Handler),
		facades:    make(map[string]*aggregator.Facade),
	}
}

// Routes registers every handler onto mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /projects/{projectId}/servers/{serverId}/sse", s.handleServerSSE)
	mux.HandleFunc("POST /projects/{projectId}/servers/{serverId}/messages", s.handleServerMessage)
	mux.HandleFunc("GET /projects/{projectId}/unified/sse", s.handleUnifiedSSE)
	mux.HandleFunc("POST /projects/{projectId}/unified/messages", s.handleUnifiedMessage)
	mux.HandleFunc("GET /projects/{projectId}/unified/health", s.handleUnifiedHealth)
}

func (s *Server) requireAuth(w http.ResponseWriter, r *http.Request, project *domain.Project, forSSE bool) bool {
	required := project.MessageAuthRequired
	if forSSE {
		required = project.SSEAuthRequired
	}
	if !required {
		return true
	}
	if _, err := s.auth.Authenticate(r); err != nil {
		logging.Audit(logging.AuditEvent{Action: "authenticate", Outcome: "failure", ProjectID: project.ID, Error: err.Error()})
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func (s *Server) loadProject(w http.ResponseWriter, r *http.Request) (*domain.Project, bool) {
	id := r.PathValue("projectId")
	project, err := s.repo.GetProject(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	return project, true
}

func (s *Server) handleServerSSE(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadProject(w, r)
	if !ok {
		return
	}
	if !s.requireAuth(w, r, project, true) {
		return
	}

	serverID := r.PathValue("serverId")
	server, err := s.repo.GetServer(project.ID, serverID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	client, err := s.pool.GetOrStart(r.Context(), project.ID, server.ID, s.starter(server))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	prefs, _ := s.repo.ListToolPreferences(project.ID)
	filter := namespace.NewFilter(prefs)
	handler := aggregator.NewHandler(project.ID, server.ID, client, filter)

	session := s.sessions.Create(project.ID, false, []string{server.ID})
	transport := sse.NewTransport(session.ID)

	s.mu.Lock()
	s.transports[session.ID] = transport
	s.handlers[session.ID] = handler
	s.mu.Unlock()
	defer s.teardown(session.ID)

	endpoint := fmt.Sprintf("/projects/%s/servers/%s/messages?sessionId=%s", project.ID, server.ID, session.ID)
	if err := transport.Serve(w, r, endpoint); err != nil {
		logging.Debug(subsystem, "server sse session %s ended: %v", logging.TruncateSessionID(session.ID), err)
	}
}

func (s *Server) handleServerMessage(w http.ResponseWriter, r *http.Request) {
	s.dispatchMessage(w, r, false)
}

func (s *Server) handleUnifiedSSE(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadProject(w, r)
	if !ok {
		return
	}
	if !project.UnifiedMCPEnabled {
		http.Error(w, "unified mode not enabled for this project", http.StatusForbidden)
		return
	}
	if !s.requireAuth(w, r, project, true) {
		return
	}

	servers, err := s.repo.ListServers(project.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	prefs, _ := s.repo.ListToolPreferences(project.ID)
	filter := namespace.NewFilter(prefs)
	facade := aggregator.NewFacade(project.ID, s.namespace, filter)

	var serverIDs []string
	for i := range servers {
		server := servers[i]
		if !server.IsEnabled {
			continue
		}
		client, err := s.pool.GetOrStart(r.Context(), project.ID, server.ID, s.starter(&server))
		if err != nil {
			logging.Warn(subsystem, "unified sse: server %s failed to start: %v", server.ID, err)
			continue
		}
		facade.AddServer(server.ID, server.Name, client)
		serverIDs = append(serverIDs, server.ID)
	}

	session := s.sessions.Create(project.ID, true, serverIDs)
	transport := sse.NewTransport(session.ID)

	s.mu.Lock()
	s.transports[session.ID] = transport
	s.facades[session.ID] = facade
	s.mu.Unlock()
	defer s.teardown(session.ID)

	endpoint := fmt.Sprintf("/projects/%s/unified/messages?sessionId=%s", project.ID, session.ID)
	if err := transport.Serve(w, r, endpoint); err != nil {
		logging.Debug(subsystem, "unified sse session %s ended: %v", logging.TruncateSessionID(session.ID), err)
	}
}

func (s *Server) handleUnifiedMessage(w http.ResponseWriter, r *http.Request) {
	s.dispatchMessage(w, r, true)
}

func (s *Server) dispatchMessage(w http.ResponseWriter, r *http.Request, unified bool) {
	project, ok := s.loadProject(w, r)
	if !ok {
		return
	}
	if !s.requireAuth(w, r, project, false) {
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if session.ProjectID != project.ID {
		http.Error(w, "session does not belong to this project", http.StatusNotFound)
		return
	}
	if session.Unified != unified {
		http.Error(w, "session/endpoint mode mismatch", http.StatusBadRequest)
		return
	}

	var msg jsonrpc.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid JSON-RPC body", http.StatusBadRequest)
		return
	}
	if msg.JSONRPC != "2.0" {
		http.Error(w, `"jsonrpc" must be "2.0"`, http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	s.mu.Lock()
	transport := s.transports[sessionID]
	facade := s.facades[sessionID]
	handler := s.handlers[sessionID]
	s.mu.Unlock()

	var resp *jsonrpc.Message
	switch {
	case unified && facade != nil:
		resp = facade.Dispatch(ctx, &msg)
	case !unified && handler != nil:
		resp = handler.Dispatch(ctx, &msg)
	default:
		http.Error(w, "session has no active dispatcher", http.StatusGone)
		return
	}

	if resp != nil && transport != nil {
		_ = transport.Send(ctx, resp)
	}

	// shutdown tears the session down outright (closing the SSE loop via
	// its sentinel); notifications/initialized and shutdown both ack with
	// 200 since neither produces a tools/list-style result the caller is
	// waiting to poll for.
	switch msg.Method {
	case "shutdown":
		s.teardown(sessionID)
		w.WriteHeader(http.StatusOK)
	case "notifications/initialized":
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}

func (s *Server) handleUnifiedHealth(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadProject(w, r)
	if !ok {
		return
	}

	sessions := s.sessions.ForProject(project.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]map[string]domain.ServerHealthStatus)
	for _, sess := range sessions {
		if !sess.Unified {
			continue
		}
		if facade, ok := s.facades[sess.ID]; ok {
			out[sess.ID] = facade.HealthSnapshot()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// teardown closes sessionID's SSE transport (enqueueing the shutdown
// sentinel so Serve's loop exits) and drops every map entry for it. It is
// safe to call twice for the same session — e.g. once from an explicit
// "shutdown" request and once more when the now-sentinel-terminated SSE
// request unwinds its own deferred teardown — the second call is a no-op
// because the map lookup fails after the first deletion.
func (s *Server) teardown(sessionID string) {
	s.mu.Lock()
	t, existed := s.transports[sessionID]
	if existed {
		t.Close()
	}
	delete(s.transports, sessionID)
	delete(s.handlers, sessionID)
	delete(s.facades, sessionID)
	s.mu.Unlock()

	if !existed {
		return
	}

	s.sessions.Remove(sessionID)
	logging.Audit(logging.AuditEvent{Action: "session_teardown", Outcome: "success", SessionID: sessionID})
}

func (s *Server) starter(server *domain.McpServer) registry.StartFunc {
	return func(ctx context.Context) (*mcpserver.Client, error) {
		timeout := server.EffectiveTimeout(30 * time.Second)
		client, err := mcpserver.Spawn(ctx, server.ID, server.Command, server.Args, server.Env, timeout)
		if err != nil {
			return nil, err
		}
		if _, err := client.Initialize(ctx, mcptypes.Implementation{Name: "muster", Version: "gateway"}); err != nil {
			return nil, err
		}
		return client, nil
	}
}
