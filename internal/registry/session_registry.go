package registry

import (
	"sync"

	"github.com/google/uuid"

	"muster/internal/domain"
)

// Session is one SSE client's bookkeeping: which project it belongs to,
// whether it is a unified (multi-server) session, and the set of server
// IDs it may dispatch to.
type Session struct {
	ID        string
	ProjectID string
	ServerIDs []string // the one server's ID for single-server sessions
	Unified   bool
}

// SessionRegistry is the process-wide map of live SSE sessions, keyed by
// session id (a UUID). It mirrors the teacher's session_registry.go:
// typed not-found/invalid errors instead of bare strings, safe for
// concurrent use from the HTTP layer and the SSE transport's teardown
// path alike.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionRegistry constructs an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// Create allocates a fresh session id and registers s under it.
func (r *SessionRegistry) Create(projectID string, unified bool, serverIDs []string) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		ServerIDs: serverIDs,
		Unified:   unified,
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	return s
}

// Get returns the session for id, or a SessionNotFoundError if id is
// well-formed but unknown, or an InvalidSessionIDError if id isn't a UUID.
func (r *SessionRegistry) Get(id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, &domain.InvalidSessionIDError{SessionID: id}
	}

	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, &domain.SessionNotFoundError{SessionID: id}
	}
	return s, nil
}

// Remove drops the session for id, if present. Removing an unknown id is
// not an error: teardown paths call this on every disconnect regardless
// of whether the session was already gone.
func (r *SessionRegistry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Count returns the number of live sessions, for health/metrics reporting.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ForProject returns every live session belonging to projectID.
func (r *SessionRegistry) ForProject(projectID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Session
	for _, s := range r.sessions {
		if s.ProjectID == projectID {
			out = append(out, s)
		}
	}
	return out
}
