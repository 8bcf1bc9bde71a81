// Package registry holds the two process-wide maps every connection path
// shares: the child process pool keyed by (project, server), and the SSE
// session registry keyed by session id.
package registry

import (
	"context"
	"sync"

	"muster/internal/mcpserver"
)

// childKey identifies one child server within a project.
type childKey struct {
	projectID string
	serverID  string
}

// entry wraps a pool slot: either a live client, or a "starting"
// placeholder that concurrent callers wait on instead of racing to spawn
// duplicate processes for the same (project, server).
type entry struct {
	client *mcpserver.Client
	ready  chan struct{} // closed once client (or err) is set
	err    error
}

// ChildPool is the process-wide map of live child MCP server connections,
// keyed by (project_id, server_id). Concurrent GetOrStart calls for the
// same key coalesce onto a single spawn via a starting placeholder, so two
// simultaneous SSE sessions opening the same server never double-spawn it.
type ChildPool struct {
	mu      sync.Mutex
	entries map[childKey]*entry
}

// NewChildPool constructs an empty pool.
func NewChildPool() *ChildPool {
	return &ChildPool{entries: make(map[childKey]*entry)}
}

// StartFunc spawns and initializes a new client for a server. httpapi's
// Server supplies it, turning an McpServer definition into a running,
// initialized mcpserver.Client.
type StartFunc func(ctx context.Context) (*mcpserver.Client, error)

// GetOrStart returns the live client for (projectID, serverID), starting
// one via start if none exists yet. If a start is already in flight for
// the same key, the caller blocks on that start's result instead of
// triggering a second one.
func (p *ChildPool) GetOrStart(ctx context.Context, projectID, serverID string, start StartFunc) (*mcpserver.Client, error) {
	key := childKey{projectID, serverID}

	p.mu.Lock()
	if e, ok := p.entries[key]; ok {
		p.mu.Unlock()
		<-e.ready
		if e.client == nil || e.client.State() != mcpserver.StateDead {
			return e.client, e.err
		}
		// The child has exited: drop the stale entry and start a fresh one.
		p.mu.Lock()
		if p.entries[key] == e {
			delete(p.entries, key)
		}
		p.mu.Unlock()
		return p.GetOrStart(ctx, projectID, serverID, start)
	}

	e := &entry{ready: make(chan struct{})}
	p.entries[key] = e
	p.mu.Unlock()

	client, err := start(ctx)
	e.client, e.err = client, err
	close(e.ready)

	if err != nil {
		p.mu.Lock()
		delete(p.entries, key)
		p.mu.Unlock()
	}
	return client, err
}

// Get returns the live client for (projectID, serverID) without starting
// one, and reports whether it was found and already finished starting.
func (p *ChildPool) Get(projectID, serverID string) (*mcpserver.Client, bool) {
	p.mu.Lock()
	e, ok := p.entries[childKey{projectID, serverID}]
	p.mu.Unlock()
	if !ok {
		return nil, false
	}
	select {
	case <-e.ready:
		return e.client, e.err == nil
	default:
		return nil, false
	}
}

// Remove closes and forgets the client for (projectID, serverID), if any.
func (p *ChildPool) Remove(ctx context.Context, projectID, serverID string) error {
	key := childKey{projectID, serverID}

	p.mu.Lock()
	e, ok := p.entries[key]
	if ok {
		delete(p.entries, key)
	}
	p.mu.Unlock()

	if !ok {
		return nil
	}
	<-e.ready
	if e.client == nil {
		return nil
	}
	return e.client.Close(ctx)
}

// ServersForProject returns the server IDs with a live pool entry under
// projectID.
func (p *ChildPool) ServersForProject(projectID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var ids []string
	for k := range p.entries {
		if k.projectID == projectID {
			ids = append(ids, k.serverID)
		}
	}
	return ids
}
