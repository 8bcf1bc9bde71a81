package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"muster/internal/domain"
	"muster/internal/jsonrpc"
	"muster/internal/mcpserver"
	"muster/internal/mcptypes"
	"muster/internal/namespace"
	"muster/pkg/logging"
)

// backingServer is one child connection a Facade dispatches to, paired
// with its assigned namespace and health tracker.
type backingServer struct {
	serverID string
	client   *mcpserver.Client
	health   *ServerHealth
}

// Facade composes NAMESPACE + PROTOCOL over N child clients for one
// unified (multi-server) session, applying per-session ServerHealth so
// one failing backend doesn't take the whole session down — calls to a
// Failed server short-circuit with a clear error instead of hanging on a
// dead child (spec.md §4.K).
type Facade struct {
	ProjectID string

	ns     *namespace.Registry
	filter *namespace.Filter

	mu       sync.RWMutex
	backends map[string]*backingServer // keyed by serverID
}

// NewFacade builds an empty Facade for one unified session.
func NewFacade(projectID string, separator string, filter *namespace.Filter) *Facade {
	return &Facade{
		ProjectID: projectID,
		ns:        namespace.NewRegistry(separator),
		filter:    filter,
		backends:  make(map[string]*backingServer),
	}
}

// AddServer registers client under serverID/serverName, assigning it a
// namespace and a fresh ServerHealth tracker.
func (f *Facade) AddServer(serverID, serverName string, client *mcpserver.Client) string {
	ns := f.ns.Assign(serverID, serverName)

	f.mu.Lock()
	f.backends[serverID] = &backingServer{serverID: serverID, client: client, health: NewServerHealth(serverID)}
	f.mu.Unlock()

	return ns
}

// HealthSnapshot returns each backing server's current health status, for
// the additive GET .../unified/health endpoint (SPEC_FULL.md §2/§7).
func (f *Facade) HealthSnapshot() map[string]domain.ServerHealthStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[string]domain.ServerHealthStatus, len(f.backends))
	for id, b := range f.backends {
		out[id] = b.health.Snapshot()
	}
	return out
}

// Dispatch handles one incoming request for the unified session,
// answering initialize itself, aggregating tools/list, resources/list and
// prompts/list across every usable backend, and routing tools/call by the
// namespace prefix of the requested tool name.
func (f *Facade) Dispatch(ctx context.Context, msg *jsonrpc.Message) *jsonrpc.Message {
	switch msg.Method {
	case "initialize":
		resp, err := jsonrpc.NewResult(msg.ID, map[string]interface{}{
			"protocolVersion": mcptypes.ProtocolVersion,
			"capabilities":    map[string]interface{}{"tools": map[string]interface{}{}},
			"serverInfo":      mcptypes.Implementation{Name: "muster", Version: "gateway"},
		})
		if err != nil {
			return jsonrpc.NewError(msg.ID, jsonrpc.CodeInternalError, err.Error())
		}
		return resp
	case "notifications/initialized":
		return nil
	case "tools/list":
		return f.handleToolsList(ctx, msg)
	case "tools/call":
		return f.handleToolsCall(ctx, msg)
	case "resources/list":
		return f.handleResourcesList(ctx, msg)
	case "prompts/list":
		return f.handlePromptsList(ctx, msg)
	case "shutdown":
		return f.handleShutdown(ctx, msg)
	default:
		if msg.ID == nil {
			return nil
		}
		return jsonrpc.NewError(msg.ID, jsonrpc.CodeMethodNotFound, fmt.Sprintf("method not found: %s", msg.Method))
	}
}

func (f *Facade) usableBackends() []*backingServer {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]*backingServer, 0, len(f.backends))
	for _, b := range f.backends {
		if b.health.Usable() {
			out = append(out, b)
		}
	}
	return out
}

func (f *Facade) handleToolsList(ctx context.Context, msg *jsonrpc.Message) *jsonrpc.Message {
	var all []mcptypes.Tool
	for _, b := range f.usableBackends() {
		tools, err := b.client.ListTools(ctx)
		if err != nil {
			b.health.RecordFailure(err.Error())
			logging.Warn(subsystem, "unified tools/list: server %s failed: %v", b.serverID, err)
			continue
		}
		b.health.RecordSuccess()

		for _, t := range tools {
			if f.filter != nil && !f.filter.Enabled(b.serverID, t.Name) {
				continue
			}
			t.Name = f.ns.Qualify(b.serverID, t.Name)
			all = append(all, t)
		}
	}

	resp, err := jsonrpc.NewResult(msg.ID, map[string]interface{}{"tools": all})
	if err != nil {
		return jsonrpc.NewError(msg.ID, jsonrpc.CodeInternalError, err.Error())
	}
	return resp
}

func (f *Facade) handleResourcesList(ctx context.Context, msg *jsonrpc.Message) *jsonrpc.Message {
	var all []mcptypes.Resource
	for _, b := range f.usableBackends() {
		resources, err := b.client.ListResources(ctx)
		if err != nil {
			b.health.RecordFailure(err.Error())
			continue
		}
		b.health.RecordSuccess()
		all = append(all, resources...)
	}

	resp, err := jsonrpc.NewResult(msg.ID, map[string]interface{}{"resources": all})
	if err != nil {
		return jsonrpc.NewError(msg.ID, jsonrpc.CodeInternalError, err.Error())
	}
	return resp
}

func (f *Facade) handlePromptsList(ctx context.Context, msg *jsonrpc.Message) *jsonrpc.Message {
	var all []mcptypes.Prompt
	for _, b := range f.usableBackends() {
		prompts, err := b.client.ListPrompts(ctx)
		if err != nil {
			b.health.RecordFailure(err.Error())
			continue
		}
		b.health.RecordSuccess()
		all = append(all, prompts...)
	}

	resp, err := jsonrpc.NewResult(msg.ID, map[string]interface{}{"prompts": all})
	if err != nil {
		return jsonrpc.NewError(msg.ID, jsonrpc.CodeInternalError, err.Error())
	}
	return resp
}

func (f *Facade) handleToolsCall(ctx context.Context, msg *jsonrpc.Message) *jsonrpc.Message {
	var params toolCallParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return jsonrpc.NewError(msg.ID, jsonrpc.CodeInvalidParams, "invalid tools/call params")
	}

	ns, bareName := f.ns.Resolve(params.Name)
	serverID := f.ns.ServerIDForNamespace(ns)
	if serverID == "" {
		return errorResponse(msg.ID, &domain.ToolNotFoundError{Name: params.Name})
	}

	f.mu.RLock()
	b, ok := f.backends[serverID]
	f.mu.RUnlock()
	if !ok || !b.health.Usable() {
		return errorResponse(msg.ID, &domain.ServerUnavailableError{ServerID: serverID, Reason: "server is failed/unreachable"})
	}

	if f.filter != nil && !f.filter.Enabled(serverID, bareName) {
		return errorResponse(msg.ID, &domain.ToolDisabledError{Name: params.Name})
	}

	result, err := b.client.CallTool(ctx, bareName, params.Arguments)
	outcome := "success"
	if err != nil {
		b.health.RecordFailure(err.Error())
		outcome = "failure"
	} else {
		b.health.RecordSuccess()
	}

	logging.Audit(logging.AuditEvent{
		Action:    "tool_call",
		Outcome:   outcome,
		ProjectID: f.ProjectID,
		Target:    params.Name,
	})

	if err != nil {
		return errorResponse(msg.ID, err)
	}
	resp, err := jsonrpc.NewResult(msg.ID, result)
	if err != nil {
		return jsonrpc.NewError(msg.ID, jsonrpc.CodeInternalError, err.Error())
	}
	return resp
}

func (f *Facade) handleShutdown(ctx context.Context, msg *jsonrpc.Message) *jsonrpc.Message {
	f.mu.RLock()
	backends := make([]*backingServer, 0, len(f.backends))
	for _, b := range f.backends {
		backends = append(backends, b)
	}
	f.mu.RUnlock()

	var firstErr error
	for _, b := range backends {
		if err := b.client.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return errorResponse(msg.ID, firstErr)
	}
	resp, _ := jsonrpc.NewResult(msg.ID, map[string]bool{"ok": true})
	return resp
}
