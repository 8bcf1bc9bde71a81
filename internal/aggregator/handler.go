package aggregator

import (
	"context"
	"encoding/json"
	"fmt"

	"muster/internal/domain"
	"muster/internal/jsonrpc"
	"muster/internal/mcpserver"
	"muster/internal/mcptypes"
	"muster/internal/namespace"
	"muster/pkg/logging"
)

const subsystem = "Aggregator"

// Handler dispatches JSON-RPC requests for a single backing server to the
// methods spec.md §4.F names: initialize, tools/list, tools/call,
// notifications/initialized, shutdown, plus resources/list and
// prompts/list. Any other request yields a MethodNotFound (-32601)
// response; an unknown notification (no id) gets no reply.
type Handler struct {
	ServerID  string
	ProjectID string

	client *mcpserver.Client
	filter *namespace.Filter
}

// NewHandler builds a Handler bound to one already-initialized client.
func NewHandler(projectID, serverID string, client *mcpserver.Client, filter *namespace.Filter) *Handler {
	return &Handler{ProjectID: projectID, ServerID: serverID, client: client, filter: filter}
}

// Dispatch handles one incoming request/notification and returns the
// response Message to send back, or nil for notifications (which expect
// no reply).
func (h *Handler) Dispatch(ctx context.Context, msg *jsonrpc.Message) *jsonrpc.Message {
	switch msg.Method {
	case "initialize":
		return h.handleInitialize(ctx, msg)
	case "notifications/initialized":
		return nil
	case "tools/list":
		return h.handleToolsList(ctx, msg)
	case "tools/call":
		return h.handleToolsCall(ctx, msg)
	case "resources/list":
		return h.handleResourcesList(ctx, msg)
	case "prompts/list":
		return h.handlePromptsList(ctx, msg)
	case "shutdown":
		return h.handleShutdown(ctx, msg)
	default:
		if msg.ID == nil {
			return nil // unknown notification: nothing to reply with
		}
		return jsonrpc.NewError(msg.ID, jsonrpc.CodeMethodNotFound, fmt.Sprintf("method not found: %s", msg.Method))
	}
}

func (h *Handler) handleInitialize(ctx context.Context, msg *jsonrpc.Message) *jsonrpc.Message {
	result, err := h.client.Initialize(ctx, mcptypes.Implementation{Name: "muster", Version: "gateway"})
	if err != nil {
		logging.Error(subsystem, err, "initialize failed for server %s", h.ServerID)
		return errorResponse(msg.ID, err)
	}
	resp, err := jsonrpc.NewResult(msg.ID, result)
	if err != nil {
		return jsonrpc.NewError(msg.ID, jsonrpc.CodeInternalError, err.Error())
	}
	return resp
}

func (h *Handler) handleToolsList(ctx context.Context, msg *jsonrpc.Message) *jsonrpc.Message {
	tools, err := h.client.ListTools(ctx)
	if err != nil {
		return errorResponse(msg.ID, err)
	}

	visible := make([]mcptypes.Tool, 0, len(tools))
	for _, t := range tools {
		if h.filter == nil || h.filter.Enabled(h.ServerID, t.Name) {
			visible = append(visible, t)
		}
	}

	resp, err := jsonrpc.NewResult(msg.ID, map[string]interface{}{"tools": visible})
	if err != nil {
		return jsonrpc.NewError(msg.ID, jsonrpc.CodeInternalError, err.Error())
	}
	return resp
}

func (h *Handler) handleResourcesList(ctx context.Context, msg *jsonrpc.Message) *jsonrpc.Message {
	resources, err := h.client.ListResources(ctx)
	if err != nil {
		return errorResponse(msg.ID, err)
	}
	resp, err := jsonrpc.NewResult(msg.ID, map[string]interface{}{"resources": resources})
	if err != nil {
		return jsonrpc.NewError(msg.ID, jsonrpc.CodeInternalError, err.Error())
	}
	return resp
}

func (h *Handler) handlePromptsList(ctx context.Context, msg *jsonrpc.Message) *jsonrpc.Message {
	prompts, err := h.client.ListPrompts(ctx)
	if err != nil {
		return errorResponse(msg.ID, err)
	}
	resp, err := jsonrpc.NewResult(msg.ID, map[string]interface{}{"prompts": prompts})
	if err != nil {
		return jsonrpc.NewError(msg.ID, jsonrpc.CodeInternalError, err.Error())
	}
	return resp
}

type toolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

func (h *Handler) handleToolsCall(ctx context.Context, msg *jsonrpc.Message) *jsonrpc.Message {
	var params toolCallParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return jsonrpc.NewError(msg.ID, jsonrpc.CodeInvalidParams, "invalid tools/call params")
	}

	if h.filter != nil && !h.filter.Enabled(h.ServerID, params.Name) {
		return errorResponse(msg.ID, &domain.ToolDisabledError{Name: params.Name})
	}

	result, err := h.client.CallTool(ctx, params.Name, params.Arguments)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	logging.Audit(logging.AuditEvent{
		Action:    "tool_call",
		Outcome:   outcome,
		ProjectID: h.ProjectID,
		Target:    h.ServerID + ":" + params.Name,
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

func (h *Handler) handleShutdown(ctx context.Context, msg *jsonrpc.Message) *jsonrpc.Message {
	if err := h.client.Close(ctx); err != nil {
		return errorResponse(msg.ID, err)
	}
	resp, _ := jsonrpc.NewResult(msg.ID, map[string]bool{"ok": true})
	return resp
}

func errorResponse(id interface{}, err error) *jsonrpc.Message {
	code := jsonrpc.CodeInternalError
	switch err.(type) {
	case *domain.ToolNotFoundError, *domain.ToolDisabledError:
		code = jsonrpc.CodeMethodNotFound
	}
	return jsonrpc.NewError(id, code, err.Error())
}
