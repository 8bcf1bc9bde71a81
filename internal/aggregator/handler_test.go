package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muster/internal/domain"
	"muster/internal/jsonrpc"
	"muster/internal/mcpserver"
	"muster/internal/mcptypes"
	"muster/internal/namespace"
)

const echoFixture = `
while IFS= read -r line; do
  case "$line" in
    *'"method":"initialize"'*)
      echo '{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":"2024-11-05","capabilities":{},"serverInfo":{"name":"fixture","version":"1.0"}}}'
      ;;
    *'"method":"tools/list"'*)
      echo '{"jsonrpc":"2.0","id":2,"result":{"tools":[{"name":"greet","description":"says hi"},{"name":"danger","description":"unsafe"}]}}'
      ;;
    *'"method":"tools/call"'*)
      id=${line#*'"id":'}; id=${id%%,*}
      echo '{"jsonrpc":"2.0","id":'"$id"',"result":{"content":[{"type":"text","text":"hi"}]}}'
      ;;
  esac
done
`

func spawnFixtureClient(t *testing.T) *mcpserver.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mcpserver.Spawn(ctx, "srv-1", "sh", []string{"-c", echoFixture}, nil, 2*time.Second)
	require.NoError(t, err)
	_, err = client.Initialize(ctx, mcptypes.Implementation{Name: "test", Version: "1"})
	require.NoError(t, err)

	t.Cleanup(func() { client.Close(context.Background()) })
	return client
}

func TestHandler_ToolsListFiltersDisabledTools(t *testing.T) {
	client := spawnFixtureClient(t)
	filter := namespace.NewFilter([]domain.ToolPreference{
		{ServerID: "srv-1", ToolName: "danger", IsEnabled: false},
	})
	h := NewHandler("proj-1", "srv-1", client, filter)

	req, _ := jsonrpc.NewRequest(int64(1), "tools/list", nil)
	resp := h.Dispatch(context.Background(), req)

	require.Nil(t, resp.Error)
	assert.Contains(t, string(resp.Result), "greet")
	assert.NotContains(t, string(resp.Result), "danger")
}

func TestHandler_UnknownMethodReturnsMethodNotFound(t *testing.T) {
	client := spawnFixtureClient(t)
	h := NewHandler("proj-1", "srv-1", client, nil)

	req, _ := jsonrpc.NewRequest(int64(9), "totally/unknown", nil)
	resp := h.Dispatch(context.Background(), req)

	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeMethodNotFound, resp.Error.Code)
}

func TestHandler_NotificationsInitializedHasNoReply(t *testing.T) {
	client := spawnFixtureClient(t)
	h := NewHandler("proj-1", "srv-1", client, nil)

	note, _ := jsonrpc.NewNotification("notifications/initialized", nil)
	resp := h.Dispatch(context.Background(), note)
	assert.Nil(t, resp)
}

func TestHandler_ToolsCallRejectsDisabledTool(t *testing.T) {
	client := spawnFixtureClient(t)
	filter := namespace.NewFilter([]domain.ToolPreference{
		{ServerID: "srv-1", ToolName: "danger", IsEnabled: false},
	})
	h := NewHandler("proj-1", "srv-1", client, filter)

	req, _ := jsonrpc.NewRequest(int64(3), "tools/call", map[string]interface{}{
		"name":      "danger",
		"arguments": map[string]interface{}{},
	})
	resp := h.Dispatch(context.Background(), req)

	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeMethodNotFound, resp.Error.Code)
}
