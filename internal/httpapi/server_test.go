package httpapi

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muster/internal/domain"
	"muster/internal/registry"
	"muster/internal/repository"
	"muster/internal/secret"
)

const fixtureScript = `
while IFS= read -r line; do
  case "$line" in
    *'"method":"initialize"'*)
      echo '{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":"2024-11-05","capabilities":{},"serverInfo":{"name":"fixture","version":"1.0"}}}'
      ;;
    *'"method":"tools/list"'*)
      echo '{"jsonrpc":"2.0","id":2,"result":{"tools":[{"name":"greet"}]}}'
      ;;
  esac
done
`

func newTestServer(t *testing.T) (*Server, repository.Repository) {
	t.Helper()
	key, err := secret.NewKey()
	require.NoError(t, err)
	repo, err := repository.NewYAMLStorage(t.TempDir(), secret.NewSecretboxProvider(key))
	require.NoError(t, err)

	project := &domain.Project{ID: "proj-1", Name: "Demo", UnifiedMCPEnabled: true}
	require.NoError(t, repo.SaveProject(project))

	server := &domain.McpServer{
		ID: "srv-1", ProjectID: "proj-1", Name: "alpha", Command: "sh",
		Args: []string{"-c", fixtureScript}, IsEnabled: true,
	}
	require.NoError(t, repo.SaveServer(server))

	pool := registry.NewChildPool()
	sessions := registry.NewSessionRegistry()
	srv := NewServer(repo, pool, sessions, ".", nil)
	return srv, repo
}

// readSSELine reads lines from body until it finds one starting with
// prefix, returning the remainder of that line.
func readSSELine(t *testing.T, body *bufio.Reader, prefix string) string {
	t.Helper()
	for {
		line, err := body.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
}

func TestServer_ServerSSEHandshakeAndMessage(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := http.NewServeMux()
	srv.Routes(mux)
	httpServer := httptest.NewServer(mux)
	defer httpServer.Close()

	req, err := http.NewRequest(http.MethodGet, httpServer.URL+"/projects/proj-1/servers/srv-1/sse", nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req = req.WithContext(ctx)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	endpoint := readSSELine(t, reader, "data: ")
	assert.Contains(t, endpoint, "/projects/proj-1/servers/srv-1/messages?sessionId=")

	parsed, err := url.Parse(endpoint)
	require.NoError(t, err)
	sessionID := parsed.Query().Get("sessionId")
	assert.NotEmpty(t, sessionID)

	postBody := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
	postResp, err := http.Post(httpServer.URL+"/projects/proj-1/servers/srv-1/messages?sessionId="+sessionID, "application/json", strings.NewReader(postBody))
	require.NoError(t, err)
	defer postResp.Body.Close()
	assert.Equal(t, http.StatusAccepted, postResp.StatusCode)

	frame := readSSELine(t, reader, "data: ")
	assert.Contains(t, frame, "greet")
}

func TestServer_UnifiedHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := http.NewServeMux()
	srv.Routes(mux)
	httpServer := httptest.NewServer(mux)
	defer httpServer.Close()

	resp, err := http.Get(httpServer.URL + "/projects/proj-1/unified/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_UnknownProjectReturnsNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := http.NewServeMux()
	srv.Routes(mux)
	httpServer := httptest.NewServer(mux)
	defer httpServer.Close()

	resp, err := http.Get(httpServer.URL + "/projects/ghost/servers/srv-1/sse")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// openServerSSE opens a per-server SSE session and returns its session ID
// and the still-open response body, for tests that need to follow up with
// a message POST against that session.
func openServerSSE(t *testing.T, baseURL string) (string, *bufio.Reader, *http.Response) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, baseURL+"/projects/proj-1/servers/srv-1/sse", nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	req = req.WithContext(ctx)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	reader := bufio.NewReader(resp.Body)
	endpoint := readSSELine(t, reader, "data: ")
	parsed, err := url.Parse(endpoint)
	require.NoError(t, err)
	return parsed.Query().Get("sessionId"), reader, resp
}

func TestServer_MessageRejectsWrongJSONRPCVersion(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := http.NewServeMux()
	srv.Routes(mux)
	httpServer := httptest.NewServer(mux)
	defer httpServer.Close()

	sessionID, _, resp := openServerSSE(t, httpServer.URL)
	defer resp.Body.Close()

	postBody := `{"jsonrpc":"1.0","id":1,"method":"tools/list"}`
	postResp, err := http.Post(httpServer.URL+"/projects/proj-1/servers/srv-1/messages?sessionId="+sessionID, "application/json", strings.NewReader(postBody))
	require.NoError(t, err)
	defer postResp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, postResp.StatusCode)
}

func TestServer_MessageRejectsCrossProjectSession(t *testing.T) {
	srv, repo := newTestServer(t)
	require.NoError(t, repo.SaveProject(&domain.Project{ID: "proj-2", Name: "Other"}))

	mux := http.NewServeMux()
	srv.Routes(mux)
	httpServer := httptest.NewServer(mux)
	defer httpServer.Close()

	sessionID, _, resp := openServerSSE(t, httpServer.URL)
	defer resp.Body.Close()

	postBody := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
	postResp, err := http.Post(httpServer.URL+"/projects/proj-2/servers/srv-1/messages?sessionId="+sessionID, "application/json", strings.NewReader(postBody))
	require.NoError(t, err)
	defer postResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, postResp.StatusCode)
}

func TestServer_ShutdownReturns200AndClosesSSELoop(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := http.NewServeMux()
	srv.Routes(mux)
	httpServer := httptest.NewServer(mux)
	defer httpServer.Close()

	sessionID, reader, resp := openServerSSE(t, httpServer.URL)
	defer resp.Body.Close()

	postBody := `{"jsonrpc":"2.0","id":1,"method":"shutdown"}`
	postResp, err := http.Post(httpServer.URL+"/projects/proj-1/servers/srv-1/messages?sessionId="+sessionID, "application/json", strings.NewReader(postBody))
	require.NoError(t, err)
	defer postResp.Body.Close()
	assert.Equal(t, http.StatusOK, postResp.StatusCode)

	// The sentinel pushed by teardown makes Serve's loop return, which
	// ends the response body with EOF rather than hanging open.
	frame := readSSELine(t, reader, "data: ")
	assert.Contains(t, frame, `"ok":true`)
	blank, err := reader.ReadString('\n') // blank line closing the data event
	require.NoError(t, err)
	assert.Equal(t, "\n", blank)
	_, err = reader.ReadString('\n')
	assert.Error(t, err)
}
