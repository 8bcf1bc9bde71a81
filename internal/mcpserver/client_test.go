package mcpserver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muster/internal/mcptypes"
)

// fixtureServer is a tiny shell script acting as a well-behaved MCP server:
// it reads one line, and for "initialize" and "tools/list" methods replies
// with a canned response on the matching id. Any other input is ignored.
const fixtureServer = `
while IFS= read -r line; do
  case "$line" in
    *'"method":"initialize"'*)
      echo '{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":"2024-11-05","capabilities":{},"serverInfo":{"name":"fixture","version":"1.0"}}}'
      ;;
    *'"method":"tools/list"'*)
      echo '{"jsonrpc":"2.0","id":2,"result":{"tools":[{"name":"echo","description":"echoes input"}]}}'
      ;;
  esac
done
`

func TestClient_InitializeAndListTools(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Spawn(ctx, "fixture-server", "sh", []string{"-c", fixtureServer}, nil, 2*time.Second)
	require.NoError(t, err)
	defer client.Close(context.Background())

	assert.Equal(t, StateSpawned, client.State())

	initResult, err := client.Initialize(ctx, mcptypes.Implementation{Name: "muster", Version: "test"})
	require.NoError(t, err)
	assert.Equal(t, "fixture", initResult.ServerInfo.Name)
	assert.Equal(t, StateIdle, client.State())

	tools, err := client.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)
}

func TestClient_CloseIsIdempotentAndTransitionsToDead(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Spawn(ctx, "fixture-server", "sh", []string{"-c", fixtureServer}, nil, 2*time.Second)
	require.NoError(t, err)

	require.NoError(t, client.Close(context.Background()))
	assert.Equal(t, StateDead, client.State())
	require.NoError(t, client.Close(context.Background()))
	assert.Equal(t, StateDead, client.State())
}

func TestOverlayEnv_ChildWinsOnCollision(t *testing.T) {
	base := []string{"PATH=/usr/bin", "FOO=base"}
	merged := overlayEnv(base, map[string]string{"FOO": "override", "BAR": "baz"})

	got := map[string]string{}
	for _, kv := range merged {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				got[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	assert.Equal(t, "override", got["FOO"])
	assert.Equal(t, "baz", got["BAR"])
	assert.Equal(t, "/usr/bin", got["PATH"])
}

func TestTailBuffer_RetainsOnlyLastNLines(t *testing.T) {
	tb := newTailBuffer(2)
	_, _ = tb.Write([]byte("one\ntwo\nthree\n"))
	assert.Equal(t, "two | three", tb.String())
}

func TestExtractMeaningfulError_PrefersErrorLine(t *testing.T) {
	got := extractMeaningfulError([]string{
		"starting up",
		"Error: missing API key",
		"goodbye",
	})
	assert.Equal(t, "Error: missing API key", got)
}

func TestExtractMeaningfulError_MatchesFailedToAndCannot(t *testing.T) {
	assert.Equal(t, "Failed to connect to upstream", extractMeaningfulError([]string{
		"booting", "Failed to connect to upstream",
	}))
	assert.Equal(t, "Cannot bind port 8080", extractMeaningfulError([]string{
		"booting", "Cannot bind port 8080",
	}))
}

func TestExtractMeaningfulError_StripsANSIEscapes(t *testing.T) {
	got := extractMeaningfulError([]string{"\x1b[31mError: bad config\x1b[0m"})
	assert.Equal(t, "Error: bad config", got)
}

func TestExtractMeaningfulError_FallsBackToFirstNonEmptyLine(t *testing.T) {
	got := extractMeaningfulError([]string{"", "  ", "starting up", "still running"})
	assert.Equal(t, "starting up", got)
}

func TestExtractMeaningfulError_TruncatesAt200Chars(t *testing.T) {
	long := strings.Repeat("x", 250)
	got := extractMeaningfulError([]string{"Error: " + long})
	assert.Len(t, got, 200)
}

func TestExtractMeaningfulError_EmptyInputReturnsEmptyString(t *testing.T) {
	assert.Equal(t, "", extractMeaningfulError(nil))
	assert.Equal(t, "", extractMeaningfulError([]string{"", "  "}))
}
