package mcpserver

import (
	"context"
	"sync"
	"testing"

	"github.com/hupe1980/proverbs/proverb"
	"github.com/hupe1980/proverbs/tool"
	"github.com/hupe1980/proverbs/weather"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingHook struct {
	mu    sync.Mutex
	names []string
}

func (h *countingHook) BeforeCall(context.Context, *tool.CallRecord) {}

func (h *countingHook) AfterCall(_ context.Context, rec *tool.CallRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.names = append(h.names, rec.Name)
}

// setupTestClient creates an MCPServer over a fresh store, connects an SDK
// client via in-memory transports and returns the client session.
func setupTestClient(t *testing.T, store *proverb.Store, hooks ...tool.Hook) *mcp.ClientSession {
	t.Helper()

	catalog, err := tool.NewCatalog(append(proverb.Tools(), weather.NewTool(nil)), func(o *tool.CatalogOptions) {
		o.Hooks = hooks
	})
	require.NoError(t, err)

	s, err := New(catalog, store)
	require.NoError(t, err)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(context.Background())

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- s.run(ctx, serverTransport)
	}()
	t.Cleanup(func() {
		cancel()
		<-serverDone
	})

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestListTools(t *testing.T) {
	session := setupTestClient(t, proverb.NewStore())

	result, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make([]string, 0, len(result.Tools))
	for _, tl := range result.Tools {
		names = append(names, tl.Name)
	}
	assert.ElementsMatch(t, []string{"get_proverbs", "add_proverbs", "set_proverbs", "get_weather"}, names)
}

func TestCallTool_MutatesSharedStore(t *testing.T) {
	store := proverb.NewStore("first")
	hook := &countingHook{}
	session := setupTestClient(t, store, hook)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "add_proverbs",
		Arguments: map[string]any{"proverbs": []string{"second"}},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"proverbs":["first","second"]}`, textOf(t, result))
	assert.Equal(t, []string{"first", "second"}, store.GetAll())

	result, err = session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "get_proverbs",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"proverbs":["first","second"]}`, textOf(t, result))

	assert.Equal(t, []string{"add_proverbs", "get_proverbs"}, hook.names)
}

func TestCallTool_InvalidInput(t *testing.T) {
	store := proverb.NewStore("keep")
	session := setupTestClient(t, store)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "set_proverbs",
		Arguments: map[string]any{"proverbs": "not a list"},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), tool.CodeInvalidInput)
	assert.Equal(t, []string{"keep"}, store.GetAll())
}

func TestCallTool_Weather(t *testing.T) {
	session := setupTestClient(t, proverb.NewStore())

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "get_weather",
		Arguments: map[string]any{"location": "Lima"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"temperature":20,"conditions":"sunny","humidity":50,"wind_speed":10,"feelsLike":25}`, textOf(t, result))
}

func TestContextCancellation(t *testing.T) {
	catalog, err := tool.NewCatalog(proverb.Tools())
	require.NoError(t, err)
	s, err := New(catalog, proverb.NewStore())
	require.NoError(t, err)

	serverTransport, _ := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = s.run(ctx, serverTransport)
	assert.ErrorIs(t, err, context.Canceled)
}
