package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hupe1980/proverbs/core"
	"github.com/hupe1980/proverbs/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1,
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": null,
      "tool_calls": [{"id": "c2", "type": "function", "function": {"name": "add_proverbs", "arguments": "{\"proverbs\":[\"b\"]}"}}]
    }
  }],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func TestModel_NonStreamingRoundTrip(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody)
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test-key"
		o.BaseURL = srv.URL + "/"
	})

	req := model.Request{
		Contents: []core.Content{
			core.NewTextContent("system", "be brief"),
			core.NewTextContent("user", "add b"),
			{Role: "assistant", Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c1", Name: "get_proverbs", Arguments: "{}"}}}},
			{Role: "tool", Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "c1", Name: "get_proverbs", Response: core.StateSnapshot{Proverbs: []string{"a"}}}}}},
		},
		Tools: model.ToolDefinitions(model.FunctionDefinition{
			Name:        "add_proverbs",
			Description: "append",
			Parameters:  map[string]any{"type": "object"},
		}),
	}

	respCh, errCh := m.Generate(context.Background(), req)
	var resps []model.Response
	for r := range respCh {
		resps = append(resps, r)
	}
	require.NoError(t, <-errCh)
	require.Len(t, resps, 1)

	calls := core.Event{Content: &resps[0].Content}.GetFunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "add_proverbs", calls[0].Name)
	assert.Equal(t, `{"proverbs":["b"]}`, calls[0].Arguments)
	require.NotNil(t, resps[0].Usage)
	assert.Equal(t, 15, resps[0].Usage.TotalTokens)

	msgs := captured["messages"].([]any)
	require.Len(t, msgs, 4)
	toolMsg := msgs[3].(map[string]any)
	assert.Equal(t, "tool", toolMsg["role"])
	assert.Equal(t, "c1", toolMsg["tool_call_id"])
	assert.JSONEq(t, `{"proverbs":["a"]}`, toolMsg["content"].(string))

	tools := captured["tools"].([]any)
	require.Len(t, tools, 1)
}

func TestModel_Info(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "k"; o.Model = "gpt-test" })
	assert.Equal(t, model.Info{Name: "gpt-test", Provider: "openai", SupportsTools: true}, m.Info())
}

func TestNewModel_Defaults(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "k" })
	assert.Equal(t, "gpt-4o-mini", m.Info().Name)
	assert.Equal(t, DefaultTemperature, m.opts.Temperature)
	assert.Equal(t, int64(DefaultMaxCompletionTokens), m.opts.MaxCompletionTokens)
}

func TestNewModel_OptionsOverrideEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("OPENAI_BASE_URL", "http://127.0.0.1:1/")

	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"hi"}}]}`)
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "option-key"
		o.BaseURL = srv.URL + "/"
	})

	respCh, errCh := m.Generate(context.Background(), model.Request{
		Contents: []core.Content{core.NewTextContent("user", "hello")},
	})
	var text string
	for r := range respCh {
		text += core.Event{Content: &r.Content}.Text()
	}
	require.NoError(t, <-errCh)

	assert.Equal(t, "hi", text)
	assert.Equal(t, "Bearer option-key", auth)
}
