package tool

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hupe1980/proverbs/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newToolCtx(callID string) *core.ToolContext {
	rc := core.NewRunContext(context.Background(), "sess", "run", core.AgentInfo{Name: "agent"}, core.Content{}, 0, nil, nil, nil, nil, nil, nil)
	return core.NewToolContext(rc, callID)
}

func echoTool() *FunctionTool {
	return NewFunctionTool(
		"echo",
		"Echo text",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []string{"text"},
		},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			return args["text"], nil
		},
	)
}

type recordingHook struct {
	mu     sync.Mutex
	before []string
	after  []*CallRecord
}

func (h *recordingHook) BeforeCall(_ context.Context, rec *CallRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.before = append(h.before, rec.Name)
}

func (h *recordingHook) AfterCall(_ context.Context, rec *CallRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := *rec
	h.after = append(h.after, &cp)
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	res, err := echoTool().Call(newToolCtx("fc1"), map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", res)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	_, err := echoTool().Call(newToolCtx("fc1"), map[string]any{"text": 5})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)

	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "echo", te.Tool)

	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	failing := NewFunctionTool("fail", "always fails", nil, func(*core.ToolContext, map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	_, err := failing.Call(newToolCtx("fc1"), nil)
	assert.ErrorIs(t, err, ErrExecution)
	assert.Equal(t, CodeExecutionError, Code(err))
}

func TestFunctionTool_ForwardsToolError(t *testing.T) {
	custom := NewFunctionTool("custom", "custom error", nil, func(*core.ToolContext, map[string]any) (any, error) {
		return nil, InvalidInput("custom", "location must not be empty")
	})
	_, err := custom.Call(newToolCtx("fc1"), map[string]any{})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "location must not be empty")
}

func TestNewFunctionTool_PanicsOnBadSchema(t *testing.T) {
	assert.Panics(t, func() {
		NewFunctionTool("bad", "bad schema", map[string]any{"type": 42}, nil)
	})
}

// -------------------- Catalog Tests --------------------

func TestNewCatalog_RejectsDuplicates(t *testing.T) {
	_, err := NewCatalog([]Tool{echoTool(), echoTool()})
	assert.Error(t, err)
}

func TestCatalog_Metadata(t *testing.T) {
	other := NewFunctionTool("other", "other tool", nil, func(*core.ToolContext, map[string]any) (any, error) { return nil, nil })
	c, err := NewCatalog([]Tool{echoTool(), other})
	require.NoError(t, err)

	assert.Equal(t, []string{"echo", "other"}, c.Names())
	defs := c.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "Echo text", defs[0].Description)
	assert.Equal(t, "object", defs[0].Parameters["type"])

	_, ok := c.Lookup("echo")
	assert.True(t, ok)
	_, ok = c.Lookup("missing")
	assert.False(t, ok)
}

func TestCatalog_Dispatch(t *testing.T) {
	hook := &recordingHook{}
	c, err := NewCatalog([]Tool{echoTool()}, func(o *CatalogOptions) { o.Hooks = []Hook{hook} })
	require.NoError(t, err)

	res, err := c.Dispatch(newToolCtx("fc1"), "echo", `{"text":"hello"}`)
	require.NoError(t, err)
	assert.Equal(t, "hello", res)

	_, err = c.Dispatch(newToolCtx("fc2"), "missing", `{}`)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Dispatch(newToolCtx("fc3"), "echo", `not json`)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = c.Dispatch(newToolCtx("fc4"), "echo", ``)
	assert.ErrorIs(t, err, ErrInvalidInput, "empty args decode to {} which lacks the required field")

	require.Len(t, hook.after, 4)
	assert.Equal(t, []string{"echo", "missing", "echo", "echo"}, hook.before)
	assert.Equal(t, "fc1", hook.after[0].CallID)
	assert.Equal(t, "run", hook.after[0].RunID)
	assert.Equal(t, "ok", hook.after[0].Status())
	assert.Equal(t, "hello", hook.after[0].Result)
	assert.Equal(t, CodeNotFound, hook.after[1].Code())
	assert.Equal(t, CodeInvalidInput, hook.after[2].Code())
	assert.Nil(t, hook.after[2].Args)
}

func TestCatalog_DispatchRecoversPanics(t *testing.T) {
	boom := NewFunctionTool("boom", "panics", nil, func(*core.ToolContext, map[string]any) (any, error) {
		panic("kaboom")
	})
	hook := &recordingHook{}
	c, err := NewCatalog([]Tool{boom})
	require.NoError(t, err)
	c = c.WithHooks(hook)

	_, err = c.Dispatch(newToolCtx("fc1"), "boom", `{}`)
	assert.ErrorIs(t, err, ErrExecution)
	require.Len(t, hook.after, 1)
	assert.Error(t, hook.after[0].Err)
}

func TestHooks_Order(t *testing.T) {
	var order []string
	mk := func(name string) Hook {
		return hookFunc{
			before: func() { order = append(order, "before:"+name) },
			after:  func() { order = append(order, "after:"+name) },
		}
	}
	hs := Hooks{mk("a"), mk("b")}
	hs.BeforeCall(context.Background(), &CallRecord{})
	hs.AfterCall(context.Background(), &CallRecord{})
	assert.Equal(t, []string{"before:a", "before:b", "after:b", "after:a"}, order)
}

type hookFunc struct{ before, after func() }

func (h hookFunc) BeforeCall(context.Context, *CallRecord) { h.before() }
func (h hookFunc) AfterCall(context.Context, *CallRecord)  { h.after() }

type captureLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *captureLogger) log(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
}
func (l *captureLogger) Debug(msg string, _ ...any) { l.log(msg) }
func (l *captureLogger) Info(msg string, _ ...any)  { l.log(msg) }
func (l *captureLogger) Warn(msg string, _ ...any)  { l.log(msg) }
func (l *captureLogger) Error(msg string, _ ...any) { l.log(msg) }

func TestLoggingHook(t *testing.T) {
	logger := &captureLogger{}
	c, err := NewCatalog([]Tool{echoTool()}, func(o *CatalogOptions) { o.Hooks = []Hook{NewLoggingHook(logger)} })
	require.NoError(t, err)

	_, _ = c.Dispatch(newToolCtx("fc1"), "echo", `{"text":"x"}`)
	_, _ = c.Dispatch(newToolCtx("fc2"), "echo", `{}`)

	assert.Equal(t, []string{"tool.call.start", "tool.call.success", "tool.call.start", "tool.call.error"}, logger.msgs)
}

func TestDecodeArgs(t *testing.T) {
	args, err := DecodeArgs("t", "null")
	require.NoError(t, err)
	assert.Empty(t, args)

	_, err = DecodeArgs("t", `["a"]`)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
