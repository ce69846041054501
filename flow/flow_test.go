package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hupe1980/proverbs/core"
	"github.com/hupe1980/proverbs/logging"
	"github.com/hupe1980/proverbs/model"
	"github.com/hupe1980/proverbs/proverb"
	"github.com/hupe1980/proverbs/session"
	"github.com/hupe1980/proverbs/tool"
	"github.com/hupe1980/proverbs/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAgent struct {
	name        string
	llm         model.Model
	catalog     *tool.Catalog
	instruction    string
	instructionErr error
	stream         bool
	maxHistory     int
}

func (a *testAgent) GetName() string           { return a.name }
func (a *testAgent) GetLLM() model.Model       { return a.llm }
func (a *testAgent) GetCatalog() *tool.Catalog { return a.catalog }
func (a *testAgent) IsStreamingEnabled() bool  { return a.stream }
func (a *testAgent) MaxHistoryMessages() int   { return a.maxHistory }
func (a *testAgent) ResolveInstructions(*core.RunContext) (string, error) {
	return a.instruction, a.instructionErr
}

func newCatalog(t *testing.T, extra ...tool.Tool) *tool.Catalog {
	t.Helper()
	tools := append(proverb.Tools(), weather.NewTool(nil))
	c, err := tool.NewCatalog(append(tools, extra...))
	require.NoError(t, err)
	return c
}

type harness struct {
	rc     *core.RunContext
	store  *proverb.Store
	sessns *session.InMemoryStore
	resume chan struct{}
	cancel context.CancelFunc
}

func newHarness(t *testing.T, userText string, maxModelCalls int) *harness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sessns := session.NewInMemoryStore()
	sess, err := sessns.Create("sess")
	require.NoError(t, err)

	user := core.NewTextContent("user", userText)
	require.NoError(t, sessns.AppendEvent("sess", core.NewUserContentEvent("run", &user)))

	store := proverb.NewStore()
	resume := make(chan struct{}, 1)

	rc := core.NewRunContext(ctx, "sess", "run", core.AgentInfo{Name: "agent", Type: "test"}, user,
		maxModelCalls, nil, resume, sess, sessns, store, logging.NoOpLogger{})

	return &harness{rc: rc, store: store, sessns: sessns, resume: resume, cancel: cancel}
}

// drain plays the runner's part: persist every non-partial event, apply its
// state delta and release the flow.
func (h *harness) drain(t *testing.T, ch <-chan core.Event) []core.Event {
	t.Helper()

	var events []core.Event

	timeout := time.After(5 * time.Second)

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
			if ev.IsPartial() {
				continue
			}
			if len(ev.Actions.StateDelta) > 0 {
				require.NoError(t, h.sessns.ApplyDelta("sess", ev.Actions.StateDelta))
			}
			require.NoError(t, h.sessns.AppendEvent("sess", ev))
			select {
			case h.resume <- struct{}{}:
			default:
			}
		case <-timeout:
			t.Fatal("flow did not finish")
		}
	}
}

func TestSingleAgentFlow_TextReply(t *testing.T) {
	h := newHarness(t, "hello", 0)
	llm := model.NewScriptedModel(model.TextStep("hi there"))
	agent := &testAgent{name: "agent", llm: llm, catalog: newCatalog(t), instruction: "be nice"}

	ch, err := NewSingleAgentFlow(agent).Execute(h.rc)
	require.NoError(t, err)

	events := h.drain(t, ch)
	require.Len(t, events, 1)
	assert.Equal(t, "hi there", events[0].Text())
	assert.True(t, events[0].IsFinalResponse())
	require.NotNil(t, events[0].TurnComplete)

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "be nice", reqs[0].Instructions)
	assert.Len(t, reqs[0].Tools, 4)
	require.Len(t, reqs[0].Contents, 2)
	assert.Equal(t, "system", reqs[0].Contents[0].Role)
	assert.Equal(t, "user", reqs[0].Contents[1].Role)
}

func TestSingleAgentFlow_ToolLoop(t *testing.T) {
	h := newHarness(t, "add two", 0)
	llm := model.NewScriptedModel(
		model.ToolCallStep(core.FunctionCall{ID: "c1", Name: proverb.AddProverbsTool, Arguments: `{"proverbs":["a","b"]}`}),
		model.TextStep("added"),
	)
	agent := &testAgent{name: "agent", llm: llm, catalog: newCatalog(t)}

	ch, err := NewSingleAgentFlow(agent).Execute(h.rc)
	require.NoError(t, err)

	events := h.drain(t, ch)
	require.Len(t, events, 3)

	assert.Len(t, events[0].GetFunctionCalls(), 1)

	frs := events[1].GetFunctionResponses()
	require.Len(t, frs, 1)
	assert.Equal(t, "c1", frs[0].ID)
	assert.Empty(t, frs[0].Error)
	assert.Equal(t, []string{"a", "b"}, events[1].Actions.StateDelta[core.StateKeyProverbs])

	assert.Equal(t, "added", events[2].Text())
	assert.Equal(t, []string{"a", "b"}, h.store.GetAll())

	// Second model turn sees the call and its result.
	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	roles := []string{}
	for _, c := range reqs[1].Contents {
		roles = append(roles, c.Role)
	}
	assert.Equal(t, []string{"user", "assistant", "tool"}, roles)
}

func TestSingleAgentFlow_InvalidToolInputIsReported(t *testing.T) {
	h := newHarness(t, "weather", 0)
	llm := model.NewScriptedModel(
		model.ToolCallStep(core.FunctionCall{ID: "w1", Name: weather.ToolName, Arguments: `{"location":""}`}),
		model.TextStep("which city?"),
	)
	agent := &testAgent{name: "agent", llm: llm, catalog: newCatalog(t)}

	ch, err := NewSingleAgentFlow(agent).Execute(h.rc)
	require.NoError(t, err)

	events := h.drain(t, ch)
	require.Len(t, events, 3)
	frs := events[1].GetFunctionResponses()
	require.Len(t, frs, 1)
	assert.Contains(t, frs[0].Error, "INVALID_INPUT")
	assert.Equal(t, "which city?", events[2].Text())
}

func TestSingleAgentFlow_ModelError(t *testing.T) {
	h := newHarness(t, "hello", 0)
	llm := model.NewScriptedModel(model.ErrorStep(errors.New("boom")))
	agent := &testAgent{name: "agent", llm: llm, catalog: newCatalog(t)}

	ch, err := NewSingleAgentFlow(agent).Execute(h.rc)
	require.NoError(t, err)

	events := h.drain(t, ch)
	require.Len(t, events, 1)
	require.True(t, events[0].IsError())
	assert.Equal(t, CodeModelError, *events[0].ErrorCode)
	assert.Contains(t, *events[0].ErrorMessage, "boom")
}

func TestSingleAgentFlow_ModelCallLimit(t *testing.T) {
	h := newHarness(t, "loop", 1)
	llm := model.NewScriptedModel(
		model.ToolCallStep(core.FunctionCall{ID: "c1", Name: proverb.GetProverbsTool}),
		model.TextStep("never reached"),
	)
	agent := &testAgent{name: "agent", llm: llm, catalog: newCatalog(t)}

	ch, err := NewSingleAgentFlow(agent).Execute(h.rc)
	require.NoError(t, err)

	events := h.drain(t, ch)
	require.Len(t, events, 3)
	last := events[2]
	require.True(t, last.IsError())
	assert.Equal(t, CodeModelLimit, *last.ErrorCode)
	assert.Equal(t, 1, llm.Remaining())
}

func TestSingleAgentFlow_Streaming(t *testing.T) {
	h := newHarness(t, "hi", 0)
	partial := model.Response{Partial: true, Content: core.NewTextContent("assistant", "h")}
	final := model.TextStep("hello")
	llm := &twoChunkModel{chunks: []model.Response{partial, final.Response}}
	agent := &testAgent{name: "agent", llm: llm, catalog: newCatalog(t), stream: true}

	ch, err := NewSingleAgentFlow(agent).Execute(h.rc)
	require.NoError(t, err)

	events := h.drain(t, ch)
	require.Len(t, events, 2)
	assert.True(t, events[0].IsPartial())
	assert.Equal(t, "hello", events[1].Text())
	assert.True(t, llm.sawStream)
}

func TestSingleAgentFlow_Cancel(t *testing.T) {
	h := newHarness(t, "hi", 0)
	llm := model.NewScriptedModel(model.TextStep("x"))
	agent := &testAgent{name: "agent", llm: llm, catalog: newCatalog(t)}

	h.cancel()

	ch, err := NewSingleAgentFlow(agent).Execute(h.rc)
	require.NoError(t, err)
	assert.Empty(t, h.drain(t, ch))
}

func TestBaseFlow_RequiresModel(t *testing.T) {
	h := newHarness(t, "hi", 0)
	_, err := NewBaseFlow(&testAgent{name: "agent"}).Execute(h.rc)
	assert.Error(t, err)
}

type twoChunkModel struct {
	chunks    []model.Response
	sawStream bool
}

func (m *twoChunkModel) Generate(_ context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	m.sawStream = req.Stream
	respCh := make(chan model.Response, len(m.chunks))
	errCh := make(chan error)
	for _, c := range m.chunks {
		respCh <- c
	}
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func (m *twoChunkModel) Info() model.Info { return model.Info{Name: "chunks"} }
