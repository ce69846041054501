package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/proverbs/agent"
	"github.com/hupe1980/proverbs/core"
	"github.com/hupe1980/proverbs/model"
	"github.com/hupe1980/proverbs/proverb"
	"github.com/hupe1980/proverbs/session"
	"github.com/hupe1980/proverbs/tool"
	"github.com/hupe1980/proverbs/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu       sync.Mutex
	statuses []string
}

func (o *recordingObserver) ObserveRun(status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, status)
}

func (o *recordingObserver) Statuses() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string{}, o.statuses...)
}

func newFactory(t *testing.T, llm model.Model) *agent.Factory {
	t.Helper()
	catalog, err := tool.NewCatalog(append(proverb.Tools(), weather.NewTool(nil)))
	require.NoError(t, err)
	f, err := agent.NewFactory(llm, catalog, func(o *agent.FactoryOptions) { o.EnableStreaming = false })
	require.NoError(t, err)
	return f
}

func userText(s string) core.Content { return core.NewTextContent("user", s) }

func TestRunner_RunSyncWithTools(t *testing.T) {
	llm := model.NewScriptedModel(
		model.ToolCallStep(
			core.FunctionCall{ID: "1", Name: proverb.AddProverbsTool, Arguments: `{"proverbs":["a stitch in time"]}`},
			core.FunctionCall{ID: "2", Name: weather.ToolName, Arguments: `{"location":"Paris"}`},
		),
		model.TextStep("Added, and it is sunny."),
	)
	store := proverb.NewStore()
	sessions := session.NewInMemoryStore()
	obs := &recordingObserver{}

	r := New(newFactory(t, llm), func(o *Options) {
		o.Proverbs = store
		o.SessionStore = sessions
		o.Observer = obs
	})

	runID, events, err := r.RunSync(context.Background(), "s1", userText("add one and check Paris"))
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	require.Len(t, events, 4)
	assert.Len(t, events[0].GetFunctionCalls(), 2)
	assert.Equal(t, "1", events[1].GetFunctionResponses()[0].ID)
	assert.Equal(t, "2", events[2].GetFunctionResponses()[0].ID)
	assert.Equal(t, "Added, and it is sunny.", events[3].Text())

	assert.Equal(t, []string{"a stitch in time"}, store.GetAll())

	sess, err := sessions.Lookup("s1")
	require.NoError(t, err)
	assert.Len(t, sess.GetEvents(), 5) // user + 4
	v, ok := sess.GetState(core.StateKeyProverbs)
	require.True(t, ok)
	assert.Equal(t, []string{"a stitch in time"}, v)

	assert.Equal(t, []string{StatusOK}, obs.Statuses())
	assert.Equal(t, 0, r.Active())
}

func TestRunner_HistoryCarriesAcrossRuns(t *testing.T) {
	llm := model.NewScriptedModel(model.TextStep("first"), model.TextStep("second"))
	r := New(newFactory(t, llm))

	_, _, err := r.RunSync(context.Background(), "s", userText("one"))
	require.NoError(t, err)
	_, _, err = r.RunSync(context.Background(), "s", userText("two"))
	require.NoError(t, err)

	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	// system + user + assistant + user
	assert.Len(t, reqs[1].Contents, 4)
}

func TestRunner_AgentFailure(t *testing.T) {
	llm := model.NewScriptedModel(model.ErrorStep(errors.New("upstream 500")))
	obs := &recordingObserver{}
	r := New(newFactory(t, llm), func(o *Options) { o.Observer = obs })

	_, events, err := r.RunSync(context.Background(), "s", userText("hi"))
	require.Error(t, err)
	assert.ErrorIs(t, err, agent.ErrRunFailed)
	require.Len(t, events, 1)
	assert.True(t, events[0].IsError())
	assert.Equal(t, []string{StatusError}, obs.Statuses())
}

func TestRunner_ModelCallLimit(t *testing.T) {
	llm := model.NewScriptedModel(
		model.ToolCallStep(core.FunctionCall{ID: "1", Name: proverb.GetProverbsTool}),
		model.ToolCallStep(core.FunctionCall{ID: "2", Name: proverb.GetProverbsTool}),
	)
	r := New(newFactory(t, llm), func(o *Options) { o.MaxModelCalls = 1 })

	_, _, err := r.RunSync(context.Background(), "s", userText("loop"))
	require.ErrorIs(t, err, agent.ErrRunFailed)
	assert.Contains(t, err.Error(), core.ErrModelCallLimit.Error())
}

// blockingModel blocks until its context is done.
type blockingModel struct{ started chan struct{} }

func (m *blockingModel) Generate(ctx context.Context, _ model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response)
	errCh := make(chan error, 1)
	go func() {
		defer close(respCh)
		defer close(errCh)
		close(m.started)
		<-ctx.Done()
		errCh <- ctx.Err()
	}()
	return respCh, errCh
}

func (m *blockingModel) Info() model.Info { return model.Info{Name: "blocking"} }

func TestRunner_Cancel(t *testing.T) {
	llm := &blockingModel{started: make(chan struct{})}
	obs := &recordingObserver{}
	r := New(newFactory(t, llm), func(o *Options) { o.Observer = obs })

	runID, eventsCh, errorsCh, err := r.Run(context.Background(), "s", userText("wait"))
	require.NoError(t, err)

	<-llm.started
	require.NoError(t, r.Cancel(runID))

	for range eventsCh {
	}
	err = <-errorsCh
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{StatusCancelled}, obs.Statuses())

	assert.ErrorIs(t, r.Cancel(runID), ErrRunNotFound)
}

func TestRunner_RequiresSessionID(t *testing.T) {
	r := New(newFactory(t, model.NewScriptedModel()))
	_, _, _, err := r.Run(context.Background(), "", userText("x"))
	assert.ErrorIs(t, err, ErrSessionIDRequired)
}

func TestRunner_SemaphoreBoundsConcurrency(t *testing.T) {
	llm := &blockingModel{started: make(chan struct{})}
	r := New(newFactory(t, llm), func(o *Options) { o.MaxConcurrentRuns = 1 })

	runID, eventsCh, _, err := r.Run(context.Background(), "a", userText("wait"))
	require.NoError(t, err)
	<-llm.started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, _, err = r.Run(ctx, "b", userText("second"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, r.Cancel(runID))
	for range eventsCh {
	}
}

func TestRunner_Seed(t *testing.T) {
	llm := model.NewScriptedModel(model.TextStep("ok"))
	r := New(newFactory(t, llm))

	history := []core.Content{userText("earlier"), core.NewTextContent("assistant", "noted")}
	require.NoError(t, r.Seed("s", history))
	// A second seed on a non-empty session is ignored.
	require.NoError(t, r.Seed("s", history))

	_, _, err := r.RunSync(context.Background(), "s", userText("now"))
	require.NoError(t, err)

	contents := llm.Requests()[0].Contents
	require.Len(t, contents, 4)
	assert.Equal(t, "assistant", contents[2].Role)

	assert.ErrorIs(t, r.Seed("", history), ErrSessionIDRequired)
}

func TestRunner_ConcurrentRunsShareStore(t *testing.T) {
	const runs = 8

	steps := make([]model.Step, 0, runs*2)
	for i := 0; i < runs; i++ {
		steps = append(steps, model.ToolCallStep(core.FunctionCall{
			ID: fmt.Sprint(i), Name: proverb.AddProverbsTool, Arguments: `{"proverbs":["p"]}`,
		}), model.TextStep("ok"))
	}

	store := proverb.NewStore()
	// Each run gets its own scripted model so turn order stays deterministic.
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		r := New(newFactory(t, model.NewScriptedModel(steps[2*i], steps[2*i+1])), func(o *Options) { o.Proverbs = store })
		wg.Add(1)
		go func(sid string) {
			defer wg.Done()
			_, _, err := r.RunSync(context.Background(), sid, userText("add"))
			assert.NoError(t, err)
		}(fmt.Sprint("s", i))
	}
	wg.Wait()

	assert.Equal(t, runs, store.Len())
}
