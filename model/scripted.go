package model

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/proverbs/core"
)

// ErrScriptExhausted is returned when a ScriptedModel has no step left.
var ErrScriptExhausted = errors.New("scripted model: no more steps")

// Step is one scripted Generate call: either a response or an error.
type Step struct {
	Response Response
	Err      error
}

// ScriptedModel replays a fixed sequence of steps, one per Generate call, and
// records every request it receives. It drives multi turn tool calling tests
// without a provider.
type ScriptedModel struct {
	info Info

	mu       sync.Mutex
	steps    []Step
	requests []Request
}

// NewScriptedModel constructs a ScriptedModel replaying steps in order.
func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{
		info:  Info{Name: "scripted", Provider: "test", SupportsTools: true},
		steps: steps,
	}
}

// TextStep returns a step producing a final assistant text reply.
func TextStep(text string) Step {
	return Step{Response: Response{
		Content:      core.NewTextContent("assistant", text),
		FinishReason: "stop",
	}}
}

// ToolCallStep returns a step requesting the given function calls.
func ToolCallStep(calls ...core.FunctionCall) Step {
	parts := make([]core.Part, 0, len(calls))
	for _, c := range calls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: c})
	}
	return Step{Response: Response{
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: "tool_calls",
	}}
}

// ErrorStep returns a step failing with err.
func ErrorStep(err error) Step { return Step{Err: err} }

// Requests returns the requests received so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request{}, m.requests...)
}

// Remaining returns the number of unused steps.
func (m *ScriptedModel) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.steps)
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	var (
		step Step
		ok   bool
	)
	if len(m.steps) > 0 {
		step, m.steps, ok = m.steps[0], m.steps[1:], true
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		switch {
		case !ok:
			errCh <- ErrScriptExhausted
		case step.Err != nil:
			errCh <- step.Err
		default:
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
			case respCh <- step.Response:
			}
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }
