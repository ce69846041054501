package flow

import (
	"errors"
	"fmt"

	"github.com/hupe1980/proverbs/core"
	"github.com/hupe1980/proverbs/model"
)

// Error codes attached to error events emitted by the flow.
const (
	CodeModelError     = "MODEL_ERROR"
	CodeModelLimit     = "MODEL_CALL_LIMIT"
	CodeProcessorError = "PROCESSOR_ERROR"
)

// BaseFlow is a single agent flow implementing the request -> LLM ->
// (optional tool loop) cycle with pluggable pre/post processors.
type BaseFlow struct {
	agent              FlowAgent
	executor           FunctionExecutor
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
}

// NewBaseFlow creates a new basic single-agent flow. Tool calls are executed
// by an order preserving parallel executor unless replaced via SetExecutor.
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:              agent,
		executor:           NewParallelFunctionExecutor(FunctionExecutorConfig{PreserveOrder: true}),
		requestProcessors:  []RequestProcessor{},
		responseProcessors: []ResponseProcessor{},
	}
}

// AddRequestProcessor appends a request processor; order of registration defines execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// AddResponseProcessor appends a response processor executed after each model chunk.
func (f *BaseFlow) AddResponseProcessor(processor ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, processor)
}

// SetExecutor replaces the function executor.
func (f *BaseFlow) SetExecutor(executor FunctionExecutor) {
	if executor != nil {
		f.executor = executor
	}
}

// Execute launches the flow asynchronously and returns a channel of Events.
// The channel is closed when a final response is emitted, the run context is
// cancelled or an unrecoverable error occurs.
func (f *BaseFlow) Execute(runCtx *core.RunContext) (<-chan core.Event, error) {
	if f.agent.GetLLM() == nil {
		return nil, errors.New("flow agent has no model")
	}

	eventChan := make(chan core.Event, 100)

	go func() {
		defer close(eventChan)

		for runCtx.Err() == nil {
			last := f.runOnce(runCtx, eventChan)
			if last == nil || last.IsFinalResponse() {
				return
			}

			// Function responses were emitted: the model gets another turn.
			if len(last.GetFunctionResponses()) > 0 {
				continue
			}

			if last.IsPartial() {
				runCtx.LogWarn("flow.turn.partial_end", "agent", f.agent.GetName())
			}

			return
		}
	}()

	return eventChan, nil
}

// emit hands ev to the agent and, for non-partial events, blocks until the
// runner has persisted it.
func (f *BaseFlow) emit(runCtx *core.RunContext, eventChan chan<- core.Event, ev core.Event) error {
	select {
	case <-runCtx.Done():
		return runCtx.Err()
	case eventChan <- ev:
	}

	if ev.IsPartial() {
		return nil
	}

	return runCtx.WaitForResume()
}

// emitError converts an internal error to a system Event.
func (f *BaseFlow) emitError(runCtx *core.RunContext, eventChan chan<- core.Event, code string, err error) {
	runCtx.LogError("flow.error", "agent", f.agent.GetName(), "code", code, "error", err)
	_ = f.emit(runCtx, eventChan, core.NewErrorEvent(runCtx.RunID, code, err))
}

// buildRequest runs the request processors and attaches the catalog's tool
// definitions.
func (f *BaseFlow) buildRequest(runCtx *core.RunContext) (*model.Request, error) {
	req := &model.Request{Stream: f.agent.IsStreamingEnabled()}

	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(runCtx, req, f.agent); err != nil {
			return nil, fmt.Errorf("request processor %s failed: %w", processor.Name(), err)
		}
	}

	if catalog := f.agent.GetCatalog(); catalog != nil {
		defs := catalog.Definitions()
		fns := make([]model.FunctionDefinition, 0, len(defs))
		for _, d := range defs {
			fns = append(fns, model.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			})
		}
		req.Tools = model.ToolDefinitions(fns...)
	}

	return req, nil
}

// runOnce performs one model turn (including any tool executions) and returns
// the last emitted Event. A nil return signals termination.
func (f *BaseFlow) runOnce(runCtx *core.RunContext, eventChan chan<- core.Event) *core.Event {
	// Tool responses of the previous turn must be visible to the processors.
	if err := runCtx.RefreshSession(); err != nil && !errors.Is(err, core.ErrNoSessionStore) {
		runCtx.LogWarn("flow.session.refresh_failed", "error", err)
	}

	req, err := f.buildRequest(runCtx)
	if err != nil {
		f.emitError(runCtx, eventChan, CodeProcessorError, err)
		return nil
	}

	if err := runCtx.Limiter.Increment(); err != nil {
		f.emitError(runCtx, eventChan, CodeModelLimit, err)
		return nil
	}

	runCtx.LogDebug("flow.model.request", "agent", f.agent.GetName(), "contents", len(req.Contents), "tools", len(req.Tools))

	respCh, errCh := f.agent.GetLLM().Generate(runCtx.Context, *req)

	var lastEvent *core.Event

	for respCh != nil || errCh != nil {
		select {
		case <-runCtx.Done():
			return nil
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				if runCtx.Err() == nil {
					f.emitError(runCtx, eventChan, CodeModelError, fmt.Errorf("model generate: %w", err))
				}
				return nil
			}
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}

			for _, processor := range f.responseProcessors {
				if err := processor.ProcessResponse(runCtx, &resp, f.agent); err != nil {
					f.emitError(runCtx, eventChan, CodeProcessorError, fmt.Errorf("response processor %s failed: %w", processor.Name(), err))
					return nil
				}
			}

			ev := core.NewEvent(runCtx.RunID, f.agent.GetName())
			content := resp.Content
			ev.Content = &content
			partial := resp.Partial
			ev.Partial = &partial

			fnCalls := ev.GetFunctionCalls()
			if !resp.Partial && len(fnCalls) == 0 {
				complete := true
				ev.TurnComplete = &complete
			}

			lastEvent = &ev

			if err := f.emit(runCtx, eventChan, ev); err != nil {
				return nil
			}

			if resp.Partial || len(fnCalls) == 0 {
				continue
			}

			f.executor.Execute(runCtx, f.agent, fnCalls, func(respEv core.Event) error {
				lastEvent = &respEv
				return f.emit(runCtx, eventChan, respEv)
			})

			if runCtx.Err() != nil {
				return nil
			}
		}
	}

	return lastEvent
}
