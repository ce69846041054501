package agent

import (
	"errors"
	"fmt"

	"github.com/hupe1980/proverbs/core"
	"github.com/hupe1980/proverbs/flow"
	"github.com/hupe1980/proverbs/model"
	"github.com/hupe1980/proverbs/tool"
)

// ErrRunFailed wraps the error event that ended a run.
var ErrRunFailed = errors.New("agent run failed")

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Description        string
	Instruction        Instruction
	EnableStreaming    bool
	MaxHistoryMessages int
	Executor           flow.FunctionExecutorConfig
}

// ModelAgent drives a language model through the single agent flow with
// the tool catalog it was built with.
//
// ModelAgent embeds BaseAgent to inherit the standard agent lifecycle.
type ModelAgent struct {
	BaseAgent
	llm                model.Model
	instruction        Instruction
	catalog            *tool.Catalog
	enableStreaming    bool
	maxHistoryMessages int
	executor           flow.FunctionExecutorConfig
}

// NewModelAgent creates a new model-based agent with sensible defaults:
//   - streaming enabled
//   - a 20 message history window
//   - tool calls of one turn run in parallel, responses kept in call order
//
// catalog may be nil for an agent without tools.
func NewModelAgent(name string, llm model.Model, catalog *tool.Catalog, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction:        NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		EnableStreaming:    true,
		MaxHistoryMessages: 20,
		Executor:           flow.FunctionExecutorConfig{PreserveOrder: true},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	a := &ModelAgent{
		BaseAgent:          NewBaseAgent(name),
		llm:                llm,
		instruction:        opts.Instruction,
		catalog:            catalog,
		enableStreaming:    opts.EnableStreaming,
		maxHistoryMessages: opts.MaxHistoryMessages,
		executor:           opts.Executor,
	}

	if opts.Description != "" {
		a.SetDescription(opts.Description)
	}

	return a
}

// GetName returns the agent's display name.
func (a *ModelAgent) GetName() string { return a.Name() }

// GetLLM returns the language model instance.
func (a *ModelAgent) GetLLM() model.Model { return a.llm }

// GetCatalog returns the tool catalog bound to this agent.
func (a *ModelAgent) GetCatalog() *tool.Catalog { return a.catalog }

// IsStreamingEnabled returns whether streaming responses are enabled.
func (a *ModelAgent) IsStreamingEnabled() bool { return a.enableStreaming }

// MaxHistoryMessages returns the maximum number of conversation history messages to keep.
func (a *ModelAgent) MaxHistoryMessages() int { return a.maxHistoryMessages }

// ResolveInstructions produces the raw instruction (system prompt) by
// resolving static or dynamic instruction sources.
func (a *ModelAgent) ResolveInstructions(runCtx *core.RunContext) (string, error) {
	return a.instruction.Resolve(runCtx)
}

// Run implements core.Agent. It executes the single agent flow and forwards
// its events to the run context. An error event emitted by the flow ends the
// run with ErrRunFailed.
func (a *ModelAgent) Run(runCtx *core.RunContext) error {
	runCtx.LogDebug("agent.run.start", "agent", a.Name())

	fl := flow.NewSingleAgentFlow(a)
	fl.SetExecutor(flow.NewParallelFunctionExecutor(a.executor))

	eventChan, err := fl.Execute(runCtx)
	if err != nil {
		runCtx.LogError("agent.flow.execute.error", "agent", a.Name(), "error", err)
		return fmt.Errorf("flow execution failed: %w", err)
	}

	var runErr error

	for event := range eventChan {
		if event.IsError() && runErr == nil {
			runErr = fmt.Errorf("%w: %s", ErrRunFailed, *event.ErrorMessage)
		}

		if err := runCtx.EmitEvent(event); err != nil {
			runCtx.LogWarn("agent.run.context_done", "agent", a.Name(), "error", err)
			// Let the flow observe cancellation and close its channel.
			for range eventChan {
			}
			return err
		}

		runCtx.LogDebug(
			"agent.event.forward",
			"agent", a.Name(),
			"event_id", event.ID,
			"partial", event.IsPartial(),
			"fn_calls", len(event.GetFunctionCalls()),
		)
	}

	if err := runCtx.Err(); err != nil {
		runErr = err
	}

	runCtx.LogDebug("agent.run.complete", "agent", a.Name(), "error", runErr != nil)

	return runErr
}

var _ flow.FlowAgent = (*ModelAgent)(nil)
var _ core.Agent = (*ModelAgent)(nil)
