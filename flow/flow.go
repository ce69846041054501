// Package flow drives the model/tool loop of an agent run.
//
// A flow assembles a model request through a chain of RequestProcessors,
// streams the model output as events, dispatches requested tool calls
// through the agent's catalog and repeats until the model produces a final
// reply. Every non-partial event is followed by the resume handshake so the
// next turn sees the persisted session.
package flow

import (
	"github.com/hupe1980/proverbs/core"
	"github.com/hupe1980/proverbs/model"
	"github.com/hupe1980/proverbs/tool"
)

// Flow defines the interface for agent execution flows.
type Flow interface {
	// Execute runs the flow and returns a channel of events that is closed
	// once the run has finished.
	Execute(runCtx *core.RunContext) (<-chan core.Event, error)
}

// FlowAgent is the view of an agent a flow needs.
type FlowAgent interface {
	// GetName returns the agent's display name.
	GetName() string

	// GetLLM returns the language model instance.
	GetLLM() model.Model

	// ResolveInstructions returns the raw (unrendered) system instruction.
	ResolveInstructions(runCtx *core.RunContext) (string, error)

	// GetCatalog returns the tool catalog the model may call into.
	GetCatalog() *tool.Catalog

	// IsStreamingEnabled returns whether streaming responses are enabled.
	IsStreamingEnabled() bool

	// MaxHistoryMessages returns the maximum number of history messages
	// sent to the model. Zero or less means no limit.
	MaxHistoryMessages() int
}

// RequestProcessor processes the request before sending it to the LLM.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the chat request before LLM execution.
	ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error
}

// ResponseProcessor processes the response after receiving it from the LLM.
type ResponseProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessResponse inspects or adjusts a model response before it is emitted.
	ProcessResponse(runCtx *core.RunContext, resp *model.Response, agent FlowAgent) error
}
