package flow

import (
	"fmt"

	"github.com/hupe1980/proverbs/core"
	"github.com/hupe1980/proverbs/model"
)

// InstructionsProcessor resolves the agent instruction into the request. Any
// templating is up to the agent's instruction provider.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest sets req.Instructions.
func (p *InstructionsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	instructions, err := agent.ResolveInstructions(runCtx)
	if err != nil {
		return fmt.Errorf("failed to resolve instruction: %w", err)
	}

	runCtx.LogDebug("agent.instruction.resolved", "agent", agent.GetName(), "length", len(instructions))

	req.Instructions = instructions

	return nil
}

// ContentsProcessor assembles the model contents: the system instruction
// followed by the (capped) conversation history.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest sets req.Contents.
func (p *ContentsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	contents := []core.Content{}
	if req.Instructions != "" {
		contents = append(contents, core.NewTextContent("system", req.Instructions))
	}

	events := runCtx.GetSessionHistory()
	if limit := agent.MaxHistoryMessages(); limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
		// A tool result must never lead without the call that requested it.
		for len(events) > 0 && events[0].Content != nil && events[0].Content.Role == "tool" {
			events = events[1:]
		}
	}

	for _, ev := range events {
		if ev.Content != nil && len(ev.Content.Parts) > 0 {
			contents = append(contents, *ev.Content)
		}
	}

	// Without a persisted session the user turn only lives on the run context.
	if len(events) == 0 && len(runCtx.UserContent.Parts) > 0 {
		contents = append(contents, runCtx.UserContent)
	}

	req.Contents = contents

	return nil
}

// UsageProcessor logs token usage reported on final model responses.
type UsageProcessor struct{}

// NewUsageProcessor creates a new usage processor.
func NewUsageProcessor() *UsageProcessor { return &UsageProcessor{} }

// Name returns the processor's identifier.
func (p *UsageProcessor) Name() string { return "usage" }

// ProcessResponse logs resp.Usage when present.
func (p *UsageProcessor) ProcessResponse(runCtx *core.RunContext, resp *model.Response, agent FlowAgent) error {
	if resp.Partial || resp.Usage == nil {
		return nil
	}

	runCtx.LogDebug(
		"flow.model.usage",
		"agent", agent.GetName(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"total_tokens", resp.Usage.TotalTokens,
		"finish_reason", resp.FinishReason,
	)

	return nil
}
