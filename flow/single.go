package flow

// SingleAgentFlow implements the execution flow of a standalone agent. It
// wires the default processors for instruction rendering, content assembly
// and usage logging.
type SingleAgentFlow struct{ *BaseFlow }

// NewSingleAgentFlow creates a new single-agent flow.
func NewSingleAgentFlow(agent FlowAgent) *SingleAgentFlow {
	baseFlow := NewBaseFlow(agent)

	baseFlow.AddRequestProcessor(NewInstructionsProcessor())
	baseFlow.AddRequestProcessor(NewContentsProcessor())
	baseFlow.AddResponseProcessor(NewUsageProcessor())

	return &SingleAgentFlow{BaseFlow: baseFlow}
}
