package core

// Agent defines the contract every runnable agent implements.
//
// Agents receive a RunContext, process the run asynchronously and emit events
// through it to communicate replies, tool calls and state changes back to the
// Runner. An agent value is bound to exactly one run: the Runner asks an
// AgentFactory for a fresh instance every time and never reuses it.
//
// Implementations must:
//   - Respect context cancellation for graceful shutdown
//   - Emit events through the provided RunContext
//   - Honor the resume handshake after every non-partial event
type Agent interface {
	Name() string
	Description() string
	Start(runCtx *RunContext) error
	Stop(runCtx *RunContext) error
	Run(runCtx *RunContext) error
}

// AgentFactory builds a fresh agent bound to the tool catalog and model for a
// single run. Continuity between runs flows only through the shared
// ProverbStore and the session history.
type AgentFactory interface {
	NewAgent() Agent
}

// AgentInfo carries identifying details about an agent used in contexts & events.
// Name is the external identifier; Type categorizes the implementation (e.g. "model").
type AgentInfo struct{ Name, Type string }
