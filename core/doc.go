// Package core provides the foundational domain types, interfaces and execution
// contexts shared by every other package of the proverbs service. It defines:
//
//   - Agents and the factory that builds a fresh agent per run
//   - Sessions (conversational containers with event history and state)
//   - Events (immutable communication + orchestration records)
//   - RunContext / ToolContext (scoped execution & tool sandboxing)
//   - The ProverbStore contract and its StateSnapshot value
//
// Concrete behavior (the proverb store, model providers, the tool catalog,
// the runner) lives in dedicated packages that depend on these contracts.
// RunContext carries the injected ProverbStore so tools never reach for a
// package level global.
package core
