// Package runner implements the run orchestration layer.
//
// A Runner turns one conversation turn into a run: it asks the agent factory
// for a fresh agent, builds a core.RunContext carrying the shared proverb
// store, streams the agent's events to the caller and persists every
// non-partial event (and its state delta) to the session before the agent
// may continue.
//
// # Responsibilities
//   - Run lifecycle: start, cancellation, bounded concurrency
//   - Event persistence and the resume handshake
//   - Run outcome reporting to an optional RunObserver
package runner
