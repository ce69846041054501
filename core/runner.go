package core

import "context"

// Runner defines the orchestration contract for executing one agent run
// within a conversational session. It provides:
//   - Asynchronous execution via Run (streaming events + terminal error channel)
//   - A synchronous convenience wrapper via RunSync
//   - Cooperative cancellation through Cancel
//
// Semantics & Guarantees:
//   - Event Ordering: events of a single run are delivered in the order the
//     agent produced them.
//   - Channel Lifecycle: the events channel is closed after the run completes
//     (success, error, or cancellation). The error channel carries at most one
//     terminal error then closes.
//   - Cancellation: context cancellation or Cancel(runID) stops further model
//     turns. A proverb mutation already dispatched still completes.
type Runner interface {
	// Run starts an asynchronous run bound to sessionID using userContent as
	// the new user turn. The immediate error covers startup failures.
	Run(ctx context.Context, sessionID string, userContent Content) (string, <-chan Event, <-chan error, error)

	// RunSync executes a run to completion and returns every delivered event.
	RunSync(ctx context.Context, sessionID string, userContent Content) (string, []Event, error)

	// Cancel requests cooperative termination of an in-flight run. Cancelling
	// an unknown or already finished run returns an error.
	Cancel(runID string) error
}
