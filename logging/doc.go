// Package logging provides a minimal logging interface and adapters.
//
// The Logger interface defines the leveled methods (Debug, Info, Warn, Error)
// the runner, flows and tool hooks use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - ZerologAdapter, the default backend used by the proverbs binary
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewZerolog(logging.ParseLevel("debug"), "console", os.Stderr)
//	r := runner.New(factory, func(o *runner.Options) { o.Logger = logger })
package logging
