package flow

import (
	"errors"
	"sync"
	"time"

	"github.com/hupe1980/proverbs/core"
	"golang.org/x/sync/errgroup"
)

var errNoCatalog = errors.New("agent has no tool catalog")

// FunctionExecutor executes a batch of function calls, possibly in parallel,
// and emits one function response event per call through emit.
// Implementations must:
//   - Respect runCtx.Context cancellation
//   - Never call emit concurrently
//   - Apply ToolContext accumulated actions to emitted events
//
// The emit callback is responsible for persistence synchronization (resume handling).
type FunctionExecutor interface {
	Execute(runCtx *core.RunContext, agent FlowAgent, fnCalls []core.FunctionCall, emit func(core.Event) error)
}

// FunctionExecutorConfig configures the default parallel executor.
type FunctionExecutorConfig struct {
	MaxParallel    int  // 0 or <1 => no explicit limit (len(fnCalls))
	PreserveOrder  bool // if true, buffer results and emit in original order
	LogStartEvents bool // log a start line per function
}

type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor constructs a new executor with the given config.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	return &parallelFunctionExecutor{cfg: cfg}
}

func (e *parallelFunctionExecutor) Execute(
	runCtx *core.RunContext,
	agent FlowAgent,
	fnCalls []core.FunctionCall,
	emit func(core.Event) error,
) {
	n := len(fnCalls)
	if n == 0 {
		return
	}

	// Fast path: single call, execute inline.
	if n == 1 {
		if err := emit(e.call(runCtx, agent, fnCalls[0])); err != nil {
			runCtx.LogWarn("agent.function.emit.error", "function", fnCalls[0].Name, "error", err)
		}
		return
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var (
		mu      sync.Mutex // serializes unordered emits
		results = make([]*core.Event, n)
		g       errgroup.Group
	)

	g.SetLimit(maxPar)

	batchStart := time.Now()

	for i, fc := range fnCalls {
		if runCtx.Err() != nil {
			break
		}

		g.Go(func() error {
			if runCtx.Err() != nil {
				return nil
			}

			ev := e.call(runCtx, agent, fc)

			if e.cfg.PreserveOrder {
				results[i] = &ev
				return nil
			}

			mu.Lock()
			defer mu.Unlock()

			if err := emit(ev); err != nil {
				runCtx.LogWarn("agent.function.emit.error", "function", fc.Name, "error", err)
			}

			return nil
		})
	}

	_ = g.Wait()

	if e.cfg.PreserveOrder {
		for i, ev := range results {
			if ev == nil {
				continue
			}
			if err := emit(*ev); err != nil {
				runCtx.LogWarn("agent.function.emit.error", "function", fnCalls[i].Name, "error", err)
				break
			}
		}
	}

	runCtx.LogDebug(
		"agent.functions.batch.complete",
		"agent", agent.GetName(),
		"count", n,
		"parallelism", maxPar,
		"preserve_order", e.cfg.PreserveOrder,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)
}

// call dispatches one function call through the agent's catalog and builds
// the response event. Catalog dispatch recovers handler panics.
func (e *parallelFunctionExecutor) call(runCtx *core.RunContext, agent FlowAgent, fc core.FunctionCall) core.Event {
	toolCtx := core.NewToolContext(runCtx, fc.ID)

	if e.cfg.LogStartEvents {
		runCtx.LogInfo("agent.function.start", "agent", agent.GetName(), "function", fc.Name, "function_call_id", fc.ID)
	}

	var (
		result any
		err    error
	)

	if catalog := agent.GetCatalog(); catalog != nil {
		result, err = catalog.Dispatch(toolCtx, fc.Name, fc.Arguments)
	} else {
		err = errNoCatalog
	}

	ev := core.NewFunctionResponseEvent(runCtx.RunID, agent.GetName(), fc.ID, fc.Name, result, err)
	toolCtx.ApplyActions(&ev)

	return ev
}
