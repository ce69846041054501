package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/proverbs/core"
	"github.com/hupe1980/proverbs/logging"
	"github.com/hupe1980/proverbs/session"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrRunNotFound is returned by Cancel for unknown or finished runs.
	ErrRunNotFound = errors.New("run not found")
	// ErrSessionIDRequired is returned when a run is started without a session id.
	ErrSessionIDRequired = errors.New("session id is required")
)

// Run statuses reported to a RunObserver.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// RunObserver is notified once per finished run.
type RunObserver interface {
	ObserveRun(status string, duration time.Duration)
}

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// MaxConcurrentRuns limits the number of runs executing at once. Further
	// runs wait for a free slot.
	MaxConcurrentRuns int64
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// MaxModelCalls limits the number of model calls per run. Zero means no limit.
	MaxModelCalls int
	// SessionStore keeps conversation history and session state.
	SessionStore core.SessionStore
	// Proverbs is the shared store handed to every run.
	Proverbs core.ProverbStore
	// Observer receives run outcomes (optional).
	Observer RunObserver
	// Logger receives runner and run scoped logs.
	Logger logging.Logger
}

// Runner coordinates agent execution: builds a fresh agent per run, creates
// run contexts, streams events, applies side effects and persists history.
// Public methods are safe for concurrent use.
type Runner struct {
	factory core.AgentFactory

	eventBufferSize int
	maxModelCalls   int
	sem             *semaphore.Weighted

	sessionStore core.SessionStore
	proverbs     core.ProverbStore
	observer     RunObserver
	logger       logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Runner with optional overrides.
func New(factory core.AgentFactory, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrentRuns: 10,
		EventBufferSize:   100,
		MaxModelCalls:     25,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}

	if opts.MaxConcurrentRuns <= 0 {
		opts.MaxConcurrentRuns = 1
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Runner{
		factory:         factory,
		eventBufferSize: opts.EventBufferSize,
		maxModelCalls:   opts.MaxModelCalls,
		sem:             semaphore.NewWeighted(opts.MaxConcurrentRuns),
		sessionStore:    opts.SessionStore,
		proverbs:        opts.Proverbs,
		observer:        opts.Observer,
		logger:          opts.Logger,
		activeRuns:      make(map[string]context.CancelFunc),
	}
}

// SessionStore returns the store holding run history.
func (r *Runner) SessionStore() core.SessionStore { return r.sessionStore }

// Seed appends prior conversation turns to a session that has no history
// yet. Sessions with history are left untouched.
func (r *Runner) Seed(sessionID string, history []core.Content) error {
	if sessionID == "" {
		return ErrSessionIDRequired
	}

	sess, err := r.sessionStore.Get(sessionID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	if len(sess.GetEvents()) > 0 || len(history) == 0 {
		return nil
	}

	agentName := r.factory.NewAgent().Name()

	for _, c := range history {
		author := "user"
		if c.Role != "user" {
			author = agentName
		}

		ev := core.NewEvent("", author)
		content := c
		ev.Content = &content

		if err := r.sessionStore.AppendEvent(sessionID, ev); err != nil {
			return fmt.Errorf("failed to seed session: %w", err)
		}
	}

	return nil
}

// Run starts an asynchronous run. Events are delivered on the returned event
// channel, which is closed when the run ends; afterwards the error channel
// yields at most one error and is closed as well.
func (r *Runner) Run(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	if sessionID == "" {
		return "", nil, nil, ErrSessionIDRequired
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return "", nil, nil, fmt.Errorf("failed to acquire run slot: %w", err)
	}

	sess, err := r.sessionStore.Get(sessionID)
	if err != nil {
		r.sem.Release(1)
		return "", nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	runID := core.NewID()

	userEvent := core.NewUserContentEvent(runID, &userContent)
	if err := r.sessionStore.AppendEvent(sessionID, userEvent); err != nil {
		r.sem.Release(1)
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)
	agentEmit := make(chan core.Event, r.eventBufferSize)
	agentDone := make(chan error, 1)
	resumeCh := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	agent := r.factory.NewAgent()

	runCtx := core.NewRunContext(
		ctx,
		sessionID,
		runID,
		core.AgentInfo{Name: agent.Name(), Type: "model"},
		userContent,
		r.maxModelCalls,
		agentEmit,
		resumeCh,
		sess,
		r.sessionStore,
		r.proverbs,
		r.logger,
	)

	runCtx.LogInfo("runner.run.start", "agent", agent.Name())

	start := time.Now()

	go func() {
		defer close(agentEmit)
		agentDone <- r.runAgent(runCtx, agent)
	}()

	go func() {
		defer func() {
			cancel()
			r.mu.Lock()
			delete(r.activeRuns, runID)
			r.mu.Unlock()
			r.sem.Release(1)
			close(eventsCh)
			close(errorsCh)
		}()

		procErr := r.processEvents(runCtx, agentEmit, resumeCh, eventsCh)
		if procErr != nil {
			cancel()
		}

		// The agent exits once its context is done; drain so it never blocks.
		for range agentEmit {
		}

		runErr := procErr
		if agentErr := <-agentDone; runErr == nil && agentErr != nil {
			runErr = fmt.Errorf("agent execution failed: %w", agentErr)
		}

		status := StatusOK
		switch {
		case errors.Is(runErr, context.Canceled):
			status = StatusCancelled
		case runErr != nil:
			status = StatusError
		}

		if r.observer != nil {
			r.observer.ObserveRun(status, time.Since(start))
		}

		runCtx.LogInfo("runner.run.complete", "status", status, "duration_ms", time.Since(start).Milliseconds(), "model_calls", runCtx.Limiter.Count())

		if runErr != nil {
			errorsCh <- runErr
		}
	}()

	return runID, eventsCh, errorsCh, nil
}

// RunSync runs to completion and returns every delivered event.
func (r *Runner) RunSync(ctx context.Context, sessionID string, userContent core.Content) (string, []core.Event, error) {
	runID, eventsCh, errorsCh, err := r.Run(ctx, sessionID, userContent)
	if err != nil {
		return "", nil, err
	}

	var events []core.Event
	for ev := range eventsCh {
		events = append(events, ev)
	}

	return runID, events, <-errorsCh
}

// Cancel cancels a running run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.RLock()
	cancel, exists := r.activeRuns[runID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	cancel()

	return nil
}

// Active returns the number of runs in flight.
func (r *Runner) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.activeRuns)
}

func (r *Runner) runAgent(runCtx *core.RunContext, agent core.Agent) error {
	if err := agent.Start(runCtx); err != nil {
		return err
	}

	defer func() {
		if err := agent.Stop(runCtx); err != nil {
			runCtx.LogWarn("runner.agent.stop_failed", "agent", agent.Name(), "error", err)
		}
	}()

	return agent.Run(runCtx)
}

// processEvents persists and forwards agent events until the agent closes
// its channel or the run context is done. Each non-partial event releases the
// flow once it is stored.
func (r *Runner) processEvents(
	runCtx *core.RunContext,
	agentEmit <-chan core.Event,
	resumeCh chan<- struct{},
	eventsCh chan<- core.Event,
) error {
	for {
		select {
		case <-runCtx.Done():
			return nil
		case ev, ok := <-agentEmit:
			if !ok {
				return nil
			}

			if !ev.IsPartial() {
				if err := r.persist(runCtx.SessionID, ev); err != nil {
					return err
				}
			}

			select {
			case <-runCtx.Done():
				return nil
			case eventsCh <- ev:
				runCtx.LogDebug("runner.event.delivered", "event_id", ev.ID, "author", ev.Author)
			}

			if !ev.IsPartial() {
				select {
				case resumeCh <- struct{}{}:
				default:
				}
			}
		}
	}
}

func (r *Runner) persist(sessionID string, ev core.Event) error {
	if len(ev.Actions.StateDelta) > 0 {
		if err := r.sessionStore.ApplyDelta(sessionID, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("failed to apply state delta: %w", err)
		}
	}

	if err := r.sessionStore.AppendEvent(sessionID, ev); err != nil {
		return fmt.Errorf("failed to append event to session: %w", err)
	}

	return nil
}
