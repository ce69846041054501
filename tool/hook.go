package tool

import (
	"context"
	"time"

	"github.com/hupe1980/proverbs/logging"
)

// CallRecord describes one dispatched tool call as seen by hooks. BeforeCall
// receives Name, CallID, RunID, SessionID, RawArgs and Start. AfterCall
// additionally sees Args (when decoding succeeded), Result, Err and Duration.
type CallRecord struct {
	Name      string
	CallID    string
	RunID     string
	SessionID string
	RawArgs   string
	Args      map[string]any
	Result    any
	Err       error
	Start     time.Time
	Duration  time.Duration

	// Logger is the run scoped logger of the calling ToolContext.
	Logger logging.Logger
}

// Code returns the error code of the call or "" on success.
func (r *CallRecord) Code() string { return Code(r.Err) }

// Status returns "ok" or "error" for metric labels.
func (r *CallRecord) Status() string {
	if r.Err != nil {
		return "error"
	}
	return "ok"
}

// Hook observes tool calls dispatched through a Catalog. Hooks must not
// modify the record's Args or Result.
type Hook interface {
	BeforeCall(ctx context.Context, rec *CallRecord)
	AfterCall(ctx context.Context, rec *CallRecord)
}

// Hooks fans a call out to several hooks in order.
type Hooks []Hook

// BeforeCall implements Hook.
func (hs Hooks) BeforeCall(ctx context.Context, rec *CallRecord) {
	for _, h := range hs {
		h.BeforeCall(ctx, rec)
	}
}

// AfterCall implements Hook. Hooks run in reverse registration order so the
// first hook wraps the others.
func (hs Hooks) AfterCall(ctx context.Context, rec *CallRecord) {
	for i := len(hs) - 1; i >= 0; i-- {
		hs[i].AfterCall(ctx, rec)
	}
}

// LoggingHook writes tool.call.* lines. With a nil Logger it uses the run
// scoped logger carried by the record.
type LoggingHook struct {
	Logger logging.Logger
}

// NewLoggingHook returns a LoggingHook bound to logger.
func NewLoggingHook(logger logging.Logger) *LoggingHook {
	return &LoggingHook{Logger: logger}
}

func (h *LoggingHook) logger(rec *CallRecord) logging.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	if rec.Logger != nil {
		return rec.Logger
	}
	return logging.NoOpLogger{}
}

// BeforeCall implements Hook.
func (h *LoggingHook) BeforeCall(_ context.Context, rec *CallRecord) {
	h.logger(rec).Debug("tool.call.start", "tool", rec.Name, "fc_id", rec.CallID, "run_id", rec.RunID)
}

// AfterCall implements Hook.
func (h *LoggingHook) AfterCall(_ context.Context, rec *CallRecord) {
	l := h.logger(rec)
	if rec.Err != nil {
		l.Warn("tool.call.error",
			"tool", rec.Name,
			"fc_id", rec.CallID,
			"run_id", rec.RunID,
			"code", rec.Code(),
			"error", rec.Err.Error(),
			"duration_ms", rec.Duration.Milliseconds(),
		)
		return
	}
	l.Info("tool.call.success",
		"tool", rec.Name,
		"fc_id", rec.CallID,
		"run_id", rec.RunID,
		"duration_ms", rec.Duration.Milliseconds(),
	)
}
