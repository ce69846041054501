package server

import (
	"encoding/json"

	"github.com/hupe1980/proverbs/core"
)

// Message is one prior conversation turn supplied by the client.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RunRequest is the body of POST /api/run and the first frame of /api/run/ws.
type RunRequest struct {
	SessionID string    `json:"session_id,omitempty"`
	Messages  []Message `json:"messages,omitempty"`
	Input     string    `json:"input"`
}

// ToolCall pairs a model requested call with its outcome.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Output    any             `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// RunResult is the outcome of one run.
type RunResult struct {
	RunID     string              `json:"run_id"`
	SessionID string              `json:"session_id"`
	Reply     string              `json:"reply"`
	ToolCalls []ToolCall          `json:"tool_calls"`
	State     *core.StateSnapshot `json:"state,omitempty"`
}

// ErrorResponse is the body of a failed request. Result carries what a run
// produced before it failed.
type ErrorResponse struct {
	Error  string     `json:"error"`
	Result *RunResult `json:"result,omitempty"`
}

// EventFrame is the client facing projection of a core.Event.
type EventFrame struct {
	ID                string                  `json:"id"`
	Author            string                  `json:"author"`
	Partial           bool                    `json:"partial,omitempty"`
	Text              string                  `json:"text,omitempty"`
	FunctionCalls     []core.FunctionCall     `json:"function_calls,omitempty"`
	FunctionResponses []core.FunctionResponse `json:"function_responses,omitempty"`
	ErrorCode         string                  `json:"error_code,omitempty"`
	ErrorMessage      string                  `json:"error_message,omitempty"`
	State             *core.StateSnapshot     `json:"state,omitempty"`
}

// Frame is a message written to a WebSocket client.
type Frame struct {
	Type   string      `json:"type"`
	Event  *EventFrame `json:"event,omitempty"`
	Result *RunResult  `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Frame types.
const (
	FrameEvent  = "event"
	FrameResult = "result"
	FrameError  = "error"
)

func toEventFrame(ev core.Event) *EventFrame {
	f := &EventFrame{
		ID:                ev.ID,
		Author:            ev.Author,
		Partial:           ev.IsPartial(),
		Text:              ev.Text(),
		FunctionCalls:     ev.GetFunctionCalls(),
		FunctionResponses: ev.GetFunctionResponses(),
	}

	if ev.ErrorCode != nil {
		f.ErrorCode = *ev.ErrorCode
	}
	if ev.ErrorMessage != nil {
		f.ErrorMessage = *ev.ErrorMessage
	}
	if snap, ok := ev.ProverbSnapshot(); ok {
		f.State = &snap
	}

	return f
}

// resultBuilder folds the events of a run into a RunResult.
type resultBuilder struct {
	result RunResult
	index  map[string]int
}

func newResultBuilder(sessionID string) *resultBuilder {
	return &resultBuilder{
		result: RunResult{SessionID: sessionID, ToolCalls: []ToolCall{}},
		index:  make(map[string]int),
	}
}

func (b *resultBuilder) add(ev core.Event) {
	if ev.IsPartial() || ev.IsError() {
		return
	}

	if b.result.RunID == "" {
		b.result.RunID = ev.InvocationID
	}

	for _, fc := range ev.GetFunctionCalls() {
		call := ToolCall{ID: fc.ID, Name: fc.Name}
		if fc.Arguments != "" && json.Valid([]byte(fc.Arguments)) {
			call.Arguments = json.RawMessage(fc.Arguments)
		}
		b.index[fc.ID] = len(b.result.ToolCalls)
		b.result.ToolCalls = append(b.result.ToolCalls, call)
	}

	responses := ev.GetFunctionResponses()
	for _, fr := range responses {
		i, ok := b.index[fr.ID]
		if !ok {
			i = len(b.result.ToolCalls)
			b.index[fr.ID] = i
			b.result.ToolCalls = append(b.result.ToolCalls, ToolCall{ID: fr.ID, Name: fr.Name})
		}
		b.result.ToolCalls[i].Output = fr.Response
		b.result.ToolCalls[i].Error = fr.Error
	}

	// Mutations publish their snapshot on the function response event.
	if snap, ok := ev.ProverbSnapshot(); ok {
		b.result.State = &snap
	}

	if len(responses) == 0 && ev.Author != "user" {
		if text := ev.Text(); text != "" {
			b.result.Reply = text
		}
	}
}

func (b *resultBuilder) build(runID string) RunResult {
	b.result.RunID = runID
	return b.result
}
