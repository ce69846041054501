package core

import (
	"errors"
	"testing"
)

func TestEvent_ConstructorsAndMethods(t *testing.T) {
	e := NewEvent("inv-123", "authorA")
	if e.Author != "authorA" || e.InvocationID != "inv-123" || e.ID == "" || e.Timestamp.IsZero() {
		t.Fatalf("NewEvent did not initialize fields correctly: %+v", e)
	}

	msg := NewMessageEvent("inv-123", "agent1", "hello world")
	if msg.Content == nil || msg.Content.Role != "assistant" || msg.Text() != "hello world" {
		t.Fatalf("NewMessageEvent malformed: %+v", msg)
	}

	user := NewUserMessageEvent("inv-123", "hi")
	if user.Content == nil || user.Content.Role != "user" || user.Author != "user" {
		t.Fatalf("NewUserMessageEvent malformed: %+v", user)
	}

	fCall := NewFunctionCallEvent("inv-123", "agent2", FunctionCall{ID: "c1", Name: "get_proverbs", Arguments: "{}"})
	calls := fCall.GetFunctionCalls()
	if len(calls) != 1 || calls[0].Name != "get_proverbs" || calls[0].Arguments != "{}" {
		t.Fatalf("GetFunctionCalls extraction failed: %+v", calls)
	}

	fRespOK := NewFunctionResponseEvent("inv-123", "agent2", "call-1", "get_proverbs", 42, nil)
	resps := fRespOK.GetFunctionResponses()
	if len(resps) != 1 || resps[0].Response.(int) != 42 || resps[0].Error != "" {
		t.Fatalf("Function response success extraction failed: %+v", resps)
	}

	fRespErr := NewFunctionResponseEvent("inv-123", "agent2", "call-2", "get_weather", nil, errors.New("boom"))
	if fRespErr.GetFunctionResponses()[0].Error != "boom" {
		t.Fatalf("Expected error message in function response: %+v", fRespErr.GetFunctionResponses()[0])
	}

	errEv := NewErrorEvent("inv-123", "MODEL_ERROR", errors.New("down"))
	if !errEv.IsError() || *errEv.ErrorCode != "MODEL_ERROR" {
		t.Fatalf("NewErrorEvent malformed: %+v", errEv)
	}
}

func TestEvent_IsFinalResponseLogic(t *testing.T) {
	if !NewEvent("inv", "authorA").IsFinalResponse() {
		t.Error("Expected basic event to be final")
	}

	partial := true
	e2 := NewEvent("inv", "agent")
	e2.Partial = &partial
	if e2.IsFinalResponse() {
		t.Error("Partial event should not be final")
	}

	if NewFunctionCallEvent("inv", "agent", FunctionCall{Name: "f"}).IsFinalResponse() {
		t.Error("Event with function call should not be final")
	}

	if NewFunctionResponseEvent("inv", "agent", "call-3", "f", "ok", nil).IsFinalResponse() {
		t.Error("Event with function response should not be final")
	}

	skip := true
	e5 := NewFunctionResponseEvent("inv", "agent", "call-4", "f", "ok", nil)
	e5.Actions.SkipSummarization = &skip
	if !e5.IsFinalResponse() {
		t.Error("SkipSummarization should force final")
	}
}

func TestEvent_ProverbSnapshot(t *testing.T) {
	ev := NewEvent("inv", "agent")
	if _, ok := ev.ProverbSnapshot(); ok {
		t.Fatal("event without delta has no snapshot")
	}

	src := []string{"a", "b"}
	ev.Actions.StateDelta = map[string]any{StateKeyProverbs: src}
	snap, ok := ev.ProverbSnapshot()
	if !ok || snap.Len() != 2 {
		t.Fatalf("expected snapshot, got %+v", snap)
	}
	src[0] = "mutated"
	if snap.Proverbs[0] != "a" {
		t.Fatal("snapshot must be detached from the delta slice")
	}

	ev.Actions.StateDelta = map[string]any{StateKeyProverbs: []any{"x", "y"}}
	if snap, ok := ev.ProverbSnapshot(); !ok || snap.Proverbs[1] != "y" {
		t.Fatalf("decoded JSON list should convert: %+v", snap)
	}

	ev.Actions.StateDelta = map[string]any{StateKeyProverbs: []any{"x", 1}}
	if _, ok := ev.ProverbSnapshot(); ok {
		t.Fatal("non-string entries must be rejected")
	}
}

func TestEvent_IDUniqueness(t *testing.T) {
	if NewID() == NewID() {
		t.Error("Expected unique IDs")
	}
}

func TestParts_DiscriminatedUnion(t *testing.T) {
	parts := []Part{
		TextPart{Text: "hello"},
		DataPart{Data: map[string]any{"k": "v"}},
		FunctionCallPart{FunctionCall: FunctionCall{Name: "f"}},
		FunctionResponsePart{FunctionResponse: FunctionResponse{Name: "f"}},
	}
	for _, p := range parts {
		switch pt := p.(type) {
		case TextPart, DataPart, FunctionCallPart, FunctionResponsePart:
		default:
			t.Fatalf("Unexpected part type: %T (%v)", pt, pt)
		}
	}
}
