package events

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	handler := LogHandler(LogConfig{Writer: &buf})

	handler(NewEvent(PatchApplied, "Play.lean").WithIteration(1))

	got := buf.String()
	if !strings.Contains(got, "[patch.applied]") {
		t.Errorf("expected event type in output, got %q", got)
	}
	if !strings.Contains(got, "Play.lean") {
		t.Errorf("expected session in output, got %q", got)
	}
	if !strings.Contains(got, "iter=1") {
		t.Errorf("expected iteration in output, got %q", got)
	}
}

func TestLogHandler_IncludesError(t *testing.T) {
	var buf bytes.Buffer
	handler := LogHandler(LogConfig{Writer: &buf})

	e := NewEvent(SessionFailed, "Play.lean")
	e.Error = "stale patch"
	handler(e)

	if !strings.Contains(buf.String(), `error="stale patch"`) {
		t.Errorf("expected error in output, got %q", buf.String())
	}
}

func TestJSONEmitter_WritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewJSONEmitter(&buf)

	bus := NewBus()
	bus.Subscribe(JSONEmitterHandler(emitter))

	bus.Emit(NewEvent(CompileFailed, "Play.lean").WithIteration(0).WithPayload(map[string]interface{}{
		"errors": 2,
	}))

	var je JSONEvent
	if err := json.Unmarshal(buf.Bytes(), &je); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if je.Type != "compile.failed" {
		t.Errorf("expected type compile.failed, got %q", je.Type)
	}
	if je.Session != "Play.lean" {
		t.Errorf("expected session Play.lean, got %q", je.Session)
	}
	if je.Iteration == nil || *je.Iteration != 0 {
		t.Error("expected iteration 0")
	}
	if je.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestToJSONEvent_MarksFailures(t *testing.T) {
	tests := []struct {
		evtType EventType
		failure bool
	}{
		{CompileFailed, true},
		{SessionFailed, true},
		{PatchRejected, true},
		{InnovateRejected, true},
		{CompileOK, false},
		{PatchApplied, false},
		{SessionFixed, false},
	}

	for _, tt := range tests {
		je := ToJSONEvent(NewEvent(tt.evtType, "Play.lean"))
		if je.Failure != tt.failure {
			t.Errorf("%s: expected failure=%v, got %v", tt.evtType, tt.failure, je.Failure)
		}
	}
}

func TestToJSONEvent_WrapsScalarPayload(t *testing.T) {
	e := NewEvent(SnapshotWritten, "Play.lean").WithPayload("iter001_det")

	je := ToJSONEvent(e)
	if je.Payload["value"] != "iter001_det" {
		t.Errorf("expected scalar payload under value key, got %v", je.Payload)
	}
}
