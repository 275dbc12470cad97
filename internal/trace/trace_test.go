package trace

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

func testEvent(name string) *Event {
	return &Event{
		Time:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Kind:   KindPoint,
		Scope:  ScopeTask,
		TaskID: 7,
		Name:   name,
	}
}

func TestLevelShouldEmit(t *testing.T) {
	if LevelOff.ShouldEmit(ScopeProcessor) {
		t.Error("LevelOff must emit nothing")
	}
	if !LevelProcessor.ShouldEmit(ScopeProcessor) || LevelProcessor.ShouldEmit(ScopeTask) {
		t.Error("LevelProcessor must emit processor scope only")
	}
	if !LevelTask.ShouldEmit(ScopeTask) || LevelTask.ShouldEmit(ScopeSwitch) {
		t.Error("LevelTask must stop at task scope")
	}
	if !LevelDebug.ShouldEmit(ScopeSwitch) {
		t.Error("LevelDebug must emit everything")
	}
}

func TestStreamTracerNDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDebug, FormatNDJSON)
	tr.Emit(testEvent("queued"))
	tr.Emit(testEvent("running"))
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	var decoded wireEvent
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("invalid NDJSON: %v", err)
	}
	if decoded.Name != "queued" || decoded.TaskID != 7 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestStreamTracerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelProcessor, FormatNDJSON)
	tr.Emit(testEvent("suspended")) // ScopeTask: filtered out
	if buf.Len() != 0 {
		t.Fatalf("task-scope event leaked at processor level: %q", buf.String())
	}
}

func TestRingTracerKeepsLastEvents(t *testing.T) {
	tr := NewRingTracer(4, LevelDebug)
	for i := 0; i < 10; i++ {
		tr.Emit(testEvent("e"))
	}
	events := tr.Snapshot()
	if len(events) != 4 {
		t.Fatalf("snapshot has %d events, want 4", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].Seq <= events[i-1].Seq {
			t.Fatal("snapshot must be in chronological order")
		}
	}
}

func TestMsgpackFormatRoundTrips(t *testing.T) {
	data := FormatEvent(testEvent("completed"), FormatMsgpack)
	var decoded wireEvent
	if err := msgpack.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("msgpack: %v", err)
	}
	if decoded.Name != "completed" || decoded.Scope != "task" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestMultiTracerFansOut(t *testing.T) {
	var buf bytes.Buffer
	stream := NewStreamTracer(&buf, LevelDebug, FormatText)
	ring := NewRingTracer(8, LevelDebug)
	multi := NewMultiTracer(LevelDebug, stream, ring)

	multi.Emit(testEvent("cancelled"))
	if buf.Len() == 0 {
		t.Error("stream tracer received nothing")
	}
	if len(ring.Snapshot()) != 1 {
		t.Error("ring tracer received nothing")
	}
}

func TestParseHelpers(t *testing.T) {
	if _, err := ParseLevel("bogus"); err == nil {
		t.Error("ParseLevel must reject unknown levels")
	}
	if _, err := ParseFormat("bogus"); err == nil {
		t.Error("ParseFormat must reject unknown formats")
	}
	if _, err := ParseMode("bogus"); err == nil {
		t.Error("ParseMode must reject unknown modes")
	}
	if level, err := ParseLevel("debug"); err != nil || level != LevelDebug {
		t.Errorf("ParseLevel(debug) = %v, %v", level, err)
	}
}
