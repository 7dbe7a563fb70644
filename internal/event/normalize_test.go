package event

import (
	"strings"
	"testing"
)

type normalizeCase struct {
	name  string
	typ   Type
	raw   string
	check func(t *testing.T, ev *Event)
}

func TestNormalize(t *testing.T) {
	cases := []normalizeCase{
		{
			name: "pre tool use maps tool fields",
			typ:  PreToolUse,
			raw:  `{"session_id":"s1","tool_name":"Read","tool_input":{"file_path":"/x"}}`,
			check: func(t *testing.T, ev *Event) {
				if ev.EventType != PreToolUse {
					t.Fatalf("type = %s", ev.EventType)
				}
				if ev.SessionID != "s1" {
					t.Errorf("sessionId = %q", ev.SessionID)
				}
				if ev.ToolName != "Read" {
					t.Errorf("toolName = %q", ev.ToolName)
				}
				if ev.Arguments["file_path"] != "/x" {
					t.Errorf("arguments = %v", ev.Arguments)
				}
			},
		},
		{
			name: "post tool use maps result error and duration",
			typ:  PostToolUse,
			raw:  `{"session_id":"s1","tool_name":"Bash","tool_input":{"command":"ls"},"tool_response":{"stdout":"a"},"error":"boom","duration_ms":42}`,
			check: func(t *testing.T, ev *Event) {
				res, ok := ev.Result.(map[string]any)
				if !ok || res["stdout"] != "a" {
					t.Errorf("result = %v", ev.Result)
				}
				if ev.Error != "boom" {
					t.Errorf("error = %q", ev.Error)
				}
				if ev.DurationMs != 42 {
					t.Errorf("durationMs = %d", ev.DurationMs)
				}
			},
		},
		{
			name: "prompt submit",
			typ:  UserPromptSubmit,
			raw:  `{"session_id":"s2","prompt":"fix the bug"}`,
			check: func(t *testing.T, ev *Event) {
				if ev.Prompt != "fix the bug" {
					t.Errorf("prompt = %q", ev.Prompt)
				}
			},
		},
		{
			name: "session start trigger from source",
			typ:  SessionStart,
			raw:  `{"session_id":"s3","source":"startup"}`,
			check: func(t *testing.T, ev *Event) {
				if ev.Trigger != "startup" {
					t.Errorf("trigger = %q", ev.Trigger)
				}
			},
		},
		{
			name: "session end reason",
			typ:  SessionEnd,
			raw:  `{"session_id":"s3","reason":"exit"}`,
			check: func(t *testing.T, ev *Event) {
				if ev.Reason != "exit" {
					t.Errorf("reason = %q", ev.Reason)
				}
			},
		},
		{
			name: "notification message",
			typ:  Notification,
			raw:  `{"session_id":"s4","message":"waiting for input"}`,
			check: func(t *testing.T, ev *Event) {
				if ev.Message != "waiting for input" {
					t.Errorf("message = %q", ev.Message)
				}
			},
		},
		{
			name: "pre compact",
			typ:  PreCompact,
			raw:  `{"session_id":"s5","trigger":"auto","custom_instructions":"keep todos"}`,
			check: func(t *testing.T, ev *Event) {
				if ev.Trigger != "auto" || ev.Message != "keep todos" {
					t.Errorf("trigger = %q message = %q", ev.Trigger, ev.Message)
				}
			},
		},
		{
			name: "missing optional fields default empty",
			typ:  PreToolUse,
			raw:  `{"session_id":"s6"}`,
			check: func(t *testing.T, ev *Event) {
				if ev.ToolName != "" || ev.Arguments != nil || ev.Result != nil {
					t.Errorf("optional fields not empty: %+v", ev)
				}
			},
		},
		{
			name: "missing session id gets placeholder",
			typ:  Stop,
			raw:  `{}`,
			check: func(t *testing.T, ev *Event) {
				if ev.SessionID == "" {
					t.Error("sessionId is empty")
				}
				if !strings.HasPrefix(ev.SessionID, "session-") {
					t.Errorf("sessionId = %q, want generated placeholder", ev.SessionID)
				}
			},
		},
		{
			name: "missing timestamp defaults to now",
			typ:  Stop,
			raw:  `{"session_id":"s7"}`,
			check: func(t *testing.T, ev *Event) {
				if ev.Timestamp == "" {
					t.Error("timestamp is empty")
				}
			},
		},
		{
			name: "malformed input degrades to raw record",
			typ:  Notification,
			raw:  `not json at all`,
			check: func(t *testing.T, ev *Event) {
				if ev.Raw != "not json at all" {
					t.Errorf("raw = %q", ev.Raw)
				}
				if ev.SessionID == "" || ev.Timestamp == "" {
					t.Error("defaults not applied to raw record")
				}
			},
		},
		{
			name: "empty input",
			typ:  SubagentStop,
			raw:  ``,
			check: func(t *testing.T, ev *Event) {
				if ev.Raw != "" {
					t.Errorf("raw = %q, want empty", ev.Raw)
				}
				if ev.SessionID == "" {
					t.Error("sessionId is empty")
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.check(t, Normalize(tc.typ, []byte(tc.raw)))
		})
	}
}

func TestTypeRoutes(t *testing.T) {
	for _, typ := range Types() {
		route := typ.Route()
		if route == "" {
			t.Fatalf("type %s has no route", typ)
		}
		back, ok := TypeForRoute(route)
		if !ok || back != typ {
			t.Errorf("route %q resolves to %q, want %q", route, back, typ)
		}
		if got, ok := ParseType(string(typ)); !ok || got != typ {
			t.Errorf("ParseType(%q) = %q, %v", typ, got, ok)
		}
	}
	if _, ok := ParseType("NotAThing"); ok {
		t.Error("ParseType accepted an unknown type")
	}
}
