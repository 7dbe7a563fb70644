package event

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// mapping declares which upstream payload keys feed each canonical field
// for one event type. An empty key means the field does not apply.
type mapping struct {
	toolName  string
	arguments string
	result    string
	errField  string
	duration  string
	prompt    string
	message   string
	trigger   string
	reason    string
}

// mappings is the per-type field translation table. The tool fields follow
// the current upstream names (tool_name / tool_input / tool_response).
var mappings = map[Type]mapping{
	PreToolUse:       {toolName: "tool_name", arguments: "tool_input"},
	PostToolUse:      {toolName: "tool_name", arguments: "tool_input", result: "tool_response", errField: "error", duration: "duration_ms"},
	UserPromptSubmit: {prompt: "prompt"},
	SessionStart:     {trigger: "source"},
	SessionEnd:       {reason: "reason"},
	Notification:     {message: "message"},
	PreCompact:       {trigger: "trigger", message: "custom_instructions"},
	Stop:             {},
	SubagentStop:     {},
}

// Normalize converts a raw upstream payload into the canonical record for
// the given type. The type tag always comes from the caller, never from
// the payload. Normalize never fails: input that cannot be parsed as a
// JSON object degrades to a raw-text record, and missing optional fields
// stay empty.
func Normalize(typ Type, raw []byte) *Event {
	ev := &Event{EventType: typ}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		if s := strings.TrimSpace(string(raw)); s != "" {
			ev.Raw = s
		}
		ev.ApplyDefaults()
		return ev
	}

	ev.SessionID = stringField(payload, "session_id")
	ev.Timestamp = stringField(payload, "timestamp")
	ev.CWD = stringField(payload, "cwd")

	m := mappings[typ]
	if m.toolName != "" {
		ev.ToolName = stringField(payload, m.toolName)
	}
	if m.arguments != "" {
		if args, ok := payload[m.arguments].(map[string]any); ok {
			ev.Arguments = args
		}
	}
	if m.result != "" {
		if v, ok := payload[m.result]; ok {
			ev.Result = v
		}
	}
	if m.errField != "" {
		ev.Error = stringField(payload, m.errField)
	}
	if m.duration != "" {
		ev.DurationMs = int64Field(payload, m.duration)
	}
	if m.prompt != "" {
		ev.Prompt = stringField(payload, m.prompt)
	}
	if m.message != "" {
		ev.Message = stringField(payload, m.message)
	}
	if m.trigger != "" {
		ev.Trigger = stringField(payload, m.trigger)
	}
	if m.reason != "" {
		ev.Reason = stringField(payload, m.reason)
	}

	ev.ApplyDefaults()
	return ev
}

// ApplyDefaults fills the fields every persisted event must carry: a
// non-empty session identifier and a timestamp. Safe to call more than
// once; set fields are left alone.
func (e *Event) ApplyDefaults() {
	if e.SessionID == "" {
		e.SessionID = GeneratedSessionID()
	}
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
}

// GeneratedSessionID returns a placeholder session token for payloads that
// arrived without one.
func GeneratedSessionID() string {
	return "session-" + uuid.New().String()
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func int64Field(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	}
	return 0
}
