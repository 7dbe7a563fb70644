package event

// Type identifies a hook lifecycle event. The set is closed: every event
// persisted by the store carries one of these values.
type Type string

const (
	PreToolUse       Type = "PreToolUse"
	PostToolUse      Type = "PostToolUse"
	UserPromptSubmit Type = "UserPromptSubmit"
	SessionStart     Type = "SessionStart"
	SessionEnd       Type = "SessionEnd"
	Notification     Type = "Notification"
	PreCompact       Type = "PreCompact"
	Stop             Type = "Stop"
	SubagentStop     Type = "SubagentStop"
)

// routes maps each type to its kebab-cased HTTP route segment.
var routes = map[Type]string{
	PreToolUse:       "pre-tool-use",
	PostToolUse:      "post-tool-use",
	UserPromptSubmit: "user-prompt-submit",
	SessionStart:     "session-start",
	SessionEnd:       "session-end",
	Notification:     "notification",
	PreCompact:       "pre-compact",
	Stop:             "stop",
	SubagentStop:     "subagent-stop",
}

var byRoute = func() map[string]Type {
	m := make(map[string]Type, len(routes))
	for t, r := range routes {
		m[r] = t
	}
	return m
}()

// Valid reports whether t belongs to the closed event-type set.
func (t Type) Valid() bool {
	_, ok := routes[t]
	return ok
}

// Route returns the kebab-cased route segment for t ("" if unknown).
func (t Type) Route() string {
	return routes[t]
}

// IsToolEvent reports whether t relates to a tool invocation. Only tool
// events participate in guard-rule evaluation and the block/output/warning
// response extension.
func (t Type) IsToolEvent() bool {
	return t == PreToolUse || t == PostToolUse
}

// TypeForRoute resolves a kebab-cased route segment back to its type.
func TypeForRoute(route string) (Type, bool) {
	t, ok := byRoute[route]
	return t, ok
}

// ParseType accepts either the canonical name ("PreToolUse") or the route
// form ("pre-tool-use").
func ParseType(s string) (Type, bool) {
	if Type(s).Valid() {
		return Type(s), true
	}
	return TypeForRoute(s)
}

// Types returns the closed set in a stable order.
func Types() []Type {
	return []Type{
		PreToolUse, PostToolUse, UserPromptSubmit,
		SessionStart, SessionEnd, Notification,
		PreCompact, Stop, SubagentStop,
	}
}

// Event is the canonical record for all captured hook events. One Event
// serializes to exactly one JSONL line in a day partition; fields beyond
// the common four are type-specific and omitted when empty.
type Event struct {
	ID        string `json:"id,omitempty"`
	Timestamp string `json:"timestamp"`
	EventType Type   `json:"eventType"`
	SessionID string `json:"sessionId"`

	ToolName   string         `json:"toolName,omitempty"`
	Arguments  map[string]any `json:"arguments,omitempty"`
	Result     any            `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"durationMs,omitempty"`

	Prompt  string `json:"prompt,omitempty"`
	Message string `json:"message,omitempty"`
	Trigger string `json:"trigger,omitempty"`
	Reason  string `json:"reason,omitempty"`

	CWD         string `json:"cwd,omitempty"`
	ProjectPath string `json:"projectPath,omitempty"`

	// Raw carries the original input when it could not be parsed as a
	// structured payload at all.
	Raw string `json:"raw,omitempty"`
}
