package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/cagehq/cage/internal/event"
)

// Property: for any batch of events, whatever the payload content,
// append-then-read yields the same events in order with no field loss.
// JSON marshaling keeps each record on one line, so embedded newlines and
// control characters in field values must survive the round trip.
func TestProperty_AppendReadRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	properties.Property("events survive append/read unchanged and in order", prop.ForAll(
		func(sessions []string, tools []string) bool {
			n := len(sessions)
			if len(tools) < n {
				n = len(tools)
			}
			if n == 0 {
				return true
			}

			s := New(t.TempDir())
			in := make([]*event.Event, 0, n)
			for i := 0; i < n; i++ {
				ev := &event.Event{
					ID:        string(rune('a'+i%26)) + sessions[i],
					Timestamp: at.Format(time.RFC3339),
					EventType: event.PreToolUse,
					SessionID: sessions[i],
					ToolName:  tools[i],
					Error:     sessions[i] + "\nwith newline",
				}
				if err := s.Append(ev, at); err != nil {
					return false
				}
				in = append(in, ev)
			}

			lines, err := s.ReadPartition(at.Format(DateLayout))
			if err != nil || len(lines) != n {
				return false
			}
			for i, line := range lines {
				var out event.Event
				if err := json.Unmarshal(line, &out); err != nil {
					return false
				}
				if out.ID != in[i].ID || out.SessionID != in[i].SessionID ||
					out.ToolName != in[i].ToolName || out.Error != in[i].Error {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AnyString()),
		gen.SliceOf(gen.AnyString()),
	))

	properties.TestingRun(t)
}
