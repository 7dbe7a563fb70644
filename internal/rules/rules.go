// Package rules evaluates declarative guards against tool-invocation
// events. A matching guard maps onto the block/output/warning extension of
// the ingestion response.
package rules

import (
	"fmt"
	"path"

	"github.com/cagehq/cage/internal/event"
	"github.com/cagehq/cage/internal/metrics"
)

// Guard actions.
const (
	ActionBlock  = "block"
	ActionWarn   = "warn"
	ActionInject = "inject"
)

// Rule is one declarative guard as written in the config file.
type Rule struct {
	ID          string   `yaml:"id"`
	Description string   `yaml:"description"`
	EventTypes  []string `yaml:"event_types"` // empty = both tool event types
	ToolPattern string   `yaml:"tool_pattern"`
	Action      string   `yaml:"action"` // block, warn or inject
	Message     string   `yaml:"message"`
}

type compiled struct {
	rule  Rule
	types map[event.Type]bool // nil = any tool event
}

// Set is a compiled, immutable rule set. The server swaps whole sets
// atomically on config reload.
type Set struct {
	rules []compiled
}

// Decision is the outcome of evaluating every matching guard. Block wins
// over everything else; warnings and injected output accumulate.
type Decision struct {
	Block   bool
	Message string
	Output  string
	Warning string
}

// Compile validates and compiles the configured rules.
func Compile(rs []Rule) (*Set, error) {
	set := &Set{}
	for i, r := range rs {
		if r.ID == "" {
			return nil, fmt.Errorf("rule %d: id is required", i)
		}
		switch r.Action {
		case ActionBlock, ActionWarn, ActionInject:
		default:
			return nil, fmt.Errorf("rule %s: unknown action %q", r.ID, r.Action)
		}
		if r.ToolPattern != "" {
			if _, err := path.Match(r.ToolPattern, ""); err != nil {
				return nil, fmt.Errorf("rule %s: bad tool_pattern %q: %w", r.ID, r.ToolPattern, err)
			}
		}
		c := compiled{rule: r}
		if len(r.EventTypes) > 0 {
			c.types = make(map[event.Type]bool, len(r.EventTypes))
			for _, s := range r.EventTypes {
				t, ok := event.ParseType(s)
				if !ok || !t.IsToolEvent() {
					return nil, fmt.Errorf("rule %s: %q is not a tool event type", r.ID, s)
				}
				c.types[t] = true
			}
		}
		set.rules = append(set.rules, c)
	}
	return set, nil
}

// Len returns the number of compiled rules.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Evaluate runs every guard against ev. Non-tool events never match.
func (s *Set) Evaluate(ev *event.Event) Decision {
	var d Decision
	if s == nil || !ev.EventType.IsToolEvent() {
		return d
	}
	for _, c := range s.rules {
		if c.types != nil && !c.types[ev.EventType] {
			continue
		}
		if c.rule.ToolPattern != "" {
			ok, _ := path.Match(c.rule.ToolPattern, ev.ToolName)
			if !ok {
				continue
			}
		}
		metrics.RulesMatched.WithLabelValues(c.rule.ID, c.rule.Action).Inc()
		switch c.rule.Action {
		case ActionBlock:
			if !d.Block {
				d.Block = true
				d.Message = c.rule.Message
			}
		case ActionWarn:
			d.Warning = joinLines(d.Warning, c.rule.Message)
		case ActionInject:
			d.Output = joinLines(d.Output, c.rule.Message)
		}
	}
	return d
}

func joinLines(existing, next string) string {
	if existing == "" {
		return next
	}
	return existing + "\n" + next
}
