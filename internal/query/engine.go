// Package query answers filtered, paginated and aggregated reads over the
// day-partitioned event log. Everything is computed fresh from the raw
// partitions on each call; there is no persisted index.
package query

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/cagehq/cage/internal/event"
	"github.com/cagehq/cage/internal/store"
)

// Params selects and shapes a query result set.
type Params struct {
	From       time.Time
	To         time.Time
	Types      []event.Type
	SessionIDs []string
	Limit      int
	Offset     int
	SortBy     string // timestamp (default), eventType, sessionId, toolName
	SortOrder  string // asc or desc (default desc)
}

// Result is a page of events plus the full filtered count.
type Result struct {
	Events []*event.Event `json:"events"`
	Total  int            `json:"total"`
}

const defaultLimit = 100

// Engine reads partitions through the store. Queries may race ongoing
// appends; the store's defensive read makes that a best-effort snapshot.
type Engine struct {
	store *store.Store
}

func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Query returns the filtered events sorted and sliced per p. Total is
// counted before pagination.
func (e *Engine) Query(p Params) (*Result, error) {
	events, err := e.collect(p)
	if err != nil {
		return nil, err
	}

	sortEvents(events, p.SortBy, p.SortOrder)

	total := len(events)
	limit := p.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	start := p.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	page := events[start:end]
	if page == nil {
		page = []*event.Event{}
	}
	return &Result{Events: page, Total: total}, nil
}

// collect reads every partition overlapping [From, To] and applies the
// type and session filters. Lines that fail to parse are skipped, not
// fatal, since a reader can race the writer.
func (e *Engine) collect(p Params) ([]*event.Event, error) {
	dates, err := e.store.PartitionDates(p.From, p.To)
	if err != nil {
		return nil, err
	}

	typeSet := make(map[event.Type]bool, len(p.Types))
	for _, t := range p.Types {
		typeSet[t] = true
	}
	sessionSet := make(map[string]bool, len(p.SessionIDs))
	for _, s := range p.SessionIDs {
		sessionSet[s] = true
	}

	var events []*event.Event
	for _, date := range dates {
		lines, err := e.store.ReadPartition(date)
		if err != nil {
			return nil, err
		}
		for _, line := range lines {
			var ev event.Event
			if err := json.Unmarshal(line, &ev); err != nil {
				continue
			}
			if len(typeSet) > 0 && !typeSet[ev.EventType] {
				continue
			}
			if len(sessionSet) > 0 && !sessionSet[ev.SessionID] {
				continue
			}
			events = append(events, &ev)
		}
	}
	return events, nil
}

func sortEvents(events []*event.Event, by, order string) {
	key := func(ev *event.Event) string {
		switch by {
		case "eventType":
			return string(ev.EventType)
		case "sessionId":
			return ev.SessionID
		case "toolName":
			return ev.ToolName
		default:
			// ISO-8601 strings sort chronologically.
			return ev.Timestamp
		}
	}
	asc := order == "asc"
	sort.SliceStable(events, func(i, j int) bool {
		if asc {
			return key(events[i]) < key(events[j])
		}
		return key(events[i]) > key(events[j])
	})
}
