package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cagehq/cage/internal/event"
	"github.com/cagehq/cage/internal/query"
	"github.com/cagehq/cage/internal/store"
)

// parseQueryParams maps the /events and /stats query string onto
// query.Params. Dates accept either a bare partition date or RFC 3339.
func parseQueryParams(r *http.Request) (query.Params, error) {
	var p query.Params
	q := r.URL.Query()

	for _, s := range q["session"] {
		p.SessionIDs = append(p.SessionIDs, s)
	}
	for _, s := range q["type"] {
		t, ok := event.ParseType(s)
		if !ok {
			return p, fmt.Errorf("unknown event type %q", s)
		}
		p.Types = append(p.Types, t)
	}

	var err error
	if p.From, err = parseDate(q.Get("from")); err != nil {
		return p, fmt.Errorf("bad from date: %w", err)
	}
	if p.To, err = parseDate(q.Get("to")); err != nil {
		return p, fmt.Errorf("bad to date: %w", err)
	}

	if v := q.Get("limit"); v != "" {
		if p.Limit, err = strconv.Atoi(v); err != nil || p.Limit < 0 {
			return p, fmt.Errorf("bad limit %q", v)
		}
	}
	if v := q.Get("offset"); v != "" {
		if p.Offset, err = strconv.Atoi(v); err != nil || p.Offset < 0 {
			return p, fmt.Errorf("bad offset %q", v)
		}
	}

	switch v := q.Get("sortBy"); v {
	case "", "timestamp", "eventType", "sessionId", "toolName":
		p.SortBy = v
	default:
		return p, fmt.Errorf("bad sortBy %q", v)
	}
	switch v := q.Get("order"); v {
	case "", "asc", "desc":
		p.SortOrder = v
	default:
		return p, fmt.Errorf("bad order %q", v)
	}

	return p, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(store.DateLayout, s, time.UTC); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
