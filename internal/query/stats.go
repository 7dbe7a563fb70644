package query

import "time"

// ToolStats aggregates usage of a single tool.
type ToolStats struct {
	Count         int     `json:"count"`
	AvgDurationMs float64 `json:"avgDurationMs"`

	totalDurationMs int64
	timedCount      int
}

// Stats is the aggregate view over a filtered event set.
type Stats struct {
	TotalEvents      int                   `json:"totalEvents"`
	ByType           map[string]int        `json:"byType"`
	ByHour           [24]int               `json:"byHour"`
	Tools            map[string]*ToolStats `json:"tools"`
	FastestTool      string                `json:"fastestTool,omitempty"`
	SlowestTool      string                `json:"slowestTool,omitempty"`
	ErrorRate        float64               `json:"errorRate"`
	UniqueSessions   int                   `json:"uniqueSessions"`
	EventsPerSession float64               `json:"eventsPerSession"`
}

// Stats aggregates the same filtered set a Query with p would see:
// per-type counts, hour-of-day distribution, per-tool usage with mean
// execution time, error rate, and session-level aggregates.
func (e *Engine) Stats(p Params) (*Stats, error) {
	events, err := e.collect(p)
	if err != nil {
		return nil, err
	}

	st := &Stats{
		TotalEvents: len(events),
		ByType:      make(map[string]int),
		Tools:       make(map[string]*ToolStats),
	}

	sessions := make(map[string]bool)
	errored := 0
	for _, ev := range events {
		st.ByType[string(ev.EventType)]++
		sessions[ev.SessionID] = true
		if ev.Error != "" {
			errored++
		}
		if ts, err := time.Parse(time.RFC3339, ev.Timestamp); err == nil {
			st.ByHour[ts.UTC().Hour()]++
		}
		if ev.ToolName != "" {
			ts := st.Tools[ev.ToolName]
			if ts == nil {
				ts = &ToolStats{}
				st.Tools[ev.ToolName] = ts
			}
			ts.Count++
			if ev.DurationMs > 0 {
				ts.totalDurationMs += ev.DurationMs
				ts.timedCount++
			}
		}
	}

	if st.TotalEvents > 0 {
		st.ErrorRate = float64(errored) / float64(st.TotalEvents)
	}
	st.UniqueSessions = len(sessions)
	if st.UniqueSessions > 0 {
		st.EventsPerSession = float64(st.TotalEvents) / float64(st.UniqueSessions)
	}

	// Fastest/slowest by mean duration, over tools that reported one.
	var fastest, slowest float64
	for name, ts := range st.Tools {
		if ts.timedCount == 0 {
			continue
		}
		ts.AvgDurationMs = float64(ts.totalDurationMs) / float64(ts.timedCount)
		if st.FastestTool == "" || ts.AvgDurationMs < fastest {
			st.FastestTool, fastest = name, ts.AvgDurationMs
		}
		if st.SlowestTool == "" || ts.AvgDurationMs > slowest {
			st.SlowestTool, slowest = name, ts.AvgDurationMs
		}
	}
	return st, nil
}
