package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cagehq/cage/internal/config"
	"github.com/cagehq/cage/internal/event"
	"github.com/cagehq/cage/internal/metrics"
	"github.com/cagehq/cage/internal/query"
	"github.com/cagehq/cage/internal/rules"
	"github.com/cagehq/cage/internal/store"
	"github.com/cagehq/cage/internal/stream"
)

// Handler holds all HTTP handler dependencies.
type Handler struct {
	store   *store.Store
	engine  *query.Engine
	caster  *stream.Broadcaster
	guards  atomic.Pointer[rules.Set]
	started time.Time
	mux     *http.ServeMux
}

// New creates the ingestion handler and registers all routes. The loader
// feeds guard-rule hot-reloads; an invalid rule set is skipped and the old
// one kept.
func New(st *store.Store, caster *stream.Broadcaster, loader *config.Loader) http.Handler {
	h := &Handler{
		store:   st,
		engine:  query.New(st),
		caster:  caster,
		started: time.Now(),
		mux:     http.NewServeMux(),
	}

	h.reloadRules(loader.Config())
	loader.OnChange(h.reloadRules)

	h.mux.HandleFunc("POST /events/{route}", h.ingestTyped)
	h.mux.HandleFunc("POST /events", h.ingestGeneric)
	h.mux.HandleFunc("GET /events", h.queryEvents)
	h.mux.HandleFunc("GET /stats", h.queryStats)
	h.mux.HandleFunc("GET /stream", h.streamEvents)
	h.mux.HandleFunc("GET /health", h.health)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

func (h *Handler) reloadRules(cfg *config.Config) {
	set, err := rules.Compile(cfg.Rules)
	if err != nil {
		slog.Warn("guard rules rejected, keeping previous set", "err", err)
		return
	}
	h.guards.Store(set)
	slog.Info("guard rules loaded", "count", set.Len())
}

// POST /events/{route} — per-type ingestion; the route segment names the
// event type so the body never has to.
func (h *Handler) ingestTyped(w http.ResponseWriter, r *http.Request) {
	typ, ok := event.TypeForRoute(r.PathValue("route"))
	if !ok {
		metrics.ValidationRejected.Inc()
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown event type %q", r.PathValue("route")))
		return
	}
	var ev event.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		metrics.ValidationRejected.Inc()
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	ev.EventType = typ
	h.ingest(w, &ev)
}

// POST /events — generic path; the body must carry a valid eventType.
func (h *Handler) ingestGeneric(w http.ResponseWriter, r *http.Request) {
	var ev event.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		metrics.ValidationRejected.Inc()
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if !ev.EventType.Valid() {
		metrics.ValidationRejected.Inc()
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown event type %q", ev.EventType))
		return
	}
	h.ingest(w, &ev)
}

// ingest assigns identity, persists, broadcasts and answers. Only schema
// validation ever returns non-2xx; a storage failure is reported inside a
// 200 so a logging outage can never cascade into an agent failure.
func (h *Handler) ingest(w http.ResponseWriter, ev *event.Event) {
	ev.ID = uuid.New().String()
	ev.ApplyDefaults()

	now := time.Now().UTC()
	resp := ingestResponse{Success: true, Timestamp: now.Format(time.RFC3339)}

	start := time.Now()
	if err := h.store.Append(ev, now); err != nil {
		slog.Error("append failed, acknowledging anyway", "event_type", ev.EventType, "err", err)
		metrics.StorageErrors.Inc()
		resp.Error = fmt.Sprintf("storage: %s", err)
	} else {
		metrics.AppendDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
		metrics.EventsIngested.WithLabelValues(string(ev.EventType)).Inc()
		h.caster.Publish(ev)
	}

	if ev.EventType.IsToolEvent() {
		d := h.guards.Load().Evaluate(ev)
		resp.Block = d.Block
		resp.Message = d.Message
		resp.Output = d.Output
		resp.Warning = d.Warning
	}

	writeJSON(w, http.StatusOK, resp)
}

// GET /events — filtered, paginated history.
func (h *Handler) queryEvents(w http.ResponseWriter, r *http.Request) {
	p, err := parseQueryParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.engine.Query(p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /stats — aggregates over the same filter surface as /events.
func (h *Handler) queryStats(w http.ResponseWriter, r *http.Request) {
	p, err := parseQueryParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := h.engine.Stats(p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GET /health — process status, uptime and lightweight dependency checks.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"pid":            os.Getpid(),
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"store_writable": h.store.Writable(time.Now()),
		"subscribers":    h.caster.SubscriberCount(),
		"stream_dropped": h.caster.Dropped(),
	})
}
