// Package hook implements the per-event forwarder invoked by the coding
// agent. Its overriding contract: never crash, never block the agent. The
// only exception is an explicit block instruction from the collector.
package hook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cagehq/cage/internal/config"
	"github.com/cagehq/cage/internal/event"
)

// Forwarder exit codes. ExitBlock tells the agent to abort the operation
// that produced the event; everything else exits ExitOK, delivery failures
// included.
const (
	ExitOK    = 0
	ExitBlock = 2
)

const offlineLogFile = "hooks-offline.log"

// collectorResponse is the subset of the ingestion envelope the forwarder
// acts on.
type collectorResponse struct {
	Block   bool   `json:"block"`
	Message string `json:"message"`
	Output  string `json:"output"`
	Warning string `json:"warning"`
}

// offlineRecord is one line of the forensic spool written when delivery
// fails. It is never read back by cage itself.
type offlineRecord struct {
	Timestamp string       `json:"timestamp"`
	EventType event.Type   `json:"eventType"`
	Reason    string       `json:"reason"`
	Event     *event.Event `json:"event"`
}

// Forwarder relays exactly one event per Run call.
type Forwarder struct {
	ServerURL string
	CageDir   string
	Timeout   time.Duration

	Stdout io.Writer
	Stderr io.Writer
}

// New builds a Forwarder from config.
func New(cfg *config.Config) *Forwarder {
	return &Forwarder{
		ServerURL: cfg.BaseURL(),
		CageDir:   cfg.Storage.CageDir,
		Timeout:   time.Duration(cfg.Hook.TimeoutMs) * time.Millisecond,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}
}

// Run reads the whole payload from stdin, normalizes it under typ,
// attaches process context, and makes exactly one bounded delivery
// attempt. It returns the process exit code per the contract above.
func (f *Forwarder) Run(typ event.Type, stdin io.Reader) int {
	raw, err := io.ReadAll(stdin)
	if err != nil {
		raw = nil // degrade to an empty payload, never crash
	}

	ev := event.Normalize(typ, raw)
	if ev.CWD == "" {
		ev.CWD, _ = os.Getwd()
	}
	ev.ProjectPath = projectRoot(ev.CWD)

	resp, err := f.deliver(ev)
	if err != nil {
		f.spool(ev, err)
		return ExitOK
	}

	if resp.Block {
		if resp.Message != "" {
			fmt.Fprintln(f.Stderr, resp.Message)
		}
		return ExitBlock
	}
	if resp.Output != "" {
		fmt.Fprint(f.Stdout, resp.Output)
	}
	if resp.Warning != "" {
		fmt.Fprintf(f.Stderr, "cage warning: %s\n", resp.Warning)
	}
	return ExitOK
}

// deliver makes the single POST attempt. Non-2xx, network failure and
// timeout all collapse into one "delivery failed" error.
func (f *Forwarder) deliver(ev *event.Event) (*collectorResponse, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	client := &http.Client{Timeout: f.Timeout}
	url := f.ServerURL + "/events/" + ev.EventType.Route()
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("collector returned %s", resp.Status)
	}

	var cr collectorResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		// 2xx with an undecodable body still counts as accepted.
		return &collectorResponse{}, nil
	}
	return &cr, nil
}

// spool appends one offline record for a failed delivery. Spool failures
// are swallowed: the forensic trail is best-effort by contract.
func (f *Forwarder) spool(ev *event.Event, cause error) {
	rec := offlineRecord{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		EventType: ev.EventType,
		Reason:    cause.Error(),
		Event:     ev,
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := os.MkdirAll(f.CageDir, 0o755); err != nil {
		return
	}
	fl, err := os.OpenFile(filepath.Join(f.CageDir, offlineLogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer fl.Close()
	_, _ = fl.Write(append(line, '\n'))
}

// projectRoot walks up from dir looking for a .git marker. CAGE_PROJECT_DIR
// overrides the walk.
func projectRoot(dir string) string {
	if env := os.Getenv("CAGE_PROJECT_DIR"); env != "" {
		return env
	}
	for d := dir; d != "" && d != string(filepath.Separator); d = filepath.Dir(d) {
		if _, err := os.Stat(filepath.Join(d, ".git")); err == nil {
			return d
		}
		if filepath.Dir(d) == d {
			break
		}
	}
	return dir
}
