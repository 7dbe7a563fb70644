// Package process starts and stops the collector as a detached background
// process, tracked through a pid record on disk. The record is read and
// written at defined points only, never cached across calls.
package process

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
)

// recordFile and logFile live in the cage directory, owned exclusively by
// this package.
const (
	recordFile = "server.pid"
	logFile    = "server.log"

	// stabilityWindow is how long a freshly spawned collector must stay
	// up before start is reported successful.
	stabilityWindow = 2 * time.Second
)

// Record is the persisted {pid, startTime} pair.
type Record struct {
	PID       int    `json:"pid"`
	StartTime string `json:"startTime"`
}

// Status of the collector as derived from the record plus a liveness
// probe.
type Status struct {
	Running bool
	Stale   bool
	Record  *Record
}

// Manager supervises the collector process.
type Manager struct {
	CageDir string

	// Window overrides stabilityWindow when non-zero (tests).
	Window time.Duration
	// Exe overrides the spawned binary when non-empty (tests).
	Exe string
}

func NewManager(cageDir string) *Manager {
	return &Manager{CageDir: cageDir}
}

func (m *Manager) recordPath() string { return filepath.Join(m.CageDir, recordFile) }
func (m *Manager) logPath() string    { return filepath.Join(m.CageDir, logFile) }

// ReadRecord returns the persisted record, or nil if none exists.
func (m *Manager) ReadRecord() (*Record, error) {
	data, err := os.ReadFile(m.recordPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pid record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse pid record %s: %w", m.recordPath(), err)
	}
	return &rec, nil
}

func (m *Manager) writeRecord(rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(m.recordPath(), data, 0o644); err != nil {
		return fmt.Errorf("write pid record: %w", err)
	}
	return nil
}

func (m *Manager) removeRecord() {
	_ = os.Remove(m.recordPath())
}

// alive sends the zero-cost signal probe to pid.
func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// Status probes the current state without changing anything.
func (m *Manager) Status() (*Status, error) {
	rec, err := m.ReadRecord()
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &Status{}, nil
	}
	if alive(rec.PID) {
		return &Status{Running: true, Record: rec}, nil
	}
	return &Status{Stale: true, Record: rec}, nil
}

// Start spawns the collector detached and confirms it survives the
// stability window. A live prior instance fails fast; a stale record is
// overwritten.
func (m *Manager) Start(args ...string) error {
	rec, err := m.ReadRecord()
	if err != nil {
		return err
	}
	if rec != nil {
		if alive(rec.PID) {
			return fmt.Errorf("server already running (pid %d, started %s); run \"cage stop\" first", rec.PID, rec.StartTime)
		}
		slog.Info("removing stale pid record", "pid", rec.PID)
		m.removeRecord()
	}

	// Preconditions before any spawn attempt.
	if err := os.MkdirAll(m.CageDir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s (check permissions): %w", m.CageDir, err)
	}
	exe := m.Exe
	if exe == "" {
		var err error
		exe, err = os.Executable()
		if err != nil {
			return fmt.Errorf("cannot resolve cage binary: %w", err)
		}
	}
	logf, err := os.OpenFile(m.logPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("cannot open server log %s: %w", m.logPath(), err)
	}
	defer logf.Close()

	cmd := exec.Command(exe, args...)
	cmd.Stdout = logf
	cmd.Stderr = logf
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn collector: %w", err)
	}

	// Optimistic record; invalidated if the child dies in the window.
	newRec := &Record{PID: cmd.Process.Pid, StartTime: time.Now().UTC().Format(time.RFC3339)}
	if err := m.writeRecord(newRec); err != nil {
		_ = cmd.Process.Kill()
		return err
	}

	window := m.Window
	if window == 0 {
		window = stabilityWindow
	}
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	select {
	case waitErr := <-exited:
		m.removeRecord()
		return fmt.Errorf("server failed to start (exited during stability window: %v); see %s", waitErr, m.logPath())
	case <-time.After(window):
		slog.Info("server started", "pid", newRec.PID, "log", m.logPath())
		return nil
	}
}

// Stop signals the recorded process and removes the record.
func (m *Manager) Stop() error {
	rec, err := m.ReadRecord()
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("server is not running (no pid record in %s)", m.CageDir)
	}
	if !alive(rec.PID) {
		m.removeRecord()
		return fmt.Errorf("server was not running (stale pid %d, record removed)", rec.PID)
	}
	proc, err := os.FindProcess(rec.PID)
	if err != nil {
		return fmt.Errorf("find pid %d: %w", rec.PID, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal pid %d: %w", rec.PID, err)
	}
	m.removeRecord()
	return nil
}
