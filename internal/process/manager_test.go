package process

import (
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

// deadPID returns the pid of a process that has already exited and been
// reaped, so the liveness probe must report it dead.
func deadPID(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("true")
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Wait(); err != nil {
		t.Fatal(err)
	}
	return cmd.Process.Pid
}

func testManager(t *testing.T) *Manager {
	m := NewManager(t.TempDir())
	m.Window = 200 * time.Millisecond
	return m
}

func TestStatusNoRecord(t *testing.T) {
	m := testManager(t)
	st, err := m.Status()
	if err != nil {
		t.Fatal(err)
	}
	if st.Running || st.Stale {
		t.Errorf("status = %+v", st)
	}
}

func TestStatusLiveAndStale(t *testing.T) {
	m := testManager(t)

	// Our own pid is definitely alive.
	if err := m.writeRecord(&Record{PID: os.Getpid(), StartTime: "t"}); err != nil {
		t.Fatal(err)
	}
	st, err := m.Status()
	if err != nil {
		t.Fatal(err)
	}
	if !st.Running {
		t.Errorf("live pid reported as %+v", st)
	}

	if err := m.writeRecord(&Record{PID: deadPID(t), StartTime: "t"}); err != nil {
		t.Fatal(err)
	}
	st, err = m.Status()
	if err != nil {
		t.Fatal(err)
	}
	if !st.Stale || st.Running {
		t.Errorf("dead pid reported as %+v", st)
	}
}

func TestStartFailsWhileAlive(t *testing.T) {
	m := testManager(t)
	if err := m.writeRecord(&Record{PID: os.Getpid(), StartTime: "t"}); err != nil {
		t.Fatal(err)
	}
	err := m.Start("server")
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("err = %v", err)
	}
}

func TestStartRecoversFromStaleRecord(t *testing.T) {
	m := testManager(t)
	m.Exe = "/bin/sleep"
	stale := deadPID(t)
	if err := m.writeRecord(&Record{PID: stale, StartTime: "t"}); err != nil {
		t.Fatal(err)
	}

	if err := m.Start("5"); err != nil {
		t.Fatalf("start after stale record: %v", err)
	}
	t.Cleanup(func() { _ = m.Stop() })

	rec, err := m.ReadRecord()
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.PID == stale {
		t.Fatalf("record not overwritten: %+v", rec)
	}
	if !alive(rec.PID) {
		t.Error("spawned process not alive")
	}
	if rec.StartTime == "" {
		t.Error("startTime missing")
	}
}

func TestStartReportsEarlyExit(t *testing.T) {
	m := testManager(t)
	m.Exe = "/bin/false"

	err := m.Start()
	if err == nil || !strings.Contains(err.Error(), "failed to start") {
		t.Fatalf("err = %v", err)
	}
	rec, readErr := m.ReadRecord()
	if readErr != nil {
		t.Fatal(readErr)
	}
	if rec != nil {
		t.Errorf("record left behind after failed start: %+v", rec)
	}
}

func TestStopTerminatesAndRemovesRecord(t *testing.T) {
	m := testManager(t)
	m.Exe = "/bin/sleep"
	if err := m.Start("30"); err != nil {
		t.Fatal(err)
	}
	rec, err := m.ReadRecord()
	if err != nil || rec == nil {
		t.Fatalf("record = %+v, err = %v", rec, err)
	}

	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}
	after, err := m.ReadRecord()
	if err != nil {
		t.Fatal(err)
	}
	if after != nil {
		t.Errorf("record survives stop: %+v", after)
	}

	// SIGTERM lands; the process exits shortly.
	deadline := time.Now().Add(2 * time.Second)
	for alive(rec.PID) {
		if time.Now().After(deadline) {
			t.Fatal("process still alive after stop")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestStopWithoutRecord(t *testing.T) {
	m := testManager(t)
	if err := m.Stop(); err == nil || !strings.Contains(err.Error(), "not running") {
		t.Fatalf("err = %v", err)
	}
}

func TestStopStaleRecord(t *testing.T) {
	m := testManager(t)
	if err := m.writeRecord(&Record{PID: deadPID(t), StartTime: "t"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Stop(); err == nil || !strings.Contains(err.Error(), "stale") {
		t.Fatalf("err = %v", err)
	}
	if rec, _ := m.ReadRecord(); rec != nil {
		t.Error("stale record not cleaned up")
	}
}
